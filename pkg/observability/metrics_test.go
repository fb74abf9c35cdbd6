package observability_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aretw0/sluice/pkg/domain"
	"github.com/aretw0/sluice/pkg/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func base(t domain.EventType, at time.Time) domain.EventBase {
	return domain.EventBase{Timestamp: at, Type: t, Schedule: "nightly", RunID: "r1"}
}

func TestMetrics_Hooks(t *testing.T) {
	ctx := context.Background()
	m := observability.NewMetrics()
	hooks := m.Hooks()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	hooks.OnNodeEnter(ctx, &domain.NodeEvent{EventBase: base(domain.EventNodeEnter, start), Node: "align", Kind: domain.NodeKindJob})
	hooks.OnNodeEnter(ctx, &domain.NodeEvent{EventBase: base(domain.EventNodeEnter, start), Node: "align", Kind: domain.NodeKindJob})
	hooks.OnOperator(ctx, &domain.OperatorEvent{EventBase: base(domain.EventOperator, start), Operator: domain.OpStringDeleteFile, Err: errors.New("gone")})
	hooks.OnOperator(ctx, &domain.OperatorEvent{EventBase: base(domain.EventOperator, start), Operator: domain.OpStringDeleteFile})
	hooks.OnJobSubmit(ctx, &domain.JobEvent{EventBase: base(domain.EventJobSubmit, start), Job: "align", Mode: domain.JobModeNew})
	hooks.OnJobFinished(ctx, &domain.JobEvent{EventBase: base(domain.EventJobFinished, start.Add(30*time.Second)), Job: "align"})
	hooks.OnRunEnd(ctx, &domain.RunEvent{EventBase: base(domain.EventRunEnd, start), Status: domain.StatusDone})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.NodeVisits.WithLabelValues("nightly", "align", string(domain.NodeKindJob))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperatorErrors.WithLabelValues("nightly", string(domain.OpStringDeleteFile))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobSubmissions.WithLabelValues("nightly", "new")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("nightly", string(domain.StatusDone))))
	assert.Equal(t, 1, testutil.CollectAndCount(m.JobDuration))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "sluice_node_visits_total")
}

func TestCombine(t *testing.T) {
	var order []string
	a := domain.LifecycleHooks{OnRunEnd: func(context.Context, *domain.RunEvent) { order = append(order, "a") }}
	b := domain.LifecycleHooks{
		OnRunEnd:    func(context.Context, *domain.RunEvent) { order = append(order, "b") },
		OnNodeEnter: func(context.Context, *domain.NodeEvent) { order = append(order, "enter") },
	}

	hooks := observability.Combine(a, domain.LifecycleHooks{}, b)
	hooks.OnRunEnd(context.Background(), &domain.RunEvent{})
	hooks.OnNodeEnter(context.Background(), &domain.NodeEvent{})

	assert.Equal(t, []string{"a", "b", "enter"}, order)
	assert.Nil(t, hooks.OnOperator)
}

func TestAuditHooks(t *testing.T) {
	var buf bytes.Buffer
	hooks := observability.AuditHooks(slog.New(slog.NewTextHandler(&buf, nil)))

	hooks.OnJobSubmit(context.Background(), &domain.JobEvent{EventBase: base(domain.EventJobSubmit, time.Now()), Node: "align", Job: "align_2", Mode: domain.JobModeNew})
	assert.Contains(t, buf.String(), "msg=job_submit")
	assert.Contains(t, buf.String(), "job=align_2")
}
