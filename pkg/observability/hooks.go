package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/sluice/pkg/domain"
)

// AuditHooks logs every lifecycle event at Info level.
func AuditHooks(logger *slog.Logger) domain.LifecycleHooks {
	node := func(ctx context.Context, e *domain.NodeEvent) {
		logger.InfoContext(ctx, string(e.Type), "schedule", e.Schedule, "node", e.Node, "kind", e.Kind, "run_id", e.RunID)
	}
	job := func(ctx context.Context, e *domain.JobEvent) {
		logger.InfoContext(ctx, string(e.Type), "schedule", e.Schedule, "node", e.Node, "job", e.Job, "mode", e.Mode, "run_id", e.RunID)
	}
	return domain.LifecycleHooks{
		OnNodeEnter: node,
		OnNodeLeave: node,
		OnOperator: func(ctx context.Context, e *domain.OperatorEvent) {
			logger.InfoContext(ctx, string(e.Type), "schedule", e.Schedule, "node", e.Node, "operator", e.Operator, "err", e.Err, "run_id", e.RunID)
		},
		OnJobSubmit:   job,
		OnJobFinished: job,
		OnRunEnd: func(ctx context.Context, e *domain.RunEvent) {
			logger.InfoContext(ctx, string(e.Type), "schedule", e.Schedule, "status", e.Status, "node", e.Node, "err", e.Err, "run_id", e.RunID)
		},
	}
}

// Combine chains hook sets. Each callback runs in argument order.
func Combine(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, h := range sets {
		out.OnNodeEnter = chain(out.OnNodeEnter, h.OnNodeEnter)
		out.OnNodeLeave = chain(out.OnNodeLeave, h.OnNodeLeave)
		out.OnOperator = chain(out.OnOperator, h.OnOperator)
		out.OnJobSubmit = chain(out.OnJobSubmit, h.OnJobSubmit)
		out.OnJobFinished = chain(out.OnJobFinished, h.OnJobFinished)
		out.OnRunEnd = chain(out.OnRunEnd, h.OnRunEnd)
	}
	return out
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
