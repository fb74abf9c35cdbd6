package observability

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/aretw0/sluice/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects per-schedule counters from lifecycle events.
type Metrics struct {
	registry *prometheus.Registry

	NodeVisits     *prometheus.CounterVec
	OperatorErrors *prometheus.CounterVec
	JobSubmissions *prometheus.CounterVec
	JobDuration    *prometheus.HistogramVec
	Runs           *prometheus.CounterVec

	mu        sync.Mutex
	submitted map[string]time.Time
}

// NewMetrics creates the collectors and registers them on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		NodeVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sluice_node_visits_total",
			Help: "Total number of node entries",
		}, []string{"schedule", "node", "kind"}),
		OperatorErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sluice_operator_errors_total",
			Help: "Operators that returned an error, soft or fatal",
		}, []string{"schedule", "operator"}),
		JobSubmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sluice_job_submissions_total",
			Help: "Jobs handed to the executor",
		}, []string{"schedule", "mode"}),
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sluice_job_duration_seconds",
			Help:    "Time from submission to observed completion",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"schedule"}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sluice_runs_total",
			Help: "Finished runs by terminal status",
		}, []string{"schedule", "status"}),
		submitted: make(map[string]time.Time),
	}
	m.registry.MustRegister(m.NodeVisits, m.OperatorErrors, m.JobSubmissions, m.JobDuration, m.Runs)
	return m
}

// Registry exposes the underlying registry, e.g. to add Go runtime collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collected metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Hooks returns the callbacks to register on the controller.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			m.NodeVisits.WithLabelValues(e.Schedule, e.Node, string(e.Kind)).Inc()
		},
		OnOperator: func(ctx context.Context, e *domain.OperatorEvent) {
			if e.Err != nil {
				m.OperatorErrors.WithLabelValues(e.Schedule, string(e.Operator)).Inc()
			}
		},
		OnJobSubmit: func(ctx context.Context, e *domain.JobEvent) {
			m.JobSubmissions.WithLabelValues(e.Schedule, string(e.Mode)).Inc()
			m.mu.Lock()
			m.submitted[e.Schedule+"/"+e.Job] = e.Timestamp
			m.mu.Unlock()
		},
		OnJobFinished: func(ctx context.Context, e *domain.JobEvent) {
			key := e.Schedule + "/" + e.Job
			m.mu.Lock()
			start, ok := m.submitted[key]
			delete(m.submitted, key)
			m.mu.Unlock()
			// Jobs submitted by an earlier process have no start time here.
			if ok {
				m.JobDuration.WithLabelValues(e.Schedule).Observe(e.Timestamp.Sub(start).Seconds())
			}
		},
		OnRunEnd: func(ctx context.Context, e *domain.RunEvent) {
			m.Runs.WithLabelValues(e.Schedule, string(e.Status)).Inc()
		},
	}
}
