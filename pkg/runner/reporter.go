package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/aretw0/sluice/pkg/domain"
)

// Format selects how a Reporter writes events.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Reporter writes run progress to w. Hooks from several schedules may share
// one reporter.
type Reporter struct {
	mu     sync.Mutex
	w      io.Writer
	format Format
	enc    *json.Encoder
}

// NewReporter creates a reporter. Unknown formats fall back to text.
func NewReporter(w io.Writer, format Format) *Reporter {
	return &Reporter{w: w, format: format, enc: json.NewEncoder(w)}
}

func (r *Reporter) emit(event any, err error, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.format == FormatJSON {
		payload := map[string]any{"event": event}
		if err != nil {
			payload["error"] = err.Error()
		}
		_ = r.enc.Encode(payload)
		return
	}
	fmt.Fprintln(r.w, text)
}

// Hooks returns lifecycle hooks feeding the reporter. Node leave events are
// skipped; the following enter event carries the same information.
func (r *Reporter) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			r.emit(e, nil, fmt.Sprintf("-> %s (%s)", e.Node, e.Kind))
		},
		OnOperator: func(ctx context.Context, e *domain.OperatorEvent) {
			text := fmt.Sprintf("   %s performed", e.Node)
			if e.Err != nil {
				text = fmt.Sprintf("   %s failed: %v", e.Node, e.Err)
			}
			r.emit(e, e.Err, text)
		},
		OnJobSubmit: func(ctx context.Context, e *domain.JobEvent) {
			r.emit(e, nil, fmt.Sprintf("   submitted %s (%s)", e.Job, e.Mode))
		},
		OnJobFinished: func(ctx context.Context, e *domain.JobEvent) {
			r.emit(e, nil, fmt.Sprintf("   %s finished", e.Job))
		},
		OnRunEnd: func(ctx context.Context, e *domain.RunEvent) {
			text := fmt.Sprintf("== %s %s at %s", e.Schedule, e.Status, e.Node)
			if e.Err != nil {
				text += ": " + e.Err.Error()
			}
			r.emit(e, e.Err, text)
		},
	}
}
