package runtime

import (
	"context"

	"github.com/aretw0/sluice/pkg/domain"
)

func (c *Controller) base(ctx context.Context, s *domain.Schedule, t domain.EventType) domain.EventBase {
	return domain.EventBase{
		Timestamp: c.now(),
		Type:      t,
		Schedule:  s.Name,
		RunID:     runID(ctx),
	}
}

func (c *Controller) emitNode(ctx context.Context, s *domain.Schedule, node string, hook func(context.Context, *domain.NodeEvent), t domain.EventType) {
	if hook == nil {
		return
	}
	hook(ctx, &domain.NodeEvent{
		EventBase: c.base(ctx, s, t),
		Node:      node,
		Kind:      s.Resolve(node).Kind,
	})
}

func (c *Controller) emitOperator(ctx context.Context, s *domain.Schedule, node string, kind domain.OperatorKind, err error) {
	if c.hooks.OnOperator == nil {
		return
	}
	c.hooks.OnOperator(ctx, &domain.OperatorEvent{
		EventBase: c.base(ctx, s, domain.EventOperator),
		Node:      node,
		Operator:  kind,
		Err:       err,
	})
}

func (c *Controller) emitJob(ctx context.Context, s *domain.Schedule, node string, job domain.Job, hook func(context.Context, *domain.JobEvent), t domain.EventType) {
	if hook == nil {
		return
	}
	hook(ctx, &domain.JobEvent{
		EventBase: c.base(ctx, s, t),
		Node:      node,
		Job:       job.CurrentName,
		Mode:      job.Mode,
	})
}

func (c *Controller) emitRunEnd(ctx context.Context, s *domain.Schedule, status domain.Status, err error) {
	if c.hooks.OnRunEnd == nil {
		return
	}
	c.hooks.OnRunEnd(ctx, &domain.RunEvent{
		EventBase: c.base(ctx, s, domain.EventRunEnd),
		Status:    status,
		Node:      s.CurrentNode,
		Err:       err,
	})
}
