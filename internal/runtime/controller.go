package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/sluice/internal/logging"
	"github.com/aretw0/sluice/internal/operators"
	"github.com/aretw0/sluice/internal/validator"
	"github.com/aretw0/sluice/pkg/domain"
	"github.com/aretw0/sluice/pkg/ports"
	"github.com/google/uuid"
)

// Step is the outcome of one advance.
type Step struct {
	Status domain.Status
	// Node is the current node after the step.
	Node string
	// Delay is how long the run loop suspends before the next advance.
	Delay time.Duration
}

// Controller walks a schedule graph. It holds no schedule state of its own
// besides in-memory wait checkpoints, so one controller can drive several
// schedules, one traversal each.
type Controller struct {
	executor ports.Executor
	abort    ports.AbortSignal
	notifier ports.Notifier
	store    ports.ScheduleStore
	logger   *slog.Logger
	hooks    domain.LifecycleHooks

	pollInterval time.Duration
	waitInterval time.Duration
	now          func() time.Time
	sleep        Sleeper

	mu      sync.Mutex
	interps map[string]*operators.Interpreter
	waits   map[string]time.Time
}

// NewController creates a controller submitting jobs to executor.
func NewController(executor ports.Executor, opts ...Option) *Controller {
	c := &Controller{
		executor:     executor,
		logger:       logging.NewNop(),
		pollInterval: DefaultPollInterval,
		waitInterval: DefaultWaitInterval,
		now:          time.Now,
		sleep:        sleepContext,
		interps:      make(map[string]*operators.Interpreter),
		waits:        make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type runIDKey struct{}

// WithRunID tags ctx with a run correlation id used in logs and events.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

func runID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// Run validates the schedule and advances it until it is done, fails, or ctx
// is cancelled. The schedule is saved after every successful step when a
// store is configured, so a cancelled run resumes where it stopped.
func (c *Controller) Run(ctx context.Context, s *domain.Schedule) (domain.Status, error) {
	if report := validator.Validate(s); !report.Valid() {
		return domain.StatusError, fmt.Errorf("%w: %w", domain.ErrInvalidSchedule, report)
	}
	if runID(ctx) == "" {
		ctx = WithRunID(ctx, uuid.NewString())
	}
	c.logger.Info("run started", "schedule", s.Name, "node", s.CurrentNode, "run_id", runID(ctx))

	step, err := c.drive(ctx, s, nil)
	return step.Status, err
}

// GotoNextJob advances until the current node is a job node or the run ends.
// When the current node already is a job node it is left first along its
// outgoing edge without submitting the job, so repeated calls walk from job
// to job. The started flag of the skipped job is left untouched.
func (c *Controller) GotoNextJob(ctx context.Context, s *domain.Schedule) (Step, error) {
	if s.CurrentNode == "" || s.CurrentNode == domain.Undefined {
		s.CurrentNode = s.OriginalStartNode
	}
	if s.IsJob(s.CurrentNode) {
		step, err := c.follow(ctx, s)
		if err != nil || step.Status.IsTerminal() || s.IsJob(step.Node) {
			return step, err
		}
	}
	return c.drive(ctx, s, func(step Step) bool {
		return s.IsJob(step.Node)
	})
}

func (c *Controller) drive(ctx context.Context, s *domain.Schedule, stop func(Step) bool) (Step, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Step{Status: c.statusAt(s, s.CurrentNode), Node: s.CurrentNode}, err
		}
		step, err := c.Advance(ctx, s)
		if err != nil || step.Status.IsTerminal() {
			return step, err
		}
		if stop != nil && stop(step) {
			return step, nil
		}
		if step.Delay > 0 {
			if err := c.sleep(ctx, min(step.Delay, c.pollInterval)); err != nil {
				return step, err
			}
		}
	}
}

// Advance performs one step: the abort check, then the action of the
// current node.
func (c *Controller) Advance(ctx context.Context, s *domain.Schedule) (Step, error) {
	if c.abortRequested(ctx, s) {
		return c.doAbort(ctx, s)
	}
	if s.CurrentNode == "" || s.CurrentNode == domain.Undefined {
		s.CurrentNode = s.OriginalStartNode
	}

	node := s.CurrentNode
	c.logger.Debug("advance", "schedule", s.Name, "node", node, "run_id", runID(ctx))

	switch ref := s.Resolve(node); ref.Kind {
	case domain.NodeKindExit:
		return Step{Status: domain.StatusDone, Node: node}, nil
	case domain.NodeKindWait:
		return c.advanceWait(ctx, s)
	case domain.NodeKindJob:
		return c.advanceJob(ctx, s)
	case domain.NodeKindOperator:
		return c.advanceOperator(ctx, s)
	default:
		return c.fail(ctx, s, fmt.Errorf("%w: current node '%s'", domain.ErrNodeNotFound, node))
	}
}

// GotoNextNode follows the outgoing edge of the current node without
// performing the node's action.
func (c *Controller) GotoNextNode(ctx context.Context, s *domain.Schedule) (Step, error) {
	if s.CurrentNode == "" || s.CurrentNode == domain.Undefined {
		s.CurrentNode = s.OriginalStartNode
	}
	if s.Resolve(s.CurrentNode).Kind == domain.NodeKindExit {
		return Step{Status: domain.StatusDone, Node: s.CurrentNode}, nil
	}
	return c.follow(ctx, s)
}

// Reset restores the schedule to its start and drops the wait checkpoints
// kept for it.
func (c *Controller) Reset(ctx context.Context, s *domain.Schedule) error {
	s.Reset()
	c.mu.Lock()
	delete(c.interps, s.Name)
	delete(c.waits, s.Name)
	c.mu.Unlock()
	return c.save(ctx, s)
}

func (c *Controller) advanceOperator(ctx context.Context, s *domain.Schedule) (Step, error) {
	node := s.CurrentNode
	op := s.Operators[node]

	res, err := c.interpreter(s.Name).Perform(ctx, node, op, s.Variables)
	c.emitOperator(ctx, s, node, op.Kind, err)
	if err != nil {
		var opErr *domain.OperatorError
		if !errors.As(err, &opErr) || !opErr.IsSoft() {
			return c.fail(ctx, s, err)
		}
		c.logger.Warn("operator failed softly", "schedule", s.Name, "node", node, "err", err, "run_id", runID(ctx))
	}

	switch {
	case res.Exit:
		return c.complete(ctx, s)
	case res.Wait > 0:
		return Step{Status: domain.StatusWaiting, Node: node, Delay: res.Wait}, nil
	}
	return c.follow(ctx, s)
}

func (c *Controller) advanceJob(ctx context.Context, s *domain.Schedule) (Step, error) {
	node := s.CurrentNode
	job := s.Jobs[node]
	logger := c.logger.With("schedule", s.Name, "node", node, "run_id", runID(ctx))

	if !job.HasStarted {
		// CONTINUE and OVERWRITE address the instance the job already has.
		target := node
		if job.Mode != domain.JobModeNew && job.CurrentName != "" {
			target = job.CurrentName
		}
		instance, err := c.executor.Instantiate(ctx, target, s.Variables.Snapshot())
		if errors.Is(err, ports.ErrJobNotRegistered) {
			return c.fail(ctx, s, fmt.Errorf("job node '%s': %w", node, err))
		}
		if err != nil {
			logger.Warn("job instantiation failed, retrying", "job", target, "err", err)
			return Step{Status: domain.StatusAtJob, Node: node, Delay: c.pollInterval}, nil
		}
		name := target
		if job.Mode == domain.JobModeNew {
			name = instance
		}

		handle, err := c.executor.Submit(ctx, name, job.Mode)
		if errors.Is(err, ports.ErrJobNotRegistered) {
			return c.fail(ctx, s, fmt.Errorf("job node '%s': %w", node, err))
		}
		if err != nil {
			logger.Warn("job submission failed, retrying", "job", name, "err", err)
			return Step{Status: domain.StatusAtJob, Node: node, Delay: c.pollInterval}, nil
		}
		job.CurrentName = handle
		job.HasStarted = true
		s.Jobs[node] = job
		logger.Info("job submitted", "job", handle, "mode", job.Mode)
		c.emitJob(ctx, s, node, job, c.hooks.OnJobSubmit, domain.EventJobSubmit)

		if err := c.save(ctx, s); err != nil {
			return c.fail(ctx, s, err)
		}
		return Step{Status: domain.StatusAtJob, Node: node, Delay: c.pollInterval}, nil
	}

	finished, err := c.executor.IsFinished(ctx, job.CurrentName)
	switch {
	case errors.Is(err, ports.ErrJobNotFound):
		logger.Warn("executor lost the job, submitting again", "job", job.CurrentName)
		job.HasStarted = false
		s.Jobs[node] = job
		if err := c.save(ctx, s); err != nil {
			return c.fail(ctx, s, err)
		}
		return Step{Status: domain.StatusAtJob, Node: node}, nil
	case err != nil:
		logger.Warn("job status check failed", "job", job.CurrentName, "err", err)
		return Step{Status: domain.StatusAtJob, Node: node, Delay: c.pollInterval}, nil
	case !finished:
		return Step{Status: domain.StatusAtJob, Node: node, Delay: c.pollInterval}, nil
	}

	logger.Info("job finished", "job", job.CurrentName)
	job.HasStarted = false
	s.Jobs[node] = job
	c.emitJob(ctx, s, node, job, c.hooks.OnJobFinished, domain.EventJobFinished)
	return c.follow(ctx, s)
}

func (c *Controller) advanceWait(ctx context.Context, s *domain.Schedule) (Step, error) {
	now := c.now()
	c.mu.Lock()
	entered, ok := c.waits[s.Name]
	if !ok {
		entered = now
		c.waits[s.Name] = now
	}
	c.mu.Unlock()

	if remaining := c.waitInterval - now.Sub(entered); remaining > 0 {
		return Step{Status: domain.StatusWaiting, Node: s.CurrentNode, Delay: remaining}, nil
	}

	c.mu.Lock()
	delete(c.waits, s.Name)
	c.mu.Unlock()
	return c.follow(ctx, s)
}

// follow moves along the outgoing edge of the current node.
func (c *Controller) follow(ctx context.Context, s *domain.Schedule) (Step, error) {
	from := s.CurrentNode
	next, err := s.NextNode(from)
	if errors.Is(err, domain.ErrNoOutgoingEdge) {
		c.logger.Warn("node has no outgoing edge, stopping", "schedule", s.Name, "node", from, "run_id", runID(ctx))
		return c.complete(ctx, s)
	}
	if err != nil {
		return c.fail(ctx, s, err)
	}
	if !s.IsNode(next) {
		return c.fail(ctx, s, fmt.Errorf("%w: edge from '%s' leads to '%s'", domain.ErrNodeNotFound, from, next))
	}

	c.emitNode(ctx, s, from, c.hooks.OnNodeLeave, domain.EventNodeLeave)
	s.CurrentNode = next
	c.emitNode(ctx, s, next, c.hooks.OnNodeEnter, domain.EventNodeEnter)

	if s.Resolve(next).Kind == domain.NodeKindExit {
		return c.complete(ctx, s)
	}
	if err := c.save(ctx, s); err != nil {
		return c.fail(ctx, s, err)
	}
	return Step{Status: c.statusAt(s, next), Node: next}, nil
}

func (c *Controller) statusAt(s *domain.Schedule, node string) domain.Status {
	switch s.Resolve(node).Kind {
	case domain.NodeKindJob:
		return domain.StatusAtJob
	case domain.NodeKindOperator:
		return domain.StatusAtOperator
	case domain.NodeKindWait:
		return domain.StatusWaiting
	case domain.NodeKindExit:
		return domain.StatusDone
	default:
		return domain.StatusIdle
	}
}

func (c *Controller) abortRequested(ctx context.Context, s *domain.Schedule) bool {
	if c.abort == nil {
		return false
	}
	requested, err := c.abort.Requested(ctx, s.Name)
	if err != nil {
		c.logger.Warn("abort check failed", "schedule", s.Name, "err", err)
		return false
	}
	return requested
}

// doAbort stops the run at a node boundary. A started job is left as it is so
// the next run resumes polling it.
func (c *Controller) doAbort(ctx context.Context, s *domain.Schedule) (Step, error) {
	c.logger.Info("aborting", "schedule", s.Name, "node", s.CurrentNode,
		"status", domain.StatusAborting, "run_id", runID(ctx))

	c.mu.Lock()
	delete(c.waits, s.Name)
	c.mu.Unlock()

	if err := c.abort.Acknowledge(ctx, s.Name); err != nil {
		c.logger.Warn("failed to clear abort marker", "schedule", s.Name, "err", err)
	}
	if err := c.save(ctx, s); err != nil {
		return c.fail(ctx, s, err)
	}
	c.notify(ctx, s, "aborted", fmt.Sprintf("Schedule %s was aborted at node %s.", s.Name, s.CurrentNode))
	c.emitRunEnd(ctx, s, domain.StatusDone, nil)
	return Step{Status: domain.StatusDone, Node: s.CurrentNode}, nil
}

func (c *Controller) complete(ctx context.Context, s *domain.Schedule) (Step, error) {
	if err := c.save(ctx, s); err != nil {
		return c.fail(ctx, s, err)
	}
	c.logger.Info("run finished", "schedule", s.Name, "node", s.CurrentNode, "run_id", runID(ctx))
	c.notify(ctx, s, "finished", fmt.Sprintf("Schedule %s finished at node %s.", s.Name, s.CurrentNode))
	c.emitRunEnd(ctx, s, domain.StatusDone, nil)
	return Step{Status: domain.StatusDone, Node: s.CurrentNode}, nil
}

// fail ends the run in the Error state. The failed step is not saved; the
// last persisted position stays intact.
func (c *Controller) fail(ctx context.Context, s *domain.Schedule, err error) (Step, error) {
	c.logger.Error("run failed", "schedule", s.Name, "node", s.CurrentNode, "err", err, "run_id", runID(ctx))
	c.notify(ctx, s, "failed", fmt.Sprintf("Schedule %s failed at node %s: %v", s.Name, s.CurrentNode, err))
	c.emitRunEnd(ctx, s, domain.StatusError, err)
	return Step{Status: domain.StatusError, Node: s.CurrentNode}, err
}

func (c *Controller) save(ctx context.Context, s *domain.Schedule) error {
	if c.store == nil {
		return nil
	}
	if err := c.store.Save(ctx, s); err != nil {
		return fmt.Errorf("failed to save schedule %s: %w", s.Name, err)
	}
	return nil
}

func (c *Controller) notify(ctx context.Context, s *domain.Schedule, what, message string) {
	if c.notifier == nil || s.Email == "" {
		return
	}
	subject := fmt.Sprintf("[sluice] %s %s", s.Name, what)
	if err := c.notifier.SendEmail(ctx, s.Email, subject, message); err != nil {
		c.logger.Warn("notification failed", "schedule", s.Name, "address", s.Email, "err", err)
	}
}

func (c *Controller) interpreter(schedule string) *operators.Interpreter {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.interps[schedule]
	if !ok {
		i = operators.New(operators.WithLogger(c.logger), operators.WithClock(c.now))
		c.interps[schedule] = i
	}
	return i
}
