package sluice

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/aretw0/sluice/internal/adapters/file"
	"github.com/aretw0/sluice/internal/logging"
	"github.com/aretw0/sluice/internal/presentation/graph"
	"github.com/aretw0/sluice/internal/runtime"
	"github.com/aretw0/sluice/internal/validator"
	"github.com/aretw0/sluice/pkg/adapters/process"
	"github.com/aretw0/sluice/pkg/domain"
	"github.com/aretw0/sluice/pkg/ports"
	"github.com/aretw0/sluice/pkg/session"
)

// Engine is the high-level entry point for the sluice library. It owns the
// schedule store and drives runs through the execution controller.
type Engine struct {
	controller *runtime.Controller
	sessions   *session.Manager

	store    ports.ScheduleStore
	executor ports.Executor
	abort    ports.AbortSignal
	notifier ports.Notifier
	locker   ports.DistributedLocker
	hooks    domain.LifecycleHooks
	logger   *slog.Logger

	pollInterval time.Duration
	waitInterval time.Duration
	runtimeOpts  []runtime.Option
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithStore replaces the file store rooted at the engine directory.
func WithStore(store ports.ScheduleStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithExecutor sets the job backend. The default is a process executor
// with an empty registry.
func WithExecutor(executor ports.Executor) Option {
	return func(e *Engine) {
		e.executor = executor
	}
}

// WithAbortSignal replaces the abort marker files.
func WithAbortSignal(signal ports.AbortSignal) Option {
	return func(e *Engine) {
		e.abort = signal
	}
}

// WithNotifier sets where run notifications go.
func WithNotifier(n ports.Notifier) Option {
	return func(e *Engine) {
		e.notifier = n
	}
}

// WithLocker enables cross-process locking of schedules.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithPollInterval sets the suspension between job completion checks. It
// also bounds the abort latency.
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.pollInterval = d
	}
}

// WithWaitInterval sets how long the WAIT node suspends.
func WithWaitInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.waitInterval = d
	}
}

// WithClock replaces time and sleeping, for tests and simulations.
func WithClock(now func() time.Time, sleep func(context.Context, time.Duration) error) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithClock(now), runtime.WithSleeper(sleep))
	}
}

// New creates an engine keeping schedules under dir. An empty dir uses
// .sluice/schedules.
func New(dir string, opts ...Option) (*Engine, error) {
	if dir == "" {
		dir = file.DefaultDir
	}
	e := &Engine{
		pollInterval: runtime.DefaultPollInterval,
		waitInterval: runtime.DefaultWaitInterval,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	if e.store == nil {
		e.store = file.New(dir)
	}
	if e.abort == nil {
		e.abort = file.NewAbortSignal(dir)
	}
	if e.executor == nil {
		e.executor = process.NewExecutor(
			process.WithStateDir(filepath.Join(filepath.Dir(dir), "jobs")),
			process.WithLogger(e.logger),
		)
	}

	sessionOpts := []session.Option{session.WithLogger(e.logger)}
	if e.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(e.locker))
	}
	e.sessions = session.NewManager(e.store, sessionOpts...)

	runtimeOpts := []runtime.Option{
		runtime.WithStore(e.store),
		runtime.WithAbortSignal(e.abort),
		runtime.WithLogger(e.logger),
		runtime.WithLifecycleHooks(e.hooks),
		runtime.WithPollInterval(e.pollInterval),
		runtime.WithWaitInterval(e.waitInterval),
	}
	if e.notifier != nil {
		runtimeOpts = append(runtimeOpts, runtime.WithNotifier(e.notifier))
	}
	e.controller = runtime.NewController(e.executor, append(runtimeOpts, e.runtimeOpts...)...)
	return e, nil
}

// Create stores a new schedule. It refuses to replace an existing one.
func (e *Engine) Create(ctx context.Context, s *domain.Schedule) error {
	return e.sessions.Create(ctx, s)
}

// Save stores the schedule, replacing any previous version.
func (e *Engine) Save(ctx context.Context, s *domain.Schedule) error {
	return e.sessions.Save(ctx, s)
}

// Load reads a stored schedule.
func (e *Engine) Load(ctx context.Context, name string) (*domain.Schedule, error) {
	return e.sessions.Load(ctx, name)
}

// Delete removes a stored schedule.
func (e *Engine) Delete(ctx context.Context, name string) error {
	return e.sessions.Delete(ctx, name)
}

// List returns the names of the stored schedules.
func (e *Engine) List(ctx context.Context) ([]string, error) {
	return e.sessions.List(ctx)
}

// Update applies fn to a stored schedule and saves it, under the schedule lock.
func (e *Engine) Update(ctx context.Context, name string, fn func(*domain.Schedule) error) (*domain.Schedule, error) {
	return e.sessions.Update(ctx, name, fn)
}

// Validate checks a schedule without running it.
func Validate(s *domain.Schedule) *validator.Report {
	return validator.Validate(s)
}

// Run claims the stored schedule and advances it until it is done, fails,
// is aborted, or ctx is cancelled. Progress is saved after every step, so
// a later Run resumes from the last position.
func (e *Engine) Run(ctx context.Context, name string) (domain.Status, error) {
	release, err := e.sessions.Claim(ctx, name)
	if err != nil {
		return domain.StatusError, err
	}
	defer release()

	s, err := e.sessions.Load(ctx, name)
	if err != nil {
		return domain.StatusError, err
	}
	return e.controller.Run(ctx, s)
}

// StepMode selects what Step does.
type StepMode int

const (
	// StepAdvance performs the current node, like one iteration of Run.
	StepAdvance StepMode = iota
	// StepEdgeOnly follows the outgoing edge without performing the node.
	StepEdgeOnly
	// StepToJob advances until the current node is a job node.
	StepToJob
)

// StepResult is the position after a Step.
type StepResult struct {
	Status domain.Status
	Node   string
	// Delay is how long Run would suspend before the next step.
	Delay time.Duration
}

// Step performs one diagnostic step on a stored schedule and saves it.
func (e *Engine) Step(ctx context.Context, name string, mode StepMode) (StepResult, error) {
	release, err := e.sessions.Claim(ctx, name)
	if err != nil {
		return StepResult{Status: domain.StatusError}, err
	}
	defer release()

	s, err := e.sessions.Load(ctx, name)
	if err != nil {
		return StepResult{Status: domain.StatusError}, err
	}

	var step runtime.Step
	switch mode {
	case StepEdgeOnly:
		step, err = e.controller.GotoNextNode(ctx, s)
	case StepToJob:
		step, err = e.controller.GotoNextJob(ctx, s)
	default:
		step, err = e.controller.Advance(ctx, s)
	}
	return StepResult{Status: step.Status, Node: step.Node, Delay: step.Delay}, err
}

// Reset restores every variable to its original value, returns the
// schedule to its start node and saves it.
func (e *Engine) Reset(ctx context.Context, name string) error {
	release, err := e.sessions.Claim(ctx, name)
	if err != nil {
		return err
	}
	defer release()

	s, err := e.sessions.Load(ctx, name)
	if err != nil {
		return err
	}
	return e.controller.Reset(ctx, s)
}

// Abort asks the running traversal of the schedule to stop. It returns
// immediately; the run stops within one poll interval.
func (e *Engine) Abort(ctx context.Context, name string) error {
	if _, err := e.store.Load(ctx, name); err != nil {
		return err
	}
	if err := e.abort.Request(ctx, name); err != nil {
		return fmt.Errorf("failed to request abort: %w", err)
	}
	e.logger.Info("Abort requested", "schedule", name)
	return nil
}

// Graph renders the stored schedule as a Mermaid flowchart with the current
// position highlighted.
func (e *Engine) Graph(ctx context.Context, name string) (string, error) {
	s, err := e.sessions.Load(ctx, name)
	if err != nil {
		return "", err
	}
	return graph.GenerateMermaid(s, graph.OverlayFor(s)), nil
}

// Store returns the schedule store.
func (e *Engine) Store() ports.ScheduleStore {
	return e.store
}

// AbortSignal returns the abort marker backend.
func (e *Engine) AbortSignal() ports.AbortSignal {
	return e.abort
}
