package runtime_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	goruntime "runtime"
	"testing"
	"time"

	"github.com/aretw0/sluice/internal/runtime"
	"github.com/aretw0/sluice/internal/validator"
	"github.com/aretw0/sluice/pkg/adapters/memory"
	"github.com/aretw0/sluice/pkg/adapters/process"
	"github.com/aretw0/sluice/pkg/domain"
	"github.com/aretw0/sluice/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const poll = 5 * time.Second

// fakeTime is a clock that only moves when the controller sleeps.
type fakeTime struct {
	now     time.Time
	slept   []time.Duration
	onSleep func()
}

func newFakeTime() *fakeTime {
	return &fakeTime{now: time.Unix(1_700_000_000, 0)}
}

func (f *fakeTime) Now() time.Time { return f.now }

func (f *fakeTime) Sleep(ctx context.Context, d time.Duration) error {
	f.slept = append(f.slept, d)
	f.now = f.now.Add(d)
	if f.onSleep != nil {
		f.onSleep()
	}
	return ctx.Err()
}

type fixture struct {
	exec     *memory.Executor
	abort    *memory.AbortSignal
	store    *memory.Store
	notifier *memory.Notifier
	clock    *fakeTime
	visits   map[string]int
}

func newFixture() *fixture {
	return &fixture{
		exec:     memory.NewExecutor(),
		abort:    memory.NewAbortSignal(),
		store:    memory.NewStore(),
		notifier: memory.NewNotifier(),
		clock:    newFakeTime(),
		visits:   make(map[string]int),
	}
}

func (f *fixture) controller(opts ...runtime.Option) *runtime.Controller {
	base := []runtime.Option{
		runtime.WithAbortSignal(f.abort),
		runtime.WithStore(f.store),
		runtime.WithNotifier(f.notifier),
		runtime.WithPollInterval(poll),
		runtime.WithWaitInterval(12 * time.Second),
		runtime.WithClock(f.clock.Now),
		runtime.WithSleeper(f.clock.Sleep),
		runtime.WithLifecycleHooks(domain.LifecycleHooks{
			OnOperator: func(ctx context.Context, e *domain.OperatorEvent) {
				f.visits[e.Node]++
			},
		}),
	}
	return runtime.NewController(f.exec, append(base, opts...)...)
}

// counterSchedule: inc -> cmp -> fork(enough) EXIT / inc
func counterSchedule(t *testing.T) (*domain.Schedule, string) {
	t.Helper()
	s := domain.NewSchedule("counter")
	require.NoError(t, s.AddFloatVariable("count", 0))
	require.NoError(t, s.AddBooleanVariable("enough", false))
	inc, err := s.AddOperator(domain.NewOperator(domain.OpFloatPlusConst, "count", "1", "count"))
	require.NoError(t, err)
	cmp, err := s.AddOperator(domain.NewOperator(domain.OpBoolGtConst, "count", "3", "enough"))
	require.NoError(t, err)
	s.AddExitNode()
	require.NoError(t, s.AddEdge(inc, cmp))
	require.NoError(t, s.AddFork(cmp, "enough", domain.NodeExit, inc))
	require.NoError(t, s.SetOriginalStartNode(inc))
	return s, inc
}

// jobSchedule: align -> EXIT
func jobSchedule(t *testing.T, mode domain.JobMode) *domain.Schedule {
	t.Helper()
	s := domain.NewSchedule("jobs")
	require.NoError(t, s.AddJob("align", mode))
	s.AddExitNode()
	require.NoError(t, s.AddEdge("align", domain.NodeExit))
	require.NoError(t, s.SetOriginalStartNode("align"))
	return s
}

func TestController_CounterLoop(t *testing.T) {
	f := newFixture()
	s, inc := counterSchedule(t)
	s.Email = "ops@example.org"

	status, err := f.controller().Run(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, status)

	assert.Equal(t, 4, f.visits[inc], "operator must run exactly 4 times")
	count, err := s.Variables.GetFloat("count")
	require.NoError(t, err)
	assert.Equal(t, 4.0, count)
	assert.Equal(t, domain.NodeExit, s.CurrentNode)

	saved, err := f.store.Load(context.Background(), "counter")
	require.NoError(t, err)
	assert.Equal(t, s, saved, "final state is persisted")

	sent := f.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "ops@example.org", sent[0].Address)
	assert.Contains(t, sent[0].Subject, "finished")
}

func TestController_EdgeAndFork(t *testing.T) {
	ctx := context.Background()

	t.Run("Plain Edge", func(t *testing.T) {
		s, inc := counterSchedule(t)
		step, err := newFixture().controller().Advance(ctx, s)
		require.NoError(t, err)
		assert.Equal(t, "enough=count_GT_3", step.Node)
		assert.Equal(t, domain.StatusAtOperator, step.Status)
		assert.NotEqual(t, inc, s.CurrentNode)
	})

	for _, flag := range []bool{true, false} {
		s, inc := counterSchedule(t)
		require.NoError(t, s.Variables.SetBool("enough", flag))
		require.NoError(t, s.SetCurrentNode("enough=count_GT_3"))

		step, err := newFixture().controller().GotoNextNode(ctx, s)
		require.NoError(t, err)
		if flag {
			assert.Equal(t, domain.NodeExit, step.Node)
			assert.Equal(t, domain.StatusDone, step.Status)
		} else {
			assert.Equal(t, inc, step.Node)
		}
		enough, _ := s.Variables.GetBool("enough")
		assert.Equal(t, flag, enough, "GotoNextNode must not perform the operator")
	}
}

func TestController_JobSubmittedOnce(t *testing.T) {
	f := newFixture()
	s := jobSchedule(t, domain.JobModeNew)
	c := f.controller()
	ctx := context.Background()

	step, err := c.Advance(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAtJob, step.Status)
	assert.Equal(t, poll, step.Delay)
	assert.True(t, s.Jobs["align"].HasStarted)
	assert.Equal(t, []memory.Submission{{Job: "align", Mode: domain.JobModeNew}}, f.exec.Submissions())

	for range 3 {
		step, err = c.Advance(ctx, s)
		require.NoError(t, err)
		assert.Equal(t, "align", step.Node)
	}
	assert.Len(t, f.exec.Submissions(), 1, "a running job is never resubmitted")
	assert.Equal(t, 3, f.exec.Polls("align"))

	f.exec.Finish("align")
	step, err = c.Advance(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, step.Status)
	assert.False(t, s.Jobs["align"].HasStarted, "completion clears the started flag")
}

func TestController_JobRenamedByExecutor(t *testing.T) {
	f := newFixture()
	f.exec.Dedupe = true
	f.exec.FinishAfter = 1
	ctx := context.Background()

	s := domain.NewSchedule("loop")
	require.NoError(t, s.AddFloatVariable("n", 0))
	require.NoError(t, s.AddBooleanVariable("again", true))
	require.NoError(t, s.AddJob("align", domain.JobModeNew))
	inc, err := s.AddOperator(domain.NewOperator(domain.OpFloatPlusConst, "n", "1", "n"))
	require.NoError(t, err)
	lt, err := s.AddOperator(domain.NewOperator(domain.OpBoolLtConst, "n", "2", "again"))
	require.NoError(t, err)
	s.AddExitNode()
	require.NoError(t, s.AddEdge("align", inc))
	require.NoError(t, s.AddEdge(inc, lt))
	require.NoError(t, s.AddFork(lt, "again", "align", domain.NodeExit))
	require.NoError(t, s.SetOriginalStartNode("align"))

	status, err := f.controller().Run(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, status)
	assert.Equal(t, []memory.Submission{
		{Job: "align", Mode: domain.JobModeNew},
		{Job: "align_2", Mode: domain.JobModeNew},
	}, f.exec.Submissions(), "loops resubmit and the backend name is kept")
	assert.Equal(t, "align_2", s.Jobs["align"].CurrentName)

	node, ok := s.FindJobByCurrentName("align_2")
	assert.True(t, ok)
	assert.Equal(t, "align", node)
}

func TestController_ContinueModeKeepsInstanceName(t *testing.T) {
	f := newFixture()
	f.exec.Dedupe = true
	s := jobSchedule(t, domain.JobModeContinue)
	job := s.Jobs["align"]
	job.CurrentName = "align_7"
	s.Jobs["align"] = job

	_, err := f.controller().Advance(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, []memory.Submission{{Job: "align_7", Mode: domain.JobModeContinue}}, f.exec.Submissions())
	require.Len(t, f.exec.Instantiations(), 1)
	assert.Equal(t, "align_7", f.exec.Instantiations()[0].Template)
	assert.Equal(t, "align_7", s.Jobs["align"].CurrentName)
}

func TestController_OverwriteRendersVariables(t *testing.T) {
	f := newFixture()
	s := jobSchedule(t, domain.JobModeOverwrite)
	require.NoError(t, s.AddFloatVariable("run", 42))

	_, err := f.controller().Advance(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, f.exec.Instantiations(), 1)
	assert.Equal(t, "align", f.exec.Instantiations()[0].Template)
	assert.Equal(t, "42", f.exec.Instantiations()[0].Vars["run"])
	assert.Equal(t, []memory.Submission{{Job: "align", Mode: domain.JobModeOverwrite}}, f.exec.Submissions())
}

func TestController_RenamedJobAfterRestart(t *testing.T) {
	if goruntime.GOOS == "windows" {
		t.Skip("shell fixtures need sh")
	}
	f := newFixture()
	work := t.TempDir()
	exec := process.NewExecutor(process.WithBaseDir(work), process.WithStateDir(t.TempDir()))
	t.Cleanup(func() { _ = exec.Close() })
	exec.Register("align", "sh", "-c", "echo run={{.run}} > out.txt")

	s := jobSchedule(t, domain.JobModeOverwrite)
	require.NoError(t, s.AddFloatVariable("run", 42))
	job := s.Jobs["align"]
	job.CurrentName = "align_2"
	s.Jobs["align"] = job

	c := runtime.NewController(exec, runtime.WithStore(f.store), runtime.WithPollInterval(poll))
	step, err := c.Advance(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAtJob, step.Status)
	assert.True(t, s.Jobs["align"].HasStarted, "the renamed instance is submitted")
	assert.Equal(t, "align_2", s.Jobs["align"].CurrentName)

	require.Eventually(t, func() bool {
		done, err := exec.IsFinished(context.Background(), "align_2")
		return err == nil && done
	}, 5*time.Second, 10*time.Millisecond)
	data, err := os.ReadFile(filepath.Join(work, "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "run=42\n", string(data))
}

func TestController_UnregisteredJobIsFatal(t *testing.T) {
	f := newFixture()
	f.exec.InstantiateErr = fmt.Errorf("%w: align", ports.ErrJobNotRegistered)
	s := jobSchedule(t, domain.JobModeNew)

	step, err := f.controller().Advance(context.Background(), s)
	require.ErrorIs(t, err, ports.ErrJobNotRegistered)
	assert.Equal(t, domain.StatusError, step.Status)
	assert.Empty(t, f.exec.Submissions())
}

func TestController_AbortWhilePolling(t *testing.T) {
	f := newFixture()
	s := jobSchedule(t, domain.JobModeNew)
	ctx := context.Background()
	f.clock.onSleep = func() {
		require.NoError(t, f.abort.Request(ctx, s.Name))
	}
	s.Email = "ops@example.org"

	status, err := f.controller().Run(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, status)
	assert.Equal(t, []time.Duration{poll}, f.clock.slept, "abort is seen within one poll interval")
	assert.True(t, s.Jobs["align"].HasStarted, "an aborted job keeps its started flag")
	assert.Equal(t, "align", s.CurrentNode)

	requested, err := f.abort.Requested(ctx, s.Name)
	require.NoError(t, err)
	assert.False(t, requested, "the abort marker is acknowledged")

	saved, err := f.store.Load(ctx, s.Name)
	require.NoError(t, err)
	assert.True(t, saved.Jobs["align"].HasStarted)
	require.Len(t, f.notifier.Sent(), 1)
	assert.Contains(t, f.notifier.Sent()[0].Subject, "aborted")

	// Resuming polls the same job instead of submitting it again.
	f.clock.onSleep = nil
	f.exec.Finish("align")
	status, err = f.controller().Run(ctx, saved)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, status)
	assert.Len(t, f.exec.Submissions(), 1)
	assert.Equal(t, domain.NodeExit, saved.CurrentNode)
}

func TestController_DivisionByZeroIsFatal(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	s := domain.NewSchedule("div")
	require.NoError(t, s.AddFloatVariable("x", 1))
	require.NoError(t, s.AddFloatVariable("zero", 0))
	div, err := s.AddOperator(domain.NewOperator(domain.OpFloatDivideVar, "x", "zero", "x"))
	require.NoError(t, err)
	s.AddExitNode()
	require.NoError(t, s.AddEdge(div, domain.NodeExit))
	require.NoError(t, s.SetOriginalStartNode(div))

	status, err := f.controller().Run(ctx, s)
	assert.Equal(t, domain.StatusError, status)
	require.ErrorIs(t, err, domain.ErrDivisionByZero)
	assert.Equal(t, div, s.CurrentNode, "the failing node stays current")

	x, _ := s.Variables.GetFloat("x")
	assert.Equal(t, 1.0, x)

	_, err = f.store.Load(ctx, "div")
	assert.ErrorIs(t, err, domain.ErrScheduleNotFound, "a failed step is not persisted")
}

func TestController_SoftFileFailureContinues(t *testing.T) {
	f := newFixture()
	s := domain.NewSchedule("files")
	del, err := s.AddOperator(domain.NewOperator(domain.OpStringDeleteFile, filepath.Join(t.TempDir(), "missing"), "", ""))
	require.NoError(t, err)
	s.AddExitNode()
	require.NoError(t, s.AddEdge(del, domain.NodeExit))
	require.NoError(t, s.SetOriginalStartNode(del))

	status, err := f.controller().Run(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, status)
	assert.Equal(t, 1, f.visits[del])
}

func TestController_InvalidScheduleRefused(t *testing.T) {
	f := newFixture()
	s, inc := counterSchedule(t)
	s.Edges = append(s.Edges, domain.NewEdge(inc, "ghost"))

	status, err := f.controller().Run(context.Background(), s)
	assert.Equal(t, domain.StatusError, status)
	require.ErrorIs(t, err, domain.ErrInvalidSchedule)

	var report *validator.Report
	require.ErrorAs(t, err, &report)
	assert.NotEmpty(t, report.Errors())
	assert.Empty(t, f.visits, "nothing runs")
}

func TestController_LostJobIsResubmitted(t *testing.T) {
	f := newFixture()
	s := jobSchedule(t, domain.JobModeOverwrite)
	c := f.controller()
	ctx := context.Background()

	_, err := c.Advance(ctx, s)
	require.NoError(t, err)
	f.exec.Forget("align")

	step, err := c.Advance(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAtJob, step.Status)
	assert.False(t, s.Jobs["align"].HasStarted)

	_, err = c.Advance(ctx, s)
	require.NoError(t, err)
	assert.Len(t, f.exec.Submissions(), 2)
	assert.True(t, s.Jobs["align"].HasStarted)
}

func TestController_SubmitFailureRetries(t *testing.T) {
	f := newFixture()
	f.exec.SubmitErr = errors.New("queue full")
	s := jobSchedule(t, domain.JobModeNew)

	step, err := f.controller().Advance(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAtJob, step.Status)
	assert.Equal(t, poll, step.Delay)
	assert.False(t, s.Jobs["align"].HasStarted)
}

func TestController_WaitNode(t *testing.T) {
	f := newFixture()
	s := domain.NewSchedule("wait")
	require.NoError(t, s.AddJob("align", domain.JobModeNew))
	s.AddExitNode()
	require.NoError(t, s.AddEdge(domain.NodeWait, "align"))
	require.NoError(t, s.AddEdge("align", domain.NodeExit))
	require.NoError(t, s.SetOriginalStartNode("align"))
	require.NoError(t, s.SetCurrentNode(domain.NodeWait))

	step, err := f.controller().GotoNextJob(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, "align", step.Node)
	assert.Equal(t, []time.Duration{poll, poll, 2 * time.Second}, f.clock.slept,
		"the wait is split into poll-sized suspensions")
	assert.Empty(t, f.exec.Submissions(), "GotoNextJob stops once the job node is reached")
}

func TestController_WaitOperatorRateLimits(t *testing.T) {
	f := newFixture()
	f.exec.FinishAfter = 1
	s := domain.NewSchedule("ratelimit")
	require.NoError(t, s.AddFloatVariable("n", 0))
	require.NoError(t, s.AddFloatVariable("last", 0))
	require.NoError(t, s.AddBooleanVariable("more", true))
	wait, err := s.AddOperator(domain.NewOperator(domain.OpWaitSinceLastTime, "3", "", "last"))
	require.NoError(t, err)
	inc, err := s.AddOperator(domain.NewOperator(domain.OpFloatPlusConst, "n", "1", "n"))
	require.NoError(t, err)
	lt, err := s.AddOperator(domain.NewOperator(domain.OpBoolLtConst, "n", "3", "more"))
	require.NoError(t, err)
	s.AddExitNode()
	require.NoError(t, s.AddEdge(wait, inc))
	require.NoError(t, s.AddEdge(inc, lt))
	require.NoError(t, s.AddFork(lt, "more", wait, domain.NodeExit))
	require.NoError(t, s.SetOriginalStartNode(wait))

	status, err := f.controller().Run(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, status)
	assert.Equal(t, []time.Duration{3 * time.Second, 3 * time.Second}, f.clock.slept)
	assert.Equal(t, 3, f.visits[inc])
}

func TestController_GotoNextJob(t *testing.T) {
	f := newFixture()
	s := jobSchedule(t, domain.JobModeNew)
	inc, err := s.AddOperator(domain.NewOperator(domain.OpFloatPlusConst, "n", "1", "n"))
	require.NoError(t, err)
	require.NoError(t, s.AddFloatVariable("n", 0))
	require.NoError(t, s.AddEdge(inc, "align"))
	require.NoError(t, s.SetCurrentNode(inc))

	step, err := f.controller().GotoNextJob(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, "align", step.Node)
	assert.Equal(t, domain.StatusAtJob, step.Status)
	assert.Empty(t, f.exec.Submissions())
	n, _ := s.Variables.GetFloat("n")
	assert.Equal(t, 1.0, n)
}

func TestController_GotoNextJobLeavesCurrentJob(t *testing.T) {
	f := newFixture()
	s := domain.NewSchedule("pipeline")
	require.NoError(t, s.AddFloatVariable("n", 0))
	require.NoError(t, s.AddJob("align", domain.JobModeNew))
	require.NoError(t, s.AddJob("train", domain.JobModeNew))
	inc, err := s.AddOperator(domain.NewOperator(domain.OpFloatPlusConst, "n", "1", "n"))
	require.NoError(t, err)
	s.AddExitNode()
	require.NoError(t, s.AddEdge("align", inc))
	require.NoError(t, s.AddEdge(inc, "train"))
	require.NoError(t, s.AddEdge("train", domain.NodeExit))
	require.NoError(t, s.SetOriginalStartNode("align"))
	c := f.controller()
	ctx := context.Background()

	step, err := c.GotoNextJob(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, "train", step.Node)
	assert.Empty(t, f.exec.Submissions(), "the job at the start is skipped, not submitted")
	n, _ := s.Variables.GetFloat("n")
	assert.Equal(t, 1.0, n)

	step, err = c.GotoNextJob(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, step.Status)
}

func TestController_Reset(t *testing.T) {
	f := newFixture()
	s, inc := counterSchedule(t)
	c := f.controller()
	ctx := context.Background()

	_, err := c.Run(ctx, s)
	require.NoError(t, err)

	require.NoError(t, c.Reset(ctx, s))
	assert.Equal(t, inc, s.CurrentNode)
	count, _ := s.Variables.GetFloat("count")
	assert.Equal(t, 0.0, count)
	enough, _ := s.Variables.GetBool("enough")
	assert.False(t, enough)
}

func TestController_ContextCancel(t *testing.T) {
	f := newFixture()
	s := jobSchedule(t, domain.JobModeNew)
	ctx, cancel := context.WithCancel(context.Background())
	f.clock.onSleep = cancel

	_, err := f.controller().Run(ctx, s)
	assert.ErrorIs(t, err, context.Canceled)

	saved, loadErr := f.store.Load(context.Background(), s.Name)
	require.NoError(t, loadErr)
	assert.True(t, saved.Jobs["align"].HasStarted, "the submitted job is persisted before suspending")
}
