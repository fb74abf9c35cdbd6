package process_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/aretw0/sluice/pkg/adapters/process"
	"github.com/aretw0/sluice/pkg/domain"
	"github.com/aretw0/sluice/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.Executor = (*process.Executor)(nil)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell fixtures need sh")
	}
}

func waitFinished(t *testing.T, exec *process.Executor, handle string) {
	t.Helper()
	require.Eventually(t, func() bool {
		done, err := exec.IsFinished(context.Background(), handle)
		return err == nil && done
	}, 5*time.Second, 10*time.Millisecond)
}

func TestExecutor_RendersArguments(t *testing.T) {
	skipOnWindows(t)
	ctx := context.Background()
	work := t.TempDir()

	exec := process.NewExecutor(process.WithBaseDir(work), process.WithStateDir(t.TempDir()))
	t.Cleanup(func() { _ = exec.Close() })
	exec.Register("align", "sh", "-c", "echo {{.run}} $SLUICE_VAR_RUN $SLUICE_MODE > out.txt")

	name, err := exec.Instantiate(ctx, "align", map[string]string{"run": "42"})
	require.NoError(t, err)
	assert.Equal(t, "align", name)

	handle, err := exec.Submit(ctx, name, domain.JobModeNew)
	require.NoError(t, err)
	waitFinished(t, exec, handle)

	data, err := os.ReadFile(filepath.Join(work, "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "42 42 new\n", string(data))
}

func TestExecutor_RenamesWhileRunning(t *testing.T) {
	skipOnWindows(t)
	ctx := context.Background()

	exec := process.NewExecutor()
	t.Cleanup(func() { _ = exec.Close() })
	exec.Register("sleepy", "sleep", "30")

	first, err := exec.Instantiate(ctx, "sleepy", nil)
	require.NoError(t, err)
	_, err = exec.Submit(ctx, first, domain.JobModeNew)
	require.NoError(t, err)

	second, err := exec.Instantiate(ctx, "sleepy", nil)
	require.NoError(t, err)
	assert.Equal(t, "sleepy_2", second)

	done, err := exec.IsFinished(ctx, first)
	require.NoError(t, err)
	assert.False(t, done)

	again, err := exec.Submit(ctx, first, domain.JobModeOverwrite)
	require.NoError(t, err)
	assert.Equal(t, first, again, "a running job is not started twice")
}

func TestExecutor_MarkerSurvivesRestart(t *testing.T) {
	skipOnWindows(t)
	ctx := context.Background()
	state := t.TempDir()

	exec := process.NewExecutor(process.WithStateDir(state))
	exec.Register("noop", "true")
	handle, err := exec.Submit(ctx, "noop", domain.JobModeNew)
	require.NoError(t, err)
	waitFinished(t, exec, handle)
	assert.FileExists(t, filepath.Join(state, "noop.done"))

	restarted := process.NewExecutor(process.WithStateDir(state))
	done, err := restarted.IsFinished(ctx, handle)
	require.NoError(t, err)
	assert.True(t, done)

	_, err = restarted.IsFinished(ctx, "never_submitted")
	assert.ErrorIs(t, err, ports.ErrJobNotFound)
}

func TestExecutor_FailedJobFinishes(t *testing.T) {
	skipOnWindows(t)
	ctx := context.Background()
	state := t.TempDir()

	exec := process.NewExecutor(process.WithStateDir(state))
	exec.Register("broken", "sh", "-c", "echo boom >&2; exit 3")
	handle, err := exec.Submit(ctx, "broken", domain.JobModeNew)
	require.NoError(t, err)
	waitFinished(t, exec, handle)

	marker, err := os.ReadFile(filepath.Join(state, "broken.done"))
	require.NoError(t, err)
	assert.Contains(t, string(marker), "exit status 3")
	logged, err := os.ReadFile(filepath.Join(state, "broken.log"))
	require.NoError(t, err)
	assert.Contains(t, string(logged), "boom")
}

func TestExecutor_InstanceNameAfterRestart(t *testing.T) {
	skipOnWindows(t)
	ctx := context.Background()
	work := t.TempDir()

	exec := process.NewExecutor(process.WithBaseDir(work), process.WithStateDir(t.TempDir()))
	t.Cleanup(func() { _ = exec.Close() })
	exec.Register("align", "sh", "-c", "echo run={{.run}} $SLUICE_JOB > out.txt")

	name, err := exec.Instantiate(ctx, "align_2", map[string]string{"run": "42"})
	require.NoError(t, err)
	assert.Equal(t, "align_2", name, "an instance name is kept")

	handle, err := exec.Submit(ctx, name, domain.JobModeOverwrite)
	require.NoError(t, err)
	waitFinished(t, exec, handle)

	data, err := os.ReadFile(filepath.Join(work, "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "run=42 align_2\n", string(data))

	_, err = exec.Instantiate(ctx, "align_x", nil)
	assert.ErrorIs(t, err, process.ErrJobNotRegistered)
	_, err = exec.Instantiate(ctx, "align_1", nil)
	assert.ErrorIs(t, err, process.ErrJobNotRegistered)
}

func TestExecutor_SubmitWithoutInstantiateNeedsNoVariables(t *testing.T) {
	ctx := context.Background()
	exec := process.NewExecutor()
	exec.Register("report", "echo", "{{.run}}")

	_, err := exec.Submit(ctx, "report", domain.JobModeOverwrite)
	require.Error(t, err, "placeholders never reach the command unrendered")
	assert.Contains(t, err.Error(), "never instantiated")

	_, err = exec.Submit(ctx, "report_3", domain.JobModeContinue)
	require.Error(t, err)
	assert.NotErrorIs(t, err, process.ErrJobNotRegistered, "renamed instances resolve to their template")
}

func TestExecutor_Errors(t *testing.T) {
	ctx := context.Background()
	exec := process.NewExecutor()
	exec.Register("report", "echo", "{{.missing}}")

	_, err := exec.Instantiate(ctx, "unknown", nil)
	assert.ErrorIs(t, err, process.ErrJobNotRegistered)

	_, err = exec.Instantiate(ctx, "report", map[string]string{"other": "x"})
	assert.Error(t, err)

	_, err = exec.Submit(ctx, "unknown", domain.JobModeNew)
	assert.ErrorIs(t, err, process.ErrJobNotRegistered)
	assert.ErrorIs(t, err, ports.ErrJobNotRegistered)
}

func TestParseJobs(t *testing.T) {
	doc := `
jobs:
  - name: align
    command: ./align.sh
    args: [--retries, 3, "{{.sample}}"]
    env:
      MODE: fast
  - command: ignored-without-name
`
	jobs, err := process.ParseJobs([]byte(doc), false)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, []string{"--retries", "3", "{{.sample}}"}, jobs["align"].Args)
	assert.Equal(t, "fast", jobs["align"].Environment["MODE"])

	_, err = process.ParseJobs([]byte("jobs:\n  - name: x\n"), false)
	assert.Error(t, err, "a job needs a command")

	_, err = process.ParseJobs([]byte("jobs:\n  - name: x\n    command: y\n    shell: true\n"), false)
	assert.Error(t, err, "unknown keys are rejected")
}

func TestLoadJobs_MissingFile(t *testing.T) {
	jobs, err := process.LoadJobs(filepath.Join(t.TempDir(), "jobs.yaml"))
	require.NoError(t, err)
	assert.Empty(t, jobs)
}
