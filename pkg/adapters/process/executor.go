package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/aretw0/sluice/internal/logging"
	"github.com/aretw0/sluice/pkg/domain"
	"github.com/aretw0/sluice/pkg/ports"
)

// ErrJobNotRegistered is returned when a job node names no registry entry.
var ErrJobNotRegistered = ports.ErrJobNotRegistered

// Executor implements ports.Executor by running allow-listed local commands
// in the background. Completion is recorded as <handle>.done in the state
// directory, so a restarted executor still observes jobs that finished while
// it was away.
type Executor struct {
	mu        sync.Mutex
	registry  map[string]JobConfig
	instances map[string]instance
	running   map[string]*run

	stateDir string
	baseDir  string
	logger   *slog.Logger
}

type instance struct {
	template string
	command  string
	args     []string
	env      []string
}

type run struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

// Option configures the executor.
type Option func(*Executor)

// WithRegistry populates the allow-list from a loaded config.
func WithRegistry(jobs map[string]JobConfig) Option {
	return func(e *Executor) {
		for name, job := range jobs {
			job.Name = name
			e.registry[name] = job
		}
	}
}

// WithStateDir sets where completion markers and job logs are written.
func WithStateDir(dir string) Option {
	return func(e *Executor) {
		e.stateDir = dir
	}
}

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) Option {
	return func(e *Executor) {
		e.baseDir = dir
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// NewExecutor creates a process executor.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		registry:  make(map[string]JobConfig),
		instances: make(map[string]instance),
		running:   make(map[string]*run),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register adds a trusted command to the allow-list.
func (e *Executor) Register(name string, command string, args ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.registry[name] = JobConfig{Name: name, Command: command, Args: args}
}

// Instantiate renders the template arguments with vars. Variables are also
// exported as SLUICE_VAR_<NAME>. An instance name such as align_2 renders the
// align template again under the same name. A fresh instance of a template
// that is still running is renamed to template_2, template_3 and so on.
func (e *Executor) Instantiate(ctx context.Context, name string, vars map[string]string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	templateName, cfg, ok := e.lookup(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrJobNotRegistered, name)
	}
	inst, err := build(templateName, cfg, vars)
	if err != nil {
		return "", err
	}

	if name == templateName {
		for i := 2; e.busy(name); i++ {
			name = fmt.Sprintf("%s_%d", templateName, i)
		}
	}
	e.instances[name] = inst
	return name, nil
}

// lookup finds the registry entry for a template or for one of its renamed
// instances.
func (e *Executor) lookup(name string) (string, JobConfig, bool) {
	if cfg, ok := e.registry[name]; ok {
		return name, cfg, true
	}
	i := strings.LastIndex(name, "_")
	if i <= 0 {
		return "", JobConfig{}, false
	}
	if n, err := strconv.Atoi(name[i+1:]); err != nil || n < 2 {
		return "", JobConfig{}, false
	}
	base := name[:i]
	cfg, ok := e.registry[base]
	return base, cfg, ok
}

func build(templateName string, cfg JobConfig, vars map[string]string) (instance, error) {
	args := make([]string, len(cfg.Args))
	for i, arg := range cfg.Args {
		rendered, err := render(arg, vars)
		if err != nil {
			return instance{}, fmt.Errorf("job '%s' argument %d: %w", templateName, i, err)
		}
		args[i] = rendered
	}
	return instance{
		template: templateName,
		command:  cfg.Command,
		args:     args,
		env:      environ(cfg.Environment, vars),
	}, nil
}

func render(text string, vars map[string]string) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}
	tmpl, err := template.New("arg").Option("missingkey=error").Parse(text)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func environ(static, vars map[string]string) []string {
	env := make([]string, 0, len(static)+len(vars))
	for k, v := range static {
		env = append(env, k+"="+v)
	}
	for k, v := range vars {
		env = append(env, fmt.Sprintf("SLUICE_VAR_%s=%s", strings.ToUpper(k), v))
	}
	sort.Strings(env)
	return env
}

func (e *Executor) busy(name string) bool {
	r, ok := e.running[name]
	if !ok {
		return false
	}
	select {
	case <-r.done:
		return false
	default:
		return true
	}
}

// Submit starts the job in the background. A job that was never instantiated
// runs from its registry entry, which fails when its arguments need variables.
// A job that is still running is left alone whatever the mode. CONTINUE on a job that already finished
// reports it as is instead of starting it again.
func (e *Executor) Submit(ctx context.Context, job string, mode domain.JobMode) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.busy(job) {
		return job, nil
	}
	if mode == domain.JobModeContinue && e.markerExists(job) {
		return job, nil
	}

	inst, ok := e.instances[job]
	if !ok {
		templateName, cfg, registered := e.lookup(job)
		if !registered {
			return "", fmt.Errorf("%w: %s", ErrJobNotRegistered, job)
		}
		var err error
		if inst, err = build(templateName, cfg, nil); err != nil {
			return "", fmt.Errorf("job '%s' was never instantiated: %w", job, err)
		}
	}

	if e.stateDir != "" {
		if err := os.MkdirAll(e.stateDir, 0755); err != nil {
			return "", fmt.Errorf("failed to create state directory: %w", err)
		}
		if err := os.Remove(e.marker(job)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("failed to clear completion marker: %w", err)
		}
	}

	cmd := exec.Command(inst.command, inst.args...)
	cmd.Dir = e.baseDir
	cmd.Env = append(cmd.Environ(), inst.env...)
	cmd.Env = append(cmd.Env, "SLUICE_JOB="+job, "SLUICE_MODE="+string(mode))

	out, err := e.output(job)
	if err != nil {
		return "", err
	}
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Start(); err != nil {
		closeQuietly(out)
		return "", fmt.Errorf("failed to start job '%s': %w", job, err)
	}

	r := &run{cmd: cmd, done: make(chan struct{})}
	e.running[job] = r
	e.logger.Info("Job started", "job", job, "template", inst.template, "mode", mode, "pid", cmd.Process.Pid)

	go func() {
		r.err = cmd.Wait()
		closeQuietly(out)
		e.finish(job, r.err)
		close(r.done)
	}()
	return job, nil
}

func (e *Executor) output(job string) (io.Writer, error) {
	if e.stateDir == "" {
		return io.Discard, nil
	}
	f, err := os.OpenFile(filepath.Join(e.stateDir, job+".log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open job log: %w", err)
	}
	return f, nil
}

func closeQuietly(w io.Writer) {
	if c, ok := w.(io.Closer); ok {
		_ = c.Close()
	}
}

func (e *Executor) finish(job string, err error) {
	status := "ok"
	if err != nil {
		status = err.Error()
		e.logger.Warn("Job failed", "job", job, "err", err)
	} else {
		e.logger.Info("Job finished", "job", job)
	}
	if e.stateDir == "" {
		return
	}
	line := fmt.Sprintf("%s %s\n", time.Now().UTC().Format(time.RFC3339), status)
	if werr := os.WriteFile(e.marker(job), []byte(line), 0644); werr != nil {
		e.logger.Error("Failed to write completion marker", "job", job, "err", werr)
	}
}

func (e *Executor) marker(job string) string {
	return filepath.Join(e.stateDir, job+".done")
}

func (e *Executor) markerExists(job string) bool {
	if e.stateDir == "" {
		return false
	}
	_, err := os.Stat(e.marker(job))
	return err == nil
}

// IsFinished reports whether the job exited. A failing exit status still
// counts as finished; the log and the marker carry the error.
func (e *Executor) IsFinished(ctx context.Context, handle string) (bool, error) {
	e.mu.Lock()
	r, ok := e.running[handle]
	e.mu.Unlock()

	if ok {
		select {
		case <-r.done:
			return true, nil
		default:
			return false, nil
		}
	}
	if e.markerExists(handle) {
		return true, nil
	}
	return false, fmt.Errorf("%w: %s", ports.ErrJobNotFound, handle)
}

// Close kills every job that is still running and waits for it to exit.
func (e *Executor) Close() error {
	e.mu.Lock()
	var pending []*run
	for _, r := range e.running {
		select {
		case <-r.done:
		default:
			_ = r.cmd.Process.Kill()
			pending = append(pending, r)
		}
	}
	e.mu.Unlock()

	for _, r := range pending {
		<-r.done
	}
	return nil
}
