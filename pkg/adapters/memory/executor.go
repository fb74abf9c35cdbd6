package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/sluice/pkg/domain"
	"github.com/aretw0/sluice/pkg/ports"
)

// Submission is one recorded Submit call.
type Submission struct {
	Job  string
	Mode domain.JobMode
}

// Instantiation is one recorded Instantiate call.
type Instantiation struct {
	Template string
	Vars     map[string]string
}

// Executor is a programmable ports.Executor for tests and dry runs.
// Jobs never run; they finish when Finish is called or, with FinishAfter set,
// after that many IsFinished polls.
type Executor struct {
	mu          sync.Mutex
	submissions []Submission
	rendered    []Instantiation
	polls       map[string]int
	finished    map[string]bool
	known       map[string]bool
	instances   map[string]int

	// FinishAfter makes a job report finished on the Nth poll. Zero means
	// jobs only finish through Finish.
	FinishAfter int
	// Dedupe makes Instantiate rename repeated templates to name_2, name_3...
	Dedupe bool
	// SubmitErr, when set, fails every Submit call.
	SubmitErr error
	// InstantiateErr, when set, fails every Instantiate call.
	InstantiateErr error
}

// NewExecutor creates an executor with no jobs.
func NewExecutor() *Executor {
	return &Executor{
		polls:     make(map[string]int),
		finished:  make(map[string]bool),
		known:     make(map[string]bool),
		instances: make(map[string]int),
	}
}

func (e *Executor) Instantiate(ctx context.Context, template string, vars map[string]string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.InstantiateErr != nil {
		return "", e.InstantiateErr
	}
	e.rendered = append(e.rendered, Instantiation{Template: template, Vars: vars})
	e.instances[template]++
	if !e.Dedupe || e.instances[template] == 1 {
		return template, nil
	}
	return fmt.Sprintf("%s_%d", template, e.instances[template]), nil
}

func (e *Executor) Submit(ctx context.Context, job string, mode domain.JobMode) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.SubmitErr != nil {
		return "", e.SubmitErr
	}
	e.submissions = append(e.submissions, Submission{Job: job, Mode: mode})
	e.known[job] = true
	e.finished[job] = false
	e.polls[job] = 0
	return job, nil
}

func (e *Executor) IsFinished(ctx context.Context, handle string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.known[handle] {
		return false, fmt.Errorf("%w: %s", ports.ErrJobNotFound, handle)
	}
	e.polls[handle]++
	if e.FinishAfter > 0 && e.polls[handle] >= e.FinishAfter {
		e.finished[handle] = true
	}
	return e.finished[handle], nil
}

// Finish marks a submitted job as completed.
func (e *Executor) Finish(handle string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.known[handle] = true
	e.finished[handle] = true
}

// Forget drops every record of a job, as a restarted backend would.
func (e *Executor) Forget(handle string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.known, handle)
	delete(e.finished, handle)
	delete(e.polls, handle)
}

// Submissions returns the recorded Submit calls.
func (e *Executor) Submissions() []Submission {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Submission(nil), e.submissions...)
}

// Instantiations returns the recorded Instantiate calls.
func (e *Executor) Instantiations() []Instantiation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Instantiation(nil), e.rendered...)
}

// Polls returns how many times IsFinished was asked about handle.
func (e *Executor) Polls(handle string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.polls[handle]
}
