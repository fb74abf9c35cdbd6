package ports

import (
	"context"
	"errors"

	"github.com/aretw0/sluice/pkg/domain"
)

// ErrJobNotFound is returned by IsFinished when the backend has no record of
// the job. The controller clears the started flag and submits again.
var ErrJobNotFound = errors.New("job not found")

// ErrJobNotRegistered is returned when a job name maps to nothing the backend
// can run. Retrying cannot help, so the controller stops the run.
var ErrJobNotRegistered = errors.New("job not registered")

// Executor is the external job backend.
type Executor interface {
	// Instantiate renders a job with the current variable values and returns
	// the concrete job name. template is either a job node name or an earlier
	// instance name such as align_2, which resolves back to its template. The
	// backend may rename a fresh instance to avoid clashes; the controller
	// records whatever name is returned for JobModeNew and keeps the given name
	// otherwise.
	Instantiate(ctx context.Context, template string, vars map[string]string) (string, error)

	// Submit queues the job under the given mode and returns the handle used
	// for status checks.
	Submit(ctx context.Context, job string, mode domain.JobMode) (string, error)

	// IsFinished reports whether the job behind handle has completed.
	IsFinished(ctx context.Context, handle string) (bool, error)
}
