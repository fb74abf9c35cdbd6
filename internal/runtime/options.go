package runtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/sluice/pkg/domain"
	"github.com/aretw0/sluice/pkg/ports"
)

const (
	// DefaultPollInterval is the suspension between two completion checks of
	// a running job. It also bounds how long an abort request can go unseen.
	DefaultPollInterval = 10 * time.Second
	// DefaultWaitInterval is how long the reserved WAIT node suspends.
	DefaultWaitInterval = 10 * time.Second
)

// Sleeper suspends the run loop. It must return early with ctx.Err() when
// ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Option configures the Controller.
type Option func(*Controller)

// WithAbortSignal sets the out-of-band abort marker checked at every step.
func WithAbortSignal(signal ports.AbortSignal) Option {
	return func(c *Controller) {
		c.abort = signal
	}
}

// WithNotifier sets where completion, abort and error emails go.
func WithNotifier(n ports.Notifier) Option {
	return func(c *Controller) {
		c.notifier = n
	}
}

// WithStore enables saving the schedule after every successful step.
func WithStore(store ports.ScheduleStore) Option {
	return func(c *Controller) {
		c.store = store
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(c *Controller) {
		c.hooks = hooks
	}
}

// WithPollInterval sets the suspension between job completion checks.
func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithWaitInterval sets how long the WAIT node suspends.
func WithWaitInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d >= 0 {
			c.waitInterval = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// WithSleeper replaces the timer used between steps, for tests.
func WithSleeper(sleep Sleeper) Option {
	return func(c *Controller) {
		c.sleep = sleep
	}
}
