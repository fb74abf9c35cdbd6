package ports

import "context"

// AbortSignal is the out-of-band abort marker of a schedule.
type AbortSignal interface {
	// Request asks the running traversal of a schedule to stop.
	Request(ctx context.Context, schedule string) error

	// Requested reports whether an abort is pending.
	Requested(ctx context.Context, schedule string) (bool, error)

	// Acknowledge clears the marker once the abort took effect.
	Acknowledge(ctx context.Context, schedule string) error
}
