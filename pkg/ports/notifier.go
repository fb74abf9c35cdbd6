package ports

import "context"

// Notifier delivers messages about a run. Failures are logged by the caller
// and never stop the run.
type Notifier interface {
	SendEmail(ctx context.Context, address, subject, message string) error
}
