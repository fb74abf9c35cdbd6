package ports

import (
	"context"

	"github.com/aretw0/sluice/pkg/domain"
)

// ScheduleStore persists whole schedules. There is no partial update: every
// Save writes the full aggregate.
type ScheduleStore interface {
	// Save persists the schedule under its name.
	Save(ctx context.Context, schedule *domain.Schedule) error

	// Load retrieves a schedule by name.
	// Returns domain.ErrScheduleNotFound if it does not exist.
	Load(ctx context.Context, name string) (*domain.Schedule, error)

	// Delete removes a schedule.
	Delete(ctx context.Context, name string) error

	// List returns the names of all stored schedules.
	List(ctx context.Context) ([]string, error)
}
