package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/sluice/pkg/domain"
)

// Store implements ports.ScheduleStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.Schedule
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.Schedule),
	}
}

// Save persists a deep copy of the schedule.
func (s *Store) Save(ctx context.Context, schedule *domain.Schedule) error {
	copied := schedule.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[schedule.Name] = copied
	return nil
}

// Load retrieves a copy so callers can't mutate the stored schedule.
func (s *Store) Load(ctx context.Context, name string) (*domain.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	schedule, ok := s.data[name]
	if !ok {
		return nil, domain.ErrScheduleNotFound
	}
	return schedule.Clone(), nil
}

// Delete removes the schedule.
func (s *Store) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, name)
	return nil
}

// List returns the stored schedule names.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.data))
	for name := range s.data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
