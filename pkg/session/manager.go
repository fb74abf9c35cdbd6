package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/sluice/internal/logging"
	"github.com/aretw0/sluice/pkg/domain"
	"github.com/aretw0/sluice/pkg/ports"
)

var (
	// ErrScheduleExists is returned by Create when the name is taken.
	ErrScheduleExists = errors.New("schedule already exists")
	// ErrScheduleBusy is returned by Claim when another traversal holds the schedule.
	ErrScheduleBusy = errors.New("schedule is already running")
)

const (
	defaultLockTTL   = 30 * time.Second
	defaultClaimWait = time.Second
)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates schedule access, ensuring safe concurrent operations.
// It uses reference counting to garbage collect unused locks.
type Manager struct {
	store ports.ScheduleStore

	mu      sync.Mutex
	locks   map[string]*lockEntry
	claimed map[string]bool

	locker    ports.DistributedLocker
	lockTTL   time.Duration
	claimWait time.Duration
	logger    *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets how long a distributed lock outlives a crashed holder.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithClaimWait sets how long Claim waits for a distributed lock before
// reporting the schedule as busy.
func WithClaimWait(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.claimWait = d
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new Manager over the given store.
func NewManager(store ports.ScheduleStore, opts ...Option) *Manager {
	m := &Manager{
		store:     store,
		locks:     make(map[string]*lockEntry),
		claimed:   make(map[string]bool),
		lockTTL:   defaultLockTTL,
		claimWait: defaultClaimWait,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(name) after unlocking.
func (m *Manager) acquire(name string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[name]
	if !exists {
		entry = &lockEntry{}
		m.locks[name] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[name]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, name)
	}
}

// Load retrieves a schedule from the store.
func (m *Manager) Load(ctx context.Context, name string) (*domain.Schedule, error) {
	var s *domain.Schedule
	err := m.WithLock(ctx, name, func(ctx context.Context) error {
		var err error
		s, err = m.store.Load(ctx, name)
		return err
	})
	return s, err
}

// Create persists a new schedule, refusing to replace an existing one.
func (m *Manager) Create(ctx context.Context, s *domain.Schedule) error {
	return m.WithLock(ctx, s.Name, func(ctx context.Context) error {
		_, err := m.store.Load(ctx, s.Name)
		if err == nil {
			return fmt.Errorf("%w: %s", ErrScheduleExists, s.Name)
		}
		if !errors.Is(err, domain.ErrScheduleNotFound) {
			return fmt.Errorf("failed to check schedule existence: %w", err)
		}
		return m.store.Save(ctx, s)
	})
}

// Save persists the schedule.
func (m *Manager) Save(ctx context.Context, s *domain.Schedule) error {
	return m.WithLock(ctx, s.Name, func(ctx context.Context) error {
		return m.store.Save(ctx, s)
	})
}

// Update loads a schedule, applies fn and saves the result, all under the lock.
func (m *Manager) Update(ctx context.Context, name string, fn func(*domain.Schedule) error) (*domain.Schedule, error) {
	var s *domain.Schedule
	err := m.WithLock(ctx, name, func(ctx context.Context) error {
		var err error
		if s, err = m.store.Load(ctx, name); err != nil {
			return err
		}
		if err := fn(s); err != nil {
			return err
		}
		return m.store.Save(ctx, s)
	})
	return s, err
}

// Delete removes the schedule from the store.
func (m *Manager) Delete(ctx context.Context, name string) error {
	return m.WithLock(ctx, name, func(ctx context.Context) error {
		return m.store.Delete(ctx, name)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying schedule store.
func (m *Manager) Store() ports.ScheduleStore {
	return m.store
}

// WithLock executes a function while holding the lock for the schedule.
func (m *Manager) WithLock(ctx context.Context, name string, fn func(context.Context) error) error {
	entry := m.acquire(name)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(name)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, name, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer m.unlock(ctx, name, unlock)
	}

	return fn(ctx)
}

func (m *Manager) unlock(ctx context.Context, key string, unlock ports.UnlockFunc) {
	if err := unlock(context.WithoutCancel(ctx)); err != nil {
		m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
			"key", key,
			"err", err,
		)
	}
}

// Claim reserves the schedule for one traversal. It fails fast with
// ErrScheduleBusy instead of queueing behind a running traversal. The
// returned func releases the claim and is safe to call more than once.
func (m *Manager) Claim(ctx context.Context, name string) (func(), error) {
	m.mu.Lock()
	if m.claimed[name] {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrScheduleBusy, name)
	}
	m.claimed[name] = true
	m.mu.Unlock()

	drop := func() {
		m.mu.Lock()
		delete(m.claimed, name)
		m.mu.Unlock()
	}

	var unlock ports.UnlockFunc
	if m.locker != nil {
		waitCtx, cancel := context.WithTimeout(ctx, m.claimWait)
		var err error
		unlock, err = m.locker.Lock(waitCtx, "run:"+name, m.lockTTL)
		cancel()
		if err != nil {
			drop()
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %s: %w", ErrScheduleBusy, name, err)
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if unlock != nil {
				m.unlock(ctx, "run:"+name, unlock)
			}
			drop()
		})
	}, nil
}
