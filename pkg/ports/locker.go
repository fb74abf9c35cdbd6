package ports

import (
	"context"
	"time"
)

// UnlockFunc is a function that releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker coordinates access to a schedule across processes, so that
// only one traversal of a schedule is active at a time.
type DistributedLocker interface {
	// Lock blocks until the lock for key is acquired or ctx is done. The lock
	// stays held until the UnlockFunc is called; ttl only bounds how long a
	// crashed holder keeps it.
	// Returns an UnlockFunc that MUST be called to release the lock.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
