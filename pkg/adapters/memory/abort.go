package memory

import (
	"context"
	"sync"
)

// AbortSignal implements ports.AbortSignal with an in-process set.
type AbortSignal struct {
	mu      sync.Mutex
	pending map[string]bool
}

// NewAbortSignal creates an empty signal set.
func NewAbortSignal() *AbortSignal {
	return &AbortSignal{pending: make(map[string]bool)}
}

func (a *AbortSignal) Request(ctx context.Context, schedule string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending[schedule] = true
	return nil
}

func (a *AbortSignal) Requested(ctx context.Context, schedule string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending[schedule], nil
}

func (a *AbortSignal) Acknowledge(ctx context.Context, schedule string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.pending, schedule)
	return nil
}
