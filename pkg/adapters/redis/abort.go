package redis

import (
	"context"
	"fmt"

	backend "github.com/redis/go-redis/v9"
)

// AbortSignal implements ports.AbortSignal with one key per schedule, so any
// process sharing the Redis instance can stop a run.
type AbortSignal struct {
	client *backend.Client
	prefix string
}

// NewAbortSignal creates an abort signal sharing client.
func NewAbortSignal(client *backend.Client, prefix string) *AbortSignal {
	return &AbortSignal{client: client, prefix: prefix}
}

func (a *AbortSignal) key(schedule string) string {
	return a.prefix + "abort:" + schedule
}

func (a *AbortSignal) Request(ctx context.Context, schedule string) error {
	if err := a.client.Set(ctx, a.key(schedule), 1, 0).Err(); err != nil {
		return fmt.Errorf("failed to request abort: %w", err)
	}
	return nil
}

func (a *AbortSignal) Requested(ctx context.Context, schedule string) (bool, error) {
	n, err := a.client.Exists(ctx, a.key(schedule)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check abort marker: %w", err)
	}
	return n > 0, nil
}

func (a *AbortSignal) Acknowledge(ctx context.Context, schedule string) error {
	return a.client.Del(ctx, a.key(schedule)).Err()
}
