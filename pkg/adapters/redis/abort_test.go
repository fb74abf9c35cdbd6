package redis_test

import (
	"context"
	"testing"

	"github.com/aretw0/sluice/pkg/adapters/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisAbortSignal(t *testing.T) {
	mr, client := newClient(t)
	signal := redis.NewAbortSignal(client, redis.DefaultPrefix)
	ctx := context.Background()

	requested, err := signal.Requested(ctx, "nightly")
	require.NoError(t, err)
	assert.False(t, requested)

	require.NoError(t, signal.Request(ctx, "nightly"))
	assert.True(t, mr.Exists("sluice:abort:nightly"))

	requested, err = signal.Requested(ctx, "nightly")
	require.NoError(t, err)
	assert.True(t, requested)

	requested, err = signal.Requested(ctx, "other")
	require.NoError(t, err)
	assert.False(t, requested, "markers are per schedule")

	require.NoError(t, signal.Acknowledge(ctx, "nightly"))
	requested, err = signal.Requested(ctx, "nightly")
	require.NoError(t, err)
	assert.False(t, requested)
}
