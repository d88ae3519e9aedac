package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medflow/stockledger/pkg/testutil"
)

func TestRedisStore_Integration(t *testing.T) {
	testutil.SkipIfShort(t)

	ctx := context.Background()
	container, err := testutil.NewRedisContainer(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	client := redis.NewClient(&redis.Options{Addr: container.Addr})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStore(client)
	assert.Equal(t, "up", store.Health(ctx)["status"])

	ok, err := store.Claim(ctx, "tx-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Claim(ctx, "tx-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	ttl, err := client.TTL(ctx, defaultKeyPrefix+"tx-1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, store.Release(ctx, "tx-1"))
	ok, err = store.Claim(ctx, "tx-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
