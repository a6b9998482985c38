package storage

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluentquest/backend/internal/domain"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisWithClient(client), mr
}

func TestRedisGetSet(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRedis(t)

	_, found, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Set(ctx, "key", "value"))

	value, found, err := store.Get(ctx, "key")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "value", value)
}

func TestRedisGetAfterServerGone(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedis(t)

	require.NoError(t, store.Set(ctx, "key", "value"))
	mr.Close()

	_, _, err := store.Get(ctx, "key")
	assert.ErrorIs(t, err, domain.ErrStorage)

	err = store.Set(ctx, "key", "value")
	assert.ErrorIs(t, err, domain.ErrStorage)
}
