package tokenstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	return mr
}

func TestConnect(t *testing.T) {
	mr := newRedis(t)
	client, err := Connect(context.Background(), RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	addr := mr.Addr()
	mr.Close()
	_, err = Connect(context.Background(), RedisConfig{Addr: addr, Timeout: 200 * time.Millisecond})
	assert.Error(t, err)
}

func TestRedisStore_RoundTrip(t *testing.T) {
	mr := newRedis(t)
	client, err := Connect(context.Background(), RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStore(client, "", 0)
	ctx := context.Background()

	token, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, store.Save(ctx, "tok"))
	got, err := mr.Get(DefaultRedisKey)
	require.NoError(t, err)
	assert.Equal(t, "tok", got)
	assert.Zero(t, mr.TTL(DefaultRedisKey))

	token, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok", token)

	require.NoError(t, store.Delete(ctx))
	assert.False(t, mr.Exists(DefaultRedisKey))
}

func TestRedisStore_TTL(t *testing.T) {
	mr := newRedis(t)
	client, err := Connect(context.Background(), RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStore(client, "custom:key", time.Hour)
	require.NoError(t, store.Save(context.Background(), "tok"))
	assert.Equal(t, time.Hour, mr.TTL("custom:key"))

	mr.FastForward(2 * time.Hour)
	token, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, token, "expired entry reads as no token")
}

func TestRedisStore_LoadErrorWhenDown(t *testing.T) {
	mr := newRedis(t)
	client, err := Connect(context.Background(), RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	mr.Close()
	_, err = NewRedisStore(client, "", 0).Load(context.Background())
	assert.Error(t, err)
}
