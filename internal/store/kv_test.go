package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKV(t *testing.T) (*miniredis.Miniredis, *RedisKV) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisKV(client)
}

func TestRedisKV_GetMiss(t *testing.T) {
	_, kv := newTestKV(t)

	_, err := kv.Get(context.Background(), "missing")

	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisKV_SetGet(t *testing.T) {
	_, kv := newTestKV(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "k", "v", time.Minute))

	val, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)
}

func TestRedisKV_TTLExpiry(t *testing.T) {
	mr, kv := newTestKV(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "k", "v", time.Minute))
	mr.FastForward(2 * time.Minute)

	_, err := kv.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisKV_Del(t *testing.T) {
	_, kv := newTestKV(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "k", "v", 0))
	require.NoError(t, kv.Del(ctx, "k"))

	_, err := kv.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)

	// 空键列表为空操作
	assert.NoError(t, kv.Del(ctx))
}

func TestNoopKV(t *testing.T) {
	kv := NoopKV{}
	ctx := context.Background()

	_, err := kv.Get(ctx, "anything")
	assert.ErrorIs(t, err, ErrMiss)
	assert.NoError(t, kv.Set(ctx, "k", "v", time.Minute))
	assert.NoError(t, kv.Del(ctx, "k"))
}
