package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredisLimiter(t *testing.T, limit int, window time.Duration) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLimiter(client, "poll", limit, window), mr
}

func TestRedisLimiter_FixedWindow(t *testing.T) {
	l, mr := newMiniredisLimiter(t, 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := l.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Minute, mr.TTL("poll:u1"))

	ok, err = l.Allow(ctx, "u2")
	require.NoError(t, err)
	assert.True(t, ok, "keys are independent")

	mr.FastForward(time.Minute)
	ok, err = l.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok, "the counter resets once the window expires")
}

func TestRedisLimiter_RepairsKeyWithoutExpiry(t *testing.T) {
	l, mr := newMiniredisLimiter(t, 2, time.Minute)
	ctx := context.Background()

	// A counter that lost its EXPIRE and is already over the limit.
	_, err := mr.Incr("poll:u1", 5)
	require.NoError(t, err)
	require.Zero(t, mr.TTL("poll:u1"))

	ok, err := l.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Minute, mr.TTL("poll:u1"))

	mr.FastForward(time.Minute)
	ok, err = l.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLimiter_KeepsExistingExpiry(t *testing.T) {
	l, mr := newMiniredisLimiter(t, 5, time.Minute)
	ctx := context.Background()

	_, err := l.Allow(ctx, "u1")
	require.NoError(t, err)
	mr.FastForward(40 * time.Second)
	_, err = l.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 20*time.Second, mr.TTL("poll:u1"), "later calls do not extend the window")
}
