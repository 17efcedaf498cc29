package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLimiter_BurstThenReject(t *testing.T) {
	l := NewLocalLimiter(60, 2)
	fixed := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := l.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok, "third request inside the same instant exceeds the burst")

	ok, _ = l.Allow(ctx, "u2")
	assert.True(t, ok, "keys are independent")

	fixed = fixed.Add(time.Second)
	ok, _ = l.Allow(ctx, "u1")
	assert.True(t, ok, "one token refills per second at 60/min")
}

func TestLocalLimiter_Sweep(t *testing.T) {
	l := NewLocalLimiter(60, 1)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	_, _ = l.Allow(context.Background(), "old")
	now = now.Add(10 * time.Minute)
	_, _ = l.Allow(context.Background(), "fresh")

	l.Sweep(5 * time.Minute)
	assert.NotContains(t, l.visitors, "old")
	assert.Contains(t, l.visitors, "fresh")
}
