package ratelimit_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/kiosko-dev/backend-kiosko/internal/ratelimit"
)

func newLimiter(t *testing.T) ratelimit.Limiter {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return ratelimit.Limiter{Client: client, Prefix: "rl:"}
}

func TestLimiterAllowsWithinWindow(t *testing.T) {
	limiter := newLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, remaining, _, err := limiter.Allow(ctx, "1.2.3.4", time.Minute, 3)
		require.NoError(t, err)
		require.True(t, allowed, "request %d should be allowed", i+1)
		require.Equal(t, 3-(i+1), remaining)
	}

	allowed, remaining, _, err := limiter.Allow(ctx, "1.2.3.4", time.Minute, 3)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Equal(t, 0, remaining)
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	limiter := newLimiter(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, _, _, err := limiter.Allow(ctx, "1.2.3.4", time.Minute, 2)
		require.NoError(t, err)
		require.True(t, allowed)
	}
	allowed, _, _, err := limiter.Allow(ctx, "1.2.3.4", time.Minute, 2)
	require.NoError(t, err)
	require.False(t, allowed)

	allowed, _, _, err = limiter.Allow(ctx, "5.6.7.8", time.Minute, 2)
	require.NoError(t, err)
	require.True(t, allowed, "a different key must have its own window")
}

func TestLimiterDisabledWithoutClient(t *testing.T) {
	limiter := ratelimit.Limiter{}
	allowed, _, _, err := limiter.Allow(context.Background(), "1.2.3.4", time.Minute, 1)
	require.NoError(t, err)
	require.True(t, allowed)
}
