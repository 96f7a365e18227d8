package lock_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/kiosko-dev/backend-kiosko/internal/lock"
)

func newLocker(t *testing.T) lock.Locker {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond}
}

func TestTryWithLockSkipsHeldLock(t *testing.T) {
	locker := newLocker(t)
	ctx := context.Background()

	holding := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- locker.TryWithLock(ctx, "reap", time.Minute, func(context.Context) error {
			close(holding)
			<-release
			return nil
		})
	}()

	<-holding
	err := locker.TryWithLock(ctx, "reap", time.Minute, func(context.Context) error {
		t.Error("callback must not run while the lock is held")
		return nil
	})
	require.ErrorIs(t, err, lock.ErrNotAcquired)

	close(release)
	require.NoError(t, <-done)

	// the lock is released; the next tick acquires it again
	ran := false
	err = locker.TryWithLock(ctx, "reap", time.Minute, func(context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	require.True(t, ran)
}

func TestWithLockWaitsForRelease(t *testing.T) {
	locker := newLocker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	holding := make(chan struct{})
	release := make(chan struct{})
	firstDone := make(chan error, 1)

	go func() {
		firstDone <- locker.WithLock(ctx, "job", time.Minute, func(context.Context) error {
			close(holding)
			<-release
			return nil
		})
	}()

	<-holding
	secondDone := make(chan error, 1)
	go func() {
		secondDone <- locker.WithLock(ctx, "job", time.Minute, func(context.Context) error {
			return nil
		})
	}()

	close(release)
	require.NoError(t, <-firstDone)
	require.NoError(t, <-secondDone)
}

func TestLockRequiresClient(t *testing.T) {
	locker := lock.Locker{}
	err := locker.TryWithLock(context.Background(), "job", time.Minute, func(context.Context) error { return nil })
	require.Error(t, err)
}
