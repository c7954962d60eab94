package payroll

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/thetaxjournal/accountsvedartha/internal/shared"
)

func TestRedisLockerExclusive(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locker := NewRedisLocker(client)
	key := shared.PayrollRunLockKey("2024-04")

	release, err := locker.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, mr.Exists(key))

	_, err = locker.Acquire(ctx, key, time.Minute)
	var cerr *shared.ConcurrencyError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, key, cerr.Resource)

	require.NoError(t, release(ctx))
	require.False(t, mr.Exists(key))

	release, err = locker.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	require.NoError(t, release(ctx))
}

func TestRedisLockerStaleReleaseKeepsNewOwner(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locker := NewRedisLocker(client)
	key := shared.PayrollRunLockKey("2024-05")

	stale, err := locker.Acquire(ctx, key, time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)
	require.False(t, mr.Exists(key))

	_, err = locker.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)

	require.NoError(t, stale(ctx))
	require.True(t, mr.Exists(key))
}

func TestMemoryLockerExpiresLeases(t *testing.T) {
	ctx := context.Background()
	locker := NewMemoryLocker()
	now := time.Date(2024, 4, 30, 10, 0, 0, 0, time.UTC)
	locker.now = func() time.Time { return now }

	stale, err := locker.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	_, err = locker.Acquire(ctx, "k", time.Minute)
	require.ErrorIs(t, err, shared.ErrConcurrency)

	now = now.Add(2 * time.Minute)
	fresh, err := locker.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)

	require.NoError(t, stale(ctx))
	_, err = locker.Acquire(ctx, "k", time.Minute)
	require.ErrorIs(t, err, shared.ErrConcurrency)

	require.NoError(t, fresh(ctx))
	_, err = locker.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
}
