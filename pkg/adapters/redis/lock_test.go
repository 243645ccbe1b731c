package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/ngabopay/ussdpilot/pkg/adapters/redis"
	"github.com/ngabopay/ussdpilot/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLocker_LockRelease(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	lease, ok, err := locker.TryLock(ctx, "device:emulator-5554", 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists("test:lock:device:emulator-5554"))

	require.NoError(t, lease.Release(ctx))
	assert.False(t, mr.Exists("test:lock:device:emulator-5554"))
}

func TestRedisLocker_Contention(t *testing.T) {
	_, client := newClient(t)
	first := redis.NewLocker(client, "test:")
	second := redis.NewLocker(client, "test:")
	ctx := context.Background()

	lease, ok, err := first.TryLock(ctx, "device:a", 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = second.TryLock(ctx, "device:a", 5*time.Second)
	require.NoError(t, err)
	assert.False(t, ok, "held lock must not be acquired twice")

	require.NoError(t, lease.Release(ctx))
	lease2, ok, err := second.TryLock(ctx, "device:a", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, lease2.Release(ctx))
}

func TestRedisLocker_RefreshAndLoss(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	lease, ok, err := locker.TryLock(ctx, "device:b", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, lease.Refresh(ctx, 10*time.Second))
	mr.FastForward(5 * time.Second)
	assert.True(t, mr.Exists("test:lock:device:b"), "refresh extended the lease")

	mr.FastForward(10 * time.Second)
	assert.ErrorIs(t, lease.Refresh(ctx, time.Second), ports.ErrLeaseLost)

	// A stale holder cannot release someone else's lock.
	other, ok, err := locker.TryLock(ctx, "device:b", 10*time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, lease.Release(ctx))
	assert.True(t, mr.Exists("test:lock:device:b"))
	require.NoError(t, other.Release(ctx))
}
