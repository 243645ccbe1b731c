package registry_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ngabopay/ussdpilot/internal/clock"
	"github.com/ngabopay/ussdpilot/pkg/adapters/redis"
	"github.com/ngabopay/ussdpilot/pkg/domain"
	"github.com/ngabopay/ussdpilot/pkg/registry"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	closed atomic.Int32
	err    error
}

func (f *fakeEngine) Close(context.Context) error {
	f.closed.Add(1)
	return f.err
}

func TestRegistry_SingleInstancePerDevice(t *testing.T) {
	reg := registry.New()
	ctx := context.Background()

	first := &fakeEngine{}
	release, err := reg.Register(ctx, "emulator-5554", first)
	require.NoError(t, err)

	_, err = reg.Register(ctx, "emulator-5554", &fakeEngine{})
	assert.ErrorIs(t, err, domain.ErrInstanceExists)

	_, err = reg.Register(ctx, "R58M123", &fakeEngine{})
	require.NoError(t, err, "other devices are independent")
	assert.Equal(t, []string{"R58M123", "emulator-5554"}, reg.Devices())

	got, ok := reg.Lookup("emulator-5554")
	assert.True(t, ok)
	assert.Same(t, first, got)

	require.NoError(t, release(ctx))
	require.NoError(t, release(ctx))
	assert.Equal(t, int32(1), first.closed.Load(), "release closes exactly once")

	_, err = reg.Register(ctx, "emulator-5554", &fakeEngine{})
	assert.NoError(t, err, "released device can be registered again")
}

func TestRegistry_ConcurrentRegister(t *testing.T) {
	reg := registry.New()
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := reg.Register(context.Background(), "dev", &fakeEngine{}); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestRegistry_CloseAll(t *testing.T) {
	reg := registry.New()
	ctx := context.Background()
	a, b := &fakeEngine{}, &fakeEngine{err: errors.New("boom")}
	_, err := reg.Register(ctx, "a", a)
	require.NoError(t, err)
	_, err = reg.Register(ctx, "b", b)
	require.NoError(t, err)

	err = reg.CloseAll(ctx)
	assert.ErrorContains(t, err, "boom")
	assert.Equal(t, int32(1), a.closed.Load())
	assert.Equal(t, int32(1), b.closed.Load())
	assert.Empty(t, reg.Devices())
}

func TestRegistry_DistributedLease(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	fake := clock.Fake(time.Unix(0, 0))
	procA := registry.New(registry.WithLocker(redis.NewLocker(client, "t:"), 30*time.Second), registry.WithClock(fake))
	procB := registry.New(registry.WithLocker(redis.NewLocker(client, "t:"), 30*time.Second))

	engine := &fakeEngine{}
	release, err := procA.Register(ctx, "emulator-5554", engine)
	require.NoError(t, err)
	assert.True(t, mr.Exists("t:lock:device:emulator-5554"))

	_, err = procB.Register(ctx, "emulator-5554", &fakeEngine{})
	assert.ErrorIs(t, err, domain.ErrInstanceExists)
	assert.Empty(t, procB.Devices(), "failed lease frees the local slot")

	// The keep-alive refreshes the lease before it expires.
	fake.WaitForTimers(1)
	mr.FastForward(20 * time.Second)
	fake.Advance(10 * time.Second)
	require.Eventually(t, func() bool { return mr.TTL("t:lock:device:emulator-5554") == 30*time.Second }, time.Second, 5*time.Millisecond)

	require.NoError(t, release(ctx))
	assert.False(t, mr.Exists("t:lock:device:emulator-5554"))

	_, err = procB.Register(ctx, "emulator-5554", &fakeEngine{})
	assert.NoError(t, err)
}

func TestRegistry_LeaseLostClosesEngine(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	defer client.Close()

	fake := clock.Fake(time.Unix(0, 0))
	reg := registry.New(registry.WithLocker(redis.NewLocker(client, "t:"), 30*time.Second), registry.WithClock(fake))

	engine := &fakeEngine{}
	_, err = reg.Register(context.Background(), "dev", engine)
	require.NoError(t, err)

	mr.Del("t:lock:device:dev")
	fake.WaitForTimers(1)
	fake.Advance(10 * time.Second)

	require.Eventually(t, func() bool { return engine.closed.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, reg.Devices())
}
