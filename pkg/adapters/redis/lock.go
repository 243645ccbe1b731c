package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ngabopay/ussdpilot/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// Token-checked scripts: a holder can only touch a lock it still owns.
var (
	releaseScript = backend.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

	refreshScript = backend.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0`)
)

// Locker implements ports.DistributedLocker using Redis SET NX PX.
type Locker struct {
	client *backend.Client
	prefix string
}

// NewLocker creates a new Redis locker.
func NewLocker(client *backend.Client, prefix string) *Locker {
	return &Locker{
		client: client,
		prefix: prefix,
	}
}

// TryLock acquires the lock for key if it is free.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (ports.Lease, bool, error) {
	lockKey := l.prefix + "lock:" + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis error acquiring lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return &lease{client: l.client, key: lockKey, token: token}, true, nil
}

type lease struct {
	client *backend.Client
	key    string
	token  string
}

func (l *lease) Refresh(ctx context.Context, ttl time.Duration) error {
	n, err := refreshScript.Run(ctx, l.client, []string{l.key}, l.token, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("redis error refreshing lock: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", l.key, ports.ErrLeaseLost)
	}
	return nil
}

func (l *lease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("redis error releasing lock: %w", err)
	}
	return nil
}
