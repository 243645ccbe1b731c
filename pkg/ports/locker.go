package ports

import (
	"context"
	"errors"
	"time"
)

// ErrLeaseLost is returned by Lease.Refresh when the lock expired or was taken
// over by another holder.
var ErrLeaseLost = errors.New("distributed lease lost")

// Lease is a held distributed lock.
type Lease interface {
	// Refresh extends the lease to ttl from now.
	Refresh(ctx context.Context, ttl time.Duration) error

	// Release gives the lock up. Releasing a lost lease is not an error.
	Release(ctx context.Context) error
}

// DistributedLocker defines the interface for distributed concurrency control.
// The registry uses it to make sure only one engine process drives a given device.
type DistributedLocker interface {
	// TryLock attempts to acquire the lock for key without waiting.
	// It returns acquired=false (and a nil error) when another holder owns it.
	// The returned Lease MUST be released.
	TryLock(ctx context.Context, key string, ttl time.Duration) (lease Lease, acquired bool, err error)
}
