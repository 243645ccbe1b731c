// Package registry enforces the one-engine-per-device rule.
//
// A host constructs one Registry and registers every engine it starts under
// the device it drives. A second registration for the same device fails with
// domain.ErrInstanceExists. With a DistributedLocker configured, the device is
// also leased across processes, and the lease is refreshed for as long as the
// engine stays registered.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ngabopay/ussdpilot/internal/clock"
	"github.com/ngabopay/ussdpilot/internal/logging"
	"github.com/ngabopay/ussdpilot/pkg/domain"
	"github.com/ngabopay/ussdpilot/pkg/ports"
)

// DefaultLeaseTTL is the lifetime of a device lease between refreshes.
const DefaultLeaseTTL = 30 * time.Second

// Closer is what the registry shuts down when an entry is released or its
// lease is lost. The engine facade implements it.
type Closer interface {
	Close(ctx context.Context) error
}

// ReleaseFunc unregisters an engine and closes it. Safe to call more than once.
type ReleaseFunc func(ctx context.Context) error

type entry struct {
	closer  Closer
	lease   ports.Lease
	stop    chan struct{}
	once    sync.Once
	release ReleaseFunc
	ready   bool
}

// Registry tracks live engines per device.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry

	locker   ports.DistributedLocker
	leaseTTL time.Duration
	clock    clock.Clock
	logger   *slog.Logger
}

// Option configures the Registry.
type Option func(*Registry)

// WithLocker leases every registered device through locker.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(r *Registry) {
		r.locker = locker
		if ttl > 0 {
			r.leaseTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Registry.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithClock sets the clock driving lease refreshes.
func WithClock(c clock.Clock) Option {
	return func(r *Registry) {
		r.clock = c
	}
}

// New creates an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		entries:  make(map[string]*entry),
		leaseTTL: DefaultLeaseTTL,
		clock:    clock.Real(),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register records c as the engine for device.
func (r *Registry) Register(ctx context.Context, device string, c Closer) (ReleaseFunc, error) {
	e := &entry{closer: c, stop: make(chan struct{})}
	e.release = func(ctx context.Context) error {
		var err error
		e.once.Do(func() {
			close(e.stop)
			r.drop(device, e)
			err = e.closer.Close(ctx)
			if e.lease != nil {
				if lerr := e.lease.Release(ctx); lerr != nil {
					r.logger.Warn("failed to release device lease (will expire via TTL)", "device", device, "error", lerr)
				}
			}
		})
		return err
	}

	r.mu.Lock()
	if _, exists := r.entries[device]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("device %s: %w", device, domain.ErrInstanceExists)
	}
	// Reserve the slot before talking to the locker.
	r.entries[device] = e
	r.mu.Unlock()

	if r.locker != nil {
		lease, ok, err := r.locker.TryLock(ctx, "device:"+device, r.leaseTTL)
		if err != nil || !ok {
			r.drop(device, e)
			if err != nil {
				return nil, fmt.Errorf("failed to lease device %s: %w", device, err)
			}
			return nil, fmt.Errorf("device %s leased by another process: %w", device, domain.ErrInstanceExists)
		}
		e.lease = lease
	}

	r.mu.Lock()
	e.ready = true
	r.mu.Unlock()
	if e.lease != nil {
		go r.keepAlive(device, e)
	}

	r.logger.Info("engine registered", "device", device, "leased", e.lease != nil)
	return e.release, nil
}

// keepAlive refreshes the lease at a third of its TTL. Losing the lease closes
// the engine: another process may already be driving the device.
func (r *Registry) keepAlive(device string, e *entry) {
	interval := r.leaseTTL / 3
	for {
		select {
		case <-e.stop:
			return
		case <-r.clock.After(interval):
		}

		ctx, cancel := context.WithTimeout(context.Background(), interval)
		err := e.lease.Refresh(ctx, r.leaseTTL)
		cancel()
		switch {
		case err == nil:
		case errors.Is(err, ports.ErrLeaseLost):
			r.logger.Error("device lease lost, stopping engine", "device", device, "error", err)
			go func() { _ = e.release(context.Background()) }()
			return
		default:
			r.logger.Warn("device lease refresh failed", "device", device, "error", err)
		}
	}
}

func (r *Registry) drop(device string, e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries[device] == e {
		delete(r.entries, device)
	}
}

// Devices returns the registered devices, sorted.
func (r *Registry) Devices() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for d := range r.entries {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Lookup returns the engine registered for device.
func (r *Registry) Lookup(device string) (Closer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[device]
	if !ok || !e.ready {
		return nil, false
	}
	return e.closer, true
}

// CloseAll releases every registered engine.
func (r *Registry) CloseAll(ctx context.Context) error {
	r.mu.Lock()
	releases := make([]ReleaseFunc, 0, len(r.entries))
	for _, e := range r.entries {
		if e.ready {
			releases = append(releases, e.release)
		}
	}
	r.mu.Unlock()

	var errs []error
	for _, release := range releases {
		errs = append(errs, release(ctx))
	}
	return errors.Join(errs...)
}
