package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/ngabopay/ussdpilot/pkg/domain"
)

// ErrFeedClosed is returned by Publish after the feed's consumer went away.
var ErrFeedClosed = errors.New("snapshot feed closed")

// DefaultFeedBuffer is the number of snapshots a Feed holds before Publish blocks.
const DefaultFeedBuffer = 16

// Feed implements ports.SnapshotFeed over a channel that in-process hosts
// publish into (the HTTP snapshot endpoint, tests).
// Safe for concurrent use.
type Feed struct {
	ch     chan domain.Snapshot
	done   chan struct{}
	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

// NewFeed creates a feed holding up to buffer pending snapshots.
func NewFeed(buffer int) *Feed {
	if buffer <= 0 {
		buffer = DefaultFeedBuffer
	}
	return &Feed{ch: make(chan domain.Snapshot, buffer), done: make(chan struct{})}
}

// Publish hands snap to the consumer, blocking while the buffer is full.
// Ownership moves to the feed: on error, snap has already been released.
func (f *Feed) Publish(ctx context.Context, snap domain.Snapshot) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		snap.Release()
		return ErrFeedClosed
	}
	select {
	case f.ch <- snap:
		return nil
	case <-f.done:
		snap.Release()
		return ErrFeedClosed
	case <-ctx.Done():
		snap.Release()
		return ctx.Err()
	}
}

// Snapshots implements ports.SnapshotFeed. The channel closes when ctx is
// done; snapshots already buffered are still delivered.
func (f *Feed) Snapshots(ctx context.Context) (<-chan domain.Snapshot, error) {
	go func() {
		<-ctx.Done()
		f.close()
	}()
	return f.ch, nil
}

func (f *Feed) close() {
	f.once.Do(func() {
		close(f.done)
		f.mu.Lock()
		f.closed = true
		close(f.ch)
		f.mu.Unlock()
	})
}
