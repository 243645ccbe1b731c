package adb

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"github.com/ngabopay/ussdpilot/internal/clock"
	"github.com/ngabopay/ussdpilot/pkg/domain"
)

const (
	// DefaultPollInterval is the pause between two hierarchy dumps.
	DefaultPollInterval = 700 * time.Millisecond

	// DefaultFeedBuffer is the number of undelivered snapshots the feed holds.
	DefaultFeedBuffer = 4
)

// Feed polls the device and emits a snapshot whenever the dump differs from
// the previous one. It implements ports.SnapshotFeed.
type Feed struct {
	dev      *Device
	clock    clock.Clock
	logger   *slog.Logger
	interval time.Duration
	buffer   int
}

// FeedOption configures a Feed.
type FeedOption func(*Feed)

// WithPollInterval sets the pause between dumps.
func WithPollInterval(d time.Duration) FeedOption {
	return func(f *Feed) {
		if d > 0 {
			f.interval = d
		}
	}
}

// WithFeedClock replaces the wall clock.
func WithFeedClock(c clock.Clock) FeedOption {
	return func(f *Feed) {
		f.clock = c
	}
}

// WithFeedBuffer sets the channel capacity.
func WithFeedBuffer(n int) FeedOption {
	return func(f *Feed) {
		if n > 0 {
			f.buffer = n
		}
	}
}

// Feed returns a polling feed over the device.
func (d *Device) Feed(opts ...FeedOption) *Feed {
	f := &Feed{
		dev:      d,
		clock:    clock.Real(),
		logger:   d.logger,
		interval: DefaultPollInterval,
		buffer:   DefaultFeedBuffer,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Snapshots implements ports.SnapshotFeed. The channel closes when ctx is done.
func (f *Feed) Snapshots(ctx context.Context) (<-chan domain.Snapshot, error) {
	out := make(chan domain.Snapshot, f.buffer)
	go f.poll(ctx, out)
	return out, nil
}

func (f *Feed) poll(ctx context.Context, out chan<- domain.Snapshot) {
	defer close(out)

	var last []byte
	for {
		if dump, ok := f.capture(ctx); ok && !bytes.Equal(dump, last) {
			if f.emit(ctx, out, dump) {
				last = dump
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-f.clock.After(f.interval):
		}
	}
}

func (f *Feed) capture(ctx context.Context) ([]byte, bool) {
	dump, err := f.dev.Dump(ctx)
	if err != nil {
		if ctx.Err() == nil {
			f.logger.Debug("dump failed", "err", err)
		}
		return nil, false
	}
	return dump, true
}

// emit reports whether the snapshot was handed over. A full channel drops
// the snapshot so the next poll retries the same content.
func (f *Feed) emit(ctx context.Context, out chan<- domain.Snapshot, dump []byte) bool {
	tree, err := ParseHierarchy(dump)
	if err != nil {
		f.logger.Debug("unparseable dump", "err", err)
		return false
	}
	snap := NewSnapshot(ctx, f.dev, tree)
	select {
	case out <- snap:
		return true
	default:
		snap.Release()
		f.logger.Warn("feed full, snapshot dropped", "package", snap.Package())
		return false
	}
}
