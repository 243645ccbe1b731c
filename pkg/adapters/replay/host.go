// Package replay is a host adapter that plays back scripted USSD dialogs.
//
// The Host acts as both the dialer and the snapshot feed: dialing delivers the
// first screen, and every click performed by the engine advances to the next
// one, the way a carrier dialog reacts to "Send". It backs the replay CLI, the
// keyword-tuning workflow and the engine's tests.
package replay

import (
	"context"
	"errors"
	"sync"

	"github.com/ngabopay/ussdpilot/pkg/domain"
)

// ErrNotDialed is returned by Host operations that need a dial first.
var ErrNotDialed = errors.New("replay: no dial in progress")

// Host plays a Scenario. It implements ports.Dialer and ports.SnapshotFeed.
type Host struct {
	scenario *Scenario
	ledger   *Ledger

	mu     sync.Mutex
	out    chan domain.Snapshot
	closed bool
	next   int
	dialed []string
}

// NewHost creates a host for sc.
func NewHost(sc *Scenario) *Host {
	h := &Host{
		scenario: sc,
		ledger:   &Ledger{},
		out:      make(chan domain.Snapshot, len(sc.Screens)+1),
	}
	h.ledger.onClick = h.advance
	return h
}

// Ledger exposes the reference and action ledger shared by all delivered snapshots.
func (h *Host) Ledger() *Ledger { return h.ledger }

// Dialed returns the codes passed to Dial.
func (h *Host) Dialed() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.dialed...)
}

// Delivered returns how many screens have been pushed to the feed.
func (h *Host) Delivered() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.next
}

// Dial implements ports.Dialer. It pushes the first scenario screen.
func (h *Host) Dial(ctx context.Context, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	h.dialed = append(h.dialed, code)
	h.mu.Unlock()

	if h.scenario.DialError != "" {
		return errors.New(h.scenario.DialError)
	}
	h.advance()
	return nil
}

// Snapshots implements ports.SnapshotFeed. The channel closes when ctx is done.
func (h *Host) Snapshots(ctx context.Context) (<-chan domain.Snapshot, error) {
	go func() {
		<-ctx.Done()
		h.mu.Lock()
		defer h.mu.Unlock()
		if !h.closed {
			h.closed = true
			close(h.out)
		}
	}()
	return h.out, nil
}

// Push delivers an ad-hoc screen, outside the scripted sequence.
func (h *Host) Push(screen Screen) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pushLocked(screen)
}

func (h *Host) advance() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.next >= len(h.scenario.Screens) {
		return
	}
	screen := h.scenario.Screens[h.next]
	h.next++
	h.pushLocked(screen)
}

func (h *Host) pushLocked(screen Screen) {
	if h.closed {
		return
	}
	snap := NewSnapshot(screen.Package, screen.Tree(), h.ledger)
	select {
	case h.out <- snap:
	default:
		// Feed is full: the consumer stopped reading. Drop, like a missed
		// accessibility event.
		snap.Release()
	}
}
