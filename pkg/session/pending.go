package session

import (
	"context"
	"sync"

	"github.com/ngabopay/ussdpilot/pkg/domain"
)

// Pending is the one-shot result of a Dial. It completes exactly once.
type Pending struct {
	id     string
	done   chan struct{}
	once   sync.Once
	result domain.Result
}

func newPending(id string) *Pending {
	return &Pending{id: id, done: make(chan struct{})}
}

// resolved returns an already completed Pending.
func resolved(r domain.Result) *Pending {
	p := newPending(r.SessionID)
	p.complete(r)
	return p
}

// ID is the session ID. Empty for dials rejected before a session started.
func (p *Pending) ID() string { return p.id }

// Done is closed when the result is available.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Result returns the result without blocking. ok is false until Done is closed.
func (p *Pending) Result() (domain.Result, bool) {
	select {
	case <-p.done:
		return p.result, true
	default:
		return domain.Result{}, false
	}
}

// Wait blocks until the session resolves or ctx is done. Cancelling ctx does
// not cancel the session.
func (p *Pending) Wait(ctx context.Context) (domain.Result, error) {
	select {
	case <-p.done:
		return p.result, nil
	case <-ctx.Done():
		return domain.Result{}, ctx.Err()
	}
}

func (p *Pending) complete(r domain.Result) bool {
	first := false
	p.once.Do(func() {
		p.result = r
		close(p.done)
		first = true
	})
	return first
}
