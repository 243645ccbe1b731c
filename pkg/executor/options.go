package executor

import (
	"log/slog"
	"time"

	"github.com/ngabopay/ussdpilot/internal/clock"
)

// DefaultSettleDelay is the pause between typing a step and clicking Send.
const DefaultSettleDelay = 500 * time.Millisecond

// StallPolicy decides what happens on a Continue screen with no input field
// and no step left to inject.
type StallPolicy string

const (
	// StallConfirm clicks Send/OK/Continue, treating the screen as a confirmation.
	StallConfirm StallPolicy = "confirm"
	// StallWait leaves the screen alone; the session resolves on a later screen
	// or times out.
	StallWait StallPolicy = "wait"
)

// Option defines a functional option for configuring the Executor.
type Option func(*Executor)

// WithClock sets the clock used for the settle delay.
func WithClock(c clock.Clock) Option {
	return func(e *Executor) {
		e.clock = c
	}
}

// WithSettleDelay overrides DefaultSettleDelay. Zero or negative clicks immediately.
func WithSettleDelay(d time.Duration) Option {
	return func(e *Executor) {
		e.settle = d
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithStallPolicy sets the policy for input-less Continue screens with no steps left.
func WithStallPolicy(p StallPolicy) Option {
	return func(e *Executor) {
		e.stall = p
	}
}

// WithLabels sets where dismiss and continue labels come from.
// Defaults to the built-in classification profile.
func WithLabels(l Labels) Option {
	return func(e *Executor) {
		e.labels = l
	}
}
