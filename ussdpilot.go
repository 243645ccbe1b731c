package ussdpilot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ngabopay/ussdpilot/internal/clock"
	"github.com/ngabopay/ussdpilot/internal/logging"
	"github.com/ngabopay/ussdpilot/pkg/classify"
	"github.com/ngabopay/ussdpilot/pkg/domain"
	"github.com/ngabopay/ussdpilot/pkg/executor"
	"github.com/ngabopay/ussdpilot/pkg/ports"
	"github.com/ngabopay/ussdpilot/pkg/session"
)

// Engine is the high-level entry point of the library: one USSD automation
// engine bound to one device's dialer.
type Engine struct {
	ctl    *session.Controller
	logger *slog.Logger
	Device string

	clock       clock.Clock
	hooks       domain.LifecycleHooks
	profile     *classify.Profile
	store       ports.ResultStore
	singleShot  time.Duration
	withSteps   time.Duration
	settle      *time.Duration
	stallPolicy executor.StallPolicy
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks. Repeated calls add hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithClock replaces the wall clock, for deterministic tests.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithProfile sets the keyword profile used to classify screens.
func WithProfile(p classify.Profile) Option {
	return func(e *Engine) {
		e.profile = &p
	}
}

// WithResultStore persists every resolved result.
func WithResultStore(store ports.ResultStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithTimeouts overrides the 60s single-shot and 90s multi-step windows.
func WithTimeouts(singleShot, withSteps time.Duration) Option {
	return func(e *Engine) {
		e.singleShot, e.withSteps = singleShot, withSteps
	}
}

// WithSettleDelay sets the pause between typing a step and clicking Send.
func WithSettleDelay(d time.Duration) Option {
	return func(e *Engine) {
		e.settle = &d
	}
}

// WithStallPolicy sets what happens on Continue screens with nothing to type.
func WithStallPolicy(p executor.StallPolicy) Option {
	return func(e *Engine) {
		e.stallPolicy = p
	}
}

// WithDevice names the device the engine drives (logs, registry key).
func WithDevice(device string) Option {
	return func(e *Engine) {
		e.Device = device
	}
}

// New builds an Idle engine that starts sessions through dialer.
func New(dialer ports.Dialer, opts ...Option) (*Engine, error) {
	if dialer == nil {
		return nil, errors.New("dialer is required")
	}
	eng := &Engine{
		clock:       clock.Real(),
		stallPolicy: executor.StallConfirm,
	}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.Device != "" {
		eng.logger = eng.logger.With("device", eng.Device)
	}

	profile := classify.DefaultProfile()
	if eng.profile != nil {
		profile = *eng.profile
	}
	classifier, err := classify.New(profile)
	if err != nil {
		return nil, fmt.Errorf("failed to load keyword profile: %w", err)
	}

	switch eng.stallPolicy {
	case executor.StallConfirm, executor.StallWait:
	default:
		return nil, fmt.Errorf("unknown stall policy %q", eng.stallPolicy)
	}
	execOpts := []executor.Option{
		executor.WithClock(eng.clock),
		executor.WithLogger(eng.logger),
		executor.WithLabels(classifier),
		executor.WithStallPolicy(eng.stallPolicy),
	}
	if eng.settle != nil {
		execOpts = append(execOpts, executor.WithSettleDelay(*eng.settle))
	}

	eng.ctl = session.NewController(dialer,
		session.WithClock(eng.clock),
		session.WithLogger(eng.logger),
		session.WithLifecycleHooks(eng.hooks),
		session.WithClassifier(classifier),
		session.WithExecutor(executor.New(execOpts...)),
		session.WithResultStore(eng.store),
		session.WithTimeouts(eng.singleShot, eng.withSteps),
	)
	eng.logger.Debug("engine ready", "profile", profile.ID())
	return eng, nil
}

// Dial starts a session for code and returns its pending result. It never
// blocks on the device.
func (e *Engine) Dial(ctx context.Context, code string, steps ...domain.Step) *session.Pending {
	return e.ctl.Dial(ctx, code, steps)
}

// DialFunc starts a session and calls callback exactly once with its result.
func (e *Engine) DialFunc(ctx context.Context, code string, steps []domain.Step, callback func(domain.Result)) {
	e.ctl.DialFunc(ctx, code, steps, callback)
}

// Run dials and waits for the result.
func (e *Engine) Run(ctx context.Context, code string, steps ...domain.Step) (domain.Result, error) {
	return e.Dial(ctx, code, steps...).Wait(ctx)
}

// Available reports whether the engine can start a session right now.
func (e *Engine) Available() bool { return e.ctl.Available() }

// State returns the session slot state.
func (e *Engine) State() domain.SessionState { return e.ctl.State() }

// Status returns a view of the session slot for operators.
func (e *Engine) Status() session.Status { return e.ctl.Status() }

// HandleSnapshot processes one dialer snapshot and releases it.
func (e *Engine) HandleSnapshot(ctx context.Context, snap domain.Snapshot) {
	e.ctl.HandleSnapshot(ctx, snap)
}

// Classifier exposes the engine's classifier, e.g. to swap keyword profiles at runtime.
func (e *Engine) Classifier() *classify.Classifier { return e.ctl.Classifier() }

// Close stops the engine. An active session resolves as stopped.
func (e *Engine) Close(ctx context.Context) error {
	e.logger.Info("engine stopping")
	return e.ctl.Close(ctx)
}
