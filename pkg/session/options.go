package session

import (
	"log/slog"
	"time"

	"github.com/ngabopay/ussdpilot/internal/clock"
	"github.com/ngabopay/ussdpilot/pkg/classify"
	"github.com/ngabopay/ussdpilot/pkg/domain"
	"github.com/ngabopay/ussdpilot/pkg/executor"
	"github.com/ngabopay/ussdpilot/pkg/ports"
)

// Default session windows.
const (
	DefaultSingleShotTimeout = 60 * time.Second
	DefaultStepsTimeout      = 90 * time.Second
	DefaultPersistTimeout    = 5 * time.Second
)

// Option configures the Controller.
type Option func(*Controller)

// WithClock sets the clock used for timeouts and timestamps.
func WithClock(c clock.Clock) Option {
	return func(ctl *Controller) {
		ctl.clock = c
	}
}

// WithLogger configures a logger for the Controller.
func WithLogger(logger *slog.Logger) Option {
	return func(ctl *Controller) {
		ctl.logger = logger
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(ctl *Controller) {
		ctl.hooks = ctl.hooks.Merge(hooks)
	}
}

// WithClassifier sets the screen classifier. Defaults to the built-in profile.
func WithClassifier(c *classify.Classifier) Option {
	return func(ctl *Controller) {
		ctl.classifier = c
	}
}

// WithExecutor sets the action executor. When unset, one is built with the
// controller's clock, logger and classifier labels.
func WithExecutor(e *executor.Executor) Option {
	return func(ctl *Controller) {
		ctl.exec = e
	}
}

// WithResultStore persists every resolved session result.
func WithResultStore(store ports.ResultStore) Option {
	return func(ctl *Controller) {
		ctl.store = store
	}
}

// WithTimeouts overrides the session windows for single-shot codes and for
// codes with steps. Non-positive values keep the defaults.
func WithTimeouts(singleShot, withSteps time.Duration) Option {
	return func(ctl *Controller) {
		if singleShot > 0 {
			ctl.singleShotTimeout = singleShot
		}
		if withSteps > 0 {
			ctl.stepsTimeout = withSteps
		}
	}
}

// WithIDGenerator replaces the UUID session ID generator.
func WithIDGenerator(gen func() string) Option {
	return func(ctl *Controller) {
		ctl.newID = gen
	}
}
