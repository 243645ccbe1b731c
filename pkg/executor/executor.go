// Package executor performs the UI actions that move a USSD dialog forward:
// dismissing terminal dialogs, injecting queued steps into input fields and
// clicking the continue control.
//
// Action failures never fail a session. They are logged, reported on the
// returned domain.Action and the session waits for the next screen.
package executor

import (
	"context"
	"log/slog"
	"time"

	"github.com/ngabopay/ussdpilot/internal/clock"
	"github.com/ngabopay/ussdpilot/internal/logging"
	"github.com/ngabopay/ussdpilot/pkg/classify"
	"github.com/ngabopay/ussdpilot/pkg/domain"
	"github.com/ngabopay/ussdpilot/pkg/flatten"
)

// Labels supplies the control labels to look for, in priority order.
// *classify.Classifier implements it.
type Labels interface {
	DismissLabels() []string
	ContinueLabels() []string
}

// Queue supplies the session's remaining steps.
type Queue interface {
	Next() (domain.Step, bool)
}

// Executor acts on flattened screens. Safe for concurrent use.
type Executor struct {
	clock  clock.Clock
	settle time.Duration
	logger *slog.Logger
	stall  StallPolicy
	labels Labels
}

// New creates an Executor.
func New(opts ...Option) *Executor {
	e := &Executor{
		clock:  clock.Real(),
		settle: DefaultSettleDelay,
		logger: logging.NewNop(),
		stall:  StallConfirm,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.labels == nil {
		e.labels = classify.MustDefault()
	}
	return e
}

// Act dispatches on the classification: terminal screens are dismissed,
// Continue screens advance with q.
func (e *Executor) Act(ctx context.Context, class domain.Classification, s *flatten.Screen, q Queue) domain.Action {
	if class.Terminal() {
		return e.Dismiss(ctx, s)
	}
	return e.Continue(ctx, s, q)
}

// Dismiss clicks the first dismiss control. A dialog without one is not an
// error; some carriers close it themselves.
func (e *Executor) Dismiss(ctx context.Context, s *flatten.Screen) domain.Action {
	return e.click(ctx, domain.ActionDismiss, s, e.labels.DismissLabels())
}

// Continue injects the next step when the screen has an input field, then
// clicks the continue control. Without an input field nothing is consumed.
func (e *Executor) Continue(ctx context.Context, s *flatten.Screen, q Queue) domain.Action {
	if s.HasInput() && q != nil {
		if step, ok := q.Next(); ok {
			return e.inject(ctx, s, step)
		}
	}
	if !s.HasInput() && e.stall == StallWait {
		e.logger.DebugContext(ctx, "continue screen without input, waiting")
		return domain.Action{Kind: domain.ActionNone}
	}
	return e.click(ctx, domain.ActionConfirm, s, e.labels.ContinueLabels())
}

func (e *Executor) inject(ctx context.Context, s *flatten.Screen, step domain.Step) domain.Action {
	action := domain.Action{Kind: domain.ActionInject, Value: step.Display()}

	if err := s.Input.SetText(step.Value); err != nil {
		e.logger.WarnContext(ctx, "set text failed", "value", action.Value, "error", err)
		action.Err = err
		return action
	}

	if e.settle > 0 {
		select {
		case <-ctx.Done():
			e.logger.DebugContext(ctx, "settle wait cancelled", "error", ctx.Err())
			action.Err = ctx.Err()
			return action
		case <-e.clock.After(e.settle):
		}
	}

	clicked := e.click(ctx, domain.ActionInject, s, e.labels.ContinueLabels())
	action.Label, action.Err = clicked.Label, clicked.Err
	return action
}

func (e *Executor) click(ctx context.Context, kind domain.ActionKind, s *flatten.Screen, labels []string) domain.Action {
	action := domain.Action{Kind: kind}
	if err := ctx.Err(); err != nil {
		action.Err = err
		return action
	}
	target, ok := s.FindTarget(labels...)
	if !ok {
		e.logger.DebugContext(ctx, "no matching control", "kind", kind, "labels", labels)
		return action
	}
	action.Label = target.Label
	if err := target.Node.Click(); err != nil {
		e.logger.WarnContext(ctx, "click failed", "label", target.Label, "error", err)
		action.Err = err
	}
	return action
}
