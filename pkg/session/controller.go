package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ngabopay/ussdpilot/internal/clock"
	"github.com/ngabopay/ussdpilot/internal/logging"
	"github.com/ngabopay/ussdpilot/pkg/classify"
	"github.com/ngabopay/ussdpilot/pkg/domain"
	"github.com/ngabopay/ussdpilot/pkg/executor"
	"github.com/ngabopay/ussdpilot/pkg/flatten"
	"github.com/ngabopay/ussdpilot/pkg/ports"
)

// Controller owns one engine's session slot.
type Controller struct {
	dialer     ports.Dialer
	classifier *classify.Classifier
	exec       *executor.Executor
	store      ports.ResultStore
	clock      clock.Clock
	logger     *slog.Logger
	hooks      domain.LifecycleHooks
	newID      func() string

	singleShotTimeout time.Duration
	stepsTimeout      time.Duration

	// pass serializes snapshot processing.
	pass sync.Mutex

	// mu guards the slot. It is never held while calling the host.
	mu     sync.Mutex
	active *session
	closed bool

	dials sync.WaitGroup
}

type session struct {
	id      string
	code    string
	steps   *StepQueue
	log     domain.ScreenLog
	pending *Pending
	timer   *clock.Timer
	started time.Time

	// ctx is cancelled when the session resolves; it aborts the dialer call
	// and any settle wait still in flight.
	ctx    context.Context
	cancel context.CancelFunc
}

// Status describes the slot for operators.
type Status struct {
	State          domain.SessionState `json:"state"`
	Available      bool                `json:"available"`
	SessionID      string              `json:"session_id,omitempty"`
	Code           string              `json:"code,omitempty"`
	Screens        int                 `json:"screens"`
	StepsRemaining int                 `json:"steps_remaining"`
	StartedAt      time.Time           `json:"started_at,omitempty"`
}

// NewController creates an Idle controller that dials through dialer.
func NewController(dialer ports.Dialer, opts ...Option) *Controller {
	c := &Controller{
		dialer:            dialer,
		clock:             clock.Real(),
		logger:            logging.NewNop(),
		newID:             uuid.NewString,
		singleShotTimeout: DefaultSingleShotTimeout,
		stepsTimeout:      DefaultStepsTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.classifier == nil {
		c.classifier = classify.MustDefault()
	}
	if c.exec == nil {
		c.exec = executor.New(
			executor.WithClock(c.clock),
			executor.WithLogger(c.logger),
			executor.WithLabels(c.classifier),
		)
	}
	return c
}

// Classifier returns the classifier used for every screen.
func (c *Controller) Classifier() *classify.Classifier { return c.classifier }

// Available reports whether a Dial would start a session.
func (c *Controller) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && c.active == nil
}

// State returns Active while a session holds the slot.
func (c *Controller) State() domain.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		return domain.StateActive
	}
	return domain.StateIdle
}

// Status returns a point-in-time view of the slot.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{State: domain.StateIdle, Available: !c.closed && c.active == nil}
	if s := c.active; s != nil {
		st.State = domain.StateActive
		st.SessionID = s.id
		st.Code = s.code
		st.Screens = len(s.log)
		st.StepsRemaining = s.steps.Remaining()
		st.StartedAt = s.started
	}
	return st
}

// Dial starts a session for code. It never blocks on the host: the dialer runs
// on its own goroutine and the returned Pending completes when the session
// resolves. A dial while another session is Active resolves immediately as
// busy and leaves the active session untouched.
func (c *Controller) Dial(ctx context.Context, code string, steps []domain.Step) *Pending {
	now := c.clock.Now()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return resolved(domain.Result{
			Code: code, Message: domain.MessageStopped, Outcome: domain.OutcomeStopped,
			ScreenLog: domain.ScreenLog{}, StartedAt: now, FinishedAt: now,
		})
	}
	if c.active != nil {
		busyWith := c.active.id
		c.mu.Unlock()
		c.logger.InfoContext(ctx, "dial rejected", "code", code, "active_session", busyWith)
		return resolved(domain.Result{
			Code: code, Message: domain.MessageBusy, Outcome: domain.OutcomeBusy,
			ScreenLog: domain.ScreenLog{}, StartedAt: now, FinishedAt: now,
		})
	}

	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &session{
		id:      c.newID(),
		code:    code,
		steps:   NewStepQueue(steps),
		log:     domain.ScreenLog{},
		started: now,
		ctx:     sctx,
		cancel:  cancel,
	}
	s.pending = newPending(s.id)
	c.active = s

	timeout := c.timeoutFor(s.steps)
	s.timer = c.clock.AfterFunc(timeout, func() {
		c.resolve(s, domain.Result{
			Message: fmt.Sprintf("USSD timeout after %gs", timeout.Seconds()),
			Outcome: domain.OutcomeTimeout,
		})
	})
	c.dials.Add(1)
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "session started", "session_id", s.id, "code", code, "steps", s.steps.Len(), "timeout", timeout)
	if h := c.hooks.OnSessionStart; h != nil {
		h(sctx, &domain.SessionEvent{
			EventBase: domain.EventBase{Timestamp: now, Type: domain.EventSessionStart, SessionID: s.id},
			Code:      code,
			Steps:     s.steps.Len(),
		})
	}

	go c.dial(s)
	return s.pending
}

// DialFunc is Dial with a callback. callback runs exactly once, on its own
// goroutine.
func (c *Controller) DialFunc(ctx context.Context, code string, steps []domain.Step, callback func(domain.Result)) {
	p := c.Dial(ctx, code, steps)
	go func() {
		<-p.Done()
		r, _ := p.Result()
		if callback != nil {
			callback(r)
		}
	}()
}

func (c *Controller) dial(s *session) {
	defer c.dials.Done()
	if err := c.dialer.Dial(s.ctx, s.code); err != nil {
		c.logger.WarnContext(s.ctx, "dial failed", "session_id", s.id, "code", s.code, "error", err)
		c.resolve(s, domain.Result{
			Message: "Failed to dial: " + err.Error(),
			Outcome: domain.OutcomeDialFailure,
		})
	}
}

func (c *Controller) timeoutFor(q *StepQueue) time.Duration {
	if q.Len() == 0 {
		return c.singleShotTimeout
	}
	return c.stepsTimeout
}

// HandleSnapshot runs one classification pass. snap is released before
// HandleSnapshot returns, on every path. Snapshots arriving while Idle are
// ignored.
func (c *Controller) HandleSnapshot(ctx context.Context, snap domain.Snapshot) {
	defer snap.Release()

	c.pass.Lock()
	defer c.pass.Unlock()

	c.mu.Lock()
	s := c.active
	c.mu.Unlock()
	if s == nil {
		c.logger.DebugContext(ctx, "snapshot ignored, no active session", "package", snap.Package())
		return
	}
	c.process(s, snap)
}

func (c *Controller) process(s *session, snap domain.Snapshot) {
	ctx := s.ctx
	defer func() {
		if p := recover(); p != nil {
			c.logger.ErrorContext(ctx, "panic during snapshot pass", "session_id", s.id, "panic", p)
			c.resolve(s, domain.Result{
				Message: fmt.Sprintf("USSD processing error: %v", p),
				Outcome: domain.OutcomeProcessingError,
			})
		}
	}()

	screen, err := flatten.Flatten(snap)
	if err != nil {
		if errors.Is(err, flatten.ErrNoRoot) {
			c.logger.DebugContext(ctx, "snapshot without root", "session_id", s.id)
			return
		}
		c.resolve(s, domain.Result{
			Message: "USSD processing error: " + err.Error(),
			Outcome: domain.OutcomeProcessingError,
		})
		return
	}
	defer screen.Release()

	c.mu.Lock()
	if c.active != s {
		c.mu.Unlock()
		return
	}
	s.log = append(s.log, screen.Text)
	index := len(s.log) - 1
	c.mu.Unlock()

	verdict := c.classifier.Explain(screen.Text)
	c.logger.DebugContext(ctx, "screen classified",
		"session_id", s.id,
		"index", index,
		"classification", verdict.Classification,
		"keyword", verdict.Keyword,
	)
	if h := c.hooks.OnScreen; h != nil {
		h(ctx, &domain.ScreenEvent{
			EventBase:      c.event(domain.EventScreen, s),
			Index:          index,
			Text:           screen.Text,
			Classification: verdict.Classification,
			HasInput:       screen.HasInput(),
		})
	}

	action := c.exec.Act(ctx, verdict.Classification, screen, s.steps)
	if h := c.hooks.OnAction; h != nil {
		h(ctx, &domain.ActionEvent{EventBase: c.event(domain.EventAction, s), Action: action})
	}

	switch verdict.Classification {
	case domain.ClassTerminalSuccess:
		c.resolve(s, domain.Result{
			Success:       true,
			Message:       screen.Text,
			TransactionID: verdict.TransactionID,
			Outcome:       domain.OutcomeSuccess,
		})
	case domain.ClassTerminalError:
		c.resolve(s, domain.Result{
			Message: screen.Text,
			Outcome: domain.OutcomeClassifiedFailure,
		})
	}
}

// resolve completes s with r if s still holds the slot. Only the first call
// for a session has any effect.
func (c *Controller) resolve(s *session, r domain.Result) bool {
	c.mu.Lock()
	if c.active != s {
		c.mu.Unlock()
		return false
	}
	c.active = nil
	s.timer.Stop()
	s.cancel()
	r.SessionID = s.id
	r.Code = s.code
	r.ScreenLog = s.log.Clone()
	r.StartedAt = s.started
	r.FinishedAt = c.clock.Now()
	c.mu.Unlock()

	defer s.pending.complete(r)

	c.logger.Info("session resolved",
		"session_id", r.SessionID,
		"outcome", r.Outcome,
		"success", r.Success,
		"screens", len(r.ScreenLog),
		"duration", r.Duration(),
	)
	c.persist(r)
	if h := c.hooks.OnResolve; h != nil {
		h(context.Background(), &domain.ResolveEvent{
			EventBase: domain.EventBase{Timestamp: r.FinishedAt, Type: domain.EventResolve, SessionID: r.SessionID},
			Result:    r,
		})
	}
	return true
}

func (c *Controller) persist(r domain.Result) {
	if c.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), DefaultPersistTimeout)
	defer cancel()
	if err := c.store.Save(ctx, r); err != nil {
		c.logger.Warn("failed to persist result", "session_id", r.SessionID, "error", err)
	}
}

func (c *Controller) event(t domain.EventType, s *session) domain.EventBase {
	return domain.EventBase{Timestamp: c.clock.Now(), Type: t, SessionID: s.id}
}

// Close rejects further dials and resolves an Active session as stopped. It
// then waits, bounded by ctx, for in-flight dialer calls to return.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	s := c.active
	c.mu.Unlock()

	if s != nil {
		c.resolve(s, domain.Result{Message: domain.MessageStopped, Outcome: domain.OutcomeStopped})
	}

	done := make(chan struct{})
	go func() {
		c.dials.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for dialer: %w", ctx.Err())
	}
}
