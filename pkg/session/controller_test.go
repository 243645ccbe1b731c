package session_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ngabopay/ussdpilot/internal/clock"
	"github.com/ngabopay/ussdpilot/pkg/adapters/memory"
	"github.com/ngabopay/ussdpilot/pkg/adapters/replay"
	"github.com/ngabopay/ussdpilot/pkg/domain"
	"github.com/ngabopay/ussdpilot/pkg/executor"
	"github.com/ngabopay/ussdpilot/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

const successText = "Payment of 50000 UGX sent to 0772123456. Transaction ID: ABC123"

type harness struct {
	t     *testing.T
	ctl   *session.Controller
	host  *replay.Host
	clock *clock.FakeClock
	feed  <-chan domain.Snapshot
	store *memory.Store

	mu     sync.Mutex
	events []domain.EventType
	masked []string
}

func newHarness(t *testing.T, sc *replay.Scenario, opts ...session.Option) *harness {
	t.Helper()
	h := &harness{
		t:     t,
		host:  replay.NewHost(sc),
		clock: clock.Fake(epoch),
		store: memory.NewStore(),
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	feed, err := h.host.Snapshots(ctx)
	require.NoError(t, err)
	h.feed = feed

	record := func(et domain.EventType) {
		h.mu.Lock()
		h.events = append(h.events, et)
		h.mu.Unlock()
	}
	hooks := domain.LifecycleHooks{
		OnSessionStart: func(_ context.Context, e *domain.SessionEvent) { record(e.Type) },
		OnScreen:       func(_ context.Context, e *domain.ScreenEvent) { record(e.Type) },
		OnAction: func(_ context.Context, e *domain.ActionEvent) {
			record(e.Type)
			if e.Kind == domain.ActionInject {
				h.mu.Lock()
				h.masked = append(h.masked, e.Value)
				h.mu.Unlock()
			}
		},
		OnResolve: func(_ context.Context, e *domain.ResolveEvent) { record(e.Type) },
	}

	base := []session.Option{
		session.WithClock(h.clock),
		session.WithExecutor(executor.New(executor.WithSettleDelay(0))),
		session.WithResultStore(h.store),
		session.WithLifecycleHooks(hooks),
	}
	h.ctl = session.NewController(h.host, append(base, opts...)...)
	t.Cleanup(func() { _ = h.ctl.Close(context.Background()) })
	return h
}

// pump delivers the next n snapshots from the host feed.
func (h *harness) pump(n int) {
	h.t.Helper()
	for i := 0; i < n; i++ {
		select {
		case snap := <-h.feed:
			h.ctl.HandleSnapshot(context.Background(), snap)
		case <-time.After(2 * time.Second):
			h.t.Fatalf("snapshot %d never arrived", i+1)
		}
	}
}

func (h *harness) eventTypes() []domain.EventType {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.EventType(nil), h.events...)
}

func wait(t *testing.T, p *session.Pending) domain.Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	r, err := p.Wait(ctx)
	require.NoError(t, err)
	return r
}

func scenario(screens ...replay.Element) *replay.Scenario {
	sc := &replay.Scenario{Name: "test", Code: "*185#"}
	for _, root := range screens {
		sc.Screens = append(sc.Screens, replay.Screen{Root: root})
	}
	return sc
}

func TestController_EndToEndSingleShot(t *testing.T) {
	h := newHarness(t, scenario(
		replay.Dialog("Enter PIN", true, "Cancel", "Send"),
		replay.Dialog(successText, false, "OK"),
	))

	p := h.ctl.Dial(context.Background(), "*185#", nil)
	assert.Equal(t, domain.StateActive, h.ctl.State())
	assert.False(t, h.ctl.Available())
	h.pump(2)

	r := wait(t, p)
	assert.True(t, r.Success)
	assert.Equal(t, domain.OutcomeSuccess, r.Outcome)
	assert.Equal(t, "ABC123", r.TransactionID)
	assert.Equal(t, successText+"\nOK", r.Message)
	assert.Equal(t, domain.ScreenLog{"Enter PIN\nCancel\nSend", successText + "\nOK"}, r.ScreenLog)
	assert.Equal(t, p.ID(), r.SessionID)
	assert.Equal(t, "*185#", r.Code)

	ledger := h.host.Ledger()
	assert.Empty(t, ledger.Inputs(), "single-shot codes never type")
	assert.Equal(t, []string{"Send", "OK"}, ledger.Clicks())
	assert.Equal(t, 0, ledger.Outstanding())
	assert.Equal(t, 0, ledger.OpenSnapshots())
	assert.Equal(t, 0, ledger.DoubleReleases())

	assert.True(t, h.ctl.Available())
	assert.Equal(t, []domain.EventType{
		domain.EventSessionStart,
		domain.EventScreen, domain.EventAction,
		domain.EventScreen, domain.EventAction,
		domain.EventResolve,
	}, h.eventTypes())

	stored, err := h.store.Load(context.Background(), r.SessionID)
	require.NoError(t, err)
	assert.Equal(t, r.TransactionID, stored.TransactionID)
	assert.Equal(t, r.ScreenLog, stored.ScreenLog)
}

func TestController_StepConsumption(t *testing.T) {
	sc := scenario(
		replay.Dialog("Select service", true, "Send"),
		replay.Dialog("Enter phone number", true, "Send"),
		replay.Dialog("Enter amount", true, "Send"),
		replay.Dialog("Enter PIN", true, "Send"),
		replay.Dialog("You have sent 50000 UGX to 0781234567. Txn ID: 8812AB", false, "OK"),
	)
	sc.Steps = []string{"9", "0781234567", "50000", "1234"}
	sc.SecretSteps = []int{3}
	h := newHarness(t, sc)

	p := h.ctl.Dial(context.Background(), sc.Code, sc.DialSteps())
	for i := 0; i < 4; i++ {
		h.pump(1)
		assert.Equal(t, 3-i, h.ctl.Status().StepsRemaining)
	}
	h.pump(1)

	r := wait(t, p)
	assert.True(t, r.Success)
	assert.Equal(t, "8812AB", r.TransactionID)
	assert.Len(t, r.ScreenLog, 5)
	assert.Equal(t, sc.Steps, h.host.Ledger().Inputs())
	assert.Equal(t, []string{"9", "0781234567", "50000", domain.Mask}, h.masked)
}

func TestController_Exclusivity(t *testing.T) {
	h := newHarness(t, scenario(
		replay.Dialog("Enter PIN", true, "Send"),
		replay.Dialog(successText, false, "OK"),
	))

	first := h.ctl.Dial(context.Background(), "*185#", nil)
	h.pump(1)

	second := h.ctl.Dial(context.Background(), "*150#", nil)
	select {
	case <-second.Done():
	default:
		t.Fatal("busy dial must resolve immediately")
	}
	busy, _ := second.Result()
	assert.False(t, busy.Success)
	assert.Equal(t, domain.MessageBusy, busy.Message)
	assert.Equal(t, domain.OutcomeBusy, busy.Outcome)
	assert.ErrorIs(t, busy.Err(), domain.ErrBusy)
	assert.Equal(t, []string{"*185#"}, h.host.Dialed(), "busy dial has no side effects")

	h.pump(1)
	r := wait(t, first)
	assert.True(t, r.Success)
	assert.Len(t, r.ScreenLog, 2)
}

func TestController_ExactlyOnceResolution(t *testing.T) {
	h := newHarness(t, scenario(replay.Dialog(successText, false, "OK")))
	var calls atomic.Int32

	h.ctl.DialFunc(context.Background(), "*185#", nil, func(domain.Result) { calls.Add(1) })
	h.pump(1)
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	ids, err := h.store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, ids, 1)
	before, err := h.store.Load(context.Background(), ids[0])
	require.NoError(t, err)

	// Late events: another terminal screen, a failure screen and the timer.
	h.host.Push(replay.Screen{Root: replay.Dialog("Payment successful. Ref 777AA", false, "OK")})
	h.host.Push(replay.Screen{Root: replay.Dialog("Transaction failed", false, "OK")})
	h.pump(2)
	h.clock.Advance(5 * time.Minute)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
	after, err := h.store.Load(context.Background(), ids[0])
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, domain.StateIdle, h.ctl.State())
	assert.Equal(t, 0, h.host.Ledger().OpenSnapshots())

	resolves := 0
	for _, et := range h.eventTypes() {
		if et == domain.EventResolve {
			resolves++
		}
	}
	assert.Equal(t, 1, resolves)
}

func TestController_TimeoutSingleShot(t *testing.T) {
	h := newHarness(t, scenario())

	p := h.ctl.Dial(context.Background(), "*131#", nil)
	h.clock.Advance(60*time.Second - time.Nanosecond)
	_, done := p.Result()
	assert.False(t, done, "must not resolve before 60s")

	h.clock.Advance(time.Nanosecond)
	r := wait(t, p)
	assert.False(t, r.Success)
	assert.Equal(t, "USSD timeout after 60s", r.Message)
	assert.Equal(t, domain.OutcomeTimeout, r.Outcome)
	assert.Equal(t, 60*time.Second, r.Duration())
	assert.True(t, h.ctl.Available())
}

func TestController_TimeoutWithSteps(t *testing.T) {
	h := newHarness(t, scenario())

	p := h.ctl.Dial(context.Background(), "*185#", domain.Steps("9"))
	h.clock.Advance(60 * time.Second)
	_, done := p.Result()
	assert.False(t, done)

	h.clock.Advance(30 * time.Second)
	r := wait(t, p)
	assert.Equal(t, "USSD timeout after 90s", r.Message)
	assert.ErrorIs(t, r.Err(), domain.ErrTimeout)
}

func TestController_TimeoutKeepsScreenLog(t *testing.T) {
	h := newHarness(t, scenario(replay.Dialog("Please wait", false)), session.WithTimeouts(10*time.Second, 0))

	p := h.ctl.Dial(context.Background(), "*185#", nil)
	h.pump(1)
	h.clock.Advance(10 * time.Second)

	r := wait(t, p)
	assert.Equal(t, "USSD timeout after 10s", r.Message)
	assert.Equal(t, domain.ScreenLog{"Please wait"}, r.ScreenLog)
}

func TestController_DialFailure(t *testing.T) {
	sc := scenario()
	sc.DialError = "radio off"
	h := newHarness(t, sc)

	r := wait(t, h.ctl.Dial(context.Background(), "*185#", nil))
	assert.False(t, r.Success)
	assert.Equal(t, "Failed to dial: radio off", r.Message)
	assert.Equal(t, domain.OutcomeDialFailure, r.Outcome)
	assert.Equal(t, 0, h.clock.PendingCount(), "timeout timer cancelled")
	assert.True(t, h.ctl.Available())
}

func TestController_ClassifiedFailure(t *testing.T) {
	h := newHarness(t, scenario(replay.Dialog("Wrong PIN. Transaction not completed", false, "OK")))

	p := h.ctl.Dial(context.Background(), "*185#", nil)
	h.pump(1)

	r := wait(t, p)
	// "completed" is a success keyword and wins over "wrong pin".
	assert.True(t, r.Success)

	h2 := newHarness(t, scenario(replay.Dialog("Wrong PIN. 2 attempts left", false, "Cancel")))
	p = h2.ctl.Dial(context.Background(), "*185#", nil)
	h2.pump(1)

	r = wait(t, p)
	assert.False(t, r.Success)
	assert.Equal(t, domain.OutcomeClassifiedFailure, r.Outcome)
	assert.Equal(t, "Wrong PIN. 2 attempts left\nCancel", r.Message)
	assert.Equal(t, []string{"Cancel"}, h2.host.Ledger().Clicks())
}

type explodingSnapshot struct {
	released atomic.Bool
}

func (s *explodingSnapshot) Package() string   { return replay.DefaultPackage }
func (s *explodingSnapshot) Root() domain.Node { return explodingNode{} }
func (s *explodingSnapshot) Release()          { s.released.Store(true) }

type explodingNode struct{ domain.Node }

func (explodingNode) Text() string { panic("node recycled") }

func TestController_PanicResolvesAsProcessingError(t *testing.T) {
	h := newHarness(t, scenario())
	p := h.ctl.Dial(context.Background(), "*185#", nil)

	snap := &explodingSnapshot{}
	assert.NotPanics(t, func() { h.ctl.HandleSnapshot(context.Background(), snap) })

	r := wait(t, p)
	assert.True(t, snap.released.Load())
	assert.False(t, r.Success)
	assert.Equal(t, domain.OutcomeProcessingError, r.Outcome)
	assert.Equal(t, "USSD processing error: node recycled", r.Message)
	assert.ErrorIs(t, r.Err(), domain.ErrClassifiedFailure)
	assert.True(t, h.ctl.Available())
}

func TestController_IdleSnapshotIgnored(t *testing.T) {
	h := newHarness(t, scenario())
	snap := replay.NewSnapshot("", replay.Dialog("Payment successful", false, "OK"), nil)

	h.ctl.HandleSnapshot(context.Background(), snap)

	assert.True(t, snap.Released())
	assert.Empty(t, snap.Ledger().Clicks())
	assert.Empty(t, h.eventTypes())
}

func TestController_CloseResolvesActiveSession(t *testing.T) {
	h := newHarness(t, scenario())
	p := h.ctl.Dial(context.Background(), "*185#", nil)

	require.NoError(t, h.ctl.Close(context.Background()))

	r := wait(t, p)
	assert.Equal(t, domain.MessageStopped, r.Message)
	assert.Equal(t, domain.OutcomeStopped, r.Outcome)
	assert.False(t, h.ctl.Available())
	assert.Equal(t, 0, h.clock.PendingCount())

	late := wait(t, h.ctl.Dial(context.Background(), "*185#", nil))
	assert.Equal(t, domain.OutcomeStopped, late.Outcome)
	assert.Equal(t, []string{"*185#"}, h.host.Dialed())
	assert.NoError(t, h.ctl.Close(context.Background()), "Close is idempotent")
}

func TestController_CloseCancelsSettleWait(t *testing.T) {
	fake := clock.Fake(epoch)
	sc := scenario(replay.Dialog("Enter amount", true, "Send"))
	host := replay.NewHost(sc)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	feed, err := host.Snapshots(ctx)
	require.NoError(t, err)

	ctl := session.NewController(host, session.WithClock(fake))
	p := ctl.Dial(context.Background(), sc.Code, domain.Steps("50000"))

	passDone := make(chan struct{})
	go func() {
		defer close(passDone)
		ctl.HandleSnapshot(context.Background(), <-feed)
	}()

	fake.WaitForTimers(2) // session timeout + settle delay
	require.NoError(t, ctl.Close(context.Background()))

	select {
	case <-passDone:
	case <-time.After(2 * time.Second):
		t.Fatal("settle wait was not cancelled")
	}
	r := wait(t, p)
	assert.Equal(t, domain.OutcomeStopped, r.Outcome)
	assert.Equal(t, domain.ScreenLog{"Enter amount\nSend"}, r.ScreenLog)
	assert.Equal(t, []string{"50000"}, host.Ledger().Inputs())
	assert.Empty(t, host.Ledger().Clicks())
}

func TestController_Status(t *testing.T) {
	h := newHarness(t, scenario(replay.Dialog("Select service", true, "Send")))
	assert.Equal(t, session.Status{State: domain.StateIdle, Available: true}, h.ctl.Status())

	h.ctl.Dial(context.Background(), "*185#", domain.Steps("1", "2"))
	h.pump(1)

	st := h.ctl.Status()
	assert.Equal(t, domain.StateActive, st.State)
	assert.False(t, st.Available)
	assert.Equal(t, "*185#", st.Code)
	assert.Equal(t, 1, st.Screens)
	assert.Equal(t, 1, st.StepsRemaining)
	assert.Equal(t, epoch, st.StartedAt)
}
