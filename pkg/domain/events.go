package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventSessionStart EventType = "session_start"
	EventScreen       EventType = "screen"
	EventAction       EventType = "action"
	EventResolve      EventType = "resolve"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
}

// SessionEvent is emitted when a session starts.
type SessionEvent struct {
	EventBase
	Code  string `json:"code"`
	Steps int    `json:"steps"`
}

// ScreenEvent is emitted once per processed snapshot.
type ScreenEvent struct {
	EventBase
	Index          int            `json:"index"`
	Text           string         `json:"text"`
	Classification Classification `json:"classification"`
	HasInput       bool           `json:"has_input"`
}

// ActionKind names what the executor did with a screen.
type ActionKind string

const (
	ActionNone    ActionKind = "none"
	ActionDismiss ActionKind = "dismiss"
	ActionInject  ActionKind = "inject"
	ActionConfirm ActionKind = "confirm"
)

// Action records one executor decision. Value is the injected step, masked for secrets.
type Action struct {
	Kind  ActionKind `json:"kind"`
	Label string     `json:"label,omitempty"`
	Value string     `json:"value,omitempty"`
	Err   error      `json:"-"`
}

// ActionEvent is emitted after the executor acted on a screen.
type ActionEvent struct {
	EventBase
	Action
}

// ResolveEvent is emitted exactly once per session, after the result is fixed.
type ResolveEvent struct {
	EventBase
	Result Result `json:"result"`
}

// LifecycleHooks defines callbacks for engine observability.
// Any nil hook is skipped. Hooks run synchronously and must not block.
type LifecycleHooks struct {
	OnSessionStart func(context.Context, *SessionEvent)
	OnScreen       func(context.Context, *ScreenEvent)
	OnAction       func(context.Context, *ActionEvent)
	OnResolve      func(context.Context, *ResolveEvent)
}

// Merge returns hooks that call h first and then other, for every event.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnSessionStart: chain(h.OnSessionStart, other.OnSessionStart),
		OnScreen:       chain(h.OnScreen, other.OnScreen),
		OnAction:       chain(h.OnAction, other.OnAction),
		OnResolve:      chain(h.OnResolve, other.OnResolve),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
