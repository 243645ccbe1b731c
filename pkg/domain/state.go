package domain

// SessionState is the state of the engine's single session slot.
type SessionState string

const (
	StateIdle   SessionState = "idle"
	StateActive SessionState = "active"
)
