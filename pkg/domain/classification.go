package domain

// Classification labels a flattened screen.
type Classification string

const (
	ClassTerminalSuccess Classification = "terminal_success"
	ClassTerminalError   Classification = "terminal_error"
	ClassContinue        Classification = "continue"
)

// Terminal reports whether the classification ends the session.
func (c Classification) Terminal() bool {
	return c == ClassTerminalSuccess || c == ClassTerminalError
}
