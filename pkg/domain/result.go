package domain

import "time"

// Outcome categorizes how a session ended.
type Outcome string

const (
	OutcomeSuccess           Outcome = "success"
	OutcomeBusy              Outcome = "busy"
	OutcomeDialFailure       Outcome = "dial_failure"
	OutcomeTimeout           Outcome = "timeout"
	OutcomeClassifiedFailure Outcome = "classified_failure"
	OutcomeProcessingError   Outcome = "processing_error"
	OutcomeStopped           Outcome = "stopped"
)

// Messages reported to callers for engine-generated outcomes.
const (
	MessageBusy    = "Another USSD is in progress"
	MessageStopped = "USSD engine stopped"
)

// ScreenLog is the ordered list of flattened screen texts seen during one session.
type ScreenLog []string

// Clone returns an independent copy, so a resolved log can never be mutated.
func (l ScreenLog) Clone() ScreenLog {
	if l == nil {
		return ScreenLog{}
	}
	out := make(ScreenLog, len(l))
	copy(out, l)
	return out
}

// Result is the single outcome of a USSD session.
type Result struct {
	SessionID string `json:"session_id,omitempty"`
	Code      string `json:"code,omitempty"`

	Success bool   `json:"success"`
	Message string `json:"message"`

	// TransactionID is the carrier reference parsed from the success screen.
	// Empty means none was found.
	TransactionID string `json:"transaction_id,omitempty"`

	ScreenLog ScreenLog `json:"screen_log"`
	Outcome   Outcome   `json:"outcome"`

	StartedAt  time.Time `json:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// HasTransactionID reports whether a transaction reference was extracted.
func (r Result) HasTransactionID() bool {
	return r.TransactionID != ""
}

// Duration is the wall time between session start and resolution.
func (r Result) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Err maps the outcome onto the package sentinel errors. It returns nil for success.
func (r Result) Err() error {
	switch r.Outcome {
	case OutcomeSuccess:
		return nil
	case OutcomeBusy:
		return ErrBusy
	case OutcomeDialFailure:
		return ErrDialFailure
	case OutcomeTimeout:
		return ErrTimeout
	case OutcomeClassifiedFailure:
		return ErrClassifiedFailure
	case OutcomeProcessingError:
		return ErrProcessing
	case OutcomeStopped:
		return ErrStopped
	}
	if r.Success {
		return nil
	}
	return ErrClassifiedFailure
}
