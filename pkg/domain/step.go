package domain

// Step is one caller-supplied input value, injected into the next screen that
// exposes an input field.
type Step struct {
	Value string `json:"value" yaml:"value"`

	// Secret steps (PINs) are masked in logs, events and transcripts.
	Secret bool `json:"secret,omitempty" yaml:"secret,omitempty"`
}

// Mask is the placeholder logged instead of a secret step value.
const Mask = "****"

// Display returns the value safe for logs.
func (s Step) Display() string {
	if s.Secret {
		return Mask
	}
	return s.Value
}

// Steps wraps plain values as non-secret steps.
func Steps(values ...string) []Step {
	out := make([]Step, len(values))
	for i, v := range values {
		out[i] = Step{Value: v}
	}
	return out
}
