package classify

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// DefaultTransactionPattern captures a reference following a txn/ref keyword.
// Longer alternatives come first so "reference" is not read as "ref" + "erence".
const DefaultTransactionPattern = `\b(txn|transaction|reference|ref|receipt)\b[\s.]*(number|no|id)?\b[.:\s#]*([A-Z0-9]+)`

// Profile is a versioned set of classification keywords and control labels.
type Profile struct {
	Name    string `yaml:"name" json:"name" mapstructure:"name"`
	Version string `yaml:"version" json:"version" mapstructure:"version"`

	// Success and Error are matched as case-insensitive substrings.
	Success []string `yaml:"success" json:"success" mapstructure:"success"`
	Error   []string `yaml:"error" json:"error" mapstructure:"error"`

	// DismissLabels close a terminal dialog, in priority order.
	DismissLabels []string `yaml:"dismiss_labels" json:"dismiss_labels" mapstructure:"dismiss_labels"`

	// ContinueLabels advance a dialog, in priority order.
	ContinueLabels []string `yaml:"continue_labels" json:"continue_labels" mapstructure:"continue_labels"`

	// TransactionPattern is matched case-insensitively; its last capture group
	// is the reference.
	TransactionPattern string `yaml:"transaction_pattern" json:"transaction_pattern" mapstructure:"transaction_pattern"`
}

// DefaultProfile returns the built-in keyword lists.
func DefaultProfile() Profile {
	return Profile{
		Name:    "default",
		Version: "2",
		Success: []string{
			"successful",
			"completed",
			"confirmed",
			"sent to",
			"transferred",
			"transaction id",
			"txn id",
			"reference",
			"receipt",
		},
		Error: []string{
			"failed",
			"error",
			"insufficient",
			"invalid",
			"declined",
			"rejected",
			"not allowed",
			"limit exceeded",
			"wrong pin",
			"incorrect pin",
			"blocked",
			"service unavailable",
		},
		DismissLabels:      []string{"OK", "Cancel", "Done"},
		ContinueLabels:     []string{"Send", "OK", "Continue"},
		TransactionPattern: DefaultTransactionPattern,
	}
}

// WithDefaults fills empty fields from DefaultProfile.
func (p Profile) WithDefaults() Profile {
	d := DefaultProfile()
	if p.Name == "" {
		p.Name = d.Name
	}
	if p.Version == "" && p.Name == d.Name {
		p.Version = d.Version
	}
	if len(p.Success) == 0 {
		p.Success = d.Success
	}
	if len(p.Error) == 0 {
		p.Error = d.Error
	}
	if len(p.DismissLabels) == 0 {
		p.DismissLabels = d.DismissLabels
	}
	if len(p.ContinueLabels) == 0 {
		p.ContinueLabels = d.ContinueLabels
	}
	if p.TransactionPattern == "" {
		p.TransactionPattern = d.TransactionPattern
	}
	return p
}

// ID is the "name@version" label used in logs and metrics.
func (p Profile) ID() string {
	if p.Version == "" {
		return p.Name
	}
	return p.Name + "@" + p.Version
}

// Validate checks the profile can be compiled.
func (p Profile) Validate() error {
	_, err := compile(p)
	return err
}

type compiled struct {
	profile Profile
	success []string
	errs    []string
	txn     *regexp.Regexp
}

func compile(p Profile) (*compiled, error) {
	var errs []error
	success := normalize(p.Success)
	if len(success) == 0 {
		errs = append(errs, errors.New("success keywords are empty"))
	}
	failure := normalize(p.Error)
	if len(failure) == 0 {
		errs = append(errs, errors.New("error keywords are empty"))
	}

	pattern := p.TransactionPattern
	if pattern == "" {
		pattern = DefaultTransactionPattern
	}
	re, err := regexp.Compile("(?i)" + pattern)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("transaction pattern: %w", err))
	case re.NumSubexp() == 0:
		errs = append(errs, errors.New("transaction pattern needs a capture group"))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid profile %s: %w", p.ID(), errors.Join(errs...))
	}
	return &compiled{profile: p, success: success, errs: failure, txn: re}, nil
}

func normalize(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}
