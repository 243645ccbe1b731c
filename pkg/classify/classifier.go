package classify

import (
	"strings"
	"sync"

	"github.com/ngabopay/ussdpilot/pkg/domain"
)

// Verdict explains a classification: which keyword decided it.
type Verdict struct {
	Classification domain.Classification `json:"classification"`
	Keyword        string                `json:"keyword,omitempty"`
	TransactionID  string                `json:"transaction_id,omitempty"`
}

// Classifier applies a Profile. The profile can be swapped at runtime.
// Safe for concurrent use.
type Classifier struct {
	mu sync.RWMutex
	c  *compiled
}

// New compiles p (after filling defaults) into a Classifier.
func New(p Profile) (*Classifier, error) {
	c, err := compile(p.WithDefaults())
	if err != nil {
		return nil, err
	}
	return &Classifier{c: c}, nil
}

// MustDefault returns a Classifier over DefaultProfile.
func MustDefault() *Classifier {
	c, err := New(DefaultProfile())
	if err != nil {
		panic(err)
	}
	return c
}

// Profile returns the active profile.
func (c *Classifier) Profile() Profile {
	return c.current().profile
}

// SetProfile swaps the active profile. The old one stays active if p is invalid.
func (c *Classifier) SetProfile(p Profile) error {
	next, err := compile(p.WithDefaults())
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.c = next
	c.mu.Unlock()
	return nil
}

// Classify labels text. Success keywords win over error keywords.
func (c *Classifier) Classify(text string) domain.Classification {
	class, _ := classify(c.current(), text)
	return class
}

// Explain classifies text and reports the deciding keyword and, for success
// screens, the extracted transaction reference.
func (c *Classifier) Explain(text string) Verdict {
	cur := c.current()
	class, kw := classify(cur, text)
	v := Verdict{Classification: class, Keyword: kw}
	if class == domain.ClassTerminalSuccess {
		v.TransactionID, _ = extract(cur.txn, text)
	}
	return v
}

// Extract returns the transaction reference in text, if any.
func (c *Classifier) Extract(text string) (string, bool) {
	return extract(c.current().txn, text)
}

// DismissLabels returns the active dismiss labels, in priority order.
func (c *Classifier) DismissLabels() []string {
	return c.current().profile.DismissLabels
}

// ContinueLabels returns the active continue labels, in priority order.
func (c *Classifier) ContinueLabels() []string {
	return c.current().profile.ContinueLabels
}

func (c *Classifier) current() *compiled {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.c
}

func classify(c *compiled, text string) (domain.Classification, string) {
	lower := strings.ToLower(text)
	if kw, ok := firstContained(lower, c.success); ok {
		return domain.ClassTerminalSuccess, kw
	}
	if kw, ok := firstContained(lower, c.errs); ok {
		return domain.ClassTerminalError, kw
	}
	return domain.ClassContinue, ""
}

func firstContained(text string, keywords []string) (string, bool) {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return kw, true
		}
	}
	return "", false
}
