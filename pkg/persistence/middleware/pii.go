package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/ngabopay/ussdpilot/pkg/domain"
	"github.com/ngabopay/ussdpilot/pkg/ports"
)

// DefaultPIIPatterns matches phone and account numbers: runs of nine or more
// digits, optionally with a leading '+'.
var DefaultPIIPatterns = []string{`\+?\d{9,}`}

type piiMiddleware struct {
	next     ports.ResultStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks every match of patterns in
// the stored code, message and screen log. The transaction ID is kept.
func NewPIIMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid pii pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.ResultStore) ports.ResultStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *piiMiddleware) Save(ctx context.Context, r domain.Result) error {
	// Clone the log so the caller's result is left untouched.
	r.ScreenLog = r.ScreenLog.Clone()
	for i, text := range r.ScreenLog {
		r.ScreenLog[i] = m.mask(text)
	}
	r.Code = m.mask(r.Code)
	r.Message = m.mask(r.Message)
	return m.next.Save(ctx, r)
}

func (m *piiMiddleware) Load(ctx context.Context, sessionID string) (domain.Result, error) {
	return m.next.Load(ctx, sessionID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func (m *piiMiddleware) mask(s string) string {
	for _, p := range m.patterns {
		s = p.ReplaceAllString(s, domain.Mask)
	}
	return s
}
