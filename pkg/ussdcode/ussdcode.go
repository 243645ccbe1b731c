// Package ussdcode builds dial strings from operator templates such as
// "*185*9*{phone}*{amount}*{pin}#".
package ussdcode

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// DefaultTemplate is the Airtel Uganda send-money path.
const DefaultTemplate = "*185*9*{phone}*{amount}*{pin}#"

var (
	// ErrMissingVar is returned when a placeholder has no value.
	ErrMissingVar = errors.New("missing template variable")
	// ErrInvalidValue is returned when a value would alter the menu path.
	ErrInvalidValue = errors.New("invalid template value")
	// ErrInvalidCode is returned for strings that are not dialable USSD codes.
	ErrInvalidCode = errors.New("invalid USSD code")
)

var (
	placeholder = regexp.MustCompile(`\{([a-z_]+)\}`)
	dialable    = regexp.MustCompile(`^[*#][0-9*#+]*#$`)
)

// Template is a parsed dial-string template.
type Template struct {
	raw    string
	names  []string
	secret map[string]bool
}

// Parse checks that every brace belongs to a {name} placeholder.
// {pin} is secret by default.
func Parse(raw string) (*Template, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty template", ErrInvalidCode)
	}
	if stray := placeholder.ReplaceAllString(raw, ""); strings.ContainsAny(stray, "{}") {
		return nil, fmt.Errorf("%w: malformed placeholder in %q", ErrInvalidCode, raw)
	}

	seen := map[string]bool{}
	var names []string
	for _, m := range placeholder.FindAllStringSubmatch(raw, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return &Template{raw: raw, names: names, secret: map[string]bool{"pin": true}}, nil
}

// MustParse is Parse for package-level templates.
func MustParse(raw string) *Template {
	t, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return t
}

// String returns the template source.
func (t *Template) String() string { return t.raw }

// Placeholders returns the placeholder names in order of first appearance.
func (t *Template) Placeholders() []string {
	return append([]string(nil), t.names...)
}

// MarkSecret flags extra placeholders to mask in Redact.
func (t *Template) MarkSecret(names ...string) *Template {
	for _, n := range names {
		t.secret[n] = true
	}
	return t
}

// Render substitutes vars and validates the result as a dial string.
// Values may not contain '*' or '#', which would change the menu path.
func (t *Template) Render(vars map[string]string) (string, error) {
	var missing []string
	for _, n := range t.names {
		v, ok := vars[n]
		if !ok || strings.TrimSpace(v) == "" {
			missing = append(missing, n)
			continue
		}
		if strings.ContainsAny(v, "*#") {
			return "", fmt.Errorf("%w: {%s} contains a menu separator", ErrInvalidValue, n)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", fmt.Errorf("%w: %s", ErrMissingVar, strings.Join(missing, ", "))
	}

	code := t.expand(func(name string) string { return strings.TrimSpace(vars[name]) })
	if err := Validate(code); err != nil {
		return "", err
	}
	return code, nil
}

// redacted replaces secret values. Stars would read as menu separators.
const redacted = "xxxx"

// Redact renders the template with secret values masked, for logs.
// Missing values are left as placeholders.
func (t *Template) Redact(vars map[string]string) string {
	return t.expand(func(name string) string {
		v, ok := vars[name]
		switch {
		case !ok || v == "":
			return "{" + name + "}"
		case t.secret[name]:
			return redacted
		}
		return strings.TrimSpace(v)
	})
}

func (t *Template) expand(value func(string) string) string {
	return placeholder.ReplaceAllStringFunc(t.raw, func(m string) string {
		return value(m[1 : len(m)-1])
	})
}

// Render parses raw and renders it in one call.
func Render(raw string, vars map[string]string) (string, error) {
	t, err := Parse(raw)
	if err != nil {
		return "", err
	}
	return t.Render(vars)
}

// Validate reports whether code is dialable: it starts with '*' or '#', ends
// with '#', and holds only digits, '*', '#' and '+'.
func Validate(code string) error {
	if !dialable.MatchString(code) {
		return fmt.Errorf("%w: %q", ErrInvalidCode, code)
	}
	return nil
}

// TelURI returns the tel: URI that starts code through the dialer. '#' must be
// percent-encoded or the dialer truncates the code.
func TelURI(code string) string {
	return "tel:" + strings.ReplaceAll(code, "#", "%23")
}
