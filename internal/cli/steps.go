package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ngabopay/ussdpilot/pkg/domain"
	"golang.org/x/term"
)

// ParseSteps builds the step list for a dial. secret holds the indexes of
// steps to mask.
func ParseSteps(values []string, secret []int) ([]domain.Step, error) {
	steps := domain.Steps(values...)
	for _, i := range secret {
		if i < 0 || i >= len(steps) {
			return nil, fmt.Errorf("secret step %d out of range (have %d steps)", i, len(steps))
		}
		steps[i].Secret = true
	}
	return steps, nil
}

// PromptSecret reads a value from the terminal with echo disabled.
func PromptSecret(in *os.File, out io.Writer, label string) (string, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("no terminal available for interactive prompt")
	}
	fmt.Fprintf(out, "%s: ", label)
	value, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(string(value)), nil
}
