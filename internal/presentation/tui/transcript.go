// Package tui renders session results for people: markdown transcripts
// (styled with glamour on terminals) and colored outcome labels.
package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/muesli/termenv"
	"github.com/ngabopay/ussdpilot/pkg/domain"
)

// Transcript renders a result as markdown.
func Transcript(res domain.Result) string {
	var b strings.Builder

	title := res.Code
	if title == "" {
		title = "USSD session"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "**Outcome:** `%s`  \n", res.Outcome)
	fmt.Fprintf(&b, "**Message:** %s  \n", escape(res.Message))
	if res.HasTransactionID() {
		fmt.Fprintf(&b, "**Transaction:** `%s`  \n", res.TransactionID)
	}
	if res.SessionID != "" {
		fmt.Fprintf(&b, "**Session:** `%s`  \n", res.SessionID)
	}
	if d := res.Duration(); d > 0 {
		fmt.Fprintf(&b, "**Duration:** %s  \n", d.Round(time.Millisecond))
	}

	if len(res.ScreenLog) > 0 {
		b.WriteString("\n## Screens\n\n")
		for i, screen := range res.ScreenLog {
			fmt.Fprintf(&b, "%d. %s\n", i+1, escape(screen))
		}
	}
	return b.String()
}

// escape keeps carrier text from being read as markdown.
func escape(s string) string {
	r := strings.NewReplacer("*", `\*`, "_", `\_`, "#", `\#`, "`", "\\`", "\n", " ")
	return r.Replace(s)
}

// PrintResult writes the transcript, styled when w is a terminal.
func PrintResult(w io.Writer, res domain.Result) error {
	md := Transcript(res)
	if IsTerminal(w) {
		out, err := NewRenderer()(md)
		if err == nil {
			md = out
		}
	}
	_, err := io.WriteString(w, md)
	return err
}

// OutcomeLabel returns the outcome colored for w's terminal profile.
func OutcomeLabel(w io.Writer, o domain.Outcome) string {
	out := termenv.NewOutput(w)
	color := "#f59e0b"
	switch o {
	case domain.OutcomeSuccess:
		color = "#10b981"
	case domain.OutcomeClassifiedFailure, domain.OutcomeDialFailure, domain.OutcomeProcessingError:
		color = "#ef4444"
	}
	return out.String(string(o)).Foreground(out.Color(color)).Bold().String()
}
