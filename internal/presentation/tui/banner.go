package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the ussdpilot banner, colored for the terminal profile.
func PrintBanner(w io.Writer) {
	out := termenv.NewOutput(w)
	lines := []struct {
		text  string
		color string
	}{
		{`  _   _ ___ ___ ___  ___ _ _     _   `, "#34d399"},
		{` | | | / __/ __|   \| _ (_) |___| |_ `, "#10b981"},
		{` | |_| \__ \__ \ |) |  _/ | / _ \  _|`, "#059669"},
		{`  \___/|___/___/___/|_| |_|_\___/\__|`, "#047857"},
	}
	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w)
}
