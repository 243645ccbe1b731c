// Package flatten turns one borrowed dialer UI tree into the text and controls
// the classifier and executor work with.
//
// Node references obtained while walking the tree are released before Flatten
// returns, except the input field and the click targets, which stay borrowed
// until Screen.Release is called at the end of the classification pass.
package flatten

import (
	"errors"
	"strings"

	"github.com/ngabopay/ussdpilot/pkg/domain"
)

// MaxDepth bounds the traversal so a malformed (or cyclic) host tree cannot
// stall the pass.
const MaxDepth = 64

// ErrNoRoot is returned when the snapshot has no root node.
var ErrNoRoot = errors.New("snapshot has no root node")

// Target is a clickable control and its visible label.
type Target struct {
	Label string
	Node  domain.Node
}

// Screen is the flattened view of one snapshot.
type Screen struct {
	// Text is every non-empty label, in traversal order, joined by newlines.
	Text string

	// Lines holds the individual labels that make up Text.
	Lines []string

	// Input is the first editable control, or nil.
	Input domain.Node

	// Targets lists every clickable (or Button-class) control with a label,
	// in traversal order.
	Targets []Target

	owned    []domain.Node
	released bool
}

// HasInput reports whether the screen exposes an editable field.
func (s *Screen) HasInput() bool {
	return s != nil && s.Input != nil
}

// FindTarget returns the first target whose label contains one of labels,
// case-insensitively. Labels are tried in priority order: every target is checked
// against labels[0] before any is checked against labels[1].
func (s *Screen) FindTarget(labels ...string) (Target, bool) {
	if s == nil {
		return Target{}, false
	}
	for _, want := range labels {
		want = strings.ToLower(want)
		for _, t := range s.Targets {
			if strings.Contains(strings.ToLower(t.Label), want) {
				return t, true
			}
		}
	}
	return Target{}, false
}

// Release returns every node the screen still borrows. Safe to call more than once.
func (s *Screen) Release() {
	if s == nil || s.released {
		return
	}
	s.released = true
	for _, n := range s.owned {
		n.Release()
	}
	s.owned = nil
	s.Input = nil
	s.Targets = nil
}

// Flatten walks snap depth-first, front to back.
// The snapshot itself (and its root) stays owned by the caller.
// If a host node panics, every reference taken so far is released before the
// panic propagates.
func Flatten(snap domain.Snapshot) (*Screen, error) {
	root := snap.Root()
	if root == nil {
		return nil, ErrNoRoot
	}

	s := &Screen{}
	ok := false
	defer func() {
		if !ok {
			s.Release()
		}
	}()

	rootKept := false
	s.visit(root, false, &rootKept, 0)
	s.Text = strings.Join(s.Lines, "\n")
	ok = true
	return s, nil
}

// visit records n and walks its children. When n is retained as the input field
// or a click target and owned is true, it is added to s.owned and *kept is set,
// so the caller knows not to release it. The root (owned == false) belongs to the
// snapshot.
func (s *Screen) visit(n domain.Node, owned bool, kept *bool, depth int) {
	text := strings.TrimSpace(n.Text())
	if text != "" {
		s.Lines = append(s.Lines, text)
	}
	firstLine := len(s.Lines)

	keep := func() {
		if owned && !*kept {
			s.owned = append(s.owned, n)
			*kept = true
		}
	}

	if s.Input == nil && n.Editable() {
		s.Input = n
		keep()
	}

	if depth < MaxDepth {
		for i := 0; i < n.ChildCount(); i++ {
			s.walkChild(n, i, depth+1)
		}
	}

	if n.Clickable() || strings.HasSuffix(n.ClassName(), "Button") {
		label := text
		// Buttons often carry their label on a child TextView.
		if label == "" && len(s.Lines) > firstLine {
			label = s.Lines[firstLine]
		}
		if label != "" {
			s.Targets = append(s.Targets, Target{Label: label, Node: n})
			keep()
		}
	}
}

func (s *Screen) walkChild(parent domain.Node, i, depth int) {
	child := parent.Child(i)
	if child == nil {
		return
	}
	kept := false
	defer func() {
		if !kept {
			child.Release()
		}
	}()
	s.visit(child, true, &kept, depth)
}
