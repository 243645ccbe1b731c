package replay

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ngabopay/ussdpilot/pkg/domain"
)

// ErrClickFailed is returned by nodes whose element sets fail_click.
var ErrClickFailed = errors.New("replay: click rejected")

// DefaultPackage is the dialer package used when a screen does not name one.
const DefaultPackage = "com.android.phone"

// Element is the declarative form of one UI node, as written in scenario files.
type Element struct {
	Text      string    `yaml:"text,omitempty" json:"text,omitempty"`
	Class     string    `yaml:"class,omitempty" json:"class,omitempty"`
	Editable  bool      `yaml:"editable,omitempty" json:"editable,omitempty"`
	Clickable bool      `yaml:"clickable,omitempty" json:"clickable,omitempty"`
	FailClick bool      `yaml:"fail_click,omitempty" json:"fail_click,omitempty"`
	Children  []Element `yaml:"children,omitempty" json:"children,omitempty"`
}

// Dialog builds the element tree of a typical USSD dialog: a message, an
// optional input field and the given buttons.
func Dialog(message string, withInput bool, buttons ...string) Element {
	root := Element{Class: "android.widget.FrameLayout"}
	root.Children = append(root.Children, Element{Class: "android.widget.TextView", Text: message})
	if withInput {
		root.Children = append(root.Children, Element{Class: "android.widget.EditText", Editable: true})
	}
	for _, b := range buttons {
		root.Children = append(root.Children, Element{Class: "android.widget.Button", Text: b, Clickable: true})
	}
	return root
}

// Event is one side effect a node received.
type Event struct {
	Kind  string // "click" or "set_text"
	Label string
	Value string
}

// Ledger tracks node references and the actions performed on them, so tests
// and scenario runs can verify the engine's ownership discipline.
type Ledger struct {
	mu        sync.Mutex
	acquired  int
	released  int
	doubles   int
	events    []Event
	onClick   func()
	snapshots int
	freed     int
}

// Outstanding is the number of node references handed out and not yet released.
func (l *Ledger) Outstanding() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.acquired - l.released
}

// OpenSnapshots is the number of snapshots delivered and not yet released.
func (l *Ledger) OpenSnapshots() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshots - l.freed
}

// DoubleReleases counts Release calls on already released references.
func (l *Ledger) DoubleReleases() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.doubles
}

// Events returns a copy of the recorded actions.
func (l *Ledger) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

// Clicks returns the labels of clicked nodes, in order.
func (l *Ledger) Clicks() []string {
	var out []string
	for _, e := range l.Events() {
		if e.Kind == "click" {
			out = append(out, e.Label)
		}
	}
	return out
}

// Inputs returns the values typed into input fields, in order.
func (l *Ledger) Inputs() []string {
	var out []string
	for _, e := range l.Events() {
		if e.Kind == "set_text" {
			out = append(out, e.Value)
		}
	}
	return out
}

func (l *Ledger) record(e Event) {
	l.mu.Lock()
	l.events = append(l.events, e)
	hook := l.onClick
	l.mu.Unlock()
	if e.Kind == "click" && hook != nil {
		hook()
	}
}

// Snapshot is an in-memory domain.Snapshot over an Element tree.
type Snapshot struct {
	pkg      string
	root     *node
	ledger   *Ledger
	mu       sync.Mutex
	released bool
}

// NewSnapshot wraps root as a snapshot of pkg. A nil ledger gets a private one.
func NewSnapshot(pkg string, root Element, ledger *Ledger) *Snapshot {
	if pkg == "" {
		pkg = DefaultPackage
	}
	if ledger == nil {
		ledger = &Ledger{}
	}
	ledger.mu.Lock()
	ledger.snapshots++
	ledger.mu.Unlock()
	return &Snapshot{
		pkg:    pkg,
		root:   &node{el: root, ledger: ledger},
		ledger: ledger,
	}
}

// Package implements domain.Snapshot.
func (s *Snapshot) Package() string { return s.pkg }

// Root implements domain.Snapshot.
func (s *Snapshot) Root() domain.Node { return s.root }

// Ledger returns the ledger tracking this snapshot's references.
func (s *Snapshot) Ledger() *Ledger { return s.ledger }

// Released reports whether Release was called.
func (s *Snapshot) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// Release implements domain.Snapshot.
func (s *Snapshot) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger.mu.Lock()
	defer s.ledger.mu.Unlock()
	if s.released {
		s.ledger.doubles++
		return
	}
	s.released = true
	s.ledger.freed++
}

type node struct {
	el       Element
	ledger   *Ledger
	owned    bool
	released bool
}

func (n *node) Text() string      { return n.el.Text }
func (n *node) ClassName() string { return n.el.Class }
func (n *node) Editable() bool    { return n.el.Editable }
func (n *node) Clickable() bool   { return n.el.Clickable }
func (n *node) ChildCount() int   { return len(n.el.Children) }

func (n *node) Child(i int) domain.Node {
	if i < 0 || i >= len(n.el.Children) {
		return nil
	}
	n.ledger.mu.Lock()
	n.ledger.acquired++
	n.ledger.mu.Unlock()
	return &node{el: n.el.Children[i], ledger: n.ledger, owned: true}
}

func (n *node) Click() error {
	if n.el.FailClick {
		return fmt.Errorf("%w: %q", ErrClickFailed, n.label())
	}
	n.ledger.record(Event{Kind: "click", Label: n.label()})
	return nil
}

func (n *node) SetText(value string) error {
	if !n.el.Editable {
		return fmt.Errorf("replay: node %q is not editable", n.el.Class)
	}
	n.ledger.record(Event{Kind: "set_text", Label: n.el.Class, Value: value})
	return nil
}

func (n *node) Release() {
	if !n.owned {
		return
	}
	n.ledger.mu.Lock()
	defer n.ledger.mu.Unlock()
	if n.released {
		n.ledger.doubles++
		return
	}
	n.released = true
	n.ledger.released++
}

// label is the node text, or its first descendant's text.
func (n *node) label() string {
	if n.el.Text != "" {
		return n.el.Text
	}
	var find func(Element) string
	find = func(e Element) string {
		for _, c := range e.Children {
			if c.Text != "" {
				return c.Text
			}
			if t := find(c); t != "" {
				return t
			}
		}
		return ""
	}
	return find(n.el)
}
