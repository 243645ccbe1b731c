package domain

// Node is a borrowed view of one element in the dialer's UI tree.
//
// A Node is only valid during the classification pass that obtained it. Every
// Node returned by Child is a new reference and must be released by whoever
// obtained it, exactly once, on every exit path.
type Node interface {
	// Text returns the visible label of the node, or "" when it has none.
	Text() string

	// ClassName returns the widget class (e.g. "android.widget.EditText").
	ClassName() string

	// Editable reports whether the node accepts text input.
	Editable() bool

	// Clickable reports whether the node reacts to a click action.
	Clickable() bool

	ChildCount() int

	// Child returns the i-th child, or nil when the host cannot provide it.
	Child(i int) Node

	// Click performs a click action on the node.
	Click() error

	// SetText replaces the node's content with value.
	SetText(value string) error

	// Release returns the reference to the host (recycling).
	Release()
}

// Snapshot is one capture of the dialer's visible content.
// The engine owns it for a single pass and must Release it before the pass ends.
type Snapshot interface {
	// Package is the host application that produced the snapshot.
	Package() string

	// Root returns the root node. The root is owned by the snapshot and released with it.
	Root() Node

	Release()
}
