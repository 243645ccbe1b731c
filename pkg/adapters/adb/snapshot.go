package adb

import (
	"context"
	"errors"
	"fmt"

	"github.com/ngabopay/ussdpilot/pkg/domain"
)

// ErrOffScreen is returned when acting on a node with no visible area.
var ErrOffScreen = errors.New("adb: node has no on-screen bounds")

// Snapshot is a parsed dump bound to the device it came from. Node actions
// run with ctx, which the feed cancels when it stops.
type Snapshot struct {
	ctx  context.Context
	dev  *Device
	tree *Hierarchy
	root *node
}

// NewSnapshot binds tree to dev.
func NewSnapshot(ctx context.Context, dev *Device, tree *Hierarchy) *Snapshot {
	s := &Snapshot{ctx: ctx, dev: dev, tree: tree}
	if el := tree.Root(); el != nil {
		s.root = &node{snap: s, el: el}
	}
	return s
}

// Package implements domain.Snapshot.
func (s *Snapshot) Package() string { return s.tree.Package() }

// Root implements domain.Snapshot.
func (s *Snapshot) Root() domain.Node {
	if s.root == nil {
		return nil
	}
	return s.root
}

// Hierarchy returns the parsed dump.
func (s *Snapshot) Hierarchy() *Hierarchy { return s.tree }

// Release implements domain.Snapshot. Dumps hold no device resources.
func (s *Snapshot) Release() {}

type node struct {
	snap *Snapshot
	el   *Element
}

func (n *node) Text() string      { return n.el.Label() }
func (n *node) ClassName() string { return n.el.Class }
func (n *node) Editable() bool    { return n.el.Editable() }
func (n *node) Clickable() bool   { return n.el.Clickable && n.el.Enabled }
func (n *node) ChildCount() int   { return len(n.el.Children) }

func (n *node) Child(i int) domain.Node {
	if i < 0 || i >= len(n.el.Children) || n.el.Children[i] == nil {
		return nil
	}
	return &node{snap: n.snap, el: n.el.Children[i]}
}

func (n *node) Click() error {
	b := n.el.Bounds()
	if b.Empty() {
		return fmt.Errorf("%w: %q", ErrOffScreen, n.el.Label())
	}
	ctx, cancel := n.actionContext()
	defer cancel()
	x, y := b.Center()
	return n.snap.dev.Tap(ctx, x, y)
}

func (n *node) SetText(value string) error {
	if !n.el.Editable() {
		return fmt.Errorf("adb: node %q is not editable", n.el.Class)
	}
	b := n.el.Bounds()
	if b.Empty() {
		return fmt.Errorf("%w: %q", ErrOffScreen, n.el.Class)
	}
	ctx, cancel := n.actionContext()
	defer cancel()
	x, y := b.Center()
	return n.snap.dev.ReplaceText(ctx, x, y, n.el.Text, value)
}

func (n *node) Release() {}

func (n *node) actionContext() (context.Context, context.CancelFunc) {
	ctx := n.snap.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, n.snap.dev.actionTimeout)
}
