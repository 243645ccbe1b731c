package adb

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
)

// ErrNoHierarchy is returned when a dump holds no <hierarchy> document.
var ErrNoHierarchy = errors.New("adb: no ui hierarchy in dump")

// Bounds is a node's screen rectangle, as reported by uiautomator.
type Bounds struct {
	Left, Top, Right, Bottom int
}

// Center returns the tap point of the rectangle.
func (b Bounds) Center() (int, int) {
	return (b.Left + b.Right) / 2, (b.Top + b.Bottom) / 2
}

// Empty reports whether the rectangle has no area (off-screen nodes).
func (b Bounds) Empty() bool {
	return b.Right <= b.Left || b.Bottom <= b.Top
}

// ParseBounds reads the "[x1,y1][x2,y2]" form.
func ParseBounds(s string) (Bounds, error) {
	var b Bounds
	if _, err := fmt.Sscanf(s, "[%d,%d][%d,%d]", &b.Left, &b.Top, &b.Right, &b.Bottom); err != nil {
		return Bounds{}, fmt.Errorf("invalid bounds %q: %w", s, err)
	}
	return b, nil
}

// Element is one <node> of a uiautomator dump.
type Element struct {
	Text        string `xml:"text,attr"`
	ResourceID  string `xml:"resource-id,attr"`
	Class       string `xml:"class,attr"`
	Package     string `xml:"package,attr"`
	ContentDesc string `xml:"content-desc,attr"`
	Clickable   bool   `xml:"clickable,attr"`
	Enabled     bool   `xml:"enabled,attr"`
	Focused     bool   `xml:"focused,attr"`
	Password    bool   `xml:"password,attr"`
	RawBounds   string `xml:"bounds,attr"`

	Children []*Element `xml:"node"`
}

// Editable reports whether the element is a text field. uiautomator does not
// export an editable flag, so the widget class decides.
func (e *Element) Editable() bool {
	return strings.HasSuffix(e.Class, "EditText")
}

// Label is the text an operator sees: the text, else the content description.
func (e *Element) Label() string {
	if e.Text != "" {
		return e.Text
	}
	return e.ContentDesc
}

// Bounds parses RawBounds. Unparseable bounds yield an empty rectangle.
func (e *Element) Bounds() Bounds {
	b, err := ParseBounds(e.RawBounds)
	if err != nil {
		return Bounds{}
	}
	return b
}

// Hierarchy is a parsed dump.
type Hierarchy struct {
	Rotation int        `xml:"rotation,attr"`
	Nodes    []*Element `xml:"node"`
}

// Package returns the package of the first top-level node.
func (h *Hierarchy) Package() string {
	for _, n := range h.Nodes {
		if n.Package != "" {
			return n.Package
		}
	}
	return ""
}

// Root returns the single root element. Dumps with several top-level windows
// get a synthetic container.
func (h *Hierarchy) Root() *Element {
	switch len(h.Nodes) {
	case 0:
		return nil
	case 1:
		return h.Nodes[0]
	default:
		return &Element{Class: "android.widget.FrameLayout", Package: h.Package(), Children: h.Nodes}
	}
}

// ParseHierarchy decodes uiautomator dump output. Text before the XML
// prolog and the "UI hierchary dumped to" trailer are ignored.
func ParseHierarchy(dump []byte) (*Hierarchy, error) {
	start := bytes.Index(dump, []byte("<hierarchy"))
	if start < 0 {
		return nil, ErrNoHierarchy
	}
	end := bytes.LastIndex(dump, []byte("</hierarchy>"))
	if end < start {
		return nil, fmt.Errorf("%w: truncated document", ErrNoHierarchy)
	}
	doc := dump[start : end+len("</hierarchy>")]

	var h Hierarchy
	if err := xml.Unmarshal(doc, &h); err != nil {
		return nil, fmt.Errorf("failed to parse ui hierarchy: %w", err)
	}
	return &h, nil
}
