// Package htmldom wraps golang.org/x/net/html into a navigable tree with
// CSS-selector compile/match, the shape every extractor backend is built on
// top of. A permissive parse always succeeds: malformed markup becomes a
// best-effort tree rather than an error.
package htmldom

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// NodeType mirrors the node variants a permissive HTML5 parser produces.
type NodeType int

const (
	TypeDocument NodeType = iota
	TypeDocumentFragment
	TypeDoctype
	TypeComment
	TypeText
	TypeElement
	TypeProcessingInstruction
)

// Node is a handle into a parsed document. The document owns all nodes;
// a Node is a shared reference that, by virtue of being a plain Go pointer
// into the tree x/net/html built, keeps the whole tree reachable (and thus
// alive) for as long as the handle itself is reachable. No refcounting is
// needed: the garbage collector already enforces the "the DOM stays valid
// as long as any node handle is alive" invariant.
type Node struct {
	raw *html.Node
}

// Parse performs a permissive parse of r into a document node.
func Parse(r io.Reader) (*Node, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("could not parse HTML: %w", err)
	}
	return &Node{raw: root}, nil
}

// ParseBytes sniffs the character encoding of body (from contentType and/or
// a <meta charset> declaration) and parses the resulting UTF-8 stream. This
// is how a "permissive parse of arbitrary HTML bytes" also tolerates
// non-UTF-8 pages.
func ParseBytes(body []byte, contentType string) (*Node, error) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, fmt.Errorf("could not determine the character encoding: %w", err)
	}
	return Parse(r)
}

func wrap(raw *html.Node) *Node {
	if raw == nil {
		return nil
	}
	return &Node{raw: raw}
}

// Type reports which of the permissive-parser's node variants this is.
func (n *Node) Type() NodeType {
	switch n.raw.Type {
	case html.DocumentNode:
		return TypeDocument
	case html.DoctypeNode:
		return TypeDoctype
	case html.CommentNode:
		return TypeComment
	case html.TextNode:
		return TypeText
	case html.ElementNode:
		return TypeElement
	case html.ErrorNode:
		return TypeDocumentFragment
	default:
		return TypeProcessingInstruction
	}
}

func (n *Node) Parent() *Node       { return wrap(n.raw.Parent) }
func (n *Node) PrevSibling() *Node  { return wrap(n.raw.PrevSibling) }
func (n *Node) NextSibling() *Node  { return wrap(n.raw.NextSibling) }
func (n *Node) FirstChild() *Node   { return wrap(n.raw.FirstChild) }
func (n *Node) LastChild() *Node    { return wrap(n.raw.LastChild) }

// ChildNodes returns direct children in document order.
func (n *Node) ChildNodes() []*Node {
	var out []*Node
	for c := n.raw.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, wrap(c))
	}
	return out
}

// DescendantNodes returns every descendant in pre-order.
func (n *Node) DescendantNodes() []*Node {
	var out []*Node
	var walk func(*html.Node)
	walk = func(h *html.Node) {
		for c := h.FirstChild; c != nil; c = c.NextSibling {
			out = append(out, wrap(c))
			walk(c)
		}
	}
	walk(n.raw)
	return out
}

// Data returns the node's raw character data: the tag name for an element,
// the text for a text node, the comment body for a comment, and so on.
func (n *Node) Data() string {
	return n.raw.Data
}

// TagName returns the lowercased tag name; empty for non-element nodes.
func (n *Node) TagName() string {
	if n.raw.Type != html.ElementNode {
		return ""
	}
	return n.raw.Data
}

// Attr looks up an attribute by name.
func (n *Node) Attr(name string) (string, bool) {
	for _, a := range n.raw.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// Attrs returns every attribute as name/value pairs in document order.
func (n *Node) Attrs() []Attr {
	out := make([]Attr, 0, len(n.raw.Attr))
	for _, a := range n.raw.Attr {
		out = append(out, Attr{Name: a.Key, Value: a.Val})
	}
	return out
}

// Attr is one element attribute.
type Attr struct {
	Name  string
	Value string
}

// HasClass reports whether the element's class attribute contains name.
func (n *Node) HasClass(name string) bool {
	for _, c := range n.Classes() {
		if c == name {
			return true
		}
	}
	return false
}

// Classes splits the element's class attribute on whitespace.
func (n *Node) Classes() []string {
	v, ok := n.Attr("class")
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}
	return strings.Fields(v)
}

// Text concatenates descendant text nodes in document order.
func (n *Node) Text() string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(h *html.Node) {
		if h.Type == html.TextNode {
			b.WriteString(h.Data)
		}
		for c := h.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n.raw)
	return b.String()
}

// ChildElements returns direct element children in document order.
func (n *Node) ChildElements() []*Node {
	var out []*Node
	for c := n.raw.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, wrap(c))
		}
	}
	return out
}

// DescendantElements returns every descendant element in pre-order.
func (n *Node) DescendantElements() []*Node {
	var out []*Node
	for _, d := range n.DescendantNodes() {
		if d.Type() == TypeElement {
			out = append(out, d)
		}
	}
	return out
}

// HTML serializes the node including itself.
func (n *Node) HTML() (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, n.raw); err != nil {
		return "", fmt.Errorf("could not serialize node: %w", err)
	}
	return buf.String(), nil
}

// InnerHTML serializes only the node's children.
func (n *Node) InnerHTML() (string, error) {
	var buf bytes.Buffer
	for c := n.raw.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", fmt.Errorf("could not serialize child node: %w", err)
		}
	}
	return buf.String(), nil
}

// Selector is a compiled, reusable CSS selector.
type Selector struct {
	compiled cascadia.Sel
}

// ParseSelector compiles a CSS selector string. Compilation failures are
// surfaced to the caller, never silently ignored.
func ParseSelector(s string) (*Selector, error) {
	sel, err := cascadia.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("could not compile selector %q: %w", s, err)
	}
	return &Selector{compiled: sel}, nil
}

// Select returns every descendant element matching sel, in document order.
func (n *Node) Select(sel *Selector) []*Node {
	matches := cascadia.QueryAll(n.raw, sel.compiled)
	out := make([]*Node, 0, len(matches))
	for _, m := range matches {
		out = append(out, wrap(m))
	}
	return out
}
