// Package dom provides the small set of node queries the live component
// runtime needs on top of golang.org/x/net/html: attribute access, ancestor
// and descendant search in document order, fragment parsing and serialization.
package dom

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Predicate reports whether n matches.
type Predicate func(n *html.Node) bool

// Attr returns the value of the attribute key on n.
func Attr(n *html.Node, key string) (string, bool) {
	if n == nil || n.Type != html.ElementNode {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// AttrOr returns the value of key, or def when the attribute is absent.
func AttrOr(n *html.Node, key, def string) string {
	if v, ok := Attr(n, key); ok {
		return v
	}
	return def
}

// HasAttr reports whether n carries the attribute key.
func HasAttr(n *html.Node, key string) bool {
	_, ok := Attr(n, key)
	return ok
}

// SetAttr sets key to val on n, replacing an existing value.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr deletes key from n. It is a no-op when the attribute is absent.
func RemoveAttr(n *html.Node, key string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

// IsElement matches element nodes.
func IsElement(n *html.Node) bool {
	return n.Type == html.ElementNode
}

// WithAttr matches elements carrying key, whatever its value.
func WithAttr(key string) Predicate {
	return func(n *html.Node) bool {
		return HasAttr(n, key)
	}
}

// WithAttrValue matches elements whose key attribute equals val.
func WithAttrValue(key, val string) Predicate {
	return func(n *html.Node) bool {
		v, ok := Attr(n, key)
		return ok && v == val
	}
}

// WithAttrToken matches elements whose key attribute contains val as one of its
// whitespace separated tokens.
func WithAttrToken(key, val string) Predicate {
	return func(n *html.Node) bool {
		v, ok := Attr(n, key)
		if !ok {
			return false
		}
		for _, tok := range strings.Fields(v) {
			if tok == val {
				return true
			}
		}
		return false
	}
}

// WithTag matches elements with the given tag name.
func WithTag(tag string) Predicate {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == tag
	}
}

// And matches when every predicate matches.
func And(preds ...Predicate) Predicate {
	return func(n *html.Node) bool {
		for _, p := range preds {
			if !p(n) {
				return false
			}
		}
		return true
	}
}

// Not inverts p.
func Not(p Predicate) Predicate {
	return func(n *html.Node) bool {
		return !p(n)
	}
}

// Find returns the first descendant of root (root excluded) matching p in
// document order, or nil.
func Find(root *html.Node, p Predicate) *html.Node {
	if root == nil {
		return nil
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if p(c) {
			return c
		}
		if found := Find(c, p); found != nil {
			return found
		}
	}
	return nil
}

// FindAll returns every descendant of root (root excluded) matching p in
// document order.
func FindAll(root *html.Node, p Predicate) []*html.Node {
	var out []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if p(c) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	if root != nil {
		walk(root)
	}
	return out
}

// Closest walks from n (inclusive) towards the root and returns the first node
// matching p, or nil.
func Closest(n *html.Node, p Predicate) *html.Node {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type == html.ElementNode && p(cur) {
			return cur
		}
	}
	return nil
}

// Contains reports whether n is root or one of its descendants.
func Contains(root, n *html.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur == root {
			return true
		}
	}
	return false
}

// FirstElementChild returns the first child of n that is an element.
func FirstElementChild(n *html.Node) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}

// Text returns the concatenated text content of n and its descendants.
func Text(n *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// ParseFragment parses s in the context of a <div> and returns a detached
// <div> holding the resulting nodes.
func ParseFragment(s string) (*html.Node, error) {
	container := NewElement("div")
	nodes, err := html.ParseFragment(strings.NewReader(s), container)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		container.AppendChild(n)
	}
	return container, nil
}

// Parse parses a full document.
func Parse(s string) (*html.Node, error) {
	return html.Parse(strings.NewReader(s))
}

// NewElement returns a detached element node.
func NewElement(tag string) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
}

// Detach removes n from its parent, if any.
func Detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// OuterHTML serializes n including its own tag.
func OuterHTML(n *html.Node) string {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return ""
	}
	return buf.String()
}

// InnerHTML serializes the children of n.
func InnerHTML(n *html.Node) string {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return ""
		}
	}
	return buf.String()
}
