// Package morph reconciles a mounted node tree against a freshly parsed one in
// place, keeping the identity of every old node it can pair with a new one.
//
// Pairing rules, applied child list by child list:
//   - a new node carrying a key (data-id, then id) pairs with the old sibling
//     holding the same key, moving it into position if needed;
//   - otherwise it pairs with the old node at the cursor when both have the
//     same node type, tag and key;
//   - unpaired new nodes are moved into the old tree, unpaired old nodes are
//     removed.
//
// Paired nodes are handed to Callbacks.BeforeNodeMorphed first. A false return
// leaves that node's attributes or text and its child list structure
// untouched. Its children are still visited positionally.
package morph

import (
	"golang.org/x/net/html"
)

// Callbacks customise a morph.
type Callbacks struct {
	// BeforeNodeMorphed is called once per old/new node pair. Returning false
	// vetoes the update of oldNode. A nil func allows every update.
	BeforeNodeMorphed func(oldNode, newNode *html.Node) bool
}

// Morph updates oldNode in place so it matches newNode. The root keeps its
// identity and tag; its attributes and children follow newNode. Nodes from
// newNode's subtree may be moved into oldNode's subtree.
func Morph(oldNode, newNode *html.Node, cb Callbacks) {
	m := &morpher{cb: cb}
	m.morphNode(oldNode, newNode)
}

type morpher struct {
	cb Callbacks
}

func (m *morpher) allow(oldNode, newNode *html.Node) bool {
	if m.cb.BeforeNodeMorphed == nil {
		return true
	}
	return m.cb.BeforeNodeMorphed(oldNode, newNode)
}

func (m *morpher) morphNode(oldNode, newNode *html.Node) {
	allowed := m.allow(oldNode, newNode)

	switch oldNode.Type {
	case html.TextNode, html.CommentNode:
		if allowed {
			oldNode.Data = newNode.Data
		}
	case html.ElementNode:
		if allowed {
			oldNode.Attr = append([]html.Attribute(nil), newNode.Attr...)
			m.morphChildren(oldNode, newNode)
		} else {
			m.visitChildren(oldNode, newNode)
		}
	default:
		m.visitChildren(oldNode, newNode)
	}
}

// morphChildren reconciles the child list of oldParent against newParent.
func (m *morpher) morphChildren(oldParent, newParent *html.Node) {
	newKids := children(newParent)
	cursor := oldParent.FirstChild

	for _, nk := range newKids {
		match := findMatch(cursor, nk)
		if match == nil {
			newParent.RemoveChild(nk)
			oldParent.InsertBefore(nk, cursor)
			continue
		}

		if match != cursor {
			oldParent.RemoveChild(match)
			oldParent.InsertBefore(match, cursor)
		} else {
			cursor = cursor.NextSibling
		}
		m.morphNode(match, nk)
	}

	for cursor != nil {
		next := cursor.NextSibling
		oldParent.RemoveChild(cursor)
		cursor = next
	}
}

// visitChildren pairs children by position without changing the child list.
func (m *morpher) visitChildren(oldParent, newParent *html.Node) {
	nk := newParent.FirstChild
	for ok := oldParent.FirstChild; ok != nil && nk != nil; ok = ok.NextSibling {
		if compatible(ok, nk) {
			m.morphNode(ok, nk)
		}
		nk = nk.NextSibling
	}
}

// findMatch returns the old node, starting at cursor, that newNode should be
// merged into.
func findMatch(cursor, newNode *html.Node) *html.Node {
	if k := key(newNode); k != "" {
		for c := cursor; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.Data == newNode.Data && key(c) == k {
				return c
			}
		}
		return nil
	}
	if cursor != nil && compatible(cursor, newNode) {
		return cursor
	}
	return nil
}

func compatible(a, b *html.Node) bool {
	if a.Type != b.Type {
		return false
	}
	if a.Type == html.ElementNode {
		return a.Data == b.Data && key(a) == key(b)
	}
	return true
}

func key(n *html.Node) string {
	if n.Type != html.ElementNode {
		return ""
	}
	var id string
	for _, a := range n.Attr {
		switch a.Key {
		case "data-id":
			return a.Val
		case "id":
			id = a.Val
		}
	}
	return id
}

func children(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}
