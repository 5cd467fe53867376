package livecomponent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/livecomponent/livecomponent/lib/dom"
)

// Component is a mounted live component: an element of the Document carrying
// data-livecomponent, with a stable id and exactly one controller.
//
// The controller is attached asynchronously. Code that can wait uses
// Controller; code that cannot, such as event handlers, uses
// CurrentController and treats nil as "not attached yet".
type Component struct {
	doc        *Document
	el         *html.Node
	id         string
	identifier string
	class      *Class

	ready chan struct{}
	once  sync.Once
	ctrl  Controller

	// BeforeNodeMorphed is consulted once per old/new node pair whose nearest
	// live component is this one, whenever it or an ancestor is morphed. That
	// covers plain descendant elements and text nodes, not just the root.
	// Returning false keeps the old node's attributes or text; its children are
	// still visited. A nil hook allows every change.
	//
	// It runs with the document locked and must not call into the Document.
	BeforeNodeMorphed func(oldNode, newNode *html.Node) bool
}

func (c *Component) setController(ctrl Controller) {
	c.once.Do(func() {
		c.ctrl = ctrl
		close(c.ready)
	})
}

// ID returns the data-id the element carried when it was mounted.
func (c *Component) ID() string {
	return c.id
}

// Identifier returns the controller identifier of the component.
func (c *Component) Identifier() string {
	return c.identifier
}

// Element returns the mounted element.
func (c *Component) Element() *html.Node {
	return c.el
}

// Document returns the document the component is mounted in.
func (c *Component) Document() *Document {
	return c.doc
}

// Controller waits for the controller to be attached.
func (c *Component) Controller(ctx context.Context) (Controller, error) {
	select {
	case <-c.ready:
		return c.ctrl, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CurrentController returns the attached controller, or nil if none is
// attached yet.
func (c *Component) CurrentController() Controller {
	select {
	case <-c.ready:
		return c.ctrl
	default:
		return nil
	}
}

// Parent returns the nearest live component above this one, starting from the
// element's parent. Returns nil at the document root.
func (c *Component) Parent() *Component {
	c.doc.mu.Lock()
	defer c.doc.mu.Unlock()

	host := dom.Closest(c.el.Parent, isLive)
	if host == nil {
		return nil
	}
	return c.doc.components[host]
}

// Render sends req through the application's transport, morphs the element
// into the returned root and propagates the returned state into the
// controller.
//
// The response must contain an element carrying data-livecomponent, and that
// element must carry data-state; anything else is ErrMalformedResponse.
func (c *Component) Render(ctx context.Context, req *RenderRequest) error {
	ctrl, err := c.Controller(ctx)
	if err != nil {
		return err
	}

	app, err := c.doc.application(ctx)
	if err != nil {
		return err
	}

	start := time.Now()
	text, err := app.Render(ctx, req)
	if err != nil {
		return fmt.Errorf("livecomponent: render %q: %w", c.id, err)
	}

	root, state, err := extractRoot(text)
	if err != nil {
		return fmt.Errorf("livecomponent: render %q: %w", c.id, err)
	}

	if err := c.doc.Morph(ctx, c.el, root); err != nil {
		return err
	}

	c.doc.logger.Debug("rendered live component",
		"id", c.id,
		"controller", c.identifier,
		"reflexes", len(req.Reflexes),
		"duration", time.Since(start),
	)

	return ctrl.Live().PropagateState(ctx, state)
}

// extractRoot parses a render response and detaches its live component root
// and serialized state. Wrapper and template elements are looked through.
func extractRoot(text string) (*html.Node, *State, error) {
	container, err := dom.ParseFragment(text)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	root := dom.Find(container, isLive)
	if root == nil {
		return nil, nil, fmt.Errorf("%w: no live component root", ErrMalformedResponse)
	}

	raw, ok := dom.Attr(root, AttrState)
	if !ok {
		return nil, nil, fmt.Errorf("%w: root has no %s", ErrMalformedResponse, AttrState)
	}
	state, err := ParseState([]byte(raw))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	dom.RemoveAttr(root, AttrState)
	dom.Detach(root)
	return root, state, nil
}
