package livecomponent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/net/html"

	"github.com/livecomponent/livecomponent/lib/dom"
	"github.com/livecomponent/livecomponent/lib/morph"
)

// Attributes of the mount-time contract between server markup and the client.
const (
	AttrLiveComponent  = "data-livecomponent"
	AttrID             = "data-id"
	AttrState          = "data-state"
	AttrController     = "data-controller"
	AttrComponent      = "data-component"
	AttrSlotName       = "data-slot-name"
	AttrRerenderID     = "data-rerender-id"
	AttrRerenderTarget = "data-rerender-target"
)

var isLive = dom.WithAttr(AttrLiveComponent)

// Document is a headless page: an HTML tree in which every element carrying
// data-livecomponent is mounted as a Component with a controller attached from
// the class registry.
//
// The tree is guarded by a single lock. It is never held while controller
// code runs, with one exception: Component.BeforeNodeMorphed is called from
// inside a morph and must not call back into the Document.
type Document struct {
	mu         sync.Mutex
	root       *html.Node
	components map[*html.Node]*Component
	listeners  map[EventType][]Listener

	registry *Registry
	client   *http.Client
	baseURL  *url.URL
	logger   *slog.Logger
	app      atomic.Pointer[Application]
}

// NewDocument wraps an already parsed tree. Nothing is mounted until Connect
// (or Start) runs.
func NewDocument(root *html.Node, opts ...Option) (*Document, error) {
	if root == nil {
		return nil, errors.New("livecomponent: nil document root")
	}
	o := buildOptions(opts)

	var base *url.URL
	if o.baseURL != "" {
		u, err := url.Parse(o.baseURL)
		if err != nil {
			return nil, fmt.Errorf("livecomponent: base url: %w", err)
		}
		base = u
	}

	return &Document{
		root:       root,
		components: make(map[*html.Node]*Component),
		listeners:  make(map[EventType][]Listener),
		registry:   o.registry,
		client:     o.client,
		baseURL:    base,
		logger:     o.logger,
	}, nil
}

// ParseDocument parses an HTML page and wraps it.
func ParseDocument(r io.Reader, opts ...Option) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("livecomponent: parse document: %w", err)
	}
	return NewDocument(root, opts...)
}

// Root returns the root node. Reading the tree while renders may be running
// must go through Do.
func (d *Document) Root() *html.Node {
	return d.root
}

// Do runs fn with the tree locked. fn must not call back into the Document.
func (d *Document) Do(fn func(root *html.Node)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(d.root)
}

// HTML serializes the whole tree.
func (d *Document) HTML() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return dom.OuterHTML(d.root)
}

// BaseURL returns the configured base URL, or "" if none.
func (d *Document) BaseURL() string {
	if d.baseURL == nil {
		return ""
	}
	return d.baseURL.String()
}

// Registry returns the class registry controllers are attached from.
func (d *Document) Registry() *Registry {
	return d.registry
}

// Application returns the application started on this document, or nil.
func (d *Document) Application() *Application {
	return d.app.Load()
}

func (d *Document) application(ctx context.Context) (*Application, error) {
	if app := d.app.Load(); app != nil {
		return app, nil
	}
	return Instance(ctx)
}

// Connect mounts every live component element not mounted yet and unmounts
// components whose element left the tree.
//
// Mounting runs in two passes: every new component gets its controller first,
// then each one loads its data-state and runs its Connect hook, in document
// order. Controllers of nested components are therefore attached before their
// parents propagate state into them.
func (d *Document) Connect(ctx context.Context) error {
	d.mu.Lock()
	mounted, unmounted := d.syncLocked()
	d.mu.Unlock()

	return d.settle(ctx, mounted, unmounted)
}

// Morph reconciles el, which must be part of the tree, against next and then
// mounts and unmounts components accordingly. next is consumed.
func (d *Document) Morph(ctx context.Context, el, next *html.Node) error {
	d.mu.Lock()
	if !dom.Contains(d.root, el) {
		d.mu.Unlock()
		return fmt.Errorf("%w: morph target is detached", ErrNotMounted)
	}

	morph.Morph(el, next, morph.Callbacks{BeforeNodeMorphed: d.beforeNodeMorphed})

	// Nested components that stay mounted get their state from the parent's
	// propagation, not from markup.
	for node := range d.components {
		if node != el && dom.Contains(el, node) {
			dom.RemoveAttr(node, AttrState)
		}
	}

	mounted, unmounted := d.syncLocked()
	d.mu.Unlock()

	return d.settle(ctx, mounted, unmounted)
}

func (d *Document) settle(ctx context.Context, mounted, unmounted []*Component) error {
	for _, c := range unmounted {
		d.logger.Debug("unmounted live component", "id", c.id, "controller", c.identifier)
		if h, ok := c.CurrentController().(Disconnecter); ok {
			h.Disconnect(ctx)
		}
	}

	for _, c := range mounted {
		d.attach(c)
	}

	var errs []error
	for _, c := range mounted {
		ctrl := c.CurrentController()
		if err := ctrl.Live().PropagateStateFromElement(ctx); err != nil {
			d.logger.Warn("failed to load component state", "id", c.id, "error", err)
			errs = append(errs, err)
			continue
		}
		if h, ok := ctrl.(Connecter); ok {
			h.Connect(ctx)
		}
		d.logger.Debug("mounted live component", "id", c.id, "controller", c.identifier)
	}
	return errors.Join(errs...)
}

// syncLocked diffs the tree against the mounted set. Must hold d.mu.
func (d *Document) syncLocked() (mounted, unmounted []*Component) {
	for node, c := range d.components {
		if !dom.Contains(d.root, node) || !dom.HasAttr(node, AttrLiveComponent) {
			delete(d.components, node)
			unmounted = append(unmounted, c)
		}
	}

	for _, el := range d.liveElementsLocked(d.root) {
		if _, ok := d.components[el]; ok {
			continue
		}
		c := d.newComponent(el)
		d.components[el] = c
		mounted = append(mounted, c)
	}
	return mounted, unmounted
}

func (d *Document) newComponent(el *html.Node) *Component {
	controllerAttr := dom.AttrOr(el, AttrController, "")
	class := d.registry.resolve(controllerAttr, el.Data)

	identifier := class.Identifier
	if identifier == DefaultIdentifier {
		// Unregistered identifiers keep their own name so FindClosest and
		// ControllerFor can still address them.
		if first := firstToken(controllerAttr); first != "" {
			identifier = first
		}
	}

	return &Component{
		doc:        d,
		el:         el,
		id:         dom.AttrOr(el, AttrID, ""),
		identifier: identifier,
		class:      class,
		ready:      make(chan struct{}),
	}
}

func (d *Document) attach(c *Component) {
	lc := &LiveController{
		component: c,
		class:     c.class,
		state:     NewState(),
		methods:   make(map[string]Method),
	}
	owner := c.class.factory(lc)
	if owner == nil {
		owner = lc
	}
	lc.owner = owner
	c.setController(owner)
}

func (d *Document) liveElementsLocked(scope *html.Node) []*html.Node {
	var out []*html.Node
	if scope.Type == html.ElementNode && isLive(scope) {
		out = append(out, scope)
	}
	return append(out, dom.FindAll(scope, isLive)...)
}

// beforeNodeMorphed routes each node pair to the hook of the nearest mounted
// component enclosing the old node. Called with d.mu held.
func (d *Document) beforeNodeMorphed(oldNode, newNode *html.Node) bool {
	for host := dom.Closest(oldNode, isLive); host != nil; host = dom.Closest(host.Parent, isLive) {
		c, ok := d.components[host]
		if !ok {
			continue
		}
		if c.BeforeNodeMorphed == nil {
			return true
		}
		return c.BeforeNodeMorphed(oldNode, newNode)
	}
	return true
}

// Components returns the mounted components in document order.
func (d *Document) Components() []*Component {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []*Component
	for _, el := range d.liveElementsLocked(d.root) {
		if c, ok := d.components[el]; ok {
			out = append(out, c)
		}
	}
	return out
}

// ComponentByID returns the mounted component whose data-id is id, anywhere in
// the document, or nil.
func (d *Document) ComponentByID(id string) *Component {
	d.mu.Lock()
	defer d.mu.Unlock()
	el := dom.Find(d.root, dom.And(isLive, dom.WithAttrValue(AttrID, id)))
	if el == nil {
		return nil
	}
	return d.components[el]
}

// ComponentFor returns the component mounted on el, or nil.
func (d *Document) ComponentFor(el *html.Node) *Component {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.components[el]
}

// ControllerFor returns the controller attached to el under identifier, or nil.
func (d *Document) ControllerFor(el *html.Node, identifier string) Controller {
	c := d.ComponentFor(el)
	if c == nil || c.identifier != identifier {
		return nil
	}
	return c.CurrentController()
}

// slotComponents returns the components of the slot elements named slot below
// scope, in document order. Slot elements that are not components yield nil.
func (d *Document) slotComponents(scope *html.Node, slot string) []*Component {
	d.mu.Lock()
	defer d.mu.Unlock()

	els := dom.FindAll(scope, dom.WithAttrValue(AttrSlotName, slot))
	out := make([]*Component, len(els))
	for i, el := range els {
		out[i] = d.components[el]
	}
	return out
}

// childComponent returns the component below scope whose data-id is id.
func (d *Document) childComponent(scope *html.Node, id string) *Component {
	d.mu.Lock()
	defer d.mu.Unlock()
	el := dom.Find(scope, dom.WithAttrValue(AttrID, id))
	if el == nil {
		return nil
	}
	return d.components[el]
}

func (d *Document) targetController(scope *html.Node, attr, name string) Controller {
	d.mu.Lock()
	el := dom.Find(scope, dom.WithAttrToken(attr, name))
	var c *Component
	if el != nil {
		host := dom.Closest(el, dom.And(isLive, dom.Not(dom.WithAttrValue(AttrController, "livereact"))))
		c = d.components[host]
	}
	d.mu.Unlock()

	if c == nil {
		return nil
	}
	return c.CurrentController()
}

// resolveURL resolves ref against the base URL.
func (d *Document) resolveURL(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	if d.baseURL != nil {
		u = d.baseURL.ResolveReference(u)
	}
	return u.String(), nil
}

func firstToken(s string) string {
	if fields := strings.Fields(s); len(fields) > 0 {
		return fields[0]
	}
	return ""
}
