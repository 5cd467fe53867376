package livecomponent

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/net/html"

	"github.com/livecomponent/livecomponent/lib/dom"
)

// LiveController holds the state of one live component and drives its
// renders. User controllers embed *LiveController and add behaviour through
// the hook interfaces (BeforeUpdater, AfterUpdater, Connecter, Disconnecter)
// and methods registered with Method.
//
// State is replaced wholesale by every propagation and must be treated as
// read-only by callers. Stage changes with Render instead.
type LiveController struct {
	component *Component
	class     *Class
	owner     Controller

	mu      sync.RWMutex
	state   *State
	methods map[string]Method

	queue TaskQueue[struct{}]
}

// Live returns lc. It lets embedding types satisfy Controller.
func (lc *LiveController) Live() *LiveController {
	return lc
}

// Component returns the component the controller is attached to.
func (lc *LiveController) Component() *Component {
	return lc.component
}

// Element returns the component's element.
func (lc *LiveController) Element() *html.Node {
	return lc.component.el
}

// ID returns the component's data-id. It never changes while the element is
// mounted, whatever the state says.
func (lc *LiveController) ID() string {
	return lc.component.id
}

// Identifier returns the controller identifier.
func (lc *LiveController) Identifier() string {
	return lc.component.identifier
}

// State returns the current state.
func (lc *LiveController) State() *State {
	lc.mu.RLock()
	defer lc.mu.RUnlock()
	return lc.state
}

// Props returns the props of the current state.
func (lc *LiveController) Props() Props {
	return lc.State().Props
}

// OriginType returns the server-side type of the current state.
func (lc *LiveController) OriginType() string {
	return lc.State().OriginType
}

// Method registers fn under name so function-valued props referencing this
// component can call it.
func (lc *LiveController) Method(name string, fn Method) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.methods[name] = fn
}

// Invoke calls the method registered under name.
func (lc *LiveController) Invoke(ctx context.Context, name string, args ...any) (any, error) {
	lc.mu.RLock()
	fn, ok := lc.methods[name]
	lc.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q on component %q", ErrMethodNotFound, name, lc.ID())
	}
	return fn(ctx, args...)
}

func (lc *LiveController) hooks() Controller {
	if lc.owner == nil {
		return lc
	}
	return lc.owner
}

// PropagateState replaces the controller's state with a copy of next and
// pushes nested states into the components below it:
//
//  1. function-valued props are resolved against the mounted components;
//  2. BeforeUpdate runs with the incoming state;
//  3. the state is replaced;
//  4. each slot entry goes to the slot element at the same index, in
//     document order; entries without a matching component are skipped;
//  5. each child goes to the descendant with the matching data-id;
//  6. AfterUpdate runs once everything below has settled.
//
// next is copied before anything else, so later changes to it by the caller
// have no effect.
func (lc *LiveController) PropagateState(ctx context.Context, next *State) error {
	if next == nil {
		next = NewState()
	} else {
		next = next.Clone()
	}

	if err := lc.resolvePropRefs(ctx, next); err != nil {
		return err
	}

	hooks := lc.hooks()
	if h, ok := hooks.(BeforeUpdater); ok {
		h.BeforeUpdate(ctx, next)
	}

	lc.mu.Lock()
	lc.state = next
	lc.mu.Unlock()

	doc := lc.component.doc
	for _, slot := range next.SlotNames() {
		entries := next.Slots[slot]
		targets := doc.slotComponents(lc.component.el, slot)
		for i, entry := range entries {
			if i >= len(targets) {
				break
			}
			if targets[i] == nil {
				continue
			}
			if err := propagateInto(ctx, targets[i], entry); err != nil {
				return err
			}
		}
	}

	for id, child := range next.Children.All() {
		target := doc.childComponent(lc.component.el, id)
		if target == nil {
			continue
		}
		if err := propagateInto(ctx, target, child); err != nil {
			return err
		}
	}

	if h, ok := hooks.(AfterUpdater); ok {
		h.AfterUpdate(ctx)
	}
	return nil
}

func propagateInto(ctx context.Context, c *Component, state *State) error {
	ctrl, err := c.Controller(ctx)
	if err != nil {
		return err
	}
	return ctrl.Live().PropagateState(ctx, state)
}

func (lc *LiveController) resolvePropRefs(ctx context.Context, next *State) error {
	for key, value := range next.Props {
		ref, ok := propRefOf(value)
		if !ok {
			continue
		}
		target := lc.component.doc.ComponentByID(ref.ComponentID)
		if target == nil {
			return fmt.Errorf("%w: prop %q references %q", ErrComponentNotFound, key, ref.ComponentID)
		}
		ctrl, err := target.Controller(ctx)
		if err != nil {
			return err
		}
		next.Props[key] = &BoundMethod{Ref: ref, target: ctrl.Live()}
	}
	return nil
}

// PropagateStateFromElement loads the state serialized in the element's
// data-state attribute, removes the attribute and propagates the state. An
// element without the attribute is left alone.
func (lc *LiveController) PropagateStateFromElement(ctx context.Context) error {
	doc := lc.component.doc

	doc.mu.Lock()
	raw, ok := dom.Attr(lc.component.el, AttrState)
	if ok {
		dom.RemoveAttr(lc.component.el, AttrState)
	}
	doc.mu.Unlock()

	if !ok {
		return nil
	}

	state, err := ParseState([]byte(raw))
	if err != nil {
		return fmt.Errorf("%w: component %q: %w", ErrInvalidState, lc.ID(), err)
	}
	return lc.PropagateState(ctx, state)
}

// Render queues a render of the component. The current state is copied and
// handed to block through a Builder, so block can stage prop edits, slot
// entries and reflex calls. Renders of the same controller run one at a time
// in call order.
//
// Render waits for the render to finish. Calling it from a hook that runs
// inside a render of the same controller deadlocks; use RenderAsync there.
func (lc *LiveController) Render(ctx context.Context, block func(b *Builder)) error {
	_, err := lc.RenderAsync(ctx, block).Wait(ctx)
	return err
}

// RenderAsync queues a render like Render and returns without waiting.
func (lc *LiveController) RenderAsync(ctx context.Context, block func(b *Builder)) *Task[struct{}] {
	return lc.queue.Enqueue(ctx, func(ctx context.Context) (struct{}, error) {
		b := NewBuilder(lc.State().Clone())
		if block != nil {
			block(b)
		}
		return struct{}{}, lc.component.Render(ctx, b.Request())
	})
}

// FindChild returns the first child of the current state, in insertion order,
// for which match returns true.
func (lc *LiveController) FindChild(match func(*State) bool) (string, *State, bool) {
	return lc.State().FindChild(match)
}

// FindChildByID searches the current state's children depth-first for id.
func (lc *LiveController) FindChildByID(id string) (*State, bool) {
	return lc.State().FindChildByID(id)
}

// FindClosest walks up from start, inclusive, and returns the first controller
// attached under identifier. A nil start means the component's own element.
func (lc *LiveController) FindClosest(identifier string, start *html.Node) Controller {
	if start == nil {
		start = lc.component.el
	}
	doc := lc.component.doc

	doc.mu.Lock()
	var candidates []*Component
	for n := start; n != nil; n = n.Parent {
		if c, ok := doc.components[n]; ok && c.identifier == identifier {
			candidates = append(candidates, c)
		}
	}
	doc.mu.Unlock()

	for _, c := range candidates {
		if ctrl := c.CurrentController(); ctrl != nil {
			return ctrl
		}
	}
	return nil
}

// TargetComponent returns the controller of the target declared under name
// with WithTargets, or nil if the target is undeclared or absent.
func (lc *LiveController) TargetComponent(name string) Controller {
	if lc.class == nil {
		return nil
	}
	accessor, ok := lc.class.targets[name]
	if !ok {
		return nil
	}
	return accessor(lc)
}
