package livecomponent

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/net/html"

	"github.com/livecomponent/livecomponent/lib/dom"
)

// Form fields added to a submission whose form has a rerender target.
const (
	FieldRerenderState = "__lc_rerender_state"
	FieldRerenderID    = "__lc_rerender_id"
)

// Values of data-rerender-target with a special meaning.
const (
	RerenderSelf   = ":self"
	RerenderParent = ":parent"
)

// FindRerenderTarget returns the component a form submission re-renders, or
// nil. Rules, in order:
//
//   - data-rerender-id: the component with that data-id anywhere in the
//     document;
//   - data-rerender-target=":self": the nearest live component enclosing the
//     form;
//   - data-rerender-target=":parent": that component's parent;
//   - any other data-rerender-target: the nearest enclosing live component
//     whose data-component equals the value.
func (d *Document) FindRerenderTarget(form *html.Node) *Component {
	d.mu.Lock()
	defer d.mu.Unlock()

	if id, ok := dom.Attr(form, AttrRerenderID); ok {
		return d.components[dom.Find(d.root, dom.And(isLive, dom.WithAttrValue(AttrID, id)))]
	}

	target, ok := dom.Attr(form, AttrRerenderTarget)
	if !ok {
		return nil
	}

	switch target {
	case RerenderSelf:
		return d.components[dom.Closest(form, isLive)]
	case RerenderParent:
		self := dom.Closest(form, isLive)
		if self == nil {
			return nil
		}
		return d.components[dom.Closest(self.Parent, isLive)]
	default:
		return d.components[dom.Closest(form, dom.And(isLive, dom.WithAttrValue(AttrComponent, target)))]
	}
}

// handleSubmitStart adds the target's state and id to the submission.
func (a *Application) handleSubmitStart(ctx context.Context, ev *SubmitEvent) error {
	target := a.doc.FindRerenderTarget(ev.Form)
	if target == nil {
		return nil
	}
	ctrl := target.CurrentController()
	if ctrl == nil || target.ID() == "" {
		return nil
	}

	state, err := json.Marshal(ctrl.Live().State())
	if err != nil {
		return fmt.Errorf("livecomponent: serialize rerender state: %w", err)
	}
	ev.Body.Set(FieldRerenderState, string(state))
	ev.Body.Set(FieldRerenderID, target.ID())
	return nil
}

// handleSubmitEnd morphs the target into the first element of the response's
// template and reloads its state from the new markup.
func (a *Application) handleSubmitEnd(ctx context.Context, ev *SubmitEvent) error {
	target := a.doc.FindRerenderTarget(ev.Form)
	if target == nil {
		return nil
	}

	container, err := dom.ParseFragment(ev.ResponseHTML)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	source := container
	if tmpl := dom.Find(container, dom.WithTag("template")); tmpl != nil {
		source = tmpl
	}
	next := dom.FirstElementChild(source)
	if next == nil {
		return fmt.Errorf("%w: submission response has no element", ErrMalformedResponse)
	}
	dom.Detach(next)

	if err := a.doc.Morph(ctx, target.Element(), next); err != nil {
		return err
	}

	ctrl, err := target.Controller(ctx)
	if err != nil {
		return err
	}
	return ctrl.Live().PropagateStateFromElement(ctx)
}
