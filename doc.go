// Package livecomponent is the client side of a server-rendered component
// system. It runs headless against an HTML document parsed with
// golang.org/x/net/html: live components in the page get controllers, state
// changes are sent to the server as render requests, and the returned markup
// is morphed back into the tree.
//
// # Live components
//
// An element carrying data-livecomponent is a live component. Its data-id
// identifies it, data-state holds its serialized state and data-controller
// selects the controller class it is attached to:
//
//	<div data-livecomponent data-id="c1" data-controller="todo-list"
//	     data-state='{"props":{"title":"Groceries"},"slots":{},"children":{}}'>
//
// Classes are registered by name. The controller identifier is the name
// lowercased with "::" and "/" turned into hyphens:
//
//	livecomponent.Register("Todo::List", func(lc *livecomponent.LiveController) livecomponent.Controller {
//	    return &TodoList{LiveController: lc}
//	})
//
// Elements naming an identifier that was never registered fall back to the
// built-in "live" class.
//
// # State
//
// A State holds a component's props, named slots of nested states and an
// ordered map of child states keyed by component id. Props whose value is a
// string of the form "fn:<component id>#<method>" decode to a PropRef; when
// the state is propagated they are resolved into BoundMethods on the
// referenced controller.
//
// # Lifecycle
//
// Start binds the process-wide Application to a Document and mounts its
// components. Controllers may implement any of the optional hook interfaces:
//
//   - BeforeUpdater: called before new state is applied
//   - AfterUpdater: called after the state reached every descendant
//   - Connecter and Disconnecter: called on mount and unmount
//
// Propagation is depth first: a parent's BeforeUpdate runs before its
// children are updated and its AfterUpdate runs after all of them.
//
// # Rendering
//
// LiveController.Render stages changes through a Builder and sends them:
//
//	err := ctrl.Render(ctx, func(b *livecomponent.Builder) {
//	    b.Props()["title"] = "Errands"
//	    b.Call("save", nil)
//	})
//
// Renders of one controller run one at a time in call order. The request is
// encoded (JSON, gzip, base64), sent through the active Transport and the
// response is morphed into the component's element. HTTPTransport posts to
// /live_component/render; ChannelTransport multiplexes requests over a
// persistent Channel such as the websocket client in lib/cable.
//
// # Forms
//
// Document.SubmitForm submits a form the way a browser would. Forms marked
// with data-rerender-target or data-rerender-id carry the target component's
// state along and the target is morphed with the response.
package livecomponent
