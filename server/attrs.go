package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"github.com/livecomponent/livecomponent"
)

// StateAttrs builds the attributes that make an element a live component:
// data-livecomponent, data-id, data-state and, when controller is not empty,
// data-controller and data-component.
//
//	<div { server.StateAttrs("c1", "todo-list", state)... }>
func StateAttrs(id, controller string, state *livecomponent.State) (templ.Attributes, error) {
	if state == nil {
		state = livecomponent.NewState()
	}
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("server: marshal state: %w", err)
	}

	attrs := templ.Attributes{
		livecomponent.AttrLiveComponent: true,
		livecomponent.AttrID:            id,
		livecomponent.AttrState:         string(data),
	}
	if controller != "" {
		attrs[livecomponent.AttrController] = controller
		attrs[livecomponent.AttrComponent] = controller
	}
	return attrs, nil
}

// RerenderAttrs builds the form attributes that select a rerender target.
// ":self", ":parent" and component identifiers become data-rerender-target.
func RerenderAttrs(target string) templ.Attributes {
	return templ.Attributes{livecomponent.AttrRerenderTarget: target}
}

// RerenderIDAttrs builds the form attribute that rerenders the component with
// the given data-id.
func RerenderIDAttrs(id string) templ.Attributes {
	return templ.Attributes{livecomponent.AttrRerenderID: id}
}

// Root wraps body in a live component root element:
//
//	server.Root("c1", "todo-list", state, todoList(items))
func Root(id, controller string, state *livecomponent.State, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		attrs, err := StateAttrs(id, controller, state)
		if err != nil {
			return err
		}
		if _, err := io.WriteString(w, "<div"); err != nil {
			return err
		}
		if err := templ.RenderAttributes(ctx, w, attrs); err != nil {
			return err
		}
		if _, err := io.WriteString(w, ">"); err != nil {
			return err
		}
		if body != nil {
			if err := body.Render(ctx, w); err != nil {
				return err
			}
		}
		_, err = io.WriteString(w, "</div>")
		return err
	})
}
