package livecomponent

import (
	"context"

	"github.com/livecomponent/livecomponent/lib/encoding"
)

// Controller is implemented by every controller attached to a live
// component. User controllers satisfy it by embedding *LiveController.
//
//	type TodoList struct {
//	    *livecomponent.LiveController
//	}
//
//	livecomponent.Register("TodoList", func(lc *livecomponent.LiveController) livecomponent.Controller {
//	    c := &TodoList{LiveController: lc}
//	    c.Method("add", c.add)
//	    return c
//	})
type Controller interface {
	Live() *LiveController
}

// Factory builds the controller for a newly mounted component.
type Factory func(lc *LiveController) Controller

// BeforeUpdater is implemented by controllers that want to see the incoming
// state before it replaces the current one. Function-valued props in next are
// already resolved.
type BeforeUpdater interface {
	BeforeUpdate(ctx context.Context, next *State)
}

// AfterUpdater is implemented by controllers that want to run once a
// propagation has settled, including every slot and child below them.
type AfterUpdater interface {
	AfterUpdate(ctx context.Context)
}

// Connecter is implemented by controllers that want to run after their
// component was mounted and its initial state loaded.
type Connecter interface {
	Connect(ctx context.Context)
}

// Disconnecter is implemented by controllers that want to run after their
// component was removed from the document.
type Disconnecter interface {
	Disconnect(ctx context.Context)
}

// Transport sends render requests to the server and returns the decoded HTML
// of the response.
//
// Start must be idempotent. Render sends exactly one request and does not
// retry.
type Transport interface {
	Start(ctx context.Context) error
	Render(ctx context.Context, req *RenderRequest) (string, error)
}

// Channel is a persistent bidirectional connection that carries render
// requests and responses as correlated messages. lib/cable provides a
// WebSocket implementation.
//
// Subscribe registers the handler for inbound messages. The handler may be
// called from any goroutine and must not block. Done is closed once the
// connection has ended and Err then reports why.
type Channel interface {
	Subscribe(ctx context.Context, handler func(msg encoding.Message)) error
	Send(ctx context.Context, msg encoding.Message) error
	Done() <-chan struct{}
	Err() error
}
