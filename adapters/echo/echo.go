// Package lcecho mounts the live component render endpoints on Echo.
//
//	e := echo.New()
//	h := lcecho.Mount(e, renderer)
//
// Or mount on a group with middleware:
//
//	g := e.Group("/app", authMiddleware)
//	lcecho.MountGroup(g, renderer)
package lcecho

import (
	"log/slog"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/livecomponent/livecomponent"
	"github.com/livecomponent/livecomponent/lib/encoding"
	"github.com/livecomponent/livecomponent/server"
)

// Option configures the Mount and MountGroup functions.
type Option func(*options)

type options struct {
	endpoint string
	cable    string
	server   []server.Option
}

// WithEndpoint sets the path of the HTTP render endpoint.
// Defaults to "/live_component/render".
func WithEndpoint(path string) Option {
	return func(o *options) {
		o.endpoint = path
	}
}

// WithCablePath sets the path of the WebSocket channel. Empty disables it.
// Defaults to "/live_component/cable".
func WithCablePath(path string) Option {
	return func(o *options) {
		o.cable = path
	}
}

// WithLogger sets the handler's logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.server = append(o.server, server.WithLogger(l))
	}
}

// WithFrameCodec sets the channel framing.
func WithFrameCodec(c encoding.FrameCodec) Option {
	return func(o *options) {
		o.server = append(o.server, server.WithFrameCodec(c))
	}
}

// Mount creates a render handler and mounts it on an Echo instance.
//
//	e := echo.New()
//	lcecho.Mount(e, renderer)
//
//	// With options:
//	lcecho.Mount(e, renderer, lcecho.WithCablePath(""))
func Mount(e *echo.Echo, r server.Renderer, opts ...Option) *server.Handler {
	h, o := newHandler(r, opts)
	e.POST(o.endpoint, echo.WrapHandler(h))
	if o.cable != "" {
		e.GET(o.cable, echo.WrapHandler(h.Cable()))
	}
	return h
}

// MountGroup creates a render handler and mounts it on an Echo group.
// This allows the endpoints to share middleware with the group (auth,
// logging, etc.).
//
//	g := e.Group("/app", authMiddleware)
//	lcecho.MountGroup(g, renderer)
func MountGroup(g *echo.Group, r server.Renderer, opts ...Option) *server.Handler {
	h, o := newHandler(r, opts)
	g.POST(o.endpoint, echo.WrapHandler(h))
	if o.cable != "" {
		g.GET(o.cable, echo.WrapHandler(h.Cable()))
	}
	return h
}

func newHandler(r server.Renderer, opts []Option) (*server.Handler, *options) {
	o := &options{
		endpoint: livecomponent.DefaultEndpoint,
		cable:    server.DefaultCableEndpoint,
	}
	for _, opt := range opts {
		opt(o)
	}
	return server.New(r, o.server...), o
}

// Render writes a templ component to the Echo response.
//
//	func handler(c echo.Context) error {
//	    return lcecho.Render(c, page())
//	}
func Render(c echo.Context, component templ.Component) error {
	c.Response().Header().Set("Content-Type", "text/html; charset=utf-8")
	return component.Render(c.Request().Context(), c.Response())
}
