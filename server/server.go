// Package server implements the server side of the render protocol: an HTTP
// endpoint and a WebSocket channel that decode render requests, hand them to
// a Renderer and send back the encoded markup.
//
//	h := server.New(server.RendererFunc(func(ctx context.Context, req *livecomponent.RenderRequest) (templ.Component, error) {
//	    return components.Lookup(req.State)
//	}))
//	mux := http.NewServeMux()
//	server.Mount(mux, h)
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/a-h/templ"
	"github.com/gorilla/websocket"

	"github.com/livecomponent/livecomponent"
	"github.com/livecomponent/livecomponent/lib/encoding"
)

// DefaultCableEndpoint is where Mount serves the WebSocket channel.
const DefaultCableEndpoint = "/live_component/cable"

// ErrBadRequest marks requests whose body could not be read.
var ErrBadRequest = errors.New("server: bad request")

// Renderer turns a decoded render request into markup. The returned component
// must render exactly one live component root carrying its new data-state.
type Renderer interface {
	Render(ctx context.Context, req *livecomponent.RenderRequest) (templ.Component, error)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, req *livecomponent.RenderRequest) (templ.Component, error)

// Render calls f.
func (f RendererFunc) Render(ctx context.Context, req *livecomponent.RenderRequest) (templ.Component, error) {
	return f(ctx, req)
}

// Option configures a Handler.
type Option func(*options)

type options struct {
	logger      *slog.Logger
	codec       encoding.FrameCodec
	checkOrigin func(r *http.Request) bool
	maxBody     int64
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithFrameCodec sets the framing of channel messages. It must match the
// clients' codec. Defaults to JSON text frames.
func WithFrameCodec(c encoding.FrameCodec) Option {
	return func(o *options) {
		o.codec = c
	}
}

// WithCheckOrigin sets the WebSocket origin check. Defaults to gorilla's
// same-origin check.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(o *options) {
		o.checkOrigin = fn
	}
}

// WithMaxBodySize limits the size of an HTTP render request body.
// Defaults to 4 MiB.
func WithMaxBodySize(n int64) Option {
	return func(o *options) {
		o.maxBody = n
	}
}

// Handler serves render requests.
type Handler struct {
	renderer Renderer
	logger   *slog.Logger
	codec    encoding.FrameCodec
	upgrader websocket.Upgrader
	maxBody  int64

	// OnError writes the response for a failed HTTP render. Customize this to
	// handle errors appropriately for your application.
	OnError func(w http.ResponseWriter, r *http.Request, err error)
}

// New creates a handler rendering through r.
func New(r Renderer, opts ...Option) *Handler {
	o := options{
		logger:  slog.Default(),
		codec:   encoding.JSONFrames,
		maxBody: 4 << 20,
	}
	for _, opt := range opts {
		opt(&o)
	}

	h := &Handler{
		renderer: r,
		logger:   o.logger,
		codec:    o.codec,
		upgrader: websocket.Upgrader{CheckOrigin: o.checkOrigin},
		maxBody:  o.maxBody,
	}

	h.OnError = func(w http.ResponseWriter, r *http.Request, err error) {
		switch {
		case errors.Is(err, ErrBadRequest), errors.Is(err, encoding.ErrInvalidFormat):
			http.Error(w, "Bad request", http.StatusBadRequest)
		case livecomponent.IsNotFound(err):
			http.Error(w, "Not found", http.StatusNotFound)
		default:
			http.Error(w, "Internal error", http.StatusInternalServerError)
		}
	}

	return h
}

// Mount registers the HTTP endpoint at livecomponent.DefaultEndpoint and the
// channel at DefaultCableEndpoint.
func Mount(mux *http.ServeMux, h *Handler) {
	mux.Handle(livecomponent.DefaultEndpoint, h)
	mux.Handle(DefaultCableEndpoint, h.Cable())
}

// Render writes a templ component to the HTTP response. Use it for the pages
// that host live components:
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//	    server.Render(w, r, page())
//	}
func Render(w http.ResponseWriter, r *http.Request, component templ.Component) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return component.Render(r.Context(), w)
}

// Render decodes a wire payload, renders it and returns the encoded response:
// the markup wrapped in a <template> element, gzip compressed and base64
// encoded.
func (h *Handler) Render(ctx context.Context, wire string) (string, error) {
	req, err := livecomponent.DecodeRequest(wire)
	if err != nil {
		return "", err
	}

	c, err := h.renderer.Render(ctx, req)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	buf.WriteString("<template>")
	if err := c.Render(ctx, &buf); err != nil {
		return "", fmt.Errorf("server: render: %w", err)
	}
	buf.WriteString("</template>")

	return encoding.Encode(buf.String())
}

// ServeHTTP handles POST {"payload": "..."} and writes the encoded response.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		Payload string `json:"payload"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBody)).Decode(&body); err != nil {
		h.fail(w, r, fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}

	out, err := h.Render(r.Context(), body.Payload)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, out)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("render failed", "path", r.URL.Path, "error", err)
	h.OnError(w, r, err)
}

// Cable returns the WebSocket channel handler. Every inbound message is
// rendered on its own goroutine; the reply carries the request's id and either
// the encoded payload or an error string.
func (h *Handler) Cable() http.Handler {
	frameType := websocket.TextMessage
	if h.codec.Binary() {
		frameType = websocket.BinaryMessage
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn("websocket upgrade failed", "error", err)
			return
		}
		defer conn.Close()
		h.logger.Debug("channel subscribed", "channel", r.URL.Query().Get("channel"), "remote", r.RemoteAddr)

		ctx, cancel := context.WithCancel(r.Context())
		var (
			wg      sync.WaitGroup
			writeMu sync.Mutex
		)

		reply := func(msg encoding.Message) {
			data, err := h.codec.Marshal(msg)
			if err != nil {
				h.logger.Error("channel marshal failed", "request_id", msg.RequestID, "error", err)
				return
			}
			writeMu.Lock()
			defer writeMu.Unlock()
			if err := conn.WriteMessage(frameType, data); err != nil {
				h.logger.Debug("channel write failed", "request_id", msg.RequestID, "error", err)
			}
		}

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				break
			}

			var msg encoding.Message
			if err := h.codec.Unmarshal(data, &msg); err != nil {
				h.logger.Warn("channel dropped undecodable frame", "error", err)
				continue
			}

			wg.Add(1)
			go func() {
				defer wg.Done()
				out := encoding.Message{RequestID: msg.RequestID}
				payload, err := h.Render(ctx, msg.Payload)
				if err != nil {
					h.logger.Error("channel render failed", "request_id", msg.RequestID, "error", err)
					out.Error = err.Error()
				} else {
					out.Payload = payload
				}
				reply(out)
			}()
		}

		cancel()
		wg.Wait()
	})
}
