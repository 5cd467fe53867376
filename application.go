package livecomponent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Application is the process-wide live component runtime: it owns the active
// transport and the rerender-on-submit listeners of the document it was
// started on.
type Application struct {
	doc       *Document
	transport Transport
	logger    *slog.Logger
}

var (
	appMu    sync.Mutex
	app      *Application
	appReady = make(chan struct{})
)

// Start creates the application, publishes it as the process-wide instance
// and mounts the document's live components.
//
// Start is idempotent: once an application exists it is returned unchanged
// and opts are ignored. Without WithTransport, an HTTPTransport pointed at the
// document's base URL is used. The transport is started before the
// application is published.
func Start(ctx context.Context, doc *Document, opts ...Option) (*Application, error) {
	appMu.Lock()
	if app != nil {
		existing := app
		appMu.Unlock()
		return existing, nil
	}

	o := buildOptions(opts)
	transport := o.transport
	if transport == nil {
		defaults := []Option{WithBaseURL(doc.BaseURL()), WithHTTPClient(doc.client), WithLogger(doc.logger)}
		transport = NewHTTPTransport(append(defaults, opts...)...)
	}
	if err := transport.Start(ctx); err != nil {
		appMu.Unlock()
		return nil, fmt.Errorf("livecomponent: start transport: %w", err)
	}

	a := &Application{doc: doc, transport: transport, logger: o.logger}
	doc.AddEventListener(EventSubmitStart, a.handleSubmitStart)
	doc.AddEventListener(EventSubmitEnd, a.handleSubmitEnd)
	doc.app.Store(a)

	app = a
	close(appReady)
	appMu.Unlock()

	a.logger.Info("live component application started", "transport", transportName(transport))
	return a, doc.Connect(ctx)
}

// Instance waits for Start and returns the application. It can be called
// before Start runs; every caller receives the same instance once it exists.
func Instance(ctx context.Context) (*Application, error) {
	appMu.Lock()
	ready := appReady
	appMu.Unlock()

	select {
	case <-ready:
		return Current(), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrNoApplication, ctx.Err())
	}
}

// Current returns the application, or nil before Start.
func Current() *Application {
	appMu.Lock()
	defer appMu.Unlock()
	return app
}

// Render sends req through the active transport.
func (a *Application) Render(ctx context.Context, req *RenderRequest) (string, error) {
	return a.transport.Render(ctx, req)
}

// Transport returns the active transport.
func (a *Application) Transport() Transport {
	return a.transport
}

// Document returns the document the application was started on.
func (a *Application) Document() *Document {
	return a.doc
}

func transportName(t Transport) string {
	switch t.(type) {
	case *HTTPTransport:
		return "http"
	case *ChannelTransport:
		return "channel"
	default:
		return fmt.Sprintf("%T", t)
	}
}
