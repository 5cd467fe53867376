package livecomponent

import (
	"log/slog"
	"net/http"
)

// DefaultEndpoint is the render endpoint used by HTTPTransport.
const DefaultEndpoint = "/live_component/render"

// Option configures a Document, an Application or a transport. Each
// constructor reads the options that apply to it and ignores the rest.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	transport Transport
	endpoint  string
	baseURL   string
	client    *http.Client
	metrics   *Metrics
	registry  *Registry
}

func buildOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.client == nil {
		o.client = http.DefaultClient
	}
	if o.endpoint == "" {
		o.endpoint = DefaultEndpoint
	}
	if o.registry == nil {
		o.registry = DefaultRegistry()
	}
	return o
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTransport sets the transport used by Start. Defaults to an
// HTTPTransport pointed at the document's base URL.
func WithTransport(t Transport) Option {
	return func(o *options) {
		o.transport = t
	}
}

// WithEndpoint sets the render endpoint path of HTTPTransport.
func WithEndpoint(path string) Option {
	return func(o *options) {
		o.endpoint = path
	}
}

// WithBaseURL sets the URL relative endpoints and form actions resolve
// against.
func WithBaseURL(u string) Option {
	return func(o *options) {
		o.baseURL = u
	}
}

// WithHTTPClient sets the client used for renders and form submissions.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.client = c
	}
}

// WithMetrics enables Prometheus metrics for transports.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithRegistry sets the class registry a Document attaches controllers from.
// Defaults to DefaultRegistry().
func WithRegistry(r *Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}
