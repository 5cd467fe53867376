package livecomponent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/livecomponent/livecomponent/lib/encoding"
)

// renderBody is the JSON body of a render request.
type renderBody struct {
	Payload string `json:"payload"`
}

// HTTPTransport posts every render request to one endpoint.
type HTTPTransport struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
	metrics  *Metrics
}

// NewHTTPTransport creates a transport for the endpoint set with WithEndpoint
// (default "/live_component/render"), resolved against WithBaseURL.
func NewHTTPTransport(opts ...Option) *HTTPTransport {
	o := buildOptions(opts)

	endpoint := o.endpoint
	if o.baseURL != "" {
		if base, err := url.Parse(o.baseURL); err == nil {
			if ref, err := url.Parse(o.endpoint); err == nil {
				endpoint = base.ResolveReference(ref).String()
			}
		}
	}

	return &HTTPTransport{
		endpoint: endpoint,
		client:   o.client,
		logger:   o.logger,
		metrics:  o.metrics,
	}
}

// Endpoint returns the address every request is sent to.
func (t *HTTPTransport) Endpoint() string {
	return t.endpoint
}

// Start is a no-op.
func (t *HTTPTransport) Start(ctx context.Context) error {
	return nil
}

// Render posts {"payload": <encoded request>} and decodes the response body.
// Any non-2xx status is a transport failure.
func (t *HTTPTransport) Render(ctx context.Context, req *RenderRequest) (html string, err error) {
	start := time.Now()
	defer func() { t.metrics.observeRender("http", start, err) }()

	payload, err := EncodeRequest(req)
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(renderBody{Payload: payload})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTransport, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/html")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %w", ErrTransport, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %s returned %d", ErrTransport, t.endpoint, resp.StatusCode)
	}

	t.logger.Debug("http render", "endpoint", t.endpoint, "status", resp.StatusCode, "bytes", len(data))
	return decodeResponse(string(data))
}

// ChannelTransport multiplexes render requests over one persistent Channel.
// Each request carries a fresh request_id and responses are matched to
// requests by that id alone, so they may arrive in any order.
type ChannelTransport struct {
	channel Channel
	logger  *slog.Logger
	metrics *Metrics

	startOnce sync.Once
	startErr  error

	mu      sync.Mutex
	pending map[string]chan encoding.Message
}

// NewChannelTransport wraps ch. Call Start before Render.
func NewChannelTransport(ch Channel, opts ...Option) *ChannelTransport {
	o := buildOptions(opts)
	return &ChannelTransport{
		channel: ch,
		logger:  o.logger,
		metrics: o.metrics,
		pending: make(map[string]chan encoding.Message),
	}
}

// Start subscribes to the channel. Later calls return the first result.
func (t *ChannelTransport) Start(ctx context.Context) error {
	t.startOnce.Do(func() {
		if err := t.channel.Subscribe(ctx, t.receive); err != nil {
			t.startErr = fmt.Errorf("%w: subscribe: %w", ErrTransport, err)
		}
	})
	return t.startErr
}

// Render sends {request_id, payload} and waits for the response carrying the
// same request_id. If ctx is done first the request is forgotten and a late
// response is dropped. If the channel ends first the render fails with
// ErrTransport.
func (t *ChannelTransport) Render(ctx context.Context, req *RenderRequest) (html string, err error) {
	start := time.Now()
	defer func() { t.metrics.observeRender("channel", start, err) }()

	payload, err := EncodeRequest(req)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	reply := make(chan encoding.Message, 1)

	t.mu.Lock()
	t.pending[id] = reply
	t.mu.Unlock()
	t.metrics.pendingAdd(1)
	defer t.take(id)

	if err := t.channel.Send(ctx, encoding.Message{RequestID: id, Payload: payload}); err != nil {
		return "", fmt.Errorf("%w: send: %w", ErrTransport, err)
	}

	select {
	case msg := <-reply:
		return replyResult(msg)
	case <-t.channel.Done():
		// a reply may have been handed over just before the channel ended
		select {
		case msg := <-reply:
			return replyResult(msg)
		default:
		}
		return "", t.closedErr()
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func replyResult(msg encoding.Message) (string, error) {
	if msg.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrRenderFailed, msg.Error)
	}
	return decodeResponse(msg.Payload)
}

func (t *ChannelTransport) closedErr() error {
	if err := t.channel.Err(); err != nil {
		return fmt.Errorf("%w: channel closed: %w", ErrTransport, err)
	}
	return fmt.Errorf("%w: channel closed", ErrTransport)
}

// Pending returns the number of requests waiting for a response.
func (t *ChannelTransport) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

func (t *ChannelTransport) take(id string) (chan encoding.Message, bool) {
	t.mu.Lock()
	reply, ok := t.pending[id]
	delete(t.pending, id)
	t.mu.Unlock()
	if ok {
		t.metrics.pendingAdd(-1)
	}
	return reply, ok
}

func (t *ChannelTransport) receive(msg encoding.Message) {
	reply, ok := t.take(msg.RequestID)
	if !ok {
		t.metrics.droppedInc()
		t.logger.Warn("dropping channel response with no pending request", "request_id", msg.RequestID)
		return
	}
	reply <- msg
}
