// Package cable is a WebSocket client for the live component render channel.
//
// A Client carries encoding.Message frames in both directions over one
// connection. It satisfies livecomponent.Channel, so it can back a
// ChannelTransport:
//
//	client, err := cable.Dial(ctx, "wss://example.com/live_component/cable")
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	transport := livecomponent.NewChannelTransport(client)
package cable

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/livecomponent/livecomponent/lib/encoding"
)

// DefaultChannel is the channel name sent when dialing.
const DefaultChannel = "LiveComponentChannel"

// Errors returned by Client.
var (
	ErrClosed     = errors.New("cable: connection closed")
	ErrSubscribed = errors.New("cable: already subscribed")
	ErrNilHandler = errors.New("cable: nil handler")
)

// Option configures Dial.
type Option func(*options)

type options struct {
	dialer       *websocket.Dialer
	header       http.Header
	channel      string
	codec        encoding.FrameCodec
	logger       *slog.Logger
	writeTimeout time.Duration
}

// WithDialer sets the websocket dialer. Defaults to websocket.DefaultDialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(o *options) {
		o.dialer = d
	}
}

// WithHeader adds request headers to the handshake (cookies, auth).
func WithHeader(h http.Header) Option {
	return func(o *options) {
		o.header = h
	}
}

// WithChannelName sets the channel query parameter. Empty leaves it out.
func WithChannelName(name string) Option {
	return func(o *options) {
		o.channel = name
	}
}

// WithFrameCodec sets how messages are framed. Defaults to JSON text frames.
func WithFrameCodec(c encoding.FrameCodec) Option {
	return func(o *options) {
		o.codec = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithWriteTimeout bounds each write when the caller's context has no
// deadline. Defaults to 5s.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) {
		o.writeTimeout = d
	}
}

// Client is a connected render channel.
type Client struct {
	conn   *websocket.Conn
	codec  encoding.FrameCodec
	logger *slog.Logger
	wt     time.Duration

	writeMu sync.Mutex

	mu         sync.Mutex
	subscribed bool

	done      chan struct{}
	closeOnce sync.Once
	err       error
}

// Dial connects to rawURL. The channel name is added as the "channel" query
// parameter.
func Dial(ctx context.Context, rawURL string, opts ...Option) (*Client, error) {
	o := options{
		dialer:       websocket.DefaultDialer,
		channel:      DefaultChannel,
		codec:        encoding.JSONFrames,
		logger:       slog.Default(),
		writeTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("cable: parse url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	if o.channel != "" {
		q := u.Query()
		q.Set("channel", o.channel)
		u.RawQuery = q.Encode()
	}

	conn, resp, err := o.dialer.DialContext(ctx, u.String(), o.header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("cable: dial %s: %w (status %d)", u.Redacted(), err, resp.StatusCode)
		}
		return nil, fmt.Errorf("cable: dial %s: %w", u.Redacted(), err)
	}

	o.logger.Debug("cable connected", "url", u.Redacted(), "codec", o.codec.Name())
	return &Client{
		conn:   conn,
		codec:  o.codec,
		logger: o.logger,
		wt:     o.writeTimeout,
		done:   make(chan struct{}),
	}, nil
}

// Subscribe starts reading frames and passes every decoded message to
// handler. It can be called once. Frames that fail to decode are logged and
// skipped.
func (c *Client) Subscribe(ctx context.Context, handler func(msg encoding.Message)) error {
	if handler == nil {
		return ErrNilHandler
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subscribed {
		return ErrSubscribed
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	c.subscribed = true
	go c.readLoop(handler)
	return nil
}

func (c *Client) readLoop(handler func(msg encoding.Message)) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				select {
				case <-c.done:
				default:
					c.logger.Warn("cable read failed", "error", err)
				}
			}
			c.shutdown(err)
			return
		}
		if len(data) == 0 {
			continue // keepalive
		}

		var msg encoding.Message
		if err := c.codec.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("cable dropped undecodable frame", "error", err, "bytes", len(data))
			continue
		}
		handler(msg)
	}
}

// Send writes msg as one frame.
func (c *Client) Send(ctx context.Context, msg encoding.Message) error {
	data, err := c.codec.Marshal(msg)
	if err != nil {
		return fmt.Errorf("cable: marshal: %w", err)
	}
	frameType := websocket.TextMessage
	if c.codec.Binary() {
		frameType = websocket.BinaryMessage
	}

	select {
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.wt)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteMessage(frameType, data); err != nil {
		// a write deadline cannot be recovered from
		c.shutdown(err)
		return fmt.Errorf("cable: write: %w", err)
	}
	return nil
}

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns why the connection ended, or nil while it is open.
func (c *Client) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Close sends a close frame and closes the connection.
func (c *Client) Close() error {
	c.writeMu.Lock()
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	c.shutdown(ErrClosed)
	return nil
}

func (c *Client) shutdown(cause error) {
	c.closeOnce.Do(func() {
		c.err = cause
		close(c.done)
		c.conn.Close()
	})
}
