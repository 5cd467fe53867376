package livecomponent

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"sync"
)

// MockTransport is a Transport for tests. RenderFunc produces the response
// HTML for each request; every request is recorded.
//
//	mock := &livecomponent.MockTransport{
//	    RenderFunc: func(req *livecomponent.RenderRequest) (string, error) {
//	        return livecomponent.TestResponse("", "c1", req.State, "<p>updated</p>"), nil
//	    },
//	}
type MockTransport struct {
	RenderFunc func(req *RenderRequest) (string, error)

	mu       sync.Mutex
	requests []*RenderRequest
	starts   int
}

// Start counts the call.
func (m *MockTransport) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts++
	return nil
}

// Render records req and returns the result of RenderFunc. The request goes
// through the wire encoding first, so RenderFunc sees what a server would.
func (m *MockTransport) Render(ctx context.Context, req *RenderRequest) (string, error) {
	wire, err := EncodeRequest(req)
	if err != nil {
		return "", err
	}
	decoded, err := DecodeRequest(wire)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	m.requests = append(m.requests, decoded)
	fn := m.RenderFunc
	m.mu.Unlock()

	if fn == nil {
		return "", fmt.Errorf("%w: MockTransport.RenderFunc is nil", ErrTransport)
	}
	return fn(decoded)
}

// Requests returns the recorded requests in order.
func (m *MockTransport) Requests() []*RenderRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*RenderRequest(nil), m.requests...)
}

// Starts returns how many times Start was called.
func (m *MockTransport) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

// NewTestState returns a state holding props.
func NewTestState(props Props) *State {
	s := NewState()
	for k, v := range props {
		s.Props[k] = v
	}
	return s
}

// NewTestDocument parses body into a full page and wraps it.
func NewTestDocument(body string, opts ...Option) (*Document, error) {
	return ParseDocument(strings.NewReader("<!DOCTYPE html><html><head></head><body>"+body+"</body></html>"), opts...)
}

// TestMarkup returns the markup of a live component element with id, an
// optional controller identifier, state serialized into data-state and inner
// as its content. A nil state leaves data-state out.
func TestMarkup(identifier, id string, state *State, inner string) string {
	var sb strings.Builder
	sb.WriteString(`<div data-livecomponent data-id="`)
	sb.WriteString(html.EscapeString(id))
	sb.WriteString(`"`)
	if identifier != "" {
		sb.WriteString(` data-controller="`)
		sb.WriteString(html.EscapeString(identifier))
		sb.WriteString(`" data-component="`)
		sb.WriteString(html.EscapeString(identifier))
		sb.WriteString(`"`)
	}
	if state != nil {
		data, err := json.Marshal(state)
		if err != nil {
			panic(fmt.Sprintf("livecomponent: TestMarkup: %v", err))
		}
		sb.WriteString(` data-state="`)
		sb.WriteString(html.EscapeString(string(data)))
		sb.WriteString(`"`)
	}
	sb.WriteString(">")
	sb.WriteString(inner)
	sb.WriteString("</div>")
	return sb.String()
}

// TestResponse returns a render response the way the server wraps it.
func TestResponse(identifier, id string, state *State, inner string) string {
	if state == nil {
		state = NewState()
	}
	return "<template>" + TestMarkup(identifier, id, state, inner) + "</template>"
}
