package livecomponent

import "errors"

// Sentinel errors for rendering and state propagation.
var (
	// ErrMalformedResponse is returned when a render response has no live
	// component root, or the root carries no serialized state.
	ErrMalformedResponse = errors.New("livecomponent: malformed render response")

	// ErrComponentNotFound is returned when a function reference names a
	// component id that is not mounted in the document.
	ErrComponentNotFound = errors.New("livecomponent: component not found")

	// ErrMethodNotFound is returned when a bound method names a method the
	// target controller never registered.
	ErrMethodNotFound = errors.New("livecomponent: method not found")

	ErrTransport     = errors.New("livecomponent: transport failure")
	ErrRenderFailed  = errors.New("livecomponent: server failed to render")
	ErrInvalidState  = errors.New("livecomponent: invalid serialized state")
	ErrNotMounted    = errors.New("livecomponent: element is not a mounted live component")
	ErrNoApplication = errors.New("livecomponent: application not started")
)

// IsMalformedResponse checks if err is a protocol error caused by the server
// response.
func IsMalformedResponse(err error) bool {
	return errors.Is(err, ErrMalformedResponse)
}

// IsNotFound checks if err is a missing component or missing method error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrComponentNotFound) || errors.Is(err, ErrMethodNotFound)
}

// IsTransportError checks if err came from the transport, including renders
// the server reported as failed.
func IsTransportError(err error) bool {
	return errors.Is(err, ErrTransport) || errors.Is(err, ErrRenderFailed)
}
