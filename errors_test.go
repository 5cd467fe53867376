package livecomponent

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

var sentinels = []error{
	ErrMalformedResponse,
	ErrComponentNotFound,
	ErrMethodNotFound,
	ErrTransport,
	ErrRenderFailed,
	ErrInvalidState,
	ErrNotMounted,
	ErrNoApplication,
}

func TestSentinelErrors(t *testing.T) {
	for i, err1 := range sentinels {
		for j, err2 := range sentinels {
			if i != j && errors.Is(err1, err2) {
				t.Errorf("Sentinel errors should be distinct: %v and %v", err1, err2)
			}
		}
	}
}

func TestErrorMessages(t *testing.T) {
	for _, err := range sentinels {
		if !strings.HasPrefix(err.Error(), "livecomponent:") {
			t.Errorf("Error %q should start with 'livecomponent:'", err.Error())
		}
	}
}

func TestIsMalformedResponse(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		expect bool
	}{
		{"nil error", nil, false},
		{"ErrMalformedResponse", ErrMalformedResponse, true},
		{"wrapped", fmt.Errorf("render: %w", ErrMalformedResponse), true},
		{"ErrTransport", ErrTransport, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsMalformedResponse(tt.err); got != tt.expect {
				t.Errorf("IsMalformedResponse(%v) = %v, want %v", tt.err, got, tt.expect)
			}
		})
	}
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		expect bool
	}{
		{"nil error", nil, false},
		{"ErrComponentNotFound", ErrComponentNotFound, true},
		{"ErrMethodNotFound", ErrMethodNotFound, true},
		{"wrapped ErrComponentNotFound", fmt.Errorf("prop %q: %w", "onSave", ErrComponentNotFound), true},
		{"other error", errors.New("other error"), false},
		{"ErrMalformedResponse", ErrMalformedResponse, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotFound(tt.err); got != tt.expect {
				t.Errorf("IsNotFound(%v) = %v, want %v", tt.err, got, tt.expect)
			}
		})
	}
}

func TestIsTransportError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		expect bool
	}{
		{"nil error", nil, false},
		{"ErrTransport", ErrTransport, true},
		{"ErrRenderFailed", ErrRenderFailed, true},
		{"joined", fmt.Errorf("%w: %w", ErrTransport, errors.New("connection refused")), true},
		{"ErrInvalidState", ErrInvalidState, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransportError(tt.err); got != tt.expect {
				t.Errorf("IsTransportError(%v) = %v, want %v", tt.err, got, tt.expect)
			}
		})
	}
}
