package livecomponent

import (
	"encoding/json"
	"fmt"

	"github.com/livecomponent/livecomponent/lib/encoding"
)

// EncodeRequest serializes req to JSON and encodes it for the wire
// (gzip, then base64).
func EncodeRequest(req *RenderRequest) (string, error) {
	if req == nil {
		req = &RenderRequest{}
	}
	if req.State == nil {
		req.State = NewState()
	}
	data, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("livecomponent: marshal render request: %w", err)
	}
	return encoding.Encode(string(data))
}

// DecodeRequest decodes a wire payload into a render request. Uncompressed
// payloads are accepted.
func DecodeRequest(wire string) (*RenderRequest, error) {
	text, err := encoding.Decode(wire)
	if err != nil {
		return nil, err
	}
	req := &RenderRequest{}
	if err := json.Unmarshal([]byte(text), req); err != nil {
		return nil, fmt.Errorf("%w: %v", encoding.ErrInvalidFormat, err)
	}
	if req.State == nil {
		req.State = NewState()
	}
	if req.Reflexes == nil {
		req.Reflexes = []Reflex{}
	}
	return req, nil
}

// decodeResponse decodes a response payload into HTML text.
func decodeResponse(wire string) (string, error) {
	text, err := encoding.Decode(wire)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return text, nil
}
