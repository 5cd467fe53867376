package encoding

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Message is a single frame on a render channel. Requests and responses share
// the shape; RequestID pairs a response with the request that caused it.
type Message struct {
	RequestID string `json:"request_id" msgpack:"request_id"`
	Payload   string `json:"payload" msgpack:"payload"`
	Error     string `json:"error,omitempty" msgpack:"error,omitempty"`
}

// FrameCodec converts channel messages to and from websocket frames.
type FrameCodec interface {
	// Name identifies the codec in configuration.
	Name() string

	// Binary reports whether frames are sent as binary (true) or text messages.
	Binary() bool

	Marshal(msg Message) ([]byte, error)
	Unmarshal(data []byte, msg *Message) error
}

// Built-in frame codecs.
var (
	// JSONFrames sends messages as JSON text frames. This is the default and
	// matches the channel protocol spoken by browser clients.
	JSONFrames FrameCodec = jsonFrames{}

	// MsgpackFrames sends messages as msgpack binary frames.
	MsgpackFrames FrameCodec = msgpackFrames{}
)

// FrameCodecByName returns the codec registered under name ("json" or "msgpack").
// An empty name selects JSONFrames.
func FrameCodecByName(name string) (FrameCodec, error) {
	switch name {
	case "", JSONFrames.Name():
		return JSONFrames, nil
	case MsgpackFrames.Name():
		return MsgpackFrames, nil
	default:
		return nil, fmt.Errorf("encoding: unknown frame codec %q", name)
	}
}

type jsonFrames struct{}

func (jsonFrames) Name() string { return "json" }
func (jsonFrames) Binary() bool { return false }

func (jsonFrames) Marshal(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

func (jsonFrames) Unmarshal(data []byte, msg *Message) error {
	if err := json.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return nil
}

type msgpackFrames struct{}

func (msgpackFrames) Name() string { return "msgpack" }
func (msgpackFrames) Binary() bool { return true }

func (msgpackFrames) Marshal(msg Message) ([]byte, error) {
	return msgpack.Marshal(&msg)
}

func (msgpackFrames) Unmarshal(data []byte, msg *Message) error {
	if err := msgpack.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return nil
}
