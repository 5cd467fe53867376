// Package encoding implements the wire codec shared by the transports and the
// render endpoint.
//
// A payload is UTF-8 text (usually a JSON document) that is gzip compressed and
// then base64 encoded so it can travel inside a JSON string or a channel frame:
//
//	text -> gzip -> base64
//
// Encoding always compresses. Decoding is lenient: base64 input is decoded and
// decompressed only when it holds a gzip stream, and input that is not base64
// at all (test fixtures, pre-formed mocks, plain HTML) is returned as-is.
package encoding

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Sentinel errors for payload operations.
var (
	ErrInvalidFormat = errors.New("encoding: invalid payload format")
)

// gzipMagic is the two byte header every gzip stream starts with.
var gzipMagic = []byte{0x1F, 0x8B}

// Encode compresses text with gzip and returns the base64 encoded result.
func Encode(text string) (string, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := io.WriteString(zw, text); err != nil {
		return "", err
	}
	if err := zw.Close(); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// EncodeJSON marshals v to JSON and encodes the resulting text.
func EncodeJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return Encode(string(data))
}

// Decode reverses Encode.
//
// Base64 input that does not hold a gzip stream decodes to its bytes as text,
// provided they are valid UTF-8. Input that is not base64 is returned
// unchanged, so plain text can be fed through the same path.
func Decode(wire string) (string, error) {
	data, ok := decodeBase64(wire)
	if !ok {
		return wire, nil
	}
	if !IsCompressed(data) {
		if !utf8.Valid(data) {
			return wire, nil
		}
		return string(data), nil
	}

	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	defer zr.Close()

	out, err := io.ReadAll(zr)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return string(out), nil
}

// DecodeJSON decodes wire and unmarshals the resulting text into v.
func DecodeJSON(wire string, v any) error {
	text, err := Decode(wire)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return nil
}

// IsCompressed reports whether data starts with the gzip magic number.
func IsCompressed(data []byte) bool {
	return bytes.HasPrefix(data, gzipMagic)
}

// decodeBase64 accepts padded and unpadded standard base64. Line breaks are
// ignored since some encoders wrap output at 60 columns.
func decodeBase64(s string) ([]byte, bool) {
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' {
			return -1
		}
		return r
	}, s)
	if s == "" {
		return nil, false
	}

	if data, err := base64.StdEncoding.DecodeString(s); err == nil {
		return data, true
	}
	if data, err := base64.RawStdEncoding.DecodeString(s); err == nil {
		return data, true
	}
	return nil, false
}
