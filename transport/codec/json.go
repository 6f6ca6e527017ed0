package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// JSON implements Codec using JSON serialization.
// This is the default codec, providing human-readable output.
//
// Integers are decoded exactly (no float64 detour) and surface as int64,
// or uint64 above the int64 range. Other numbers surface as float64.
type JSON struct{}

// Encode serializes a message to a JSON array
func (c JSON) Encode(msg Message) ([]byte, error) {
	data, err := json.Marshal(msg.Marshal())
	if err != nil {
		return nil, errors.Join(ErrEncodeFailure, err)
	}
	return data, nil
}

// Decode deserializes a JSON array to a message
func (c JSON) Decode(data []byte) (Message, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var wire []any
	if err := dec.Decode(&wire); err != nil {
		return nil, errors.Join(ErrDecodeFailure, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.Join(ErrDecodeFailure, errors.New("trailing data after message"))
	}
	return decodeWire(wire)
}

// ContentType returns the MIME type for JSON
func (c JSON) ContentType() string {
	return "application/json"
}

// Name returns the WAMP serializer identifier
func (c JSON) Name() string {
	return "json"
}

// Compile-time check
var _ Codec = JSON{}
