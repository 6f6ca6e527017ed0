// Package payload converts between application types and the positional
// arguments (message.List) and keyword arguments (message.Dict) carried by
// WAMP messages.
//
// A payload codec round-trips the value through its own serialization, so
// struct tags, custom marshalers and proto field names behave the same way
// they would on the wire.
//
// Usage:
//
//	type Order struct {
//	    ID    string `json:"id" msgpack:"id"`
//	    Total int    `json:"total" msgpack:"total"`
//	}
//
//	kwargs, err := payload.EncodeKwargs(payload.JSON{}, order)
//	call := message.NewCall(id, nil, "com.shop.place", nil, kwargs)
//
//	var got Order
//	err = payload.DecodeKwargs(payload.JSON{}, call.Kwargs, &got)
package payload

import (
	"errors"
	"fmt"

	"github.com/rbaliyan/wamp/message"
)

// Payload errors
var (
	ErrEncode = errors.New("payload: encode failed")
	ErrDecode = errors.New("payload: decode failed")
)

// Codec encodes/decodes payload data.
// Implementations must be safe for concurrent use.
type Codec interface {
	// Encode serializes v to bytes.
	Encode(v any) ([]byte, error)

	// Decode deserializes bytes into v.
	// The target must be a pointer.
	Decode(data []byte, v any) error

	// ContentType returns the MIME type (e.g., "application/json").
	ContentType() string
}

// Default returns the default codec (JSON).
func Default() Codec {
	return JSON{}
}

// DecodeArgs fills v, usually a pointer to a slice, array or struct with a
// custom unmarshaler, from positional arguments.
func DecodeArgs(c Codec, args message.List, v any) error {
	if args == nil {
		args = message.List{}
	}
	return transcode(c, args, v)
}

// DecodeKwargs fills v, usually a pointer to a struct or map, from keyword
// arguments. Absent kwargs decode like an empty dictionary.
func DecodeKwargs(c Codec, kwargs message.Dict, v any) error {
	if kwargs == nil {
		kwargs = message.Dict{}
	}
	return transcode(c, kwargs, v)
}

// EncodeArgs serializes each value and returns the generic positional
// argument list.
func EncodeArgs(c Codec, values ...any) (message.List, error) {
	args := make(message.List, 0, len(values))
	for i, v := range values {
		data, err := c.Encode(v)
		if err != nil {
			return nil, fmt.Errorf("%w: argument %d: %w", ErrEncode, i, err)
		}
		var generic any
		if err := c.Decode(data, &generic); err != nil {
			return nil, fmt.Errorf("%w: argument %d: %w", ErrEncode, i, err)
		}
		args = append(args, normalize(generic))
	}
	return args, nil
}

// EncodeKwargs serializes v, which must encode to a map or object, and
// returns it as keyword arguments.
func EncodeKwargs(c Codec, v any) (message.Dict, error) {
	data, err := c.Encode(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	var generic map[string]any
	if err := c.Decode(data, &generic); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	kwargs, _ := normalize(generic).(map[string]any)
	return kwargs, nil
}

func transcode(c Codec, generic, v any) error {
	data, err := c.Encode(generic)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if err := c.Decode(data, v); err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return nil
}
