// Package codec serializes WAMP messages to bytes and back.
//
// A codec turns the wire form produced by message.Message.Marshal into one
// transport frame, and a received frame back into a message by way of the
// tag-keyed dispatch in Unmarshal.
//
// Supported serializers:
//   - JSON (default, "json")
//   - MessagePack ("msgpack")
//   - Protocol Buffers struct values ("protobuf")
package codec

import (
	"errors"
	"sync"

	"github.com/rbaliyan/wamp/message"
)

// Codec errors
var (
	ErrEncodeFailure = errors.New("failed to encode message")
	ErrDecodeFailure = errors.New("failed to decode message")
	ErrUnknownCodec  = errors.New("unknown codec")
)

// Message is the message interface used by codecs
type Message = message.Message

// Codec handles message serialization/deserialization for peer transports.
// Implementations must be safe for concurrent use.
type Codec interface {
	// Encode serializes a message to bytes.
	// Returns an error wrapping ErrEncodeFailure if serialization fails.
	Encode(msg Message) ([]byte, error)

	// Decode deserializes one frame to a message.
	// Returns an error wrapping ErrDecodeFailure if the frame cannot be
	// parsed. Frames that parse but do not form a valid message also wrap
	// message.ErrInvalidMessage or message.ErrInvalidConstruction.
	Decode(data []byte) (Message, error)

	// ContentType returns the MIME type for this codec (e.g., "application/json").
	ContentType() string

	// Name returns the WAMP serializer identifier (e.g., "json", "msgpack").
	Name() string
}

// Default returns the default codec (JSON)
func Default() Codec {
	return JSON{}
}

var (
	mu       sync.RWMutex
	registry = map[string]Codec{}
)

func init() {
	Register(JSON{})
	Register(MsgPack{})
	Register(Proto{})
}

// Register adds a codec to the registry under its Name.
func Register(c Codec) {
	mu.Lock()
	defer mu.Unlock()
	registry[c.Name()] = c
}

// ByName returns the registered codec with the given name.
func ByName(name string) (Codec, error) {
	mu.RLock()
	defer mu.RUnlock()
	c, ok := registry[name]
	if !ok {
		return nil, errors.Join(ErrUnknownCodec, errors.New(name))
	}
	return c, nil
}
