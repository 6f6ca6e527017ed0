package codec

import (
	"errors"

	"github.com/vmihailenco/msgpack/v5"
)

// MsgPack implements Codec using MessagePack serialization.
// MessagePack is a binary format that's more compact than JSON
// while maintaining schema-less flexibility.
//
// Benefits:
//   - Smaller frames than JSON
//   - Faster encoding/decoding
//   - Supports binary data natively
type MsgPack struct{}

// Encode serializes a message to a MessagePack array
func (c MsgPack) Encode(msg Message) ([]byte, error) {
	data, err := msgpack.Marshal(msg.Marshal())
	if err != nil {
		return nil, errors.Join(ErrEncodeFailure, err)
	}
	return data, nil
}

// Decode deserializes a MessagePack array to a message
func (c MsgPack) Decode(data []byte) (Message, error) {
	var wire []any
	if err := msgpack.Unmarshal(data, &wire); err != nil {
		return nil, errors.Join(ErrDecodeFailure, err)
	}
	return decodeWire(wire)
}

// ContentType returns the MIME type for MessagePack
func (c MsgPack) ContentType() string {
	return "application/msgpack"
}

// Name returns the WAMP serializer identifier
func (c MsgPack) Name() string {
	return "msgpack"
}

// Compile-time check
var _ Codec = MsgPack{}
