package codec

import (
	"errors"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Proto implements Codec by carrying the wire form as a structpb.ListValue.
//
// Payload handling:
//   - Args and kwargs must hold JSON-like values (bool, numbers, strings,
//     []any, map[string]any, nil)
//   - All numbers travel as doubles; integer fields are recovered exactly up
//     to 2^53, payload numbers come back as float64
type Proto struct{}

// Encode serializes a message to Protocol Buffer bytes
func (c Proto) Encode(msg Message) ([]byte, error) {
	list, err := structpb.NewList(msg.Marshal())
	if err != nil {
		return nil, errors.Join(ErrEncodeFailure, err)
	}
	data, err := proto.Marshal(list)
	if err != nil {
		return nil, errors.Join(ErrEncodeFailure, err)
	}
	return data, nil
}

// Decode deserializes Protocol Buffer bytes to a message
func (c Proto) Decode(data []byte) (Message, error) {
	var list structpb.ListValue
	if err := proto.Unmarshal(data, &list); err != nil {
		return nil, errors.Join(ErrDecodeFailure, err)
	}
	return decodeWire(list.AsSlice())
}

// ContentType returns the MIME type for Protocol Buffers
func (c Proto) ContentType() string {
	return "application/x-protobuf"
}

// Name returns the serializer identifier
func (c Proto) Name() string {
	return "protobuf"
}

// Compile-time check
var _ Codec = Proto{}
