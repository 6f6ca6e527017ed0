package payload

import (
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// ProtoJSON implements Codec for proto.Message payloads using the canonical
// protobuf JSON mapping, which is how the protobuf message codec carries
// arguments (as google.protobuf.Struct and ListValue).
type ProtoJSON struct{}

// Encode serializes a proto.Message with protojson. Other values are
// serialized as plain JSON so generic arguments can be transcoded.
func (ProtoJSON) Encode(v any) ([]byte, error) {
	if msg, ok := v.(proto.Message); ok {
		return protojson.Marshal(msg)
	}
	return JSON{}.Encode(v)
}

// Decode deserializes into a proto.Message target with protojson, and into
// any other target as plain JSON.
func (ProtoJSON) Decode(data []byte, v any) error {
	if msg, ok := v.(proto.Message); ok {
		return protojson.UnmarshalOptions{DiscardUnknown: true}.Unmarshal(data, msg)
	}
	return JSON{}.Decode(data, v)
}

// ContentType returns the MIME type of the protobuf message codec.
func (ProtoJSON) ContentType() string {
	return "application/x-protobuf"
}

// Compile-time check.
var _ Codec = ProtoJSON{}

func init() {
	Register(ProtoJSON{})
}
