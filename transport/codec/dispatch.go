package codec

import (
	"fmt"

	"github.com/rbaliyan/wamp/message"
)

// ErrUnknownType is returned by Unmarshal for a tag outside the basic profile.
var ErrUnknownType = fmt.Errorf("%w: unknown message type", message.ErrInvalidMessage)

type unmarshalFunc func([]any) (message.Message, error)

func as[M message.Message](fn func([]any) (M, error)) unmarshalFunc {
	return func(wire []any) (message.Message, error) {
		m, err := fn(wire)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
}

var unmarshalers = map[message.Type]unmarshalFunc{
	message.HELLO:        as(message.UnmarshalHello),
	message.WELCOME:      as(message.UnmarshalWelcome),
	message.ABORT:        as(message.UnmarshalAbort),
	message.GOODBYE:      as(message.UnmarshalGoodbye),
	message.ERROR:        as(message.UnmarshalError),
	message.PUBLISH:      as(message.UnmarshalPublish),
	message.PUBLISHED:    as(message.UnmarshalPublished),
	message.SUBSCRIBE:    as(message.UnmarshalSubscribe),
	message.SUBSCRIBED:   as(message.UnmarshalSubscribed),
	message.UNSUBSCRIBE:  as(message.UnmarshalUnsubscribe),
	message.UNSUBSCRIBED: as(message.UnmarshalUnsubscribed),
	message.EVENT:        as(message.UnmarshalEvent),
	message.CALL:         as(message.UnmarshalCall),
	message.RESULT:       as(message.UnmarshalResult),
	message.REGISTER:     as(message.UnmarshalRegister),
	message.REGISTERED:   as(message.UnmarshalRegistered),
	message.UNREGISTER:   as(message.UnmarshalUnregister),
	message.UNREGISTERED: as(message.UnmarshalUnregistered),
	message.INVOCATION:   as(message.UnmarshalInvocation),
	message.YIELD:        as(message.UnmarshalYield),
}

// Unmarshal routes a decoded wire form to the Unmarshal function of the
// variant named by its tag. The variant re-checks the tag itself.
func Unmarshal(wire []any) (message.Message, error) {
	if len(wire) == 0 {
		return nil, fmt.Errorf("%w: empty wire form", message.ErrInvalidLength)
	}
	t, ok := tagOf(wire[0])
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownType, wire[0])
	}
	fn, ok := unmarshalers[t]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, int(t))
	}
	return fn(wire)
}

// Marshal returns the wire form of m.
func Marshal(m message.Message) []any {
	return m.Marshal()
}

// tagOf reads element 0 after normalize has run, so only the integer kinds
// produced there need handling.
func tagOf(v any) (message.Type, bool) {
	switch n := v.(type) {
	case int:
		return message.Type(n), true
	case int64:
		return message.Type(n), true
	case uint64:
		return message.Type(n), true
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return message.Type(n), true
	case message.Type:
		return n, true
	}
	return 0, false
}
