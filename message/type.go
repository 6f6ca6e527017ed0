package message

import (
	"fmt"
	"strings"
)

// Type identifies a message kind. The integer value is the wire discriminant
// carried as element 0 of every serialized message.
type Type int

// Basic profile message codes. Gaps between codes are reserved for
// advanced profile messages.
const (
	HELLO        Type = 1
	WELCOME      Type = 2
	ABORT        Type = 3
	GOODBYE      Type = 6
	ERROR        Type = 8
	PUBLISH      Type = 16
	PUBLISHED    Type = 17
	SUBSCRIBE    Type = 32
	SUBSCRIBED   Type = 33
	UNSUBSCRIBE  Type = 34
	UNSUBSCRIBED Type = 35
	EVENT        Type = 36
	CALL         Type = 48
	RESULT       Type = 50
	REGISTER     Type = 64
	REGISTERED   Type = 65
	UNREGISTER   Type = 66
	UNREGISTERED Type = 67
	INVOCATION   Type = 68
	YIELD        Type = 70
)

var typeNames = map[Type]string{
	HELLO:        "HELLO",
	WELCOME:      "WELCOME",
	ABORT:        "ABORT",
	GOODBYE:      "GOODBYE",
	ERROR:        "ERROR",
	PUBLISH:      "PUBLISH",
	PUBLISHED:    "PUBLISHED",
	SUBSCRIBE:    "SUBSCRIBE",
	SUBSCRIBED:   "SUBSCRIBED",
	UNSUBSCRIBE:  "UNSUBSCRIBE",
	UNSUBSCRIBED: "UNSUBSCRIBED",
	EVENT:        "EVENT",
	CALL:         "CALL",
	RESULT:       "RESULT",
	REGISTER:     "REGISTER",
	REGISTERED:   "REGISTERED",
	UNREGISTER:   "UNREGISTER",
	UNREGISTERED: "UNREGISTERED",
	INVOCATION:   "INVOCATION",
	YIELD:        "YIELD",
}

// types is ordered by code.
var types = []Type{
	HELLO, WELCOME, ABORT, GOODBYE, ERROR,
	PUBLISH, PUBLISHED, SUBSCRIBE, SUBSCRIBED, UNSUBSCRIBE, UNSUBSCRIBED, EVENT,
	CALL, RESULT, REGISTER, REGISTERED, UNREGISTER, UNREGISTERED, INVOCATION, YIELD,
}

// String returns the protocol name of the type, e.g. "SUBSCRIBE".
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Valid reports whether t is one of the basic profile codes.
func (t Type) Valid() bool {
	_, ok := typeNames[t]
	return ok
}

// Types returns every known type in ascending code order.
func Types() []Type {
	out := make([]Type, len(types))
	copy(out, types)
	return out
}

// ParseType looks a type up by its protocol name (case-insensitive).
func ParseType(name string) (Type, error) {
	upper := strings.ToUpper(name)
	for t, n := range typeNames {
		if n == upper {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown message type %q", name)
}
