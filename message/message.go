// Package message defines the WAMP basic profile messages and their wire form.
//
// Every message is a value of one of 20 variant types (Hello, Welcome, ...,
// Yield). A variant converts itself to a wire form with Marshal and is
// rebuilt from a received wire form with the matching UnmarshalX function:
//
//	pub := message.NewPublish(239714735, nil, "com.myapp.mytopic1", message.List{"Hello, world!"}, nil)
//	wire := pub.Marshal() // [16, 239714735, {}, "com.myapp.mytopic1", ["Hello, world!"]]
//
//	got, err := message.UnmarshalPublish(wire)
//
// A wire form is an ordered, heterogeneous []any whose element 0 is the
// integer Type. Turning wire forms into bytes is the job of the serializers in
// transport/codec; this package never touches bytes.
//
// Optional trailing Args and Kwargs follow a tail-trim rule: non-empty Kwargs
// emit both Args and Kwargs, non-empty Args emit Args only, otherwise both
// are omitted. Empty collections are treated as absent, so an empty Args list
// does not survive a round trip as an empty list; it comes back nil.
//
// Only Hello and Welcome validate their contents (announced roles). All other
// variants pass details, options, URIs and payloads through unchecked.
//
// All functions are pure and safe for concurrent use.
package message

// Dict is a WAMP dictionary (details, options, kwargs).
type Dict = map[string]any

// List is a WAMP list (args).
type List = []any

// ID is an opaque request, session, publication, subscription or
// registration identifier. Uniqueness is the router's concern.
type ID uint64

// URI names a topic, procedure, error or close reason.
type URI string

// Message is implemented by the 20 variant types of this package only.
type Message interface {
	// Type returns the fixed wire tag of the variant.
	Type() Type

	// Marshal returns the wire form: the tag followed by the variant's
	// fields in protocol order, with optional trailing fields trimmed.
	Marshal() []any

	message()
}

// Close reasons carried by ABORT and GOODBYE.
const (
	CloseNormal         URI = "wamp.close.normal"
	CloseGoodbyeAndOut  URI = "wamp.close.goodbye_and_out"
	CloseCloseRealm     URI = "wamp.close.close_realm"
	CloseSystemShutdown URI = "wamp.close.system_shutdown"
)

// Error URIs carried by ABORT and ERROR.
const (
	ErrorProtocolViolation      URI = "wamp.error.protocol_violation"
	ErrorNotAuthorized          URI = "wamp.error.not_authorized"
	ErrorNoSuchRealm            URI = "wamp.error.no_such_realm"
	ErrorNoSuchRole             URI = "wamp.error.no_such_role"
	ErrorNoSuchSubscription     URI = "wamp.error.no_such_subscription"
	ErrorNoSuchRegistration     URI = "wamp.error.no_such_registration"
	ErrorNoSuchProcedure        URI = "wamp.error.no_such_procedure"
	ErrorProcedureAlreadyExists URI = "wamp.error.procedure_already_exists"
	ErrorInvalidURI             URI = "wamp.error.invalid_uri"
	ErrorInvalidArgument        URI = "wamp.error.invalid_argument"
)
