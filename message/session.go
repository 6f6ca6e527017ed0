package message

// Hello is sent by a client to open a session attached to a realm. Details
// must announce at least one client role under "roles".
type Hello struct {
	Realm   URI
	Details Dict
}

// NewHello validates the announced roles and builds a HELLO.
func NewHello(realm URI, details Dict) (Hello, error) {
	if _, err := roles(details, clientRoles); err != nil {
		return Hello{}, err
	}
	return Hello{Realm: realm, Details: details}, nil
}

func (Hello) Type() Type { return HELLO }
func (Hello) message()   {}

func (m Hello) Marshal() []any {
	return []any{int(HELLO), string(m.Realm), dictOrEmpty(m.Details)}
}

// Roles returns the announced client roles, sorted.
func (m Hello) Roles() []Role {
	r, _ := roles(m.Details, clientRoles)
	return r
}

// UnmarshalHello decodes [HELLO, Realm|uri, Details|dict].
func UnmarshalHello(wire []any) (Hello, error) {
	if err := checkFrame(wire, HELLO, 3); err != nil {
		return Hello{}, err
	}
	realm, err := readURI(wire, 1, "realm")
	if err != nil {
		return Hello{}, err
	}
	details, err := readDict(wire, 2, "details")
	if err != nil {
		return Hello{}, err
	}
	return NewHello(realm, details)
}

// Welcome is sent by a router to accept a client. Details must announce at
// least one router role under "roles".
type Welcome struct {
	Session ID
	Details Dict
}

// NewWelcome validates the announced roles and builds a WELCOME.
func NewWelcome(session ID, details Dict) (Welcome, error) {
	if _, err := roles(details, routerRoles); err != nil {
		return Welcome{}, err
	}
	return Welcome{Session: session, Details: details}, nil
}

func (Welcome) Type() Type { return WELCOME }
func (Welcome) message()   {}

func (m Welcome) Marshal() []any {
	return []any{int(WELCOME), uint64(m.Session), dictOrEmpty(m.Details)}
}

// Roles returns the announced router roles, sorted.
func (m Welcome) Roles() []Role {
	r, _ := roles(m.Details, routerRoles)
	return r
}

// UnmarshalWelcome decodes [WELCOME, Session|id, Details|dict].
func UnmarshalWelcome(wire []any) (Welcome, error) {
	if err := checkFrame(wire, WELCOME, 3); err != nil {
		return Welcome{}, err
	}
	session, err := readID(wire, 1, "session")
	if err != nil {
		return Welcome{}, err
	}
	details, err := readDict(wire, 2, "details")
	if err != nil {
		return Welcome{}, err
	}
	return NewWelcome(session, details)
}

// Abort is sent by either peer to abort session opening.
type Abort struct {
	Details Dict
	Reason  URI
}

func NewAbort(details Dict, reason URI) Abort {
	return Abort{Details: dictOrEmpty(details), Reason: reason}
}

func (Abort) Type() Type { return ABORT }
func (Abort) message()   {}

func (m Abort) Marshal() []any {
	return []any{int(ABORT), dictOrEmpty(m.Details), string(m.Reason)}
}

// UnmarshalAbort decodes [ABORT, Details|dict, Reason|uri].
func UnmarshalAbort(wire []any) (Abort, error) {
	if err := checkFrame(wire, ABORT, 3); err != nil {
		return Abort{}, err
	}
	details, err := readDict(wire, 1, "details")
	if err != nil {
		return Abort{}, err
	}
	reason, err := readURI(wire, 2, "reason")
	if err != nil {
		return Abort{}, err
	}
	return NewAbort(details, reason), nil
}

// Goodbye closes an established session. The receiving peer echoes it.
type Goodbye struct {
	Details Dict
	Reason  URI
}

func NewGoodbye(details Dict, reason URI) Goodbye {
	return Goodbye{Details: dictOrEmpty(details), Reason: reason}
}

func (Goodbye) Type() Type { return GOODBYE }
func (Goodbye) message()   {}

func (m Goodbye) Marshal() []any {
	return []any{int(GOODBYE), dictOrEmpty(m.Details), string(m.Reason)}
}

// UnmarshalGoodbye decodes [GOODBYE, Details|dict, Reason|uri].
func UnmarshalGoodbye(wire []any) (Goodbye, error) {
	if err := checkFrame(wire, GOODBYE, 3); err != nil {
		return Goodbye{}, err
	}
	details, err := readDict(wire, 1, "details")
	if err != nil {
		return Goodbye{}, err
	}
	reason, err := readURI(wire, 2, "reason")
	if err != nil {
		return Goodbye{}, err
	}
	return NewGoodbye(details, reason), nil
}

// Error is the error reply to a SUBSCRIBE, UNSUBSCRIBE, PUBLISH, REGISTER,
// UNREGISTER, CALL or INVOCATION request.
type Error struct {
	RequestType Type
	RequestID   ID
	Details     Dict
	Error       URI
	Args        List
	Kwargs      Dict
}

// NewError builds an ERROR reply. requestType is not checked here, but
// UnmarshalError only accepts the basic-profile types, so an Error built with
// any other request type can be sent but not decoded by a peer.
func NewError(requestType Type, requestID ID, details Dict, err URI, args List, kwargs Dict) Error {
	return Error{
		RequestType: requestType,
		RequestID:   requestID,
		Details:     dictOrEmpty(details),
		Error:       err,
		Args:        listOrNil(args),
		Kwargs:      dictOrNil(kwargs),
	}
}

func (Error) Type() Type { return ERROR }
func (Error) message()   {}

func (m Error) Marshal() []any {
	wire := []any{int(ERROR), int(m.RequestType), uint64(m.RequestID), dictOrEmpty(m.Details), string(m.Error)}
	return appendPayload(wire, m.Args, m.Kwargs)
}

// UnmarshalError decodes [ERROR, REQUEST.Type|int, REQUEST.Request|id,
// Details|dict, Error|uri, Arguments|list?, ArgumentsKw|dict?].
func UnmarshalError(wire []any) (Error, error) {
	if err := checkFrame(wire, ERROR, 5, 6, 7); err != nil {
		return Error{}, err
	}
	requestType, err := readType(wire, 1, "request type")
	if err != nil {
		return Error{}, err
	}
	requestID, err := readID(wire, 2, "request id")
	if err != nil {
		return Error{}, err
	}
	details, err := readDict(wire, 3, "details")
	if err != nil {
		return Error{}, err
	}
	uri, err := readURI(wire, 4, "error")
	if err != nil {
		return Error{}, err
	}
	args, kwargs, err := readPayload(wire, 5)
	if err != nil {
		return Error{}, err
	}
	return NewError(requestType, requestID, details, uri, args, kwargs), nil
}
