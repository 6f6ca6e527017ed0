package message

// Call is sent by a caller to a dealer to invoke a procedure.
type Call struct {
	RequestID ID
	Options   Dict
	Procedure URI
	Args      List
	Kwargs    Dict
}

func NewCall(requestID ID, options Dict, procedure URI, args List, kwargs Dict) Call {
	return Call{
		RequestID: requestID,
		Options:   dictOrEmpty(options),
		Procedure: procedure,
		Args:      listOrNil(args),
		Kwargs:    dictOrNil(kwargs),
	}
}

func (Call) Type() Type { return CALL }
func (Call) message()   {}

func (m Call) Marshal() []any {
	wire := []any{int(CALL), uint64(m.RequestID), dictOrEmpty(m.Options), string(m.Procedure)}
	return appendPayload(wire, m.Args, m.Kwargs)
}

// UnmarshalCall decodes [CALL, Request|id, Options|dict, Procedure|uri,
// Arguments|list?, ArgumentsKw|dict?].
func UnmarshalCall(wire []any) (Call, error) {
	if err := checkFrame(wire, CALL, 4, 5, 6); err != nil {
		return Call{}, err
	}
	requestID, err := readID(wire, 1, "request id")
	if err != nil {
		return Call{}, err
	}
	options, err := readDict(wire, 2, "options")
	if err != nil {
		return Call{}, err
	}
	procedure, err := readURI(wire, 3, "procedure")
	if err != nil {
		return Call{}, err
	}
	args, kwargs, err := readPayload(wire, 4)
	if err != nil {
		return Call{}, err
	}
	return NewCall(requestID, options, procedure, args, kwargs), nil
}

// Result is the dealer's reply to a CALL.
type Result struct {
	RequestID ID
	Details   Dict
	Args      List
	Kwargs    Dict
}

func NewResult(requestID ID, details Dict, args List, kwargs Dict) Result {
	return Result{
		RequestID: requestID,
		Details:   dictOrEmpty(details),
		Args:      listOrNil(args),
		Kwargs:    dictOrNil(kwargs),
	}
}

func (Result) Type() Type { return RESULT }
func (Result) message()   {}

func (m Result) Marshal() []any {
	wire := []any{int(RESULT), uint64(m.RequestID), dictOrEmpty(m.Details)}
	return appendPayload(wire, m.Args, m.Kwargs)
}

// UnmarshalResult decodes [RESULT, CALL.Request|id, Details|dict,
// YIELD.Arguments|list?, YIELD.ArgumentsKw|dict?].
func UnmarshalResult(wire []any) (Result, error) {
	requestID, details, args, kwargs, err := readReply(wire, RESULT, "details")
	if err != nil {
		return Result{}, err
	}
	return NewResult(requestID, details, args, kwargs), nil
}

// Register is sent by a callee to offer a procedure.
type Register struct {
	RequestID ID
	Options   Dict
	Procedure URI
}

func NewRegister(requestID ID, options Dict, procedure URI) Register {
	return Register{RequestID: requestID, Options: dictOrEmpty(options), Procedure: procedure}
}

func (Register) Type() Type { return REGISTER }
func (Register) message()   {}

func (m Register) Marshal() []any {
	return []any{int(REGISTER), uint64(m.RequestID), dictOrEmpty(m.Options), string(m.Procedure)}
}

// UnmarshalRegister decodes [REGISTER, Request|id, Options|dict, Procedure|uri].
func UnmarshalRegister(wire []any) (Register, error) {
	requestID, options, procedure, err := readRequest(wire, REGISTER, "procedure")
	if err != nil {
		return Register{}, err
	}
	return NewRegister(requestID, options, procedure), nil
}

// Registered confirms a registration and carries the dealer's registration ID.
type Registered struct {
	RequestID      ID
	RegistrationID ID
}

func NewRegistered(requestID, registrationID ID) Registered {
	return Registered{RequestID: requestID, RegistrationID: registrationID}
}

func (Registered) Type() Type { return REGISTERED }
func (Registered) message()   {}

func (m Registered) Marshal() []any {
	return []any{int(REGISTERED), uint64(m.RequestID), uint64(m.RegistrationID)}
}

// UnmarshalRegistered decodes [REGISTERED, REGISTER.Request|id, Registration|id].
func UnmarshalRegistered(wire []any) (Registered, error) {
	requestID, registrationID, err := readIDPair(wire, REGISTERED, "registration id")
	if err != nil {
		return Registered{}, err
	}
	return NewRegistered(requestID, registrationID), nil
}

// Unregister withdraws a registration.
type Unregister struct {
	RequestID      ID
	RegistrationID ID
}

func NewUnregister(requestID, registrationID ID) Unregister {
	return Unregister{RequestID: requestID, RegistrationID: registrationID}
}

func (Unregister) Type() Type { return UNREGISTER }
func (Unregister) message()   {}

func (m Unregister) Marshal() []any {
	return []any{int(UNREGISTER), uint64(m.RequestID), uint64(m.RegistrationID)}
}

// UnmarshalUnregister decodes [UNREGISTER, Request|id, REGISTERED.Registration|id].
func UnmarshalUnregister(wire []any) (Unregister, error) {
	requestID, registrationID, err := readIDPair(wire, UNREGISTER, "registration id")
	if err != nil {
		return Unregister{}, err
	}
	return NewUnregister(requestID, registrationID), nil
}

// Unregistered confirms an unregistration.
type Unregistered struct {
	RequestID ID
}

func NewUnregistered(requestID ID) Unregistered {
	return Unregistered{RequestID: requestID}
}

func (Unregistered) Type() Type { return UNREGISTERED }
func (Unregistered) message()   {}

func (m Unregistered) Marshal() []any {
	return []any{int(UNREGISTERED), uint64(m.RequestID)}
}

// UnmarshalUnregistered decodes [UNREGISTERED, UNREGISTER.Request|id].
func UnmarshalUnregistered(wire []any) (Unregistered, error) {
	requestID, err := readAck(wire, UNREGISTERED)
	if err != nil {
		return Unregistered{}, err
	}
	return NewUnregistered(requestID), nil
}

// Invocation is sent by a dealer to the callee that registered the called
// procedure.
type Invocation struct {
	RequestID      ID
	RegistrationID ID
	Details        Dict
	Args           List
	Kwargs         Dict
}

func NewInvocation(requestID, registrationID ID, details Dict, args List, kwargs Dict) Invocation {
	return Invocation{
		RequestID:      requestID,
		RegistrationID: registrationID,
		Details:        dictOrEmpty(details),
		Args:           listOrNil(args),
		Kwargs:         dictOrNil(kwargs),
	}
}

func (Invocation) Type() Type { return INVOCATION }
func (Invocation) message()   {}

func (m Invocation) Marshal() []any {
	wire := []any{int(INVOCATION), uint64(m.RequestID), uint64(m.RegistrationID), dictOrEmpty(m.Details)}
	return appendPayload(wire, m.Args, m.Kwargs)
}

// UnmarshalInvocation decodes [INVOCATION, Request|id, REGISTERED.Registration|id,
// Details|dict, CALL.Arguments|list?, CALL.ArgumentsKw|dict?].
func UnmarshalInvocation(wire []any) (Invocation, error) {
	if err := checkFrame(wire, INVOCATION, 4, 5, 6); err != nil {
		return Invocation{}, err
	}
	requestID, err := readID(wire, 1, "request id")
	if err != nil {
		return Invocation{}, err
	}
	registrationID, err := readID(wire, 2, "registration id")
	if err != nil {
		return Invocation{}, err
	}
	details, err := readDict(wire, 3, "details")
	if err != nil {
		return Invocation{}, err
	}
	args, kwargs, err := readPayload(wire, 4)
	if err != nil {
		return Invocation{}, err
	}
	return NewInvocation(requestID, registrationID, details, args, kwargs), nil
}

// Yield is the callee's reply to an INVOCATION.
type Yield struct {
	RequestID ID
	Options   Dict
	Args      List
	Kwargs    Dict
}

func NewYield(requestID ID, options Dict, args List, kwargs Dict) Yield {
	return Yield{
		RequestID: requestID,
		Options:   dictOrEmpty(options),
		Args:      listOrNil(args),
		Kwargs:    dictOrNil(kwargs),
	}
}

func (Yield) Type() Type { return YIELD }
func (Yield) message()   {}

func (m Yield) Marshal() []any {
	wire := []any{int(YIELD), uint64(m.RequestID), dictOrEmpty(m.Options)}
	return appendPayload(wire, m.Args, m.Kwargs)
}

// UnmarshalYield decodes [YIELD, INVOCATION.Request|id, Options|dict,
// Arguments|list?, ArgumentsKw|dict?].
func UnmarshalYield(wire []any) (Yield, error) {
	requestID, options, args, kwargs, err := readReply(wire, YIELD, "options")
	if err != nil {
		return Yield{}, err
	}
	return NewYield(requestID, options, args, kwargs), nil
}

// readReply decodes the [t, Request|id, X|dict, Arguments|list?,
// ArgumentsKw|dict?] shape of RESULT and YIELD.
func readReply(wire []any, t Type, dictName string) (ID, Dict, List, Dict, error) {
	if err := checkFrame(wire, t, 3, 4, 5); err != nil {
		return 0, nil, nil, nil, err
	}
	requestID, err := readID(wire, 1, "request id")
	if err != nil {
		return 0, nil, nil, nil, err
	}
	d, err := readDict(wire, 2, dictName)
	if err != nil {
		return 0, nil, nil, nil, err
	}
	args, kwargs, err := readPayload(wire, 3)
	if err != nil {
		return 0, nil, nil, nil, err
	}
	return requestID, d, args, kwargs, nil
}
