package message

import (
	"errors"
	"fmt"
)

// Construction errors. Returned by NewHello, NewWelcome and by the matching
// Unmarshal functions when the decoded details fail validation.
var (
	ErrInvalidConstruction = errors.New("invalid message construction")
	ErrInvalidDetails      = fmt.Errorf("%w: invalid message details", ErrInvalidConstruction)
	ErrInvalidRole         = fmt.Errorf("%w: invalid message roles", ErrInvalidConstruction)
)

// Decode errors. Every error returned by an Unmarshal function for a wire form
// of the wrong shape wraps ErrInvalidMessage.
var (
	ErrInvalidMessage = errors.New("invalid message")
	ErrTypeMismatch   = fmt.Errorf("%w: type mismatch", ErrInvalidMessage)
	ErrInvalidLength  = fmt.Errorf("%w: invalid length", ErrInvalidMessage)
	ErrInvalidField   = fmt.Errorf("%w: invalid field", ErrInvalidMessage)
)
