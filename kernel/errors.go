package kernel

import (
	"errors"
	"fmt"
)

// ErrValidation is wrapped by every input rejection. Nothing is written to
// the store when an operation fails validation.
var ErrValidation = errors.New("validation failed")

var (
	ErrMissingSessionID = fmt.Errorf("%w: missing session id", ErrValidation)
	ErrSessionIDTooLong = fmt.Errorf("%w: session id too long", ErrValidation)
	ErrEmptyMessage     = fmt.Errorf("%w: empty message", ErrValidation)
	ErrMessageTooLong   = fmt.Errorf("%w: message too long", ErrValidation)
)
