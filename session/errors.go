package session

import "errors"

// Sentinel errors for store operations.
var (
	ErrNotFound      = errors.New("session not found")
	ErrEmptyID       = errors.New("session id is empty")
	ErrInvalidSender = errors.New("invalid sender")
	ErrInvalidState  = errors.New("invalid handoff state")
	ErrUnknownStore  = errors.New("unknown session store backend")
)
