package agent

import "errors"

var (
	// ErrUpstream wraps every completion failure: transport errors,
	// timeouts, non-2xx statuses and empty completions.
	ErrUpstream = errors.New("completion service unavailable")
	// ErrInvalidConfig is returned by New for unusable configuration.
	ErrInvalidConfig = errors.New("invalid agent config")
)
