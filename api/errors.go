package api

import (
	"errors"
	"fmt"
	"net/http"

	"connectrpc.com/connect"

	"github.com/tailored-agentic-units/lifeline/kernel"
)

// ErrRateLimited is returned when a session submits faster than its limit.
var ErrRateLimited = errors.New("rate limit exceeded")

var errInvalidBody = fmt.Errorf("%w: invalid request body", kernel.ErrValidation)

// errInternal replaces store and unexpected failures in responses. The
// detail is reported through the kernel's error event.
var errInternal = errors.New("internal error")

func httpStatus(err error) int {
	switch {
	case errors.Is(err, kernel.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func connectError(err error) *connect.Error {
	switch {
	case errors.Is(err, kernel.ErrValidation):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, ErrRateLimited):
		return connect.NewError(connect.CodeResourceExhausted, err)
	default:
		return connect.NewError(connect.CodeInternal, errInternal)
	}
}
