package usecase

import (
	"errors"
	"fmt"

	"condo-assistant/internal/media"
	"condo-assistant/internal/repository"
)

type ErrorCode string

const (
	ErrorInvalidInput ErrorCode = "INVALID_INPUT"
	ErrorUpstream     ErrorCode = "UPSTREAM_ERROR"
	ErrorInternal     ErrorCode = "INTERNAL_ERROR"
	ErrorConflict     ErrorCode = "CONFLICT"
)

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// classify wraps a collaborator failure: provider and media failures are
// upstream errors, lost races are conflicts, everything else is internal.
func classify(reason string, err error) *Error {
	var ue *Error
	if errors.As(err, &ue) {
		return ue
	}
	var statusErr httpStatusCoder
	var mediaErr *media.Error
	switch {
	case errors.Is(err, repository.ErrConflict):
		return newError(ErrorConflict, reason, err)
	case errors.As(err, &statusErr), errors.As(err, &mediaErr):
		return newError(ErrorUpstream, reason, err)
	}
	return newError(ErrorInternal, reason, err)
}
