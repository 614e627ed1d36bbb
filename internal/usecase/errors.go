package usecase

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	ErrorInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrorNotFound         ErrorCode = "NOT_FOUND"
	ErrorStore            ErrorCode = "STORE_ERROR"
	ErrorUpstream         ErrorCode = "UPSTREAM_ERROR"
	ErrorUnsupportedModel ErrorCode = "UNSUPPORTED_MODEL"
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

// CodeOf extracts the pipeline error code from err, or empty if err is not
// a pipeline error.
func CodeOf(err error) ErrorCode {
	var ue *Error
	if !errors.As(err, &ue) {
		return ""
	}
	return ue.Code
}
