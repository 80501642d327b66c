package domain

import (
	"errors"
	"fmt"
)

// Application error codes
const (
	EINVALID     = "invalid"     // malformed input or an out-of-range value
	ENOTFOUND    = "not_found"   // unknown report, item code, measurement or defect
	ECONFLICT    = "conflict"    // an export of the same report is already running
	ETOOLARGE    = "too_large"   // request body or template over its limit
	EINTERNAL    = "internal"    // bug or store failure, details stay server side
	EUNAVAILABLE = "unavailable" // template host, storage or lock backend failed
)

const internalMessage = "An internal error occurred. Please try again later."

// Error is the error type every layer returns. Handlers translate Code to a
// status; Message is safe to show to the caller unless Code is EINTERNAL.
type Error struct {
	Code    string
	Op      string // e.g. "report.export"
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code, op, message string, err error) *Error {
	return &Error{Code: code, Op: op, Message: message, Err: err}
}

// Errorf creates an Error with a formatted message.
func Errorf(code, op, format string, args ...interface{}) *Error {
	return newError(code, op, fmt.Sprintf(format, args...), nil)
}

// Wrap attaches a code and message to err.
func Wrap(err error, code, op, message string) *Error {
	return newError(code, op, message, err)
}

func NotFound(op, resource, id string) *Error {
	return newError(ENOTFOUND, op, fmt.Sprintf("%s with ID %q not found", resource, id), nil)
}

func Invalid(op, message string) *Error {
	return newError(EINVALID, op, message, nil)
}

func Conflict(op, message string) *Error {
	return newError(ECONFLICT, op, message, nil)
}

func Internal(err error, op, message string) *Error {
	return newError(EINTERNAL, op, message, err)
}

// Unavailable marks a failed upstream dependency. Re-running the operation
// may succeed.
func Unavailable(err error, op, message string) *Error {
	return newError(EUNAVAILABLE, op, message, err)
}

// =============================================================================
// Inspection
// =============================================================================

func asError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// ErrorCode returns the code of the outermost *Error, EINTERNAL for any
// other error and "" for nil.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	if e, ok := asError(err); ok {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage returns the caller-facing message. Internal errors get a
// generic message so store and driver details never leak.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	if e, ok := asError(err); ok && e.Code != EINTERNAL {
		return e.Message
	}
	return internalMessage
}

func ErrorOp(err error) string {
	if e, ok := asError(err); ok {
		return e.Op
	}
	return ""
}

// IsRetryable reports whether the same request may succeed later without
// any change from the caller.
func IsRetryable(err error) bool {
	switch ErrorCode(err) {
	case EUNAVAILABLE, ECONFLICT:
		return true
	}
	return false
}
