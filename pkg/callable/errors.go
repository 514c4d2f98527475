// Package callable implements the callable-function wire protocol shared by the
// server handlers and the CLI client: requests are {"data": ...}, successes are
// {"result": ...} and failures are {"error": {"status": ..., "message": ...}}.
package callable

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is the canonical kind of a failed operation.
type ErrorCode string

const (
	CodeInvalidArgument ErrorCode = "invalid-argument"
	CodeUnauthenticated ErrorCode = "unauthenticated"
	CodeNotFound        ErrorCode = "not-found"
	CodeInternal        ErrorCode = "internal"
)

// Status returns the wire form of the code, e.g. "INVALID_ARGUMENT".
func (c ErrorCode) Status() string {
	return strings.ToUpper(strings.ReplaceAll(string(c), "-", "_"))
}

// HTTPStatus returns the HTTP status code used on the wire for c.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// CodeFromStatus is the inverse of ErrorCode.Status. Unknown statuses map to CodeInternal.
func CodeFromStatus(status string) ErrorCode {
	code := ErrorCode(strings.ToLower(strings.ReplaceAll(status, "_", "-")))
	switch code {
	case CodeInvalidArgument, CodeUnauthenticated, CodeNotFound, CodeInternal:
		return code
	default:
		return CodeInternal
	}
}

// Error is a typed operation failure carrying a human-readable message.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Errorf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AsError reports whether err (or anything it wraps) is a *Error.
func AsError(err error) (*Error, bool) {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr, true
	}
	return nil, false
}

// WrapInternal passes a *Error through untouched and turns anything else into an
// internal error whose message is prefix followed by the cause.
func WrapInternal(err error, prefix string) error {
	if err == nil {
		return nil
	}
	if cerr, ok := AsError(err); ok {
		return cerr
	}
	return Errorf(CodeInternal, "%s: %v", prefix, err)
}

// IsCode reports whether err is a *Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	cerr, ok := AsError(err)
	return ok && cerr.Code == code
}
