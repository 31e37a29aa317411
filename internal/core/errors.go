// internal/core/errors.go
package core

import (
	"errors"
	"fmt"
)

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Errorf wraps a formatted cause under base.
func Errorf(base *Error, format string, args ...any) *Error {
	return WrapError(base, fmt.Errorf(format, args...))
}

// Predefined errors
var (
	// Acquisition errors. The pipeline recovers from all of these by falling
	// through to the next source.
	ErrSourceUnavailable = &Error{Code: "SOURCE_UNAVAILABLE", Message: "data source unavailable"}
	ErrNoData            = &Error{Code: "NO_DATA", Message: "no data available"}
	ErrInvalidCredential = &Error{Code: "INVALID_CREDENTIAL", Message: "missing or invalid api key"}
	ErrRateLimited       = &Error{Code: "RATE_LIMITED", Message: "provider rate limit reached"}
	ErrMalformedResponse = &Error{Code: "MALFORMED_RESPONSE", Message: "malformed provider response"}

	// Computation errors
	ErrComputation       = &Error{Code: "COMPUTATION_ERROR", Message: "computation failed"}
	ErrInvalidInput      = &Error{Code: "INVALID_INPUT", Message: "invalid input"}
	ErrUnsupportedMethod = &Error{Code: "UNSUPPORTED_METHOD", Message: "unsupported simulation method"}

	// Lookup errors
	ErrUnknownStrategy  = &Error{Code: "UNKNOWN_STRATEGY", Message: "unknown strategy"}
	ErrUnknownPredictor = &Error{Code: "UNKNOWN_PREDICTOR", Message: "unknown predictor"}
	ErrUnknownSource    = &Error{Code: "UNKNOWN_SOURCE", Message: "unknown data source"}
	ErrJobNotFound      = &Error{Code: "JOB_NOT_FOUND", Message: "job not found"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}
)

// IsRecoverable reports whether err belongs to the acquisition taxonomy, i.e.
// a failure the pipeline absorbs by trying the next source.
func IsRecoverable(err error) bool {
	for _, base := range []*Error{
		ErrSourceUnavailable,
		ErrNoData,
		ErrInvalidCredential,
		ErrRateLimited,
		ErrMalformedResponse,
	} {
		if errors.Is(err, base) {
			return true
		}
	}
	return false
}
