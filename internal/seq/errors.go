package seq

import (
	"errors"
	"fmt"
)

// Error is returned by the engines when a call is rejected.
//
// Engine errors include:
//   - Invalid argument: a depth, count or callback that cannot be used
//   - Resource exhausted: output size or nesting would exceed a ceiling
//   - Capability mismatch: two key sets disagree on their equality
//
// Failures raised by upstream producers, callbacks or array-like hosts are
// NOT wrapped in Error; they are returned verbatim.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op names the operation that failed (e.g. "flatten", "take").
	Op string

	// Message is a human-readable description.
	Message string

	// Details contains additional context.
	Details map[string]string
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeInvalidArgument indicates an argument that cannot be clamped or used.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"

	// ErrCodeResourceExhausted indicates a caller-configured ceiling would be exceeded.
	ErrCodeResourceExhausted ErrorCode = "RESOURCE_EXHAUSTED"

	// ErrCodeCapabilityMismatch indicates key sets with different equality capabilities.
	ErrCodeCapabilityMismatch ErrorCode = "CAPABILITY_MISMATCH"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches another *Error with the same Code, so sentinel comparisons like
// errors.Is(err, ErrResourceExhausted) work.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && (t.Op == "" || t.Op == e.Op)
}

// Sentinels for errors.Is.
var (
	ErrInvalidArgument    = &Error{Code: ErrCodeInvalidArgument, Message: "invalid argument"}
	ErrResourceExhausted  = &Error{Code: ErrCodeResourceExhausted, Message: "resource exhausted"}
	ErrCapabilityMismatch = &Error{Code: ErrCodeCapabilityMismatch, Message: "equality capability mismatch"}
)

// InvalidArgument creates an Error with ErrCodeInvalidArgument.
func InvalidArgument(op, format string, args ...any) *Error {
	return &Error{
		Code:    ErrCodeInvalidArgument,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// ResourceExhausted creates an Error with ErrCodeResourceExhausted.
// limit names the ceiling ("max_length", "max_depth") and got is the value
// that would have exceeded it.
func ResourceExhausted(op, limit string, got, ceiling int) *Error {
	return &Error{
		Code:    ErrCodeResourceExhausted,
		Op:      op,
		Message: fmt.Sprintf("%s exceeded (%d > %d)", limit, got, ceiling),
		Details: map[string]string{
			"limit": limit,
			"got":   fmt.Sprintf("%d", got),
			"max":   fmt.Sprintf("%d", ceiling),
		},
	}
}

// Cyclic creates a ResourceExhausted error for a container that reaches
// itself while being expanded.
func Cyclic(op string) *Error {
	return &Error{
		Code:    ErrCodeResourceExhausted,
		Op:      op,
		Message: "container contains itself",
		Details: map[string]string{"limit": "cycle"},
	}
}

// CapabilityMismatch creates an Error with ErrCodeCapabilityMismatch.
func CapabilityMismatch(op, a, b string) *Error {
	return &Error{
		Code:    ErrCodeCapabilityMismatch,
		Op:      op,
		Message: fmt.Sprintf("equality %q does not match %q", a, b),
		Details: map[string]string{"left": a, "right": b},
	}
}

// CodeOf returns the ErrorCode of err, or "" if err is not an *Error.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsInvalidArgument returns true if err is an invalid argument error.
func IsInvalidArgument(err error) bool {
	return CodeOf(err) == ErrCodeInvalidArgument
}

// IsResourceExhausted returns true if err is a resource exhausted error.
func IsResourceExhausted(err error) bool {
	return CodeOf(err) == ErrCodeResourceExhausted
}

// IsCapabilityMismatch returns true if err is a capability mismatch error.
func IsCapabilityMismatch(err error) bool {
	return CodeOf(err) == ErrCodeCapabilityMismatch
}
