// Package apierr defines the control plane's shared error taxonomy.
//
// Every component returns errors of this type instead of ad hoc wrapped
// errors so that callers (and eventually the out-of-scope HTTP layer) can
// switch on Kind without string matching.
package apierr

import (
	"errors"
	"fmt"
)

// Kind enumerates the error taxonomy from spec §7.
type Kind string

const (
	Unauthenticated Kind = "unauthenticated"
	Unauthorized    Kind = "unauthorized"
	NotFound        Kind = "not_found"
	Validation      Kind = "validation"
	Conflict        Kind = "conflict"
	ProviderError   Kind = "provider_error"
	Timeout         Kind = "timeout"
	Encryption      Kind = "encryption"
	Integrity       Kind = "integrity"
	Transient       Kind = "transient"
)

// Error is the control plane's canonical error type.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is supports errors.Is(err, apierr.New(kind, "")) style sentinel checks by
// comparing Kind alone.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// New builds an Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error with the given kind, message, and underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind from err, or "" if err is not (or does not wrap) an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// ExitCode maps a Kind to the admin CLI surface exit code contract (spec §6):
// 0 success, 1 generic failure, 2 unauthorized, 3 validation, 4 not found, 5 conflict.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch KindOf(err) {
	case Unauthenticated, Unauthorized:
		return 2
	case Validation:
		return 3
	case NotFound:
		return 4
	case Conflict:
		return 5
	default:
		return 1
	}
}
