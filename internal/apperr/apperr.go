// Package apperr defines the stable error vocabulary surfaced by the
// authentication core. Services remap library and provider errors into these
// kinds; raw library errors never reach callers.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers and for transport mapping.
type Kind int

const (
	// KindValidation marks malformed input caught before any I/O.
	KindValidation Kind = iota + 1
	// KindNotFound marks a missing (or soft-deleted) entity.
	KindNotFound
	// KindUnauthorized marks credential mismatch or invalid/expired/revoked tokens.
	KindUnauthorized
	// KindConflict marks a uniqueness violation (email or provider id already claimed).
	KindConflict
	// KindConfiguration marks a missing provider credential/audience for the
	// requested platform. Caller-visible bad request, not a crash.
	KindConfiguration
	// KindUnavailable marks a failed or timed-out upstream call, distinguished
	// from KindUnauthorized so operators can tell outages from attacks.
	KindUnavailable
)

// String returns the machine-readable name of the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindConflict:
		return "conflict"
	case KindConfiguration:
		return "configuration_error"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Error is a classified error with a stable code and message. Message must
// never contain secrets (passwords, tokens, keys).
type Error struct {
	Kind Kind
	// Code is a stable machine-readable identifier, e.g. "weak_password".
	Code string
	// Message is the stable human-readable description.
	Message string
	// Err is the wrapped cause, if any. Not included in Error() output.
	Err error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error { return e.Err }

// New returns a classified error with the given kind, code, and message.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap returns a classified error wrapping cause. The cause is kept for
// operator logs; Error() output stays stable and secret-free.
func Wrap(kind Kind, code, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: cause}
}

// KindOf returns the kind of err, or 0 if err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsKind reports whether err is classified with the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// CodeOf returns the stable code of err, or "" if err is not classified.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
