// Package errs defines the error kinds returned by the Blue Canary client.
//
// Every validation failure is reported before any network I/O happens, so a
// caller can tell malformed input apart from a transport failure:
//
//	if errors.Is(err, errs.ErrInvalidEndpoint) {
//	    // fix configuration
//	}
package errs

import (
	"errors"
	"fmt"
)

// Kind identifies a class of client error.
type Kind string

const (
	KindUnknown              Kind = "UNKNOWN"
	KindInvalidMetric        Kind = "INVALID_METRIC"
	KindInvalidEndpoint      Kind = "INVALID_ENDPOINT"
	KindUnknownLevel         Kind = "UNKNOWN_LEVEL"
	KindUnsupportedOperation Kind = "UNSUPPORTED_OPERATION"
)

// Sentinels for errors.Is. Errors created with New match the sentinel of
// the same kind.
var (
	ErrInvalidMetric        = &Error{kind: KindInvalidMetric, message: "invalid metric"}
	ErrInvalidEndpoint      = &Error{kind: KindInvalidEndpoint, message: "invalid endpoint"}
	ErrUnknownLevel         = &Error{kind: KindUnknownLevel, message: "unknown level"}
	ErrUnsupportedOperation = &Error{kind: KindUnsupportedOperation, message: "unsupported operation"}
)

// Error is a client error carrying a kind and an optional cause.
type Error struct {
	kind    Kind
	message string
	err     error
}

// New returns an error of the given kind.
func New(kind Kind, message string) error {
	return &Error{kind: kind, message: message}
}

// Newf is New with a format string.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{kind: kind, message: fmt.Sprintf(format, args...)}
}

// Wrap returns an error of the given kind wrapping cause.
func Wrap(kind Kind, message string, cause error) error {
	return &Error{kind: kind, message: message, err: cause}
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}

	return e.message
}

func (e *Error) Kind() Kind {
	return e.kind
}

func (e *Error) Unwrap() error {
	return e.err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}

	return t.kind == e.kind
}

// KindOf returns the kind of err, or KindUnknown if err is not a client error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}

	return KindUnknown
}
