// Package errs provides the coded error kinds surfaced by the focus engine.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is a machine-readable error kind.
type Kind string

const (
	KindInternal     Kind = "INTERNAL"
	KindNotFound     Kind = "NOT_FOUND"
	KindInvalidState Kind = "INVALID_STATE"
	KindOutOfOrder   Kind = "OUT_OF_ORDER_INPUT"
	KindInvalidValue Kind = "INVALID_VALUE"
)

// HTTPStatus maps a kind to a transport status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidState:
		return http.StatusConflict
	case KindInvalidValue:
		return http.StatusBadRequest
	case KindOutOfOrder:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Error is the domain error type.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// Sentinels for errors.Is checks; matching is by kind only.
var (
	ErrNotFound     = &Error{Kind: KindNotFound, Message: "not found"}
	ErrInvalidState = &Error{Kind: KindInvalidState, Message: "invalid state"}
	ErrOutOfOrder   = &Error{Kind: KindOutOfOrder, Message: "out of order input"}
	ErrInvalidValue = &Error{Kind: KindInvalidValue, Message: "invalid value"}
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target carries the same kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// New creates an error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind around cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
