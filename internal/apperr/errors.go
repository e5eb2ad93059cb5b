// Package apperr carries user-visible failures from services to HTTP handlers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindUnauthorized
	KindNotFound
	KindInvalid
	KindConflict
	KindUnavailable
	KindTooLarge
)

// GenericMessage is shown for failures whose detail must not leak.
const GenericMessage = "Something went wrong. Please try again."

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error { return &Error{Kind: kind, Message: msg} }

func Unauthorized() *Error          { return New(KindUnauthorized, "Unauthorized") }
func NotFound(msg string) *Error    { return New(KindNotFound, msg) }
func Invalid(msg string) *Error     { return New(KindInvalid, msg) }
func Conflict(msg string) *Error    { return New(KindConflict, msg) }
func TooLarge(msg string) *Error    { return New(KindTooLarge, msg) }
func Unavailable(msg string) *Error { return New(KindUnavailable, msg) }

// Internal wraps an unexpected failure; the caller sees GenericMessage.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: GenericMessage, Err: err}
}

// Internalf is Internal with a user-visible message, for configuration problems the operator must fix.
func Internalf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...)}
}

func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// Message is the text safe to show the caller.
func Message(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return GenericMessage
}

func Status(err error) int {
	switch KindOf(err) {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalid:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
