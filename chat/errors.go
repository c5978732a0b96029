// Package chat holds the domain rules shared by the chat server and the chat
// client: the error taxonomy, message ordering, display grouping, unread
// computation, the membership state machine and typing expiry.
package chat

import (
	"errors"
	"fmt"
)

// Kind classifies a chat error so callers can decide how to react
type Kind string

const (
	KindAuth            Kind = "AUTH_ERROR"
	KindConnectionLost  Kind = "CONNECTION_LOST"
	KindForbidden       Kind = "FORBIDDEN"
	KindInvalidState    Kind = "INVALID_STATE"
	KindTimeout         Kind = "TIMEOUT"
	KindNotFound        Kind = "NOT_FOUND"
	KindInvalidArgument Kind = "INVALID_ARGUMENT"
	KindUnknown         Kind = "UNKNOWN"
)

// Error is the concrete error type returned by the chat packages
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

// Sentinels for errors.Is; only the Kind is compared.
var (
	ErrAuth            = &Error{Kind: KindAuth}
	ErrConnectionLost  = &Error{Kind: KindConnectionLost}
	ErrForbidden       = &Error{Kind: KindForbidden}
	ErrInvalidState    = &Error{Kind: KindInvalidState}
	ErrTimeout         = &Error{Kind: KindTimeout}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument}
)

// E builds an error of the given kind
func E(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Wrap builds an error of the given kind around a cause
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same Kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of the first *Error in err's chain, or KindUnknown
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Retryable reports whether repeating the same call may succeed without any
// change on the caller's side.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindConnectionLost, KindTimeout, KindUnknown:
		return err != nil
	}
	return false
}
