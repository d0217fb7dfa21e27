package core

import (
	"errors"
	"fmt"
)

// ErrorKind is the stable, machine-readable category of a domain error.
type ErrorKind string

const (
	KindNotFound           ErrorKind = "not_found"
	KindInvalidSpec        ErrorKind = "invalid_spec"
	KindInvalidInput       ErrorKind = "invalid_input"
	KindCycleWouldForm     ErrorKind = "cycle_would_form"
	KindHorizonExceeded    ErrorKind = "horizon_exceeded"
	KindConflict           ErrorKind = "conflict"
	KindStorageUnavailable ErrorKind = "storage_unavailable"
	KindInvariant          ErrorKind = "invariant"
	KindInternal           ErrorKind = "internal"
)

// Error is the error type surfaced by the engine. Op names the failing
// operation, Message is human readable, Err is the wrapped cause.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works
// regardless of Op and Message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrInvalidSpec        = &Error{Kind: KindInvalidSpec}
	ErrInvalidInput       = &Error{Kind: KindInvalidInput}
	ErrCycleWouldForm     = &Error{Kind: KindCycleWouldForm}
	ErrHorizonExceeded    = &Error{Kind: KindHorizonExceeded}
	ErrConflict           = &Error{Kind: KindConflict}
	ErrStorageUnavailable = &Error{Kind: KindStorageUnavailable}
	ErrInvariant          = &Error{Kind: KindInvariant}
)

func NewError(kind ErrorKind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

func WrapError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Invalid wraps a validation failure.
func Invalid(op string, err error) *Error {
	return WrapError(KindInvalidInput, op, err)
}

// NotFound builds a not-found error for an entity kind and id.
func NotFound(op, entity string, id int64) *Error {
	return NewError(KindNotFound, op, fmt.Sprintf("%s %d not found", entity, id))
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsRetryable returns true if the error might succeed on a later attempt.
func IsRetryable(err error) bool {
	k := KindOf(err)
	return k == KindStorageUnavailable || k == KindConflict
}
