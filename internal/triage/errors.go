package triage

import (
	"errors"
	"fmt"
)

// Kind classifies failures the core distinguishes between.
type Kind string

const (
	KindNetwork      Kind = "network"
	KindNotFound     Kind = "not_found"
	KindValidation   Kind = "validation"
	KindAuth         Kind = "auth"
	KindPrecondition Kind = "precondition"
)

// Sentinel values usable with errors.Is.
var (
	ErrNetwork      = &Error{Kind: KindNetwork}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrValidation   = &Error{Kind: KindValidation}
	ErrAuth         = &Error{Kind: KindAuth}
	ErrPrecondition = &Error{Kind: KindPrecondition}
)

// Error carries the failure kind, the operation and the underlying cause.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches on Kind so errors.Is(err, ErrNotFound) works for any NotFound error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil {
		return false
	}
	return t.Kind == e.Kind
}

// NewError builds an Error of the given kind.
func NewError(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

func preconditionf(op, format string, args ...any) *Error {
	return &Error{Kind: KindPrecondition, Op: op, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err. Errors that did not come from this package
// are treated as network failures.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindNetwork
}

// IsPrecondition reports whether err is a local rule violation.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrPrecondition)
}

// UserMessage is the recoverable, user-visible text for a failed operation.
func UserMessage(err error) string {
	switch KindOf(err) {
	case "":
		return ""
	case KindNotFound:
		return "The ticket could not be found."
	case KindValidation:
		return "The tracker rejected the change. Please check the input and try again."
	case KindAuth:
		return "Your session is not authorized. Please log in again."
	case KindPrecondition:
		var te *Error
		if errors.As(err, &te) && te.Message != "" {
			return te.Message
		}
		return "The operation is not allowed right now."
	default:
		return "The tracker could not be reached. Please try again later."
	}
}
