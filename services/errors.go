package services

import (
	"errors"

	"github.com/google/uuid"
)

type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindInvalidArgument
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is returned by every service operation that fails for a reason the
// caller should see.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" && e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func invalidArgument(msg string) error { return &Error{Kind: KindInvalidArgument, Message: msg} }
func unauthorized(msg string) error    { return &Error{Kind: KindUnauthorized, Message: msg} }
func forbidden(msg string) error       { return &Error{Kind: KindForbidden, Message: msg} }
func notFound(msg string) error        { return &Error{Kind: KindNotFound, Message: msg} }
func conflict(msg string) error        { return &Error{Kind: KindConflict, Message: msg} }

// internal keeps the store error message; it is passed to the client as is.
func internal(err error) error {
	return &Error{Kind: KindInternal, Message: err.Error(), Err: err}
}

// KindOf reports the kind of err. Errors that are not *Error are internal.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
