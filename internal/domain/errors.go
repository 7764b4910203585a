// Package domain holds the error taxonomy shared by the services and the API layer.
package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the caller.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindNotFound       Kind = "not_found"
	KindConflict       Kind = "conflict"
	KindAuthentication Kind = "authentication"
	KindForbidden      Kind = "forbidden"
	KindUpstream       Kind = "upstream"
	KindInternal       Kind = "internal"
)

// Sentinels usable with errors.Is.
var (
	ErrValidation      = &Error{Kind: KindValidation, Msg: "validation failed"}
	ErrNotFound        = &Error{Kind: KindNotFound, Msg: "not found"}
	ErrConflict        = &Error{Kind: KindConflict, Msg: "state conflict"}
	ErrUnauthenticated = &Error{Kind: KindAuthentication, Msg: "unauthenticated"}
	ErrForbidden       = &Error{Kind: KindForbidden, Msg: "forbidden"}
	ErrUpstream        = &Error{Kind: KindUpstream, Msg: "upstream failure"}
)

// Error is a classified error with a client-safe message.
type Error struct {
	Kind  Kind
	Msg   string
	Field string
	Err   error
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so sentinels compare by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Validation reports a bad field.
func Validation(field, format string, args ...any) error {
	return &Error{Kind: KindValidation, Field: field, Msg: fmt.Sprintf(format, args...)}
}

// NotFound reports a missing entity.
func NotFound(entity, id string) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf("%s %s not found", entity, id)}
}

// Conflict reports a failed state guard.
func Conflict(format string, args ...any) error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

// Upstream wraps a store or notifier failure. The cause is kept for logs only.
func Upstream(op string, err error) error {
	return &Error{Kind: KindUpstream, Msg: op, Err: err}
}

// KindOf returns the kind of the first *Error in the chain, or KindInternal.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// PublicMessage returns the text that may be shown to a client.
func PublicMessage(err error) string {
	var de *Error
	if !errors.As(err, &de) {
		return "internal error"
	}
	switch de.Kind {
	case KindUpstream:
		return "upstream service unavailable"
	case KindAuthentication:
		return "unauthorized"
	}
	if de.Field != "" {
		return de.Field + ": " + de.Msg
	}
	return de.Msg
}
