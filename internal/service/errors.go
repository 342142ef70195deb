// Package service holds the application core: the session manager, the
// booking engine, the catalog and the account operations. Every error that
// leaves this package is an *Error carrying one Kind.
package service

import (
	"errors"

	"github.com/labreserve/lab-reservation/internal/repository"
)

// Kind classifies a failure for the transport layer.
type Kind int

const (
	KindUnavailable Kind = iota
	KindInvalidArgument
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	}
	return "unavailable"
}

// Error is a classified failure with a short message safe to show clients.
type Error struct {
	Kind    Kind
	Message string
	Err     error // underlying cause, never shown to clients
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func invalid(msg string) *Error   { return &Error{Kind: KindInvalidArgument, Message: msg} }
func forbidden(msg string) *Error { return &Error{Kind: KindForbidden, Message: msg} }
func notFound(msg string) *Error  { return &Error{Kind: KindNotFound, Message: msg} }
func conflict(msg string) *Error  { return &Error{Kind: KindConflict, Message: msg} }

// ErrUnauthenticated is the single answer for every session resolution
// failure; expired, forged and revoked tokens look the same to callers.
var ErrUnauthenticated = &Error{Kind: KindUnauthenticated, Message: "not authenticated"}

// ErrInvalidCredentials hides whether the email or the password was wrong.
var ErrInvalidCredentials = &Error{Kind: KindUnauthenticated, Message: "invalid credentials"}

func unavailable(err error) *Error {
	return &Error{Kind: KindUnavailable, Message: "service unavailable", Err: err}
}

// translate maps a repository error to an *Error. notFoundMsg is used for
// repository.ErrNotFound; unclassified errors, including deadlines and
// broken connections, become Unavailable.
func translate(err error, notFoundMsg string) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return &Error{Kind: KindNotFound, Message: notFoundMsg, Err: err}
	case errors.Is(err, repository.ErrEmailExists):
		return &Error{Kind: KindConflict, Message: "email already in use", Err: err}
	case errors.Is(err, repository.ErrConflict):
		return &Error{Kind: KindConflict, Message: "conflict", Err: err}
	}
	return unavailable(err)
}

// KindOf returns the Kind of err, KindUnavailable for anything unclassified.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnavailable
}
