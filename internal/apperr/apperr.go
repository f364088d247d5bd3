// Package apperr defines the error taxonomy shared by all three services.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the HTTP boundary.
type Kind int

const (
	// KindNotFound marks lookups of entities that do not exist (unknown tenant).
	KindNotFound Kind = iota
	// KindForbidden marks denied access (inactive subscription, cross-tenant access).
	KindForbidden
	// KindRateLimited marks quota or request-rate ceilings being hit.
	KindRateLimited
	// KindUpstream marks provider/cache/datastore failures after retries are exhausted.
	KindUpstream
	// KindValidation marks malformed requests (mismatched array lengths, missing fields).
	KindValidation
)

// Error is an application error carrying a Kind and a human-readable message.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an application error with the given kind and formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the Kind of err, defaulting to KindUpstream for
// errors that did not originate from this package.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUpstream
}
