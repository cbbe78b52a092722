// Package apperrors defines the error kinds shared across the service.
// Every failure that crosses a package boundary is either one of the
// sentinels below or an *Error carrying one of the kinds, so callers can
// map it to a response with errors.Is or KindOf.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers that must decide how to respond.
type Kind string

const (
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindRateLimited  Kind = "rate_limited"
	KindInvalid      Kind = "invalid"
	KindTransport    Kind = "transport"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrRateLimited  = errors.New("rate limited")
	ErrInvalid      = errors.New("invalid request")
	ErrTransport    = errors.New("backend transport failure")
)

var sentinels = map[Kind]error{
	KindUnauthorized: ErrUnauthorized,
	KindForbidden:    ErrForbidden,
	KindNotFound:     ErrNotFound,
	KindRateLimited:  ErrRateLimited,
	KindInvalid:      ErrInvalid,
	KindTransport:    ErrTransport,
}

// Error is a classified error. Op names the operation that failed
// (e.g. "sheets.ReadRows") and Message is safe to show to API callers.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

// New creates a classified error without an underlying cause.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap classifies err under kind. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Message: err.Error(), Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil && e.Message != e.Err.Error():
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	default:
		return e.Message
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind.
func (e *Error) Is(target error) bool {
	return sentinels[e.Kind] == target
}

// IsRetryable marks rate-limit and transport failures as transient.
// pkg/retry consults this before retrying.
func (e *Error) IsRetryable() bool {
	return e.Kind == KindRateLimited || e.Kind == KindTransport
}

// KindOf returns the kind of err. Unclassified errors are reported as
// transport failures since they originate from I/O we do not control.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	for kind, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindTransport
}

// MessageOf returns the caller-safe message for err.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
