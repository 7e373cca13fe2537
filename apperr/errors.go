// Package apperr defines the closed set of failure kinds shared by the
// stores, the order workflow and the HTTP layer.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an error for propagation and HTTP mapping.
type Kind string

const (
	KindValidation        Kind = "VALIDATION"
	KindNotFound          Kind = "NOT_FOUND"
	KindConflict          Kind = "CONFLICT"
	KindInsufficientStock Kind = "INSUFFICIENT_STOCK"
	KindForbidden         Kind = "FORBIDDEN"
	KindUnauthorized      Kind = "UNAUTHORIZED"
	KindInvalidState      Kind = "INVALID_STATE"
	KindUpstream          Kind = "UPSTREAM"
	KindUnavailable       Kind = "UNAVAILABLE"
	KindInternal          Kind = "INTERNAL"
)

// Error is an application error carrying a kind and a client-safe message.
type Error struct {
	Kind    Kind
	Message string
	Status  int // optional override, used for upstream statuses
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on kind so callers can write errors.Is(err, apperr.ErrNotFound).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Sentinels for errors.Is comparisons. They carry no message on purpose so
// that any error of the same kind matches.
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrInsufficientStock = &Error{Kind: KindInsufficientStock}
	ErrForbidden         = &Error{Kind: KindForbidden}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized}
	ErrInvalidState      = &Error{Kind: KindInvalidState}
	ErrUpstream          = &Error{Kind: KindUpstream}
	ErrUnavailable       = &Error{Kind: KindUnavailable}
)

func Validation(message string) *Error        { return New(KindValidation, message) }
func NotFound(message string) *Error          { return New(KindNotFound, message) }
func Conflict(message string) *Error          { return New(KindConflict, message) }
func InsufficientStock(message string) *Error { return New(KindInsufficientStock, message) }
func Forbidden(message string) *Error         { return New(KindForbidden, message) }
func Unauthorized(message string) *Error      { return New(KindUnauthorized, message) }
func InvalidState(message string) *Error      { return New(KindInvalidState, message) }

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the client-safe message of err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "Internal server error"
}

// HTTPStatus maps an error to its response status code.
func HTTPStatus(err error) int {
	var e *Error
	if errors.As(err, &e) && e.Status != 0 {
		return e.Status
	}
	switch KindOf(err) {
	case KindValidation, KindInsufficientStock, KindInvalidState:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindUpstream:
		return http.StatusBadGateway
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
