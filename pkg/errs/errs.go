// Package errs gives the proxy a small, centrally-mapped error taxonomy,
// so the HTTP layer can turn any internal error into the right status
// code in one place instead of re-deriving it at every call site.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the purpose of HTTP status mapping and
// log severity.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindQuarantined
	KindUpstreamUnavailable
	KindConflict
	KindInternal
)

// Error wraps an underlying error with a Kind.
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

func newErr(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func Validation(msg string, err error) error            { return newErr(KindValidation, msg, err) }
func NotFound(msg string, err error) error              { return newErr(KindNotFound, msg, err) }
func Quarantined(msg string, err error) error           { return newErr(KindQuarantined, msg, err) }
func UpstreamUnavailable(msg string, err error) error   { return newErr(KindUpstreamUnavailable, msg, err) }
func Conflict(msg string, err error) error              { return newErr(KindConflict, msg, err) }
func Internal(msg string, err error) error              { return newErr(KindInternal, msg, err) }

// KindOf extracts the Kind from err, returning KindInternal if err does
// not carry one (an unwrapped error is always treated as internal, never
// silently surfaced as a 2xx).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps an error's Kind to the status code the proxy's HTTP
// layer should respond with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound, KindQuarantined:
		return http.StatusNotFound
	case KindUpstreamUnavailable:
		return http.StatusBadGateway
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
