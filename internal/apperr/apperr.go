package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an error for propagation and HTTP mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindAuth
	KindValidation
	KindNotFound
	KindUpstream
	KindConflict
)

// Error carries a kind alongside a message and optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Auth(message string) *Error       { return New(KindAuth, message) }
func Validation(message string) *Error { return New(KindValidation, message) }
func NotFound(message string) *Error   { return New(KindNotFound, message) }

func Upstream(message string, err error) *Error { return Wrap(KindUpstream, message, err) }
func Internal(message string, err error) *Error { return Wrap(KindInternal, message, err) }

// KindOf extracts the kind of an error, defaulting to KindInternal so
// unclassified failures surface as 5xx and the provider retries.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// HTTPStatus maps an error to the response status the webhook and agent
// APIs return. Conflict maps to 200: a dedup hit is a success.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindAuth:
		return http.StatusUnauthorized
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstream:
		return http.StatusBadGateway
	case KindConflict:
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}
