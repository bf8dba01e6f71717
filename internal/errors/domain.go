package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Error kinds. Every DomainError unwraps to exactly one of these.
var (
	ErrValidation       = stderrors.New("validation failed")
	ErrConflict         = stderrors.New("conflict")
	ErrNotFound         = stderrors.New("not found")
	ErrMalformedRequest = stderrors.New("malformed request")
)

// DomainError is an error with a kind, a stable code and a client-facing
// message.
type DomainError struct {
	Kind    error
	Code    string
	Message string
}

func New(kind error, code, message string) *DomainError {
	return &DomainError{Kind: kind, Code: code, Message: message}
}

func (e *DomainError) Error() string { return e.Message }

func (e *DomainError) Unwrap() error { return e.Kind }

// Validationf builds a validation error with a formatted message.
func Validationf(code, format string, args ...interface{}) *DomainError {
	return New(ErrValidation, code, fmt.Sprintf(format, args...))
}

// Malformed builds a malformed-request error.
func Malformed(code, message string) *DomainError {
	return New(ErrMalformedRequest, code, message)
}

// StatusOf maps an error to the HTTP status of its kind.
func StatusOf(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case stderrors.Is(err, ErrValidation), stderrors.Is(err, ErrMalformedRequest):
		return http.StatusBadRequest
	case stderrors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case stderrors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
