package service

import (
	"net/http"
)

type Kind int

const (
	KindValidation Kind = iota + 1
	KindAuth
	KindNotFound
	KindPricing
	KindConflict
	KindNotReady
	KindInternal
	KindUnavailable
)

var kindCodes = map[Kind]int{
	KindValidation:  http.StatusBadRequest,
	KindAuth:        http.StatusForbidden,
	KindNotFound:    http.StatusNotFound,
	KindPricing:     http.StatusBadRequest,
	KindConflict:    http.StatusBadRequest,
	KindNotReady:    http.StatusBadRequest,
	KindInternal:    http.StatusInternalServerError,
	KindUnavailable: http.StatusServiceUnavailable,
}

// Error is a failure reported to the caller. Message is safe to show to
// clients, Err carries the underlying cause for logs.
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

// Code is the HTTP status for the error.
func (e *Error) Code() int {
	if code, ok := kindCodes[e.Kind]; ok {
		return code
	}
	return http.StatusInternalServerError
}

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func validationError(msg string) *Error {
	return newError(KindValidation, msg, nil)
}

func internalError(msg string, err error) *Error {
	return newError(KindInternal, msg, err)
}
