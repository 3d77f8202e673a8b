package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidNonce     = errors.New("invalid nonce")
	ErrRateLimited      = errors.New("rate limit exceeded")
	ErrEmptyResult      = errors.New("empty result")
	ErrMissingReference = errors.New("missing reference")
	ErrCyclicReference  = errors.New("cyclic reference")
	ErrInternal         = errors.New("internal error")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Message returns the client-facing message for err. AppErrors carry their
// own; anything else falls back to the sentinel text or a generic message.
func Message(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if HTTPStatusCode(err) == http.StatusInternalServerError {
		return "internal error"
	}
	return err.Error()
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrEmptyResult):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrInvalidNonce):
		return http.StatusForbidden
	case errors.Is(err, ErrCyclicReference):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
