package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNoteNotFound       = errors.New("note not found")
	ErrKeyNotFound        = errors.New("key not found")
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrValueCorrupt       = errors.New("stored value corrupt")
	ErrMalformedKey       = errors.New("malformed key")
	ErrInvalidInput       = errors.New("invalid input")
	ErrBackendDisabled    = errors.New("backend disabled")
	ErrInternal           = errors.New("internal error")
	ErrTimeout            = errors.New("operation timed out")
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

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrNoteNotFound), errors.Is(err, ErrKeyNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrMalformedKey):
		return http.StatusBadRequest
	case errors.Is(err, ErrBackendDisabled):
		return http.StatusNotImplemented
	case errors.Is(err, ErrBackendUnavailable), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
