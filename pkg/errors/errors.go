package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrDocumentNotFound  = errors.New("document not found")
	ErrMalformedIdentity = errors.New("malformed document identity")
	ErrInvalidQuery      = errors.New("invalid query")
	ErrInvalidFilter     = errors.New("invalid filter expression")
	ErrRunInProgress     = errors.New("indexing run already in progress")
	ErrInvalidInput      = errors.New("invalid input")
	ErrConnectivity      = errors.New("upstream unreachable")
	ErrExtractionFailed  = errors.New("text extraction failed")
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrInternal          = errors.New("internal error")
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
	case errors.Is(err, ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrMalformedIdentity),
		errors.Is(err, ErrInvalidQuery),
		errors.Is(err, ErrInvalidFilter),
		errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrRunInProgress):
		return http.StatusConflict
	case errors.Is(err, ErrConnectivity):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
