// Package errors carries HTTP-aware application errors. Each AppError wraps
// one of the sentinel errors below so callers can branch with Is.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound      = errors.New("resource not found")
	ErrBadRequest    = errors.New("bad request")
	ErrConflict      = errors.New("resource conflict")
	ErrUnprocessable = errors.New("unprocessable request")
	ErrInternal      = errors.New("internal server error")
	ErrValidation    = errors.New("validation error")
	ErrUnavailable   = errors.New("service unavailable")
)

// AppError is an error with a machine readable code and the HTTP status it maps to.
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	if e.Err == nil || isSentinel(e.Err) {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails replaces the error details.
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// WithCode overrides the machine readable code, keeping status and sentinel.
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

type kind struct {
	sentinel error
	code     string
	status   int
}

var kinds = []kind{
	{ErrNotFound, "NOT_FOUND", http.StatusNotFound},
	{ErrBadRequest, "BAD_REQUEST", http.StatusBadRequest},
	{ErrConflict, "CONFLICT", http.StatusConflict},
	{ErrUnprocessable, "UNPROCESSABLE", http.StatusUnprocessableEntity},
	{ErrInternal, "INTERNAL_ERROR", http.StatusInternalServerError},
	{ErrValidation, "VALIDATION_ERROR", http.StatusBadRequest},
	{ErrUnavailable, "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable},
}

func build(sentinel error, message string) *AppError {
	for _, k := range kinds {
		if k.sentinel == sentinel {
			return &AppError{Err: sentinel, Code: k.code, Message: message, StatusCode: k.status}
		}
	}
	panic("errors: unknown sentinel " + sentinel.Error())
}

func isSentinel(err error) bool {
	for _, k := range kinds {
		if k.sentinel == err {
			return true
		}
	}
	return false
}

// New creates an AppError that wraps nothing.
func New(code string, message string, statusCode int) *AppError {
	return &AppError{Code: code, Message: message, StatusCode: statusCode}
}

// Wrap attaches code, message and status to err.
func Wrap(err error, code string, message string, statusCode int) *AppError {
	return &AppError{Err: err, Code: code, Message: message, StatusCode: statusCode}
}

func NotFound(resource string) *AppError {
	return build(ErrNotFound, resource+" not found")
}

func BadRequest(message string) *AppError { return build(ErrBadRequest, message) }

func Conflict(message string) *AppError { return build(ErrConflict, message) }

func Unprocessable(message string) *AppError { return build(ErrUnprocessable, message) }

func Internal(message string) *AppError { return build(ErrInternal, message) }

func Unavailable(message string) *AppError { return build(ErrUnavailable, message) }

// Validation reports per-field problems, keyed by field name.
func Validation(details map[string]string) *AppError {
	return build(ErrValidation, "validation failed").WithDetails(details)
}

// AsAppError returns the AppError in err's chain, or a generic internal
// error that hides err's text from clients.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("an unexpected error occurred")
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}
