package common

import (
	"fmt"
	"net/http"
)

// AppError is the application error type carried from services to handlers.
// Code is a stable machine-readable identifier; Message is safe to surface
// to clients; Err holds the underlying cause, if any.
type AppError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithCode overrides the machine-readable error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// NewBadRequestError creates a 400 error
func NewBadRequestError(message string, err error) *AppError {
	return &AppError{StatusCode: http.StatusBadRequest, Code: "BAD_REQUEST", Message: message, Err: err}
}

// NewUnauthorizedError creates a 401 error
func NewUnauthorizedError(message string) *AppError {
	return &AppError{StatusCode: http.StatusUnauthorized, Code: "UNAUTHORIZED", Message: message}
}

// NewForbiddenError creates a 403 error
func NewForbiddenError(message string) *AppError {
	return &AppError{StatusCode: http.StatusForbidden, Code: "FORBIDDEN", Message: message}
}

// NewNotFoundError creates a 404 error
func NewNotFoundError(message string) *AppError {
	return &AppError{StatusCode: http.StatusNotFound, Code: "NOT_FOUND", Message: message}
}

// NewConflictError creates a 409 error
func NewConflictError(message string, err error) *AppError {
	return &AppError{StatusCode: http.StatusConflict, Code: "CONFLICT", Message: message, Err: err}
}

// NewUnprocessableError creates a 422 error
func NewUnprocessableError(message string, err error) *AppError {
	return &AppError{StatusCode: http.StatusUnprocessableEntity, Code: "UNPROCESSABLE", Message: message, Err: err}
}

// NewInternalError creates a 500 error wrapping an underlying cause
func NewInternalError(message string, err error) *AppError {
	return &AppError{StatusCode: http.StatusInternalServerError, Code: "INTERNAL", Message: message, Err: err}
}

// NewInternalServerError creates a 500 error without a cause
func NewInternalServerError(message string) *AppError {
	return &AppError{StatusCode: http.StatusInternalServerError, Code: "INTERNAL", Message: message}
}
