package common

import (
	"errors"
	"net/http"
)

// Error codes shared across handlers.
const (
	CodeBadRequest          = "BAD_REQUEST"
	CodeValidation          = "VALIDATION_ERROR"
	CodeInvalidItem         = "INVALID_ITEM"
	CodeNotFound            = "NOT_FOUND"
	CodeCouponNotFound      = "COUPON_NOT_FOUND"
	CodeSettingsUnavailable = "SETTINGS_UNAVAILABLE"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeRateLimited         = "RATE_LIMITED"
	CodeInternal            = "INTERNAL"
)

// AppError carries an error code and HTTP status alongside the underlying
// cause, so handlers can map domain failures to responses in one place.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// WithDetails returns a copy of the error with structured details attached.
func (e *AppError) WithDetails(details any) *AppError {
	clone := *e
	clone.Details = details
	return &clone
}

// BadRequest builds a 400 error.
func BadRequest(message string, err error) *AppError {
	return NewAppError(CodeBadRequest, message, http.StatusBadRequest, err)
}

// NotFound builds a 404 error.
func NotFound(code, message string) *AppError {
	return NewAppError(code, message, http.StatusNotFound, nil)
}

// Unprocessable builds a 422 error for semantically invalid payloads.
func Unprocessable(code, message string, err error) *AppError {
	return NewAppError(code, message, http.StatusUnprocessableEntity, err)
}

// Unavailable builds a 503 error for degraded upstream dependencies.
func Unavailable(code, message string, err error) *AppError {
	return NewAppError(code, message, http.StatusServiceUnavailable, err)
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}
