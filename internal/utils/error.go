package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes with HTTP status mapping
const (
	// General errors
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeValidationFailed  = "VALIDATION_ERROR"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeConflict          = "CONFLICT"
	ErrCodeInternalError     = "INTERNAL_ERROR"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ErrCodeTimeout           = "TIMEOUT"

	// Authentication errors
	ErrCodeTokenExpired = "TOKEN_EXPIRED"
	ErrCodeInvalidToken = "INVALID_TOKEN"

	// Clone errors
	ErrCodeSiteNotFound    = "SITE_NOT_FOUND"
	ErrCodeUserNotFound    = "USER_NOT_FOUND"
	ErrCodeAddressTaken    = "ADDRESS_TAKEN"
	ErrCodeInvalidIdentity = "INVALID_IDENTITY"
	ErrCodeDatabaseError   = "DATABASE_ERROR"
	ErrCodeRewriteFailed   = "REWRITE_FAILED"
)

// HTTPStatus maps error codes to HTTP status codes
var HTTPStatus = map[string]int{
	ErrCodeInvalidRequest:    http.StatusBadRequest,
	ErrCodeValidationFailed:  http.StatusUnprocessableEntity,
	ErrCodeUnauthorized:      http.StatusUnauthorized,
	ErrCodeForbidden:         http.StatusForbidden,
	ErrCodeNotFound:          http.StatusNotFound,
	ErrCodeConflict:          http.StatusConflict,
	ErrCodeInternalError:     http.StatusInternalServerError,
	ErrCodeRateLimitExceeded: http.StatusTooManyRequests,
	ErrCodeTimeout:           http.StatusGatewayTimeout,

	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeInvalidToken: http.StatusUnauthorized,

	ErrCodeSiteNotFound:    http.StatusNotFound,
	ErrCodeUserNotFound:    http.StatusNotFound,
	ErrCodeAddressTaken:    http.StatusConflict,
	ErrCodeInvalidIdentity: http.StatusBadRequest,
	ErrCodeDatabaseError:   http.StatusInternalServerError,
	ErrCodeRewriteFailed:   http.StatusInternalServerError,
}

var defaultMessages = map[string]string{
	ErrCodeInvalidRequest:    "The request is invalid",
	ErrCodeValidationFailed:  "Validation failed",
	ErrCodeUnauthorized:      "Unauthorized access",
	ErrCodeForbidden:         "Access forbidden",
	ErrCodeNotFound:          "Resource not found",
	ErrCodeConflict:          "Resource conflict",
	ErrCodeInternalError:     "Internal server error",
	ErrCodeRateLimitExceeded: "Rate limit exceeded",
	ErrCodeTimeout:           "Operation timed out",

	ErrCodeTokenExpired: "Token expired",
	ErrCodeInvalidToken: "Invalid token",

	ErrCodeSiteNotFound:    "Site not found",
	ErrCodeUserNotFound:    "User not found",
	ErrCodeAddressTaken:    "Site address already in use",
	ErrCodeInvalidIdentity: "Invalid tenant identity",
	ErrCodeDatabaseError:   "Database error",
	ErrCodeRewriteFailed:   "Rewrite failed",
}

// AppError represents an application error with additional context
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Status returns the HTTP status for the error code.
func (e *AppError) Status() int {
	if status, ok := HTTPStatus[e.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// NewAppError builds an AppError. An empty message takes the code's default;
// the cause's text becomes the details.
func NewAppError(code, message string, cause error) *AppError {
	if message == "" {
		message = defaultMessages[code]
	}
	if message == "" {
		message = "Unknown error"
	}
	e := &AppError{Code: code, Message: message, Cause: cause}
	if cause != nil {
		e.Details = cause.Error()
	}
	return e
}

func NewValidationError(message string, cause error) *AppError {
	return NewAppError(ErrCodeValidationFailed, message, cause)
}

func NewNotFoundError(code, resource string) *AppError {
	return NewAppError(code, fmt.Sprintf("%s not found", resource), nil)
}

// AsAppError returns err as an AppError, wrapping anything else as an
// internal error.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewAppError(ErrCodeInternalError, "", err)
}

// GetErrorStatus returns the HTTP status code for an error
func GetErrorStatus(err error) int {
	return AsAppError(err).Status()
}
