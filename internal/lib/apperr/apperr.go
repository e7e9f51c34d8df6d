// Package apperr defines the API error taxonomy shared by all handlers.
//
// Every domain error is one of a closed set of kinds, each carrying an HTTP
// status and a stable machine-readable code. Services raise these close to
// the point of detection; the outermost handler maps them onto the response
// envelope. Anything that is not an *Error surfaces to the client as a
// generic internal error, never with internal detail.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies an error kind in responses.
type Code string

const (
	CodeValidation     Code = "VALIDATION_ERROR"
	CodeAuthentication Code = "AUTHENTICATION_ERROR"
	CodeAuthorization  Code = "AUTHORIZATION_ERROR"
	CodeNotFound       Code = "NOT_FOUND"
	CodeConflict       Code = "CONFLICT"
	CodeRateLimit      Code = "RATE_LIMIT"
	CodeGateway        Code = "GATEWAY_ERROR"
	CodeInternal       Code = "INTERNAL_ERROR"
)

// Error is a domain error with an HTTP mapping.
type Error struct {
	Code    Code
	Status  int
	Message string
	Details any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Validation reports invalid input, with optional field-level details.
func Validation(message string, details any) *Error {
	return &Error{Code: CodeValidation, Status: http.StatusBadRequest, Message: message, Details: details}
}

// Authentication reports a missing or failed identity proof.
func Authentication(message string) *Error {
	if message == "" {
		message = "Authentication required"
	}
	return &Error{Code: CodeAuthentication, Status: http.StatusUnauthorized, Message: message}
}

// Authorization reports a denied action on a known identity.
func Authorization(message string) *Error {
	if message == "" {
		message = "Access denied"
	}
	return &Error{Code: CodeAuthorization, Status: http.StatusForbidden, Message: message}
}

// NotFound reports a missing resource by name.
func NotFound(resource string) *Error {
	if resource == "" {
		resource = "Resource"
	}
	return &Error{Code: CodeNotFound, Status: http.StatusNotFound, Message: resource + " not found"}
}

// Conflict reports a duplicate resource.
func Conflict(message string) *Error {
	if message == "" {
		message = "Resource already exists"
	}
	return &Error{Code: CodeConflict, Status: http.StatusConflict, Message: message}
}

// RateLimit reports request throttling.
func RateLimit(retryAfterSeconds int) *Error {
	return &Error{
		Code:    CodeRateLimit,
		Status:  http.StatusTooManyRequests,
		Message: "Too many requests",
		Details: map[string]int{"retryAfter": retryAfterSeconds},
	}
}

// Gateway wraps a failure of the external payment processor.
func Gateway(cause error) *Error {
	return &Error{
		Code:    CodeGateway,
		Status:  http.StatusBadGateway,
		Message: "Payment provider unavailable",
		cause:   cause,
	}
}

// Internal wraps an unexpected failure. The cause is for logs only.
func Internal(cause error) *Error {
	return &Error{
		Code:    CodeInternal,
		Status:  http.StatusInternalServerError,
		Message: "An unexpected error occurred",
		cause:   cause,
	}
}

// From extracts the *Error from err, or folds err into an internal error.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}
