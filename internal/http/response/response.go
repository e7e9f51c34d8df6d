// Package response contains helper types and functions for building the
// uniform JSON envelope returned by all HTTP handlers. Every success body
// carries success=true with a message and optional data; every failure body
// carries success=false with a structured error object.
package response

import (
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/synergyhq/billing-portal/internal/lib/apperr"
)

// Response is the success envelope.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ErrorBody is the error object nested inside a failure envelope.
type ErrorBody struct {
	Code    string `json:"code" example:"VALIDATION_ERROR"`
	Message string `json:"message" example:"invalid request body"`
	Details any    `json:"details,omitempty"`
}

// ErrorResponse is the failure envelope. Used in @Failure annotations as the
// returned error type.
type ErrorResponse struct {
	Success bool      `json:"success" example:"false"`
	Error   ErrorBody `json:"error"`
}

// OK returns a success envelope with the given message and data.
func OK(message string, data any) Response {
	return Response{
		Success: true,
		Message: message,
		Data:    data,
	}
}

// Error builds a failure envelope from an application error.
func Error(appErr *apperr.Error) ErrorResponse {
	return ErrorResponse{
		Success: false,
		Error: ErrorBody{
			Code:    string(appErr.Code),
			Message: appErr.Message,
			Details: appErr.Details,
		},
	}
}

// RenderError maps err onto the error taxonomy and writes the failure
// envelope with the matching HTTP status.
func RenderError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperr.From(err)
	render.Status(r, appErr.Status)
	render.JSON(w, r, Error(appErr))
}

// ValidationError converts validator violations into a VALIDATION_ERROR with
// a per-field details map.
func ValidationError(errs validator.ValidationErrors) *apperr.Error {
	details := make(map[string]string, len(errs))

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			details[err.Field()] = "is a required field"
		case "email":
			details[err.Field()] = "must be a valid email address"
		case "min":
			details[err.Field()] = "is too short"
		case "max":
			details[err.Field()] = "is too long"
		case "uuid":
			details[err.Field()] = "must be a valid uuid"
		case "oneof":
			details[err.Field()] = "has an unsupported value"
		default:
			details[err.Field()] = "is not valid"
		}
	}
	return apperr.Validation("Request validation failed", details)
}
