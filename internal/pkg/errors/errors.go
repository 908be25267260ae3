package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
)

const (
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeInvalidState      = "INVALID_STATE"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// AppError is the error taxonomy shared by all API components. Status
// is the HTTP status the error maps to when it reaches the edge.
type AppError struct {
	Code    string
	Message string
	Status  int
	Details interface{}
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func Validation(message string) *AppError {
	return &AppError{Code: ErrCodeInvalidInput, Message: message, Status: http.StatusBadRequest}
}

func Unauthorized(message string) *AppError {
	return &AppError{Code: ErrCodeUnauthorized, Message: message, Status: http.StatusUnauthorized}
}

func Forbidden(message string) *AppError {
	return &AppError{Code: ErrCodeForbidden, Message: message, Status: http.StatusForbidden}
}

func NotFound(message string) *AppError {
	return &AppError{Code: ErrCodeNotFound, Message: message, Status: http.StatusNotFound}
}

func InvalidState(message string) *AppError {
	return &AppError{Code: ErrCodeInvalidState, Message: message, Status: http.StatusConflict}
}

func RateLimited(message string, details interface{}) *AppError {
	return &AppError{Code: ErrCodeRateLimitExceeded, Message: message, Status: http.StatusTooManyRequests, Details: details}
}

func Internal(message string) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: message, Status: http.StatusInternalServerError}
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Message string      `json:"message"`
	Code    string      `json:"code,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

func WriteError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(ErrorResponse{
		Error: ErrorDetail{
			Message: message,
			Code:    code,
			Details: details,
		},
	})
}

// WriteAppError renders an *AppError; anything else becomes a 500
// without leaking the internal message.
func WriteAppError(w http.ResponseWriter, err error) {
	if appErr, ok := err.(*AppError); ok {
		WriteError(w, appErr.Status, appErr.Code, appErr.Message, appErr.Details)
		return
	}
	WriteError(w, http.StatusInternalServerError, ErrCodeInternal, "Internal server error", nil)
}
