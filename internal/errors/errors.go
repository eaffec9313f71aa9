package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode is the machine-readable "code" field of an error response.
type ErrorCode string

const (
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"

	ErrCodeValidation      ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrCodeMissingRequired ErrorCode = "MISSING_REQUIRED"
	ErrCodePayloadTooLarge ErrorCode = "PAYLOAD_TOO_LARGE"

	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// Pairing
	ErrCodeAlreadyCompleted    ErrorCode = "ALREADY_COMPLETED"
	ErrCodeInvalidSubscription ErrorCode = "INVALID_SUBSCRIPTION"

	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Push delivery
	ErrCodeDispatchFailed ErrorCode = "DISPATCH_FAILED"
	ErrCodeConfiguration  ErrorCode = "CONFIGURATION_ERROR"

	ErrCodeInternal    ErrorCode = "INTERNAL_ERROR"
	ErrCodeDatabase    ErrorCode = "DATABASE_ERROR"
	ErrCodeUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

var statusByCode = map[ErrorCode]int{
	ErrCodeUnauthorized:        http.StatusUnauthorized,
	ErrCodeForbidden:           http.StatusForbidden,
	ErrCodeValidation:          http.StatusBadRequest,
	ErrCodeInvalidInput:        http.StatusBadRequest,
	ErrCodeMissingRequired:     http.StatusBadRequest,
	ErrCodeInvalidSubscription: http.StatusBadRequest,
	ErrCodePayloadTooLarge:     http.StatusRequestEntityTooLarge,
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyCompleted:    http.StatusConflict,
	ErrCodeRateLimitExceeded:   http.StatusTooManyRequests,
	ErrCodeDispatchFailed:      http.StatusBadGateway,
	ErrCodeUnavailable:         http.StatusServiceUnavailable,
}

// HTTPStatus maps a code to its response status. Unknown codes are 500.
func (c ErrorCode) HTTPStatus() int {
	if status, ok := statusByCode[c]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// AppError is an error whose Code and Message are safe to return to callers.
// The cause is kept for logs only.
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
	cause   error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.cause
}

func (e *AppError) WithCause(err error) *AppError {
	e.cause = err
	return e
}

func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func Wrap(code ErrorCode, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, cause: cause}
}

func Unauthorized(message string) *AppError {
	return New(ErrCodeUnauthorized, message)
}

func Forbidden(message string) *AppError {
	return New(ErrCodeForbidden, message)
}

func NotFound(resource string) *AppError {
	return New(ErrCodeNotFound, resource+" not found")
}

func ValidationError(message string) *AppError {
	return New(ErrCodeValidation, message)
}

func InvalidInput(field string, reason string) *AppError {
	return New(ErrCodeInvalidInput, fmt.Sprintf("Invalid %s: %s", field, reason))
}

func MissingRequired(field string) *AppError {
	return New(ErrCodeMissingRequired, field+" is required")
}

func PayloadTooLarge(limit int64) *AppError {
	return New(ErrCodePayloadTooLarge, "Request body too large").
		WithDetails(map[string]int64{"limitBytes": limit})
}

func AlreadyCompleted() *AppError {
	return New(ErrCodeAlreadyCompleted, "Pairing session already completed")
}

func InvalidSubscription(reason string) *AppError {
	return New(ErrCodeInvalidSubscription, "Invalid push subscription: "+reason)
}

func RateLimitExceeded() *AppError {
	return New(ErrCodeRateLimitExceeded, "Rate limit exceeded")
}

func DispatchFailed(cause error) *AppError {
	return Wrap(ErrCodeDispatchFailed, "Failed to send push notification", cause)
}

func Configuration(message string) *AppError {
	return New(ErrCodeConfiguration, message)
}

func Internal(message string) *AppError {
	return New(ErrCodeInternal, message)
}

func Database(cause error) *AppError {
	return Wrap(ErrCodeDatabase, "Database error", cause)
}

func Unavailable(dependency string, cause error) *AppError {
	return Wrap(ErrCodeUnavailable, dependency+" unavailable", cause)
}

// AsAppError finds the first AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err is an AppError carrying code.
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}
