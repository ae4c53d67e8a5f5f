// Package errors provides the standardized error taxonomy shared by the transport,
// the endpoint catalog, the query cache and the HTTP front.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// ErrCodeRequestTimeout: no response from the backend within the deadline.
	ErrCodeRequestTimeout ErrorCode = "REQUEST_TIMEOUT"
	// ErrCodeRequestFailed: the backend answered with a non-2xx status.
	ErrCodeRequestFailed ErrorCode = "REQUEST_FAILED"
	// ErrCodeValidation: a required local input is missing.
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"
	// ErrCodeUnauthorized: the session is absent or expired for a protected action.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrCodeMalformedResponse: the backend body does not match the expected shape.
	ErrCodeMalformedResponse ErrorCode = "MALFORMED_RESPONSE"

	ErrCodeNetwork  ErrorCode = "NETWORK_ERROR"
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	StatusCode int                    `json:"statusCode,omitempty"`
	Retryable  bool                   `json:"retryable"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is matches another *StandardError by code so errors.Is(err, ErrTimeout) works.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is comparisons.
var (
	ErrTimeout      = &StandardError{Code: ErrCodeRequestTimeout}
	ErrFailed       = &StandardError{Code: ErrCodeRequestFailed}
	ErrValidation   = &StandardError{Code: ErrCodeValidation}
	ErrUnauthorized = &StandardError{Code: ErrCodeUnauthorized}
	ErrMalformed    = &StandardError{Code: ErrCodeMalformedResponse}
)

// ==========================
// 2. Error Constructors
// ==========================

// NewRequestTimeoutError creates a retryable timeout error for an operation.
func NewRequestTimeoutError(operation string, timeout time.Duration) *StandardError {
	return &StandardError{
		Code:      ErrCodeRequestTimeout,
		Message:   "Request timeout",
		Details:   fmt.Sprintf("operation: %s, no response within %s", operation, timeout),
		Retryable: true,
		Metadata:  map[string]interface{}{"operation": operation, "timeoutMs": timeout.Milliseconds()},
		Timestamp: time.Now().UTC(),
	}
}

// NewRequestFailedError creates an error for a non-2xx response. detail is the
// server-provided message and may be empty.
func NewRequestFailedError(operation string, status int, detail string) *StandardError {
	msg := fmt.Sprintf("Request failed with status %d", status)
	return &StandardError{
		Code:       ErrCodeRequestFailed,
		Message:    msg,
		Details:    detail,
		StatusCode: status,
		Retryable:  status >= http.StatusInternalServerError || status == http.StatusTooManyRequests,
		Metadata:   map[string]interface{}{"operation": operation},
		Timestamp:  time.Now().UTC(),
	}
}

// NewValidationError creates a non-retryable local input error.
func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidation,
		Message:   "Missing required input",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnauthorizedError creates a non-retryable session error.
func NewUnauthorizedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnauthorized,
		Message:   "Authentication required",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewMalformedResponseError creates an error for a response body that failed parsing
// or schema validation.
func NewMalformedResponseError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeMalformedResponse,
		Message:   "Malformed response from backend",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: false,
		Metadata:  map[string]interface{}{"operation": operation},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewNetworkError creates a retryable transport-level error (connection refused, reset).
func NewNetworkError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNetwork,
		Message:   "Network error",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Metadata:  map[string]interface{}{"operation": operation},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewInternalError wraps an unexpected error.
func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// AsStandard extracts a *StandardError from err's chain.
func AsStandard(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// Normalize always returns a *StandardError, wrapping unknown errors as INTERNAL_ERROR.
func Normalize(err error) *StandardError {
	if err == nil {
		return nil
	}
	if stdErr, ok := AsStandard(err); ok {
		return stdErr
	}
	return NewInternalError(err)
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	stdErr, ok := AsStandard(err)
	return ok && stdErr.Code == code
}

// IsTimeout reports whether err is a RequestTimeout.
func IsTimeout(err error) bool {
	return IsCode(err, ErrCodeRequestTimeout)
}

// IsRetryable reports whether err is marked retryable.
func IsRetryable(err error) bool {
	stdErr, ok := AsStandard(err)
	return ok && stdErr.Retryable
}

// HTTPStatus maps an error onto the status the portal answers with.
func HTTPStatus(err error) int {
	stdErr, ok := AsStandard(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch stdErr.Code {
	case ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeRequestTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeRequestFailed:
		if stdErr.StatusCode >= 400 && stdErr.StatusCode < 500 {
			return stdErr.StatusCode
		}
		return http.StatusBadGateway
	case ErrCodeMalformedResponse, ErrCodeNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeRequestTimeout, ErrCodeNetwork:
		return "transport"
	case ErrCodeRequestFailed, ErrCodeMalformedResponse:
		return "backend"
	case ErrCodeValidation:
		return "input"
	case ErrCodeUnauthorized:
		return "auth"
	default:
		return "internal"
	}
}
