package llm

import (
	"errors"
	"fmt"
)

// ErrorCode classifies provider failures independently of the backend.
type ErrorCode string

const (
	ErrCodeTimeout        ErrorCode = "timeout"
	ErrCodeAuthentication ErrorCode = "authentication"
	ErrCodeRateLimited    ErrorCode = "rate_limited"
	ErrCodeModelNotFound  ErrorCode = "model_not_found"
	ErrCodeInvalidRequest ErrorCode = "invalid_request"
	ErrCodeServerError    ErrorCode = "server_error"
	ErrCodeUnavailable    ErrorCode = "unavailable"
)

// ProviderError is the typed error every backend returns.
type ProviderError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// NewProviderError wraps err with a code and message.
func NewProviderError(code ErrorCode, message string, err error) *ProviderError {
	return &ProviderError{Code: code, Message: message, Err: err}
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("llm %s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("llm %s: %s", e.Code, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// CodeOf extracts the ErrorCode from err, if it carries one.
func CodeOf(err error) (ErrorCode, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Code, true
	}
	return "", false
}

// IsCode reports whether err is a ProviderError with the given code.
func IsCode(err error, code ErrorCode) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}
