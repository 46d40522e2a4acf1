package core

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorType represents the type of error that occurred
type ErrorType string

const (
	// ErrorTypeProvider indicates an upstream provider failure (network/5xx)
	ErrorTypeProvider ErrorType = "provider_error"
	// ErrorTypeRateLimit indicates the provider rejected the call with a 429
	ErrorTypeRateLimit ErrorType = "rate_limit_error"
	// ErrorTypeValidation indicates a structured response failed its schema check
	ErrorTypeValidation ErrorType = "validation_error"
	// ErrorTypeParse indicates the model returned non-JSON where JSON was required
	ErrorTypeParse ErrorType = "parse_error"
	// ErrorTypeDimensionMismatch indicates similarity over vectors of unequal length
	ErrorTypeDimensionMismatch ErrorType = "dimension_mismatch"
	// ErrorTypeInvalidRequest indicates a malformed caller request
	ErrorTypeInvalidRequest ErrorType = "invalid_request_error"
)

// GatewayError is the base error type for all gateway errors
type GatewayError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	StatusCode int       `json:"status_code"`
	Provider   string    `json:"provider,omitempty"`
	// Details carries per-field schema violations for validation errors
	Details []string `json:"details,omitempty"`
	// Original error for debugging (not exposed to clients)
	Err error `json:"-"`
}

// Error implements the error interface
func (e *GatewayError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Provider, e.Type, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the error unwrapping interface
func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Retryable reports whether retrying the same call could plausibly succeed.
// Provider 5xx and rate-limit rejections are transient; validation, parse,
// and dimension errors are not fixed by retrying an identical request.
func (e *GatewayError) Retryable() bool {
	switch e.Type {
	case ErrorTypeRateLimit:
		return true
	case ErrorTypeProvider:
		return e.StatusCode == 0 || e.StatusCode >= 500
	default:
		return false
	}
}

// HTTPStatusCode returns the appropriate HTTP status code for this error
func (e *GatewayError) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}
	switch e.Type {
	case ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case ErrorTypeValidation:
		return http.StatusUnprocessableEntity
	case ErrorTypeParse:
		return http.StatusBadGateway
	case ErrorTypeDimensionMismatch, ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ToJSON converts the error to a JSON-compatible map
func (e *GatewayError) ToJSON() map[string]interface{} {
	inner := map[string]interface{}{
		"type":    e.Type,
		"message": e.Message,
	}
	if len(e.Details) > 0 {
		inner["details"] = e.Details
	}
	return map[string]interface{}{"error": inner}
}

// NewProviderError creates a new provider error (upstream failure)
func NewProviderError(provider string, statusCode int, message string, err error) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeProvider,
		Message:    message,
		StatusCode: statusCode,
		Provider:   provider,
		Err:        err,
	}
}

// NewRateLimitError creates a new upstream rate limit error (429)
func NewRateLimitError(provider string, message string) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeRateLimit,
		Message:    message,
		StatusCode: http.StatusTooManyRequests,
		Provider:   provider,
	}
}

// NewValidationError creates a new schema validation error.
// details lists the individual field violations.
func NewValidationError(message string, details []string) *GatewayError {
	return &GatewayError{
		Type:    ErrorTypeValidation,
		Message: message,
		Details: details,
	}
}

// NewParseError creates a new parse error for non-JSON model output
func NewParseError(message string, err error) *GatewayError {
	return &GatewayError{
		Type:    ErrorTypeParse,
		Message: message,
		Err:     err,
	}
}

// NewDimensionMismatchError creates a new dimension mismatch error
func NewDimensionMismatchError(lenA, lenB int) *GatewayError {
	return &GatewayError{
		Type:    ErrorTypeDimensionMismatch,
		Message: fmt.Sprintf("vector dimensions do not match: %d vs %d", lenA, lenB),
	}
}

// NewInvalidRequestError creates a new invalid request error (400)
func NewInvalidRequestError(message string, err error) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeInvalidRequest,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Err:        err,
	}
}

// ParseProviderError parses an error response body from the provider and
// returns an appropriate GatewayError
func ParseProviderError(provider string, statusCode int, body []byte, originalErr error) *GatewayError {
	var errorResponse struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		} `json:"error"`
	}

	message := string(body)
	if err := json.Unmarshal(body, &errorResponse); err == nil && errorResponse.Error.Message != "" {
		message = errorResponse.Error.Message
	}

	switch {
	case statusCode == http.StatusTooManyRequests:
		return NewRateLimitError(provider, message)
	case statusCode >= 400 && statusCode < 500:
		err := NewInvalidRequestError(message, originalErr)
		err.StatusCode = statusCode
		err.Provider = provider
		return err
	default:
		return NewProviderError(provider, statusCode, message, originalErr)
	}
}
