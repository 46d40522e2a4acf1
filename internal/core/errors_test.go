package core

import (
	"errors"
	"net/http"
	"testing"
)

func TestGatewayErrorRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  *GatewayError
		want bool
	}{
		{"provider 500", NewProviderError("openai", 500, "boom", nil), true},
		{"provider network", NewProviderError("openai", 0, "conn refused", nil), true},
		{"upstream 429", NewRateLimitError("openai", "slow down"), true},
		{"validation", NewValidationError("bad shape", []string{"name: required"}), false},
		{"parse", NewParseError("not json", nil), false},
		{"dimension", NewDimensionMismatchError(3, 4), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Retryable(); got != tt.want {
				t.Errorf("Retryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGatewayErrorUnwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := NewProviderError("openai", 502, "bad gateway", cause)

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the underlying cause")
	}

	var ge *GatewayError
	if !errors.As(error(err), &ge) {
		t.Fatal("expected errors.As to match *GatewayError")
	}
	if ge.Type != ErrorTypeProvider {
		t.Errorf("expected provider_error, got %s", ge.Type)
	}
}

func TestHTTPStatusCodeDefaults(t *testing.T) {
	tests := []struct {
		err  *GatewayError
		want int
	}{
		{&GatewayError{Type: ErrorTypeValidation}, http.StatusUnprocessableEntity},
		{&GatewayError{Type: ErrorTypeParse}, http.StatusBadGateway},
		{&GatewayError{Type: ErrorTypeDimensionMismatch}, http.StatusBadRequest},
		{&GatewayError{Type: ErrorTypeProvider, StatusCode: 503}, 503},
	}
	for _, tt := range tests {
		if got := tt.err.HTTPStatusCode(); got != tt.want {
			t.Errorf("HTTPStatusCode(%s) = %d, want %d", tt.err.Type, got, tt.want)
		}
	}
}

func TestParseProviderError(t *testing.T) {
	t.Run("JSONBody", func(t *testing.T) {
		body := []byte(`{"error": {"message": "model overloaded", "type": "server_error"}}`)
		err := ParseProviderError("openai", 503, body, nil)
		if err.Message != "model overloaded" {
			t.Errorf("expected parsed message, got %q", err.Message)
		}
		if !err.Retryable() {
			t.Error("503 should be retryable")
		}
	})

	t.Run("RateLimited", func(t *testing.T) {
		err := ParseProviderError("openai", 429, []byte("too many requests"), nil)
		if err.Type != ErrorTypeRateLimit {
			t.Errorf("expected rate_limit_error, got %s", err.Type)
		}
	})

	t.Run("ClientError", func(t *testing.T) {
		err := ParseProviderError("openai", 400, []byte("bad request"), nil)
		if err.Type != ErrorTypeInvalidRequest {
			t.Errorf("expected invalid_request_error, got %s", err.Type)
		}
		if err.Retryable() {
			t.Error("400 should not be retryable")
		}
	})
}
