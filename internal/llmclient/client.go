// Package llmclient provides the base HTTP client for provider calls:
// request marshaling, bounded retries with exponential backoff, standardized
// error parsing, and circuit breaking.
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"aigate/internal/core"
)

// Config holds configuration for the provider HTTP client.
type Config struct {
	// ProviderName identifies the provider in errors and logs
	ProviderName string

	// BaseURL is the API base URL
	BaseURL string

	// Timeout bounds each individual HTTP attempt (default: 30s)
	Timeout time.Duration

	// Retry configuration
	MaxRetries     int           // Maximum number of retry attempts (default: 3)
	InitialBackoff time.Duration // Initial backoff duration (default: 1s)
	MaxBackoff     time.Duration // Maximum backoff duration (default: 30s)
	BackoffFactor  float64       // Backoff multiplier (default: 2.0)

	// CircuitBreaker configuration; nil disables circuit breaking
	CircuitBreaker *CircuitBreakerConfig
}

// CircuitBreakerConfig holds circuit breaker settings.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of failures before opening the circuit
	FailureThreshold int
	// SuccessThreshold is the number of successes needed to close an open circuit
	SuccessThreshold int
	// Timeout is how long to wait before probing an open circuit
	Timeout time.Duration
}

// DefaultConfig returns default client configuration.
func DefaultConfig(providerName, baseURL string) Config {
	return Config{
		ProviderName:   providerName,
		BaseURL:        baseURL,
		Timeout:        30 * time.Second,
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2.0,
		CircuitBreaker: &CircuitBreakerConfig{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Timeout:          30 * time.Second,
		},
	}
}

// HeaderSetter is a function that sets headers on an HTTP request.
type HeaderSetter func(req *http.Request)

// Client is the base HTTP client for provider calls.
type Client struct {
	httpClient     *http.Client
	config         Config
	headerSetter   HeaderSetter
	circuitBreaker *circuitBreaker
}

// New creates a new provider client with the given configuration.
func New(config Config, headerSetter HeaderSetter) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return NewWithHTTPClient(&http.Client{Timeout: timeout}, config, headerSetter)
}

// NewWithHTTPClient creates a provider client with a custom HTTP client.
func NewWithHTTPClient(httpClient *http.Client, config Config, headerSetter HeaderSetter) *Client {
	c := &Client{
		httpClient:   httpClient,
		config:       config,
		headerSetter: headerSetter,
	}

	if config.CircuitBreaker != nil {
		c.circuitBreaker = newCircuitBreaker(
			config.CircuitBreaker.FailureThreshold,
			config.CircuitBreaker.SuccessThreshold,
			config.CircuitBreaker.Timeout,
		)
	}

	return c
}

// SetBaseURL updates the base URL.
func (c *Client) SetBaseURL(url string) {
	c.config.BaseURL = url
}

// Request represents an HTTP request to be made.
type Request struct {
	Method   string
	Endpoint string
	Body     interface{} // JSON marshaled if not nil
	Headers  map[string]string
}

// Response represents an HTTP response.
type Response struct {
	StatusCode int
	Body       []byte
}

// Do executes a request with retries and circuit breaking, then unmarshals
// the response.
func (c *Client) Do(ctx context.Context, req Request, result interface{}) error {
	resp, err := c.DoRaw(ctx, req)
	if err != nil {
		return err
	}

	if result != nil {
		if err := json.Unmarshal(resp.Body, result); err != nil {
			return core.NewProviderError(c.config.ProviderName, http.StatusBadGateway,
				"failed to unmarshal response: "+err.Error(), err)
		}
	}

	return nil
}

// DoRaw executes a request with retries and circuit breaking, returning the
// raw response. Each failed attempt is logged with its attempt number; on
// eventual success the retries are transparent to the caller. When all
// attempts fail the last provider error propagates.
func (c *Client) DoRaw(ctx context.Context, req Request) (*Response, error) {
	if c.circuitBreaker != nil && !c.circuitBreaker.Allow() {
		return nil, core.NewProviderError(c.config.ProviderName, http.StatusServiceUnavailable,
			"circuit breaker is open - provider temporarily unavailable", nil)
	}

	var lastErr error
	maxAttempts := c.config.MaxRetries
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			backoff := c.calculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, err := c.doRequest(ctx, req)
		if err != nil {
			lastErr = err
			c.recordFailure()
			c.logAttemptFailure(attempt, maxAttempts, err)
			continue
		}

		if c.isRetryable(resp.StatusCode) {
			c.recordFailure()
			lastErr = core.ParseProviderError(c.config.ProviderName, resp.StatusCode, resp.Body, nil)
			c.logAttemptFailure(attempt, maxAttempts, lastErr)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			// Non-retryable status: client errors don't trip the breaker
			if resp.StatusCode >= 500 {
				c.recordFailure()
			}
			return nil, core.ParseProviderError(c.config.ProviderName, resp.StatusCode, resp.Body, nil)
		}

		if c.circuitBreaker != nil {
			c.circuitBreaker.RecordSuccess()
		}
		return resp, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, core.NewProviderError(c.config.ProviderName, http.StatusBadGateway,
		"request failed after retries", nil)
}

func (c *Client) logAttemptFailure(attempt, maxAttempts int, err error) {
	slog.Warn("provider call failed",
		"provider", c.config.ProviderName,
		"attempt", attempt,
		"max_attempts", maxAttempts,
		"error", err,
	)
}

func (c *Client) recordFailure() {
	if c.circuitBreaker != nil {
		c.circuitBreaker.RecordFailure()
	}
}

// doRequest executes a single HTTP request without retries.
func (c *Client) doRequest(ctx context.Context, req Request) (*Response, error) {
	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, core.NewProviderError(c.config.ProviderName, 0,
			"failed to send request: "+err.Error(), err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.NewProviderError(c.config.ProviderName, 0,
			"failed to read response: "+err.Error(), err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
	}, nil
}

// buildRequest creates an HTTP request from a Request.
func (c *Client) buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	url := c.config.BaseURL + req.Endpoint

	var bodyReader io.Reader
	if req.Body != nil {
		bodyBytes, err := json.Marshal(req.Body)
		if err != nil {
			return nil, core.NewInvalidRequestError("failed to marshal request", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, bodyReader)
	if err != nil {
		return nil, core.NewInvalidRequestError("failed to create request", err)
	}

	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	if c.headerSetter != nil {
		c.headerSetter(httpReq)
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	return httpReq, nil
}

// calculateBackoff calculates the backoff duration before the given attempt.
func (c *Client) calculateBackoff(attempt int) time.Duration {
	initial := c.config.InitialBackoff
	if initial <= 0 {
		initial = 1 * time.Second
	}
	factor := c.config.BackoffFactor
	if factor <= 0 {
		factor = 2.0
	}
	maxBackoff := c.config.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = 30 * time.Second
	}

	backoff := float64(initial) * math.Pow(factor, float64(attempt-2))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}
	return time.Duration(backoff)
}

// isRetryable returns true if the status code indicates a retryable error.
func (c *Client) isRetryable(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusInternalServerError ||
		statusCode == http.StatusServiceUnavailable ||
		statusCode == http.StatusBadGateway ||
		statusCode == http.StatusGatewayTimeout
}
