// Package openai adapts the OpenAI API to the gateway's provider boundary.
package openai

import (
	"context"
	"net/http"

	"aigate/internal/core"
	"aigate/internal/llmclient"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Config holds OpenAI provider configuration.
type Config struct {
	// APIKey authenticates against the OpenAI API (passed through, never stored elsewhere)
	APIKey string

	// Organization is the optional OpenAI organization header
	Organization string

	// BaseURL overrides the API base URL (for proxies and tests)
	BaseURL string

	// Client configures retry/backoff/timeout for the underlying HTTP client
	Client llmclient.Config
}

// Provider implements core.Provider for OpenAI.
type Provider struct {
	client *llmclient.Client
	cfg    Config
}

// New creates a new OpenAI provider.
func New(cfg Config) *Provider {
	clientCfg := cfg.Client
	if clientCfg.ProviderName == "" {
		clientCfg.ProviderName = "openai"
	}
	clientCfg.BaseURL = cfg.BaseURL
	if clientCfg.BaseURL == "" {
		clientCfg.BaseURL = defaultBaseURL
	}

	p := &Provider{cfg: cfg}
	p.client = llmclient.New(clientCfg, p.setHeaders)
	return p
}

// setHeaders sets the required headers for OpenAI API requests.
func (p *Provider) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	if p.cfg.Organization != "" {
		req.Header.Set("OpenAI-Organization", p.cfg.Organization)
	}

	// Forward the caller's request ID for provider-side correlation.
	// OpenAI requires ASCII-only values up to 512 bytes.
	if requestID := core.GetRequestID(req.Context()); requestID != "" && isValidClientRequestID(requestID) {
		req.Header.Set("X-Client-Request-Id", requestID)
	}
}

// isValidClientRequestID checks the constraints OpenAI places on the
// X-Client-Request-Id header: ASCII characters only, max 512 characters.
func isValidClientRequestID(id string) bool {
	if len(id) > 512 {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] > 127 {
			return false
		}
	}
	return true
}

// ChatCompletion sends a chat completion request to OpenAI.
func (p *Provider) ChatCompletion(ctx context.Context, req *core.ChatRequest) (*core.ChatResponse, error) {
	var resp core.ChatResponse
	err := p.client.Do(ctx, llmclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/chat/completions",
		Body:     req,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Model == "" {
		resp.Model = req.Model
	}
	return &resp, nil
}

// Embeddings sends an embeddings request to OpenAI.
func (p *Provider) Embeddings(ctx context.Context, req *core.EmbeddingRequest) (*core.EmbeddingResponse, error) {
	var resp core.EmbeddingResponse
	err := p.client.Do(ctx, llmclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/embeddings",
		Body:     req,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Model == "" {
		resp.Model = req.Model
	}
	return &resp, nil
}
