package core

// Vertical identifies a logical product line sharing the gateway.
// Verticals do not get rate-limit or cache isolation by default.
type Vertical string

const (
	VerticalEvents  Vertical = "events"
	VerticalFitness Vertical = "fitness"
	VerticalGeneral Vertical = "general"
)

// RequestContext identifies the caller of a gateway operation. It drives
// rate limiting and usage attribution and is never persisted by the gateway.
type RequestContext struct {
	TenantID  string   `json:"tenant_id"`
	Vertical  Vertical `json:"vertical"`
	UserID    string   `json:"user_id,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
}

// Response format values accepted by ModelOptions.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// ModelOptions holds per-call model parameters. All fields are part of the
// cache key material: two calls differing in any option map to distinct
// cache entries.
type ModelOptions struct {
	Model          string   `json:"model,omitempty"`
	MaxTokens      *int     `json:"max_tokens,omitempty"`
	Temperature    *float64 `json:"temperature,omitempty"`
	SystemPrompt   string   `json:"system_prompt,omitempty"`
	ResponseFormat string   `json:"response_format,omitempty"`
}

// AIResponse is the unit of value returned to every gateway caller.
// Usage is all-zero when the response was served from cache.
type AIResponse[T any] struct {
	Data      T     `json:"data"`
	Usage     Usage `json:"usage"`
	Cached    bool  `json:"cached"`
	LatencyMs int64 `json:"latency_ms"`
}
