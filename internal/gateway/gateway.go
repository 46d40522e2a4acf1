// Package gateway orchestrates the request pipeline: cache lookup, rate
// limiting, provider calls, usage tracking, and response caching.
package gateway

import (
	"context"
	"log/slog"
	"time"

	"aigate/internal/cache"
	"aigate/internal/core"
	"aigate/internal/embedding"
	"aigate/internal/metrics"
	"aigate/internal/ratelimit"
	"aigate/internal/usage"
)

// Default models used when the caller does not specify one.
const (
	DefaultChatModel      = "gpt-4o-mini"
	DefaultEmbeddingModel = "text-embedding-3-small"
)

// Config holds gateway configuration. Zero values select sensible defaults.
type Config struct {
	// DefaultModel is used when a call does not specify a model.
	DefaultModel string

	// EmbeddingModel is the model used for embedding generation.
	EmbeddingModel string

	// Cache configures the in-memory response cache.
	Cache cache.MemoryConfig

	// Store overrides the in-memory cache with an external backend when set.
	Store cache.Store

	// RateLimit configures the per-tenant limiter.
	RateLimit ratelimit.Config

	// Pricing is the model price table for cost estimation.
	Pricing usage.Pricing

	// Sink receives every usage record for durable persistence. May be nil.
	Sink usage.Writer

	// Logger for pipeline events. Defaults to slog.Default().
	Logger *slog.Logger

	// Metrics receives pipeline instrumentation. May be nil.
	Metrics *metrics.Metrics
}

// Gateway is the resilient front door to a generative AI provider. All
// client traffic flows through it so that caching, rate limiting, and
// usage accounting are applied uniformly.
type Gateway struct {
	provider core.Provider
	store    cache.Store
	limiter  *ratelimit.Limiter
	tracker  *usage.Tracker
	embedder *embedding.Service
	metrics  *metrics.Metrics
	log      *slog.Logger

	defaultModel string

	now func() time.Time
}

// New creates a gateway in front of the given provider.
func New(provider core.Provider, cfg Config) *Gateway {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = DefaultChatModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	store := cfg.Store
	if store == nil {
		store = cache.NewMemory(cfg.Cache)
	}

	return &Gateway{
		provider:     provider,
		store:        store,
		limiter:      ratelimit.New(cfg.RateLimit),
		tracker:      usage.NewTracker(cfg.Pricing, cfg.Sink),
		embedder:     embedding.NewService(provider, cfg.EmbeddingModel),
		metrics:      cfg.Metrics,
		log:          cfg.Logger,
		defaultModel: cfg.DefaultModel,
		now:          time.Now,
	}
}

// Chat runs a chat completion through the full pipeline and returns the
// assistant's reply. Cached responses carry zero usage: the tokens were
// already paid for by whichever request populated the entry.
func (g *Gateway) Chat(ctx context.Context, messages []core.Message, rctx core.RequestContext, opts core.ModelOptions) (*core.AIResponse[string], error) {
	start := g.now()

	if len(messages) == 0 {
		return nil, core.NewInvalidRequestError("messages must not be empty", nil)
	}
	if rctx.TenantID == "" {
		return nil, core.NewInvalidRequestError("tenant_id is required", nil)
	}
	if opts.Model == "" {
		opts.Model = g.defaultModel
	}

	log := g.log.With(
		"tenant", rctx.TenantID,
		"vertical", rctx.Vertical,
		"model", opts.Model,
	)

	// Key on the resolved options so an explicit default model and an
	// omitted one share the same entry.
	key := cache.Key(messages, opts)

	if cached, ok := g.cacheGet(ctx, key, log); ok {
		g.metrics.ObserveCacheHit(string(rctx.Vertical))
		latency := g.now().Sub(start)
		g.metrics.ObserveDuration("chat", latency.Seconds())
		log.Debug("cache hit", "key", key)
		return &core.AIResponse[string]{
			Data:      cached,
			Cached:    true,
			LatencyMs: latency.Milliseconds(),
		}, nil
	}
	g.metrics.ObserveCacheMiss(string(rctx.Vertical))

	if err := g.acquire(ctx, rctx.TenantID); err != nil {
		return nil, err
	}

	resp, err := g.provider.ChatCompletion(ctx, buildChatRequest(messages, opts))
	if err != nil {
		g.metrics.ObserveProviderRequest("chat", "error")
		log.Error("chat completion failed", "error", err)
		return nil, err
	}
	g.metrics.ObserveProviderRequest("chat", "ok")

	if len(resp.Choices) == 0 {
		return nil, core.NewProviderError("", 0, "provider returned no choices", nil)
	}
	content := resp.Choices[0].Message.Content

	// Usage is recorded before the cache write: accounting must not be
	// skippable by a cache failure.
	g.trackChat(rctx, resp)

	if err := g.store.Set(ctx, key, content); err != nil {
		log.Warn("cache write failed", "key", key, "error", err)
	}

	latency := g.now().Sub(start)
	g.metrics.ObserveDuration("chat", latency.Seconds())
	log.Info("chat completed",
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"latency_ms", latency.Milliseconds(),
	)

	return &core.AIResponse[string]{
		Data:      content,
		Usage:     resp.Usage,
		LatencyMs: latency.Milliseconds(),
	}, nil
}

// Complete is a convenience wrapper for single-prompt completions.
func (g *Gateway) Complete(ctx context.Context, prompt string, rctx core.RequestContext, opts core.ModelOptions) (*core.AIResponse[string], error) {
	return g.Chat(ctx, []core.Message{{Role: "user", Content: prompt}}, rctx, opts)
}

// Embed generates an embedding for a single text, rate limited and tracked
// like any other provider call.
func (g *Gateway) Embed(ctx context.Context, text string, rctx core.RequestContext) (*core.AIResponse[embedding.Embedding], error) {
	batch, err := g.EmbedBatch(ctx, []string{text}, rctx)
	if err != nil {
		return nil, err
	}
	return &core.AIResponse[embedding.Embedding]{
		Data:      batch.Data[0],
		Usage:     batch.Usage,
		LatencyMs: batch.LatencyMs,
	}, nil
}

// EmbedBatch embeds all texts in one provider call. The batch consumes a
// single rate limit token regardless of size.
func (g *Gateway) EmbedBatch(ctx context.Context, texts []string, rctx core.RequestContext) (*core.AIResponse[[]embedding.Embedding], error) {
	start := g.now()

	if len(texts) == 0 {
		return nil, core.NewInvalidRequestError("texts must not be empty", nil)
	}
	if rctx.TenantID == "" {
		return nil, core.NewInvalidRequestError("tenant_id is required", nil)
	}

	if err := g.acquire(ctx, rctx.TenantID); err != nil {
		return nil, err
	}

	results, err := g.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		g.metrics.ObserveProviderRequest("embed", "error")
		g.log.Error("embedding failed", "tenant", rctx.TenantID, "error", err)
		return nil, err
	}
	g.metrics.ObserveProviderRequest("embed", "ok")

	total := 0
	for _, e := range results {
		total += e.Tokens
	}
	g.trackEmbedding(rctx, total)

	latency := g.now().Sub(start)
	g.metrics.ObserveDuration("embed", latency.Seconds())

	return &core.AIResponse[[]embedding.Embedding]{
		Data:      results,
		Usage:     core.Usage{PromptTokens: total, TotalTokens: total},
		LatencyMs: latency.Milliseconds(),
	}, nil
}

// FindSimilar embeds the query text and ranks the candidates against it.
func (g *Gateway) FindSimilar(ctx context.Context, query string, candidates []embedding.Candidate, topK int, rctx core.RequestContext) (*core.AIResponse[[]embedding.Match], error) {
	resp, err := g.Embed(ctx, query, rctx)
	if err != nil {
		return nil, err
	}

	matches, err := embedding.FindSimilar(resp.Data.Vector, candidates, topK)
	if err != nil {
		return nil, err
	}

	return &core.AIResponse[[]embedding.Match]{
		Data:      matches,
		Usage:     resp.Usage,
		LatencyMs: resp.LatencyMs,
	}, nil
}

// Usage returns the gateway's usage tracker.
func (g *Gateway) Usage() *usage.Tracker {
	return g.tracker
}

// Limiter returns the gateway's rate limiter.
func (g *Gateway) Limiter() *ratelimit.Limiter {
	return g.limiter
}

// Cache returns the response cache store.
func (g *Gateway) Cache() cache.Store {
	return g.store
}

// Close releases the gateway's resources.
func (g *Gateway) Close() error {
	return g.store.Close()
}

// cacheGet treats any cache error as a miss. The cache is an optimization;
// an unreachable backend must not fail the request.
func (g *Gateway) cacheGet(ctx context.Context, key string, log *slog.Logger) (string, bool) {
	value, ok, err := g.store.Get(ctx, key)
	if err != nil {
		log.Warn("cache read failed", "key", key, "error", err)
		return "", false
	}
	return value, ok
}

// acquire blocks on the tenant's rate limit bucket and records the wait.
func (g *Gateway) acquire(ctx context.Context, tenantID string) error {
	waitStart := g.now()
	if err := g.limiter.Acquire(ctx, tenantID); err != nil {
		return err
	}
	g.metrics.ObserveRateLimitWait(g.now().Sub(waitStart).Seconds())
	return nil
}

func (g *Gateway) trackChat(rctx core.RequestContext, resp *core.ChatResponse) {
	g.tracker.Track(usage.Record{
		TenantID:         rctx.TenantID,
		Vertical:         rctx.Vertical,
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	})
	g.metrics.ObserveTokens(rctx.TenantID, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
}

func (g *Gateway) trackEmbedding(rctx core.RequestContext, tokens int) {
	g.tracker.Track(usage.Record{
		TenantID:     rctx.TenantID,
		Vertical:     rctx.Vertical,
		Model:        g.embedder.Model(),
		PromptTokens: tokens,
		TotalTokens:  tokens,
	})
	g.metrics.ObserveTokens(rctx.TenantID, tokens, 0)
}

// buildChatRequest translates gateway options into the provider wire shape.
func buildChatRequest(messages []core.Message, opts core.ModelOptions) *core.ChatRequest {
	req := &core.ChatRequest{
		Model:       opts.Model,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}

	if opts.SystemPrompt != "" {
		req.Messages = append(req.Messages, core.Message{Role: "system", Content: opts.SystemPrompt})
	}
	req.Messages = append(req.Messages, messages...)

	if opts.ResponseFormat == core.FormatJSON {
		req.ResponseFormat = &core.ResponseFormat{Type: "json_object"}
	}
	return req
}
