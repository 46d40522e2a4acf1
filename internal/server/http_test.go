package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aigate/internal/core"
	"aigate/internal/gateway"
	"aigate/internal/metrics"
)

// fakeProvider returns scripted chat and embedding responses.
type fakeProvider struct {
	chatFn func(req *core.ChatRequest) (*core.ChatResponse, error)
}

func (p *fakeProvider) ChatCompletion(_ context.Context, req *core.ChatRequest) (*core.ChatResponse, error) {
	if p.chatFn != nil {
		return p.chatFn(req)
	}
	return &core.ChatResponse{
		Model: req.Model,
		Choices: []core.Choice{
			{Message: core.Message{Role: "assistant", Content: "hello from the model"}},
		},
		Usage: core.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

func (p *fakeProvider) Embeddings(_ context.Context, req *core.EmbeddingRequest) (*core.EmbeddingResponse, error) {
	data := make([]core.EmbeddingData, len(req.Input))
	for i := range req.Input {
		data[i] = core.EmbeddingData{Index: i, Embedding: []float64{1, 0}}
	}
	return &core.EmbeddingResponse{
		Model: req.Model,
		Data:  data,
		Usage: core.EmbeddingUsage{TotalTokens: 5 * len(req.Input)},
	}, nil
}

func newTestServer(t *testing.T, cfg *Config) *Server {
	t.Helper()
	gw := gateway.New(&fakeProvider{}, gateway.Config{})
	t.Cleanup(func() { _ = gw.Close() })
	return New(gw, cfg)
}

func doJSON(t *testing.T, srv *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func tenantHeaders() map[string]string {
	return map[string]string{HeaderTenantID: "tenant-a", HeaderVertical: "events"}
}

func TestChatEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doJSON(t, srv, http.MethodPost, "/v1/chat",
		`{"messages": [{"role": "user", "content": "hi"}]}`, tenantHeaders())

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp core.AIResponse[string]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "hello from the model", resp.Data)
	assert.False(t, resp.Cached)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
}

func TestChatRequiresTenantHeader(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doJSON(t, srv, http.MethodPost, "/v1/chat",
		`{"messages": [{"role": "user", "content": "hi"}]}`, nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_request_error")
}

func TestChatCachedSecondCall(t *testing.T) {
	srv := newTestServer(t, nil)
	body := `{"messages": [{"role": "user", "content": "cache me"}]}`

	rec := doJSON(t, srv, http.MethodPost, "/v1/chat", body, tenantHeaders())
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/v1/chat", body, tenantHeaders())
	require.Equal(t, http.StatusOK, rec.Code)

	var resp core.AIResponse[string]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Cached)
	assert.Zero(t, resp.Usage.TotalTokens)
}

func TestStructuredEndpoint(t *testing.T) {
	gw := gateway.New(&fakeProvider{
		chatFn: func(req *core.ChatRequest) (*core.ChatResponse, error) {
			return &core.ChatResponse{
				Model:   req.Model,
				Choices: []core.Choice{{Message: core.Message{Content: `{"name": "Ada"}`}}},
				Usage:   core.Usage{TotalTokens: 9},
			}, nil
		},
	}, gateway.Config{})
	t.Cleanup(func() { _ = gw.Close() })
	srv := New(gw, nil)

	rec := doJSON(t, srv, http.MethodPost, "/v1/chat/structured", `{
		"messages": [{"role": "user", "content": "who?"}],
		"schema": {"type": "object", "required": ["name"], "properties": {"name": {"type": "string"}}}
	}`, tenantHeaders())

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"Ada"`)
}

func TestStructuredValidationFailure(t *testing.T) {
	gw := gateway.New(&fakeProvider{
		chatFn: func(req *core.ChatRequest) (*core.ChatResponse, error) {
			return &core.ChatResponse{
				Model:   req.Model,
				Choices: []core.Choice{{Message: core.Message{Content: `{"wrong": 1}`}}},
			}, nil
		},
	}, gateway.Config{})
	t.Cleanup(func() { _ = gw.Close() })
	srv := New(gw, nil)

	rec := doJSON(t, srv, http.MethodPost, "/v1/chat/structured", `{
		"messages": [{"role": "user", "content": "who?"}],
		"schema": {"type": "object", "required": ["name"], "properties": {"name": {"type": "string"}}}
	}`, tenantHeaders())

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "validation_error")
	assert.Contains(t, rec.Body.String(), "details")
}

func TestStructuredRequiresSchema(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doJSON(t, srv, http.MethodPost, "/v1/chat/structured",
		`{"messages": [{"role": "user", "content": "hi"}]}`, tenantHeaders())

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompletionsEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doJSON(t, srv, http.MethodPost, "/v1/completions",
		`{"prompt": "say hi"}`, tenantHeaders())

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hello from the model")
}

func TestEmbeddingsEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doJSON(t, srv, http.MethodPost, "/v1/embeddings",
		`{"input": ["a", "b"]}`, tenantHeaders())

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Data  []struct{ Vector []float64 } `json:"data"`
		Usage core.Usage                   `json:"usage"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 2)
	assert.Equal(t, 10, resp.Usage.TotalTokens)
}

func TestSimilarEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doJSON(t, srv, http.MethodPost, "/v1/similar", `{
		"query": "find me",
		"candidates": [
			{"id": "match", "vector": [1, 0]},
			{"id": "other", "vector": [0, 1]}
		],
		"top_k": 1
	}`, tenantHeaders())

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"match"`)
	assert.NotContains(t, rec.Body.String(), `"other"`)
}

func TestUsageEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doJSON(t, srv, http.MethodPost, "/v1/chat",
		`{"messages": [{"role": "user", "content": "track me"}]}`, tenantHeaders())
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/usage/tenant-a?days=7", nil)
	recStats := httptest.NewRecorder()
	srv.ServeHTTP(recStats, req)

	require.Equal(t, http.StatusOK, recStats.Code)

	var stats struct {
		Requests    int `json:"requests"`
		TotalTokens int `json:"total_tokens"`
		PeriodDays  int `json:"period_days"`
	}
	require.NoError(t, json.Unmarshal(recStats.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Requests)
	assert.Equal(t, 15, stats.TotalTokens)
	assert.Equal(t, 7, stats.PeriodDays)
}

func TestUsageEndpointRejectsBadDays(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/usage/tenant-a?days=-1", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestMetricsEndpoint(t *testing.T) {
	gw := gateway.New(&fakeProvider{}, gateway.Config{})
	t.Cleanup(func() { _ = gw.Close() })
	srv := New(gw, &Config{Metrics: metrics.New()})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
