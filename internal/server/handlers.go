// Package server provides HTTP handlers and server setup for the AI gateway.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"aigate/internal/core"
	"aigate/internal/embedding"
	"aigate/internal/gateway"
	"aigate/internal/parsers"
)

// Tenant identification headers.
const (
	HeaderTenantID  = "X-Tenant-ID"
	HeaderVertical  = "X-Vertical"
	HeaderRequestID = "X-Request-ID"
)

// Handler holds the HTTP handlers
type Handler struct {
	gateway *gateway.Gateway
}

// NewHandler creates a new handler backed by the gateway
func NewHandler(gw *gateway.Gateway) *Handler {
	return &Handler{gateway: gw}
}

// ChatBody is the request body for POST /v1/chat.
type ChatBody struct {
	Messages []core.Message    `json:"messages"`
	Options  core.ModelOptions `json:"options"`
}

// StructuredBody is the request body for POST /v1/chat/structured.
type StructuredBody struct {
	Messages []core.Message    `json:"messages"`
	Options  core.ModelOptions `json:"options"`
	Schema   json.RawMessage   `json:"schema"`
}

// CompleteBody is the request body for POST /v1/completions.
type CompleteBody struct {
	Prompt  string            `json:"prompt"`
	Options core.ModelOptions `json:"options"`
}

// EmbeddingsBody is the request body for POST /v1/embeddings.
type EmbeddingsBody struct {
	Input []string `json:"input"`
}

// SimilarBody is the request body for POST /v1/similar.
type SimilarBody struct {
	Query      string                `json:"query"`
	Candidates []embedding.Candidate `json:"candidates"`
	TopK       int                   `json:"top_k"`
}

// Chat handles POST /v1/chat
func (h *Handler) Chat(c echo.Context) error {
	var body ChatBody
	if err := c.Bind(&body); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body: "+err.Error(), err))
	}

	ctx, rctx, err := h.requestContext(c)
	if err != nil {
		return handleError(c, err)
	}

	resp, err := h.gateway.Chat(ctx, body.Messages, rctx, body.Options)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// ChatStructured handles POST /v1/chat/structured. The schema is compiled
// per request; callers with hot schemas should use the Go API instead.
func (h *Handler) ChatStructured(c echo.Context) error {
	var body StructuredBody
	if err := c.Bind(&body); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body: "+err.Error(), err))
	}
	if len(body.Schema) == 0 {
		return handleError(c, core.NewInvalidRequestError("schema is required", nil))
	}

	schema, err := parsers.CompileSchema(string(body.Schema))
	if err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid schema: "+err.Error(), err))
	}

	ctx, rctx, err := h.requestContext(c)
	if err != nil {
		return handleError(c, err)
	}

	resp, err := gateway.ChatStructured[json.RawMessage](ctx, h.gateway, body.Messages, rctx, body.Options, schema)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Complete handles POST /v1/completions
func (h *Handler) Complete(c echo.Context) error {
	var body CompleteBody
	if err := c.Bind(&body); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body: "+err.Error(), err))
	}
	if body.Prompt == "" {
		return handleError(c, core.NewInvalidRequestError("prompt is required", nil))
	}

	ctx, rctx, err := h.requestContext(c)
	if err != nil {
		return handleError(c, err)
	}

	resp, err := h.gateway.Complete(ctx, body.Prompt, rctx, body.Options)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Embeddings handles POST /v1/embeddings
func (h *Handler) Embeddings(c echo.Context) error {
	var body EmbeddingsBody
	if err := c.Bind(&body); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body: "+err.Error(), err))
	}

	ctx, rctx, err := h.requestContext(c)
	if err != nil {
		return handleError(c, err)
	}

	resp, err := h.gateway.EmbedBatch(ctx, body.Input, rctx)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Similar handles POST /v1/similar
func (h *Handler) Similar(c echo.Context) error {
	var body SimilarBody
	if err := c.Bind(&body); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body: "+err.Error(), err))
	}
	if body.Query == "" {
		return handleError(c, core.NewInvalidRequestError("query is required", nil))
	}

	ctx, rctx, err := h.requestContext(c)
	if err != nil {
		return handleError(c, err)
	}

	resp, err := h.gateway.FindSimilar(ctx, body.Query, body.Candidates, body.TopK, rctx)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// UsageStats handles GET /v1/usage/:tenant
func (h *Handler) UsageStats(c echo.Context) error {
	tenant := c.Param("tenant")

	days := 30
	if raw := c.QueryParam("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return handleError(c, core.NewInvalidRequestError("days must be a positive integer", err))
		}
		days = parsed
	}

	return c.JSON(http.StatusOK, h.gateway.Usage().Stats(tenant, days))
}

// Health handles GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// requestContext extracts caller identity from headers. A missing request ID
// is generated so every provider call is correlatable.
func (h *Handler) requestContext(c echo.Context) (ctx context.Context, rctx core.RequestContext, err error) {
	tenantID := c.Request().Header.Get(HeaderTenantID)
	if tenantID == "" {
		return nil, rctx, core.NewInvalidRequestError("missing "+HeaderTenantID+" header", nil)
	}

	vertical := core.Vertical(c.Request().Header.Get(HeaderVertical))
	if vertical == "" {
		vertical = core.VerticalGeneral
	}

	requestID := c.Request().Header.Get(HeaderRequestID)
	if requestID == "" {
		requestID = uuid.New().String()
	}

	rctx = core.RequestContext{
		TenantID:  tenantID,
		Vertical:  vertical,
		RequestID: requestID,
	}
	return core.WithRequestID(c.Request().Context(), requestID), rctx, nil
}

// handleError converts gateway errors to appropriate HTTP responses
func handleError(c echo.Context, err error) error {
	var gatewayErr *core.GatewayError
	if errors.As(err, &gatewayErr) {
		return c.JSON(gatewayErr.HTTPStatusCode(), gatewayErr.ToJSON())
	}

	// Fallback for unexpected errors
	return c.JSON(http.StatusInternalServerError, map[string]interface{}{
		"error": map[string]interface{}{
			"type":    "internal_error",
			"message": "an unexpected error occurred",
		},
	})
}
