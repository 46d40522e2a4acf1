package gateway

import (
	"context"
	"encoding/json"

	"aigate/internal/core"
	"aigate/internal/parsers"
)

// ChatStructured runs a chat completion that must produce JSON conforming to
// the given schema. The schema is embedded in the system prompt and the
// provider is forced into JSON mode; the reply is then validated and decoded
// into T. Schema violations surface as a validation error with per-field
// details and are never retried: a malformed reply from a healthy provider
// is a prompt problem, not a transport problem.
func ChatStructured[T any](ctx context.Context, g *Gateway, messages []core.Message, rctx core.RequestContext, opts core.ModelOptions, schema *parsers.Schema) (*core.AIResponse[T], error) {
	opts.ResponseFormat = core.FormatJSON
	opts.SystemPrompt = appendSchemaInstruction(opts.SystemPrompt, schema.Source())

	resp, err := g.Chat(ctx, messages, rctx, opts)
	if err != nil {
		return nil, err
	}

	result, err := parsers.ValidateResponse(resp.Data, schema)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return nil, core.NewValidationError("model output failed schema validation", result.ErrorStrings())
	}

	var data T
	if err := json.Unmarshal(result.Data, &data); err != nil {
		return nil, core.NewParseError("failed to decode validated output: "+err.Error(), err)
	}

	return &core.AIResponse[T]{
		Data:      data,
		Usage:     resp.Usage,
		Cached:    resp.Cached,
		LatencyMs: resp.LatencyMs,
	}, nil
}

// appendSchemaInstruction extends the system prompt with the output contract.
func appendSchemaInstruction(systemPrompt, schemaSource string) string {
	instruction := "You must respond with a single JSON object that conforms to this JSON Schema:\n" + schemaSource
	if systemPrompt == "" {
		return instruction
	}
	return systemPrompt + "\n\n" + instruction
}
