package parsers

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// Schema is a compiled JSON Schema plus its source text. The source is kept
// so callers can embed the schema in a prompt.
type Schema struct {
	compiled *gojsonschema.Schema
	source   string
}

// CompileSchema compiles a JSON Schema document.
func CompileSchema(source string) (*Schema, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(source))
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return &Schema{compiled: compiled, source: source}, nil
}

// Source returns the schema's source text.
func (s *Schema) Source() string {
	return s.source
}

// FieldError describes a single schema violation.
type FieldError struct {
	Field       string `json:"field"`
	Description string `json:"description"`
}

func (e FieldError) String() string {
	return e.Field + ": " + e.Description
}

// ValidationResult is the outcome of validating model output against a schema:
// either success with the extracted data, or a structured list of violations.
type ValidationResult struct {
	Valid  bool            `json:"valid"`
	Data   json.RawMessage `json:"data,omitempty"`
	Errors []FieldError    `json:"errors,omitempty"`
}

// ErrorStrings flattens the violations for logging or error details.
func (r *ValidationResult) ErrorStrings() []string {
	out := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		out[i] = e.String()
	}
	return out
}

// ValidateResponse extracts JSON from model output and validates it against
// the schema. A missing or malformed JSON document reports as a single
// violation rather than an error: validation is a pure boundary that turns
// "the provider returned JSON" into "the provider returned our JSON".
func ValidateResponse(content string, schema *Schema) (*ValidationResult, error) {
	raw, ok := ExtractJSON(content)
	if !ok {
		return &ValidationResult{
			Valid:  false,
			Errors: []FieldError{{Field: "(root)", Description: "no valid JSON found in model output"}},
		}, nil
	}

	result, err := schema.compiled.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	if !result.Valid() {
		violations := make([]FieldError, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			violations = append(violations, FieldError{
				Field:       e.Field(),
				Description: e.Description(),
			})
		}
		return &ValidationResult{Valid: false, Errors: violations}, nil
	}

	return &ValidationResult{Valid: true, Data: json.RawMessage(raw)}, nil
}
