// Package parsers extracts and validates structured data from raw model
// output. Model text is untrusted input: extraction never panics and parse
// failures surface as explicit results the caller must handle.
package parsers

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"aigate/internal/core"
)

// fenceRe matches a fenced code block, with or without a language tag.
var fenceRe = regexp.MustCompile("(?s)```(?:[a-zA-Z0-9]*)?\\s*(.*?)```")

// ExtractJSON pulls a JSON document out of raw model output. It prefers the
// first fenced code block whose contents are valid JSON; failing that, it
// tries the trimmed raw content. The second return is false when no valid
// JSON is found.
func ExtractJSON(content string) (string, bool) {
	for _, m := range fenceRe.FindAllStringSubmatch(content, -1) {
		candidate := strings.TrimSpace(m[1])
		if candidate != "" && gjson.Valid(candidate) {
			return candidate, true
		}
	}

	trimmed := strings.TrimSpace(content)
	if trimmed != "" && gjson.Valid(trimmed) {
		return trimmed, true
	}
	return "", false
}

// ParseStructured extracts JSON from model output and decodes it into T.
// Failures return a parse error; they are never retried upstream because the
// provider already answered.
func ParseStructured[T any](content string) (T, error) {
	var result T

	raw, ok := ExtractJSON(content)
	if !ok {
		return result, core.NewParseError("model output contains no valid JSON", nil)
	}
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return result, core.NewParseError("model output JSON does not decode", err)
	}
	return result, nil
}

// ParseStructuredOr is ParseStructured with a fallback value instead of an
// error, for callers that prefer a default over propagation.
func ParseStructuredOr[T any](content string, fallback T) T {
	result, err := ParseStructured[T](content)
	if err != nil {
		return fallback
	}
	return result
}
