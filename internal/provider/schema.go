package provider

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/phobologic/codescribe/internal/model"
)

// Schema describes the structure expected of a provider response and knows
// how to parse raw response text into a payload. Parsing includes one
// relaxed recovery pass for responses wrapped in fences or prose.
type Schema interface {
	// JSONMode reports whether the backend should be asked for structured
	// JSON output.
	JSONMode() bool

	// Parse validates and converts raw response text.
	Parse(raw string) (any, error)
}

// moduleKey is the reserved payload key carrying the file-level summary.
const moduleKey = "__module__"

// DocSchema expects a JSON object mapping symbol names (plus the reserved
// "__module__" key) to docstring text. Parse returns *model.DocPayload.
type DocSchema struct{}

func (DocSchema) JSONMode() bool { return true }

func (DocSchema) Parse(raw string) (any, error) {
	obj, err := parseJSONObject(raw)
	if err != nil {
		return nil, err
	}

	payload := &model.DocPayload{Symbols: make(map[string]string)}
	for key, value := range obj {
		text, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("key %q: value is not a string", key)
		}
		if key == moduleKey {
			payload.ModuleDoc = strings.TrimSpace(text)
			continue
		}
		payload.Symbols[key] = strings.TrimSpace(text)
	}
	return payload, nil
}

// TextSchema expects free text. Parse strips code fences and wrapping
// quote delimiters and returns a string.
type TextSchema struct{}

func (TextSchema) JSONMode() bool { return false }

func (TextSchema) Parse(raw string) (any, error) {
	text := strings.TrimSpace(stripFences(raw))
	text = strings.TrimPrefix(text, `"""`)
	text = strings.TrimSuffix(text, `"""`)
	text = strings.TrimPrefix(text, "'''")
	text = strings.TrimSuffix(text, "'''")
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty response")
	}
	return text, nil
}

// parseJSONObject decodes raw into a JSON object. On failure it makes one
// relaxed recovery attempt: strip markdown fences, then re-parse the
// outermost {...} region (model responses are often wrapped in prose).
func parseJSONObject(raw string) (map[string]any, error) {
	data := strings.TrimSpace(raw)

	var obj map[string]any
	if err := json.Unmarshal([]byte(data), &obj); err == nil {
		return obj, nil
	}

	data = stripFences(data)
	start := strings.Index(data, "{")
	end := strings.LastIndex(data, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	if err := json.Unmarshal([]byte(data[start:end+1]), &obj); err != nil {
		return nil, fmt.Errorf("parse JSON response: %w", err)
	}
	return obj, nil
}

// stripFences removes a wrapping markdown code fence, if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// Drop a language tag like "json" on the fence line.
		if strings.TrimSpace(s[:nl]) != "" && !strings.ContainsAny(s[:nl], "{}") {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
