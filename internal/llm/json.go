package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSON is returned by ExtractJSON when the text holds no JSON object.
var ErrNoJSON = errors.New("llm: no JSON object found")

// ExtractJSON decodes the span from the first '{' to the last '}' in text.
// Models often wrap JSON in prose or markdown fences, so only that span is
// parsed.
func ExtractJSON(text string) (map[string]any, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, ErrNoJSON
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(text[start:end+1]), &obj); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoJSON, err)
	}
	if obj == nil {
		return nil, ErrNoJSON
	}
	return obj, nil
}
