package chat

import (
	"encoding/json"
	"strings"
)

// ParseFallback extracts the reply from a non-stream response body: the JSON
// text field, then answer, else the body itself.
func ParseFallback(body []byte) string {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err == nil {
		for _, key := range []string{"text", "answer"} {
			if s, ok := obj[key].(string); ok && s != "" {
				return s
			}
		}
	}
	return strings.TrimSpace(string(body))
}
