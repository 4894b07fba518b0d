package normalize

import (
	"encoding/json"
	"strings"
)

// parseText decodes agent text that should hold JSON. It accepts plain JSON,
// JSON inside a markdown fence, and prose with one embedded object (first
// "{" to last "}").
func parseText(text string) (any, bool) {
	text = stripFences(strings.TrimSpace(text))
	if text == "" {
		return nil, false
	}

	var v any
	if err := json.Unmarshal([]byte(text), &v); err == nil {
		return v, true
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &v); err != nil {
		return nil, false
	}
	return v, true
}

func stripFences(text string) string {
	for _, fence := range []string{"```json", "```JSON", "```"} {
		if strings.HasPrefix(text, fence) {
			text = strings.TrimPrefix(text, fence)
			if idx := strings.LastIndex(text, "```"); idx >= 0 {
				text = text[:idx]
			}
			return strings.TrimSpace(text)
		}
	}
	return text
}
