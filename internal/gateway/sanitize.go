package gateway

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	fencedBlock = regexp.MustCompile("(?i)```(?:json|[\\w-]+)?\\n([\\s\\S]*?)\\n```")
	inlineCode  = regexp.MustCompile("`([^`]+)`")
)

// Sanitize strips markdown code fences and inline backticks from model output,
// keeping the enclosed text. Sanitize(Sanitize(x)) == Sanitize(x).
func Sanitize(text string) string {
	for {
		next := sanitizeOnce(text)
		if next == text {
			return next
		}
		text = next
	}
}

func sanitizeOnce(text string) string {
	cleaned := fencedBlock.ReplaceAllString(text, "$1")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = inlineCode.ReplaceAllString(cleaned, "$1")
	return strings.TrimSpace(cleaned)
}

// ParseJSON decodes a JSON object from model output into v. The text is
// sanitized first; if it still is not valid JSON, the span from the first
// '{' to the last '}' is tried. When both fail the first error is returned.
func ParseJSON(text string, v any) error {
	cleaned := Sanitize(text)

	err := json.Unmarshal([]byte(cleaned), v)
	if err == nil {
		return nil
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start != -1 && end > start {
		if json.Unmarshal([]byte(cleaned[start:end+1]), v) == nil {
			return nil
		}
	}
	return fmt.Errorf("parse model json: %w", err)
}
