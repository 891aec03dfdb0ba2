package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

var fencePattern = regexp.MustCompile("(?s)```(?:json|JSON)?[ \t]*\n?(.*?)```")

// ExtractJSONFromResponse returns the JSON payload of a model response: the
// body of the first code fence if there is one, otherwise the first balanced
// object (or array) in the text. An object left open by truncation is
// returned up to the end of the text. Text without JSON is returned trimmed.
func ExtractJSONFromResponse(response string) string {
	response = strings.TrimSpace(response)
	if m := fencePattern.FindStringSubmatch(response); m != nil {
		return strings.TrimSpace(m[1])
	}
	if v, ok := balanced(response, '{', '}'); ok {
		return v
	}
	if v, ok := balanced(response, '[', ']'); ok {
		return v
	}
	return response
}

// balanced scans from the first open byte to its matching close, skipping
// brackets inside string literals.
func balanced(s string, open, close byte) (string, bool) {
	start := strings.IndexByte(s, open)
	if start < 0 {
		return "", false
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return s[start:], true
}

// DecodeJSONResponse extracts the JSON payload from response and unmarshals it into v,
// repairing common model mistakes (trailing commas, single quotes, truncation) when
// the strict decode fails.
func DecodeJSONResponse(response string, v interface{}) error {
	raw := ExtractJSONFromResponse(response)
	if err := json.Unmarshal([]byte(raw), v); err == nil {
		return nil
	}

	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return fmt.Errorf("failed to repair json: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return fmt.Errorf("failed to decode repaired json: %w", err)
	}
	return nil
}
