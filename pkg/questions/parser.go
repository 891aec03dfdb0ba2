package questions

import (
	"regexp"
	"strings"
)

// listItemPattern matches "1.", "1)", "Q1:", "Question 2.", "-", "*" and "•" list prefixes.
var listItemPattern = regexp.MustCompile(`(?i)^(?:q(?:uestion)?\s*\d+\s*[:.)]|\d+\s*[.):]|[-*•])\s*(.*)$`)

// ParseQuestions extracts up to max questions from a model response. Lines that
// are not list items or do not end in a question mark are dropped. When the
// response carries no list items at all, bare lines ending in "?" are accepted.
// A max of zero or less means no limit.
func ParseQuestions(text string, max int) []string {
	var listed, bare []string
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(strings.ReplaceAll(raw, "**", ""))
		if line == "" {
			continue
		}
		if m := listItemPattern.FindStringSubmatch(line); m != nil {
			if q, ok := cleanQuestion(m[1]); ok {
				listed = append(listed, q)
			}
			continue
		}
		if q, ok := cleanQuestion(line); ok {
			bare = append(bare, q)
		}
	}

	candidates := listed
	if len(candidates) == 0 {
		candidates = bare
	}
	return dedupe(candidates, max)
}

// cleanQuestion strips brackets and quotes and keeps only text ending in "?".
func cleanQuestion(s string) (string, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	s = strings.Trim(s, "\"'“”` ")
	s = strings.Join(strings.Fields(s), " ")
	if len(s) < 2 || !strings.HasSuffix(s, "?") {
		return "", false
	}
	return s, true
}

func dedupe(items []string, max int) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		key := strings.ToLower(item)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}
