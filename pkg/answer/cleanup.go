package answer

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// leadInWords may sit between "here is" and its colon in a pure lead-in such
// as "Here's what I found:". Any other word makes the opener part of the answer.
var leadInWords = []string{
	"a", "an", "the", "my", "your", "this", "some", "what", "i", "found", "know",
	"answer", "response", "summary", "explanation", "information", "details",
	"overview", "result", "results", "brief", "short", "quick", "concise",
	"clear", "direct", "to", "question", "based", "on", "from", "provided",
	"given", "context",
}

var hereIsPattern = regexp.MustCompile(`(?i)^here(?:'s| is| are)(?:\s+(?:` +
	strings.Join(leadInWords, "|") + `)\b)*\s*:\s*`)

// Rule removes one kind of conversational boilerplate.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
}

// Rules are applied in order, repeatedly, until none matches or maxCleanPasses is reached.
var Rules = []Rule{
	{Name: "affirmation", Pattern: regexp.MustCompile(`(?i)^(?:certainly|sure|of course|absolutely|great question|good question)\b[!.,:]*\s*`)},
	{Name: "here_is", Pattern: hereIsPattern},
	{Name: "based_on_context", Pattern: regexp.MustCompile(`(?i)^(?:based on|according to) (?:the )?(?:provided |given )?context(?:\(s\)|s)?,?\s*`)},
	{Name: "answer_label", Pattern: regexp.MustCompile(`(?i)^(?:\*\*)?answer(?:\*\*)?\s*:\s*(?:\*\*)?\s*`)},
	{Name: "hope_this_helps", Pattern: regexp.MustCompile(`(?i)\s*i hope (?:this|that) helps[^\n]*$`)},
	{Name: "further_help", Pattern: regexp.MustCompile(`(?i)\s*(?:let me know|feel free to ask)[^\n]*$`)},
	{Name: "anything_else", Pattern: regexp.MustCompile(`(?i)\s*(?:is there )?anything else[^\n]*\?\s*$`)},
}

const maxCleanPasses = 3

// Clean strips known greetings and sign-offs from a generated answer and
// re-capitalizes the first letter when an opener was removed. It never
// returns an empty string for non-empty input.
func Clean(text string) string {
	original := strings.TrimSpace(text)
	out := original

	for pass := 0; pass < maxCleanPasses; pass++ {
		changed := false
		for _, rule := range Rules {
			if next := strings.TrimSpace(rule.Pattern.ReplaceAllString(out, "")); next != out {
				out = next
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	if out == "" {
		return original
	}
	if out != original {
		out = capitalize(out)
	}
	return out
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || unicode.IsUpper(r) {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
