package evolution

import (
	"regexp"
	"strings"

	"github.com/soundprediction/go-evolsynth/pkg/types"
)

// Item is one entry recovered from a consolidated response.
type Item struct {
	Type     types.EvolutionType
	Question string
	Answer   string
	Context  string
}

var (
	separatorPattern = regexp.MustCompile(`^\s*(?:-{3,}|={3,})\s*$`)
	headerPattern    = regexp.MustCompile(`^\s*(?:#+\s*)?\[?\s*([A-Za-z_\- ]+?)\s*\]?\s*:?\s*$`)
	fieldPattern     = regexp.MustCompile(`(?i)^\s*(?:\*\*)?(question|answer|context)(?:\*\*)?\s*:\s*(?:\*\*)?\s*(.*)$`)
)

// ParseConsolidated reads "[type] / QUESTION: / ANSWER: / CONTEXT:" blocks
// separated by "---" lines. Blocks without a question are dropped, a block
// without its own type header inherits the previous one, and field values may
// continue over several lines.
func ParseConsolidated(text string) []Item {
	var (
		items   []Item
		current Item
		field   string
		lastTyp types.EvolutionType
	)

	flush := func() {
		current.Question = strings.Join(strings.Fields(current.Question), " ")
		current.Answer = strings.TrimSpace(current.Answer)
		current.Context = strings.TrimSpace(current.Context)
		if current.Type == "" {
			current.Type = lastTyp
		}
		if current.Question != "" && current.Type != "" {
			items = append(items, current)
		}
		if current.Type != "" {
			lastTyp = current.Type
		}
		current = Item{}
		field = ""
	}

	for _, line := range strings.Split(text, "\n") {
		if separatorPattern.MatchString(line) {
			flush()
			continue
		}
		if m := fieldPattern.FindStringSubmatch(line); m != nil {
			field = strings.ToLower(m[1])
			if field == "question" && current.Question != "" {
				// A second question without a separator starts a new block.
				typ := current.Type
				flush()
				current.Type = typ
			}
			appendField(&current, field, m[2])
			continue
		}
		if m := headerPattern.FindStringSubmatch(line); m != nil {
			if t, ok := types.ParseEvolutionType(strings.ReplaceAll(m[1], " ", "_")); ok {
				if current.Question != "" {
					flush()
				}
				current.Type = t
				field = ""
				continue
			}
		}
		if field != "" && strings.TrimSpace(line) != "" {
			appendField(&current, field, line)
		}
	}
	flush()
	return items
}

func appendField(item *Item, field, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	var target *string
	switch field {
	case "question":
		target = &item.Question
	case "answer":
		target = &item.Answer
	case "context":
		target = &item.Context
	default:
		return
	}
	if *target != "" {
		*target += "\n"
	}
	*target += value
}
