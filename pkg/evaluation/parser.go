package evaluation

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/soundprediction/go-evolsynth/pkg/llm"
	"github.com/soundprediction/go-evolsynth/pkg/types"
)

// Scoring constants.
const (
	MinRawScore     = 1.0
	MaxRawScore     = 10.0
	NeutralRawScore = 5.0
	// MaxNormalizedScore caps every normalized score, even a perfect 10/10.
	MaxNormalizedScore = 0.95
)

// Strategy names recorded on each EvaluationScore.
const (
	StrategyJSON       = "json"
	StrategyLabeled    = "labeled"
	StrategyFraction   = "fraction"
	StrategyPercent    = "percent"
	StrategyLineNumber = "line_number"
	StrategyDefault    = "default"
)

// ParsedScore is the raw score recovered for one metric.
type ParsedScore struct {
	Raw      float64
	Strategy string
}

// Strategy tries to recover a raw 1-10 score for metric from judge output.
type Strategy struct {
	Name  string
	Parse func(text string, metric types.Metric) (float64, bool)
}

// Strategies are tried in order; the first success wins.
var Strategies = []Strategy{
	{Name: StrategyJSON, Parse: parseJSON},
	{Name: StrategyLabeled, Parse: parseLabeled},
	{Name: StrategyFraction, Parse: parseFraction},
	{Name: StrategyPercent, Parse: parsePercent},
	{Name: StrategyLineNumber, Parse: parseLineNumber},
}

// ParseScores recovers a score for every metric. It never fails: a metric
// no strategy can read gets NeutralRawScore with StrategyDefault.
func ParseScores(text string) map[types.Metric]ParsedScore {
	out := make(map[types.Metric]ParsedScore, len(types.Metrics))
	for _, m := range types.Metrics {
		out[m] = ParseScore(text, m)
	}
	return out
}

// ParseScore recovers the score of a single metric.
func ParseScore(text string, metric types.Metric) ParsedScore {
	for _, s := range Strategies {
		if raw, ok := s.Parse(text, metric); ok {
			return ParsedScore{Raw: ClampRaw(raw), Strategy: s.Name}
		}
	}
	return ParsedScore{Raw: NeutralRawScore, Strategy: StrategyDefault}
}

// ClampRaw bounds a raw score to [MinRawScore, MaxRawScore].
func ClampRaw(raw float64) float64 {
	if math.IsNaN(raw) {
		return NeutralRawScore
	}
	return math.Max(MinRawScore, math.Min(MaxRawScore, raw))
}

// Normalize maps a raw score onto [0, MaxNormalizedScore].
func Normalize(raw float64) float64 {
	n := ClampRaw(raw) / MaxRawScore
	return math.Max(0, math.Min(n, MaxNormalizedScore))
}

// labelPattern matches the metric name with spaces, underscores or hyphens
// between words, e.g. "Question Quality", "answer_accuracy".
func labelPattern(metric types.Metric) string {
	words := strings.Split(string(metric), "_")
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	return `(?i)` + strings.Join(words, `[\s_\-]*`)
}

const number = `(\d+(?:\.\d+)?)`

var (
	labeledPatterns = make(map[types.Metric]*regexp.Regexp)
	labelOnly       = make(map[types.Metric]*regexp.Regexp)
	anyLabel        *regexp.Regexp
	jsonFraction    = regexp.MustCompile(`^` + number + `\s*/\s*10$`)

	// Matched against the text between a label and the next label or line end.
	fractionTail = regexp.MustCompile(`^[^\n]{0,40}?` + number + `\s*/\s*10\b`)
	percentTail  = regexp.MustCompile(`^[^\n]{0,40}?` + number + `\s*%`)
	numberTail   = regexp.MustCompile(`^[^\d\n]{0,24}` + number)
)

func init() {
	labels := make([]string, 0, len(types.Metrics))
	for _, m := range types.Metrics {
		label := labelPattern(m)
		labeledPatterns[m] = regexp.MustCompile(label + `\W{0,4}\s*[:=\-]\s*\**\s*` + number + `(\s*[/%])?`)
		labelOnly[m] = regexp.MustCompile(label)
		labels = append(labels, strings.TrimPrefix(label, `(?i)`))
	}
	anyLabel = regexp.MustCompile(`(?i)` + strings.Join(labels, "|"))
}

// tails returns, for every occurrence of metric's label, the text after it
// up to the next metric label or the end of the line. A number outside its
// own metric's tail is never attributed to it.
func tails(text string, metric types.Metric) []string {
	var out []string
	for _, loc := range labelOnly[metric].FindAllStringIndex(text, -1) {
		tail := text[loc[1]:]
		if i := strings.IndexByte(tail, '\n'); i >= 0 {
			tail = tail[:i]
		}
		if next := anyLabel.FindStringIndex(tail); next != nil {
			tail = tail[:next[0]]
		}
		out = append(out, tail)
	}
	return out
}

// firstTailMatch applies re to each tail of metric and returns the first capture.
func firstTailMatch(re *regexp.Regexp, text string, metric types.Metric) (float64, bool) {
	for _, tail := range tails(text, metric) {
		if m := re.FindStringSubmatch(tail); m != nil {
			return atof(m[1])
		}
	}
	return 0, false
}

func parseJSON(text string, metric types.Metric) (float64, bool) {
	if !strings.Contains(text, "{") {
		return 0, false
	}
	var payload map[string]interface{}
	if err := llm.DecodeJSONResponse(text, &payload); err != nil {
		return 0, false
	}
	for key, v := range payload {
		if normalizeKey(key) != string(metric) {
			continue
		}
		return jsonNumber(v)
	}
	return 0, false
}

func normalizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(key)
}

func jsonNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		s := strings.TrimSpace(n)
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
		if m := jsonFraction.FindStringSubmatch(s); m != nil {
			return atof(m[1])
		}
	case map[string]interface{}:
		// {"answer_accuracy": {"score": 7, "reason": "..."}}
		if s, ok := n["score"]; ok {
			return jsonNumber(s)
		}
	}
	return 0, false
}

func parseLabeled(text string, metric types.Metric) (float64, bool) {
	m := labeledPatterns[metric].FindStringSubmatch(text)
	// "8/10" and "80%" belong to the fraction and percent strategies.
	if m == nil || m[2] != "" {
		return 0, false
	}
	return atof(m[1])
}

func parseFraction(text string, metric types.Metric) (float64, bool) {
	return firstTailMatch(fractionTail, text, metric)
}

func parsePercent(text string, metric types.Metric) (float64, bool) {
	pct, ok := firstTailMatch(percentTail, text, metric)
	if !ok {
		return 0, false
	}
	return pct / 10, true
}

// parseLineNumber takes a number shortly after the label, as in
// "Evolution effectiveness was about 3 out of ten".
func parseLineNumber(text string, metric types.Metric) (float64, bool) {
	return firstTailMatch(numberTail, text, metric)
}

func atof(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// describe renders parsed scores for debug logging.
func describe(scores map[types.Metric]ParsedScore) string {
	parts := make([]string, 0, len(types.Metrics))
	for _, m := range types.Metrics {
		s := scores[m]
		parts = append(parts, fmt.Sprintf("%s=%.1f(%s)", m, s.Raw, s.Strategy))
	}
	return strings.Join(parts, " ")
}
