package logger

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorGreen  = "\033[32m"
	colorCyan   = "\033[36m"
	colorDim    = "\033[2m"
)

// Attribute keys lifted out of the key=value tail into the run tag.
const (
	KeyGenerationID = "generation_id"
	KeyStage        = "stage"
)

// shortIDLen is how much of a generation ID the run tag shows.
const shortIDLen = 8

// greenMarkers color info messages about finished work or cache hits.
var greenMarkers = []string{"complete", "cache hit", "cached"}

// ColorHandler is a line-oriented slog.Handler for terminals. Records are
// colored by level, and the generation ID and stage, when present, are
// rendered as a "[1a2b3c4d/answer]" tag ahead of the message so concurrent
// runs can be told apart.
type ColorHandler struct {
	w      io.Writer
	level  slog.Leveler
	attrs  []slog.Attr
	groups []string
	tag    runTag
	mu     *sync.Mutex
}

type runTag struct {
	id    string
	stage string
}

// take consumes a if it belongs in the tag.
func (t *runTag) take(a slog.Attr) bool {
	switch a.Key {
	case KeyGenerationID:
		t.id = a.Value.String()
	case KeyStage:
		t.stage = a.Value.String()
	default:
		return false
	}
	return true
}

func (t runTag) String() string {
	if t.id == "" && t.stage == "" {
		return ""
	}
	id := t.id
	if len(id) > shortIDLen {
		id = id[:shortIDLen]
	}
	switch {
	case id == "":
		return "[" + t.stage + "]"
	case t.stage == "":
		return "[" + id + "]"
	default:
		return "[" + id + "/" + t.stage + "]"
	}
}

// NewColorHandler creates a new colored handler that writes directly to w
func NewColorHandler(w io.Writer, opts *slog.HandlerOptions) *ColorHandler {
	h := &ColorHandler{w: w, level: slog.LevelInfo, mu: &sync.Mutex{}}
	if opts != nil && opts.Level != nil {
		h.level = opts.Level
	}
	return h
}

// Enabled implements slog.Handler
func (h *ColorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func levelColor(r slog.Record) string {
	switch {
	case r.Level >= slog.LevelError:
		return colorRed
	case r.Level >= slog.LevelWarn:
		return colorYellow
	case r.Level < slog.LevelInfo:
		return colorCyan
	}
	msg := strings.ToLower(r.Message)
	for _, marker := range greenMarkers {
		if strings.Contains(msg, marker) {
			return colorGreen
		}
	}
	return ""
}

// Handle implements slog.Handler
func (h *ColorHandler) Handle(_ context.Context, r slog.Record) error {
	tag := h.tag
	prefix := strings.Join(h.groups, ".")

	var tail strings.Builder
	for _, a := range h.attrs {
		writeAttr(&tail, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		if prefix != "" || !tag.take(a) {
			writeAttr(&tail, prefix, a)
		}
		return true
	})

	var line strings.Builder
	line.WriteString(r.Time.Format("2006-01-02 15:04:05"))
	line.WriteByte(' ')
	line.WriteString(r.Level.String())
	if s := tag.String(); s != "" {
		line.WriteByte(' ')
		line.WriteString(colorDim)
		line.WriteString(s)
		line.WriteString(colorReset)
	}
	line.WriteByte(' ')
	if color := levelColor(r); color != "" {
		line.WriteString(color)
		line.WriteString(r.Message)
		line.WriteString(colorReset)
	} else {
		line.WriteString(r.Message)
	}
	line.WriteString(tail.String())
	line.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, line.String())
	return err
}

func writeAttr(buf *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if prefix != "" {
		key = prefix + "." + key
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			writeAttr(buf, key, ga)
		}
		return
	}
	buf.WriteByte(' ')
	buf.WriteString(key)
	buf.WriteByte('=')
	buf.WriteString(a.Value.String())
}

func (h *ColorHandler) clone() *ColorHandler {
	c := *h
	c.attrs = append([]slog.Attr(nil), h.attrs...)
	c.groups = append([]string(nil), h.groups...)
	return &c
}

// WithAttrs implements slog.Handler
func (h *ColorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.clone()
	prefix := strings.Join(h.groups, ".")
	for _, a := range attrs {
		if prefix == "" && c.tag.take(a) {
			continue
		}
		if prefix != "" {
			a.Key = prefix + "." + a.Key
		}
		c.attrs = append(c.attrs, a)
	}
	return c
}

// WithGroup implements slog.Handler
func (h *ColorHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	c.groups = append(c.groups, name)
	return c
}
