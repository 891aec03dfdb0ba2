package telemetry

import (
	"context"
	"log/slog"

	"github.com/soundprediction/go-evolsynth/pkg/types"
)

// ErrorCountingHandler is a slog.Handler that counts error records in Metrics
// and enriches every record with the generation ID carried by the context.
type ErrorCountingHandler struct {
	next    slog.Handler
	metrics *Metrics
}

// NewErrorCountingHandler wraps next.
func NewErrorCountingHandler(next slog.Handler, metrics *Metrics) *ErrorCountingHandler {
	return &ErrorCountingHandler{
		next:    next,
		metrics: metrics,
	}
}

// Enabled implements slog.Handler
func (h *ErrorCountingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler
func (h *ErrorCountingHandler) Handle(ctx context.Context, r slog.Record) error {
	if ctx != nil {
		if id, ok := ctx.Value(types.ContextKeyGenerationID).(string); ok && id != "" {
			r = r.Clone()
			r.AddAttrs(slog.String("generation_id", id))
		}
	}

	if err := h.next.Handle(ctx, r); err != nil {
		return err
	}

	if r.Level < slog.LevelError || h.metrics == nil {
		return nil
	}

	stage := "unknown"
	if ctx != nil {
		if v, ok := ctx.Value(types.ContextKeyStage).(types.Stage); ok {
			stage = string(v)
		}
	}
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "stage" {
			stage = a.Value.String()
			return false
		}
		return true
	})
	h.metrics.LoggedErrors.WithLabelValues(stage).Inc()
	return nil
}

// WithAttrs implements slog.Handler
func (h *ErrorCountingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ErrorCountingHandler{
		next:    h.next.WithAttrs(attrs),
		metrics: h.metrics,
	}
}

// WithGroup implements slog.Handler
func (h *ErrorCountingHandler) WithGroup(name string) slog.Handler {
	return &ErrorCountingHandler{
		next:    h.next.WithGroup(name),
		metrics: h.metrics,
	}
}
