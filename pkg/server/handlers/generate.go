package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/soundprediction/go-evolsynth/pkg/documents"
	"github.com/soundprediction/go-evolsynth/pkg/server/dto"
	"github.com/soundprediction/go-evolsynth/pkg/types"
)

// GenerateHandler handles dataset generation and evaluation requests
type GenerateHandler struct {
	pipeline Pipeline
	defaults types.GenerationSettings
	chunker  *documents.Chunker
	logger   *slog.Logger
}

// NewGenerateHandler creates a new generate handler. Requests without
// settings use defaults.
func NewGenerateHandler(p Pipeline, defaults types.GenerationSettings, chunker *documents.Chunker, logger *slog.Logger) *GenerateHandler {
	if chunker == nil {
		chunker = documents.NewChunker(0, -1)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GenerateHandler{
		pipeline: p,
		defaults: defaults,
		chunker:  chunker,
		logger:   logger,
	}
}

// Generate handles POST /generate
func (h *GenerateHandler) Generate(c *gin.Context) {
	var req dto.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	settings, err := h.settings(req.Settings)
	if err != nil {
		badRequest(c, err)
		return
	}

	docs := req.Documents
	if len(req.Files) > 0 {
		decoded, err := documents.LoadBase64(req.Files)
		if err != nil {
			respondError(c, err)
			return
		}
		docs = append(docs, decoded...)
	}
	if req.Chunk {
		docs = h.chunker.SplitDocuments(docs)
	}

	result, err := h.pipeline.Generate(c.Request.Context(), docs, settings)
	if err != nil {
		respondError(c, err)
		return
	}
	if len(result.Failures) > 0 {
		h.logger.Warn("generation finished with failures", "failures", len(result.Failures))
	}
	c.JSON(http.StatusOK, result)
}

// Evaluate handles POST /evaluate
func (h *GenerateHandler) Evaluate(c *gin.Context) {
	var req dto.EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	report, err := h.pipeline.Evaluate(c.Request.Context(), &req.Dataset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewEvaluateResponse(report))
}

// settings decodes raw over the defaults and rejects unknown fields.
func (h *GenerateHandler) settings(raw json.RawMessage) (types.GenerationSettings, error) {
	s := h.defaults
	if len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		return s, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return s, fmt.Errorf("invalid settings: %w", err)
	}
	return s, nil
}
