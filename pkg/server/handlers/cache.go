package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/soundprediction/go-evolsynth/pkg/documents"
	"github.com/soundprediction/go-evolsynth/pkg/server/dto"
)

// CacheHandler handles cache management requests
type CacheHandler struct {
	pipeline Pipeline
}

// NewCacheHandler creates a new cache handler
func NewCacheHandler(p Pipeline) *CacheHandler {
	return &CacheHandler{pipeline: p}
}

// Clear handles DELETE /cache/:namespace
func (h *CacheHandler) Clear(c *gin.Context) {
	ns := c.Param("namespace")
	n, err := h.pipeline.ClearCache(c.Request.Context(), ns)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ClearCacheResponse{Namespace: ns, Deleted: n})
}

// Stats handles GET /cache/stats
func (h *CacheHandler) Stats(c *gin.Context) {
	stats, err := h.pipeline.CacheStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// SampleDocuments handles GET /documents/sample
func SampleDocuments(c *gin.Context) {
	docs := documents.SampleDocuments()
	c.JSON(http.StatusOK, dto.SampleDocumentsResponse{
		Documents: docs,
		Summary:   documents.Summarize(docs),
	})
}
