package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/soundprediction/go-evolsynth"
	"github.com/soundprediction/go-evolsynth/pkg/cache"
	"github.com/soundprediction/go-evolsynth/pkg/documents"
	"github.com/soundprediction/go-evolsynth/pkg/evaluation"
	"github.com/soundprediction/go-evolsynth/pkg/server/dto"
	"github.com/soundprediction/go-evolsynth/pkg/types"
)

// Pipeline is the part of *evolsynth.Client the handlers use.
type Pipeline interface {
	Generate(ctx context.Context, docs []types.DocumentInput, settings types.GenerationSettings) (*types.GenerationResult, error)
	Evaluate(ctx context.Context, ds *types.Dataset) (*evaluation.Report, error)
	ClearCache(ctx context.Context, namespace string) (int, error)
	CacheStats(ctx context.Context) (cache.StoreStats, error)
}

// respondError maps pipeline errors onto status codes.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"
	switch {
	case errors.Is(err, types.ErrInvalidSettings):
		status, code = http.StatusBadRequest, "invalid_settings"
	case errors.Is(err, types.ErrInvalidDocuments), errors.Is(err, documents.ErrUnsupportedFormat):
		status, code = http.StatusBadRequest, "invalid_documents"
	case errors.Is(err, evolsynth.ErrEmptyDataset), errors.Is(err, evolsynth.ErrInvalidDataset):
		status, code = http.StatusBadRequest, "invalid_dataset"
	case errors.Is(err, evolsynth.ErrUnknownNamespace):
		status, code = http.StatusNotFound, "unknown_namespace"
	}
	c.JSON(status, dto.NewErrorResponse(code, status, err))
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, dto.NewErrorResponse("invalid_request", http.StatusBadRequest, err))
}
