package dto

import (
	"encoding/json"

	"github.com/soundprediction/go-evolsynth/pkg/documents"
	"github.com/soundprediction/go-evolsynth/pkg/evaluation"
	"github.com/soundprediction/go-evolsynth/pkg/types"
)

// GenerateRequest represents a request to generate a dataset. Documents and
// Files are combined; at least one document is required.
type GenerateRequest struct {
	Documents []types.DocumentInput   `json:"documents,omitempty"`
	Files     []documents.EncodedFile `json:"files,omitempty"`
	// Settings is applied over the server defaults, so partial settings are allowed.
	Settings json.RawMessage `json:"settings,omitempty"`
	// Chunk splits long documents before generation.
	Chunk bool `json:"chunk,omitempty"`
}

// EvaluateRequest represents a request to score an existing dataset
type EvaluateRequest struct {
	Dataset types.Dataset `json:"dataset"`
}

// EvaluateResponse represents the scores of a dataset
type EvaluateResponse struct {
	Scores   []types.EvaluationScore  `json:"evaluation_scores"`
	Summary  *types.EvaluationSummary `json:"evaluation"`
	Failures []types.StageFailure     `json:"failures,omitempty"`
}

// NewEvaluateResponse converts an evaluation report
func NewEvaluateResponse(r *evaluation.Report) EvaluateResponse {
	return EvaluateResponse{
		Scores:   r.Scores,
		Summary:  r.Summary,
		Failures: r.Failures,
	}
}

// SampleDocumentsResponse lists the built-in sample documents
type SampleDocumentsResponse struct {
	Documents []types.DocumentInput `json:"documents"`
	Summary   documents.Summary     `json:"summary"`
}

// ClearCacheResponse reports a namespace deletion
type ClearCacheResponse struct {
	Namespace string `json:"namespace"`
	Deleted   int    `json:"deleted"`
}
