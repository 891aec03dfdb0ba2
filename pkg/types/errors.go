package types

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSettings is returned when generation settings fail validation.
	ErrInvalidSettings = errors.New("invalid generation settings")
	// ErrInvalidDocuments is returned when the document list is empty, too long or has blank entries.
	ErrInvalidDocuments = errors.New("invalid documents")
	// ErrParsingShortfall marks a generation response that yielded fewer items than requested.
	ErrParsingShortfall = errors.New("parsing shortfall")
)

// Stage names a pipeline step that can fail without aborting the run.
type Stage string

const (
	StageBaseQuestions Stage = "base_questions"
	StageEvolution     Stage = "evolution"
	StageContexts      Stage = "contexts"
	StageAnswer        Stage = "answer"
	StageEvaluation    Stage = "evaluation"
	StageCache         Stage = "cache"
)

// Failure kinds recorded on a StageFailure.
const (
	FailureTransient        = "transient"
	FailurePermanent        = "permanent"
	FailureParsingShortfall = "parsing_shortfall"
	FailureCacheUnavailable = "cache_unavailable"
)

// StageFailure records a recoverable failure inside a pipeline run.
type StageFailure struct {
	Stage         Stage         `json:"stage"`
	Kind          string        `json:"kind"`
	EvolutionType EvolutionType `json:"evolution_type,omitempty"`
	DocumentIndex *int          `json:"document_index,omitempty"`
	QuestionID    string        `json:"question_id,omitempty"`
	Requested     int           `json:"requested,omitempty"`
	Produced      int           `json:"produced,omitempty"`
	Error         string        `json:"error"`
}

func (f StageFailure) String() string {
	return fmt.Sprintf("%s/%s: %s", f.Stage, f.Kind, f.Error)
}

// BlocksCaching reports whether a failure of this kind means the run must not be cached.
func (f StageFailure) BlocksCaching() bool {
	switch f.Stage {
	case StageEvaluation, StageCache:
		return false
	}
	return f.Kind != FailureParsingShortfall
}

// DocIndex returns a pointer usable as StageFailure.DocumentIndex.
func DocIndex(i int) *int {
	return &i
}
