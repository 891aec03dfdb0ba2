package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/soundprediction/go-evolsynth"
	"github.com/soundprediction/go-evolsynth/pkg/config"
	"github.com/soundprediction/go-evolsynth/pkg/llm"
	"github.com/soundprediction/go-evolsynth/pkg/server"
	"github.com/soundprediction/go-evolsynth/pkg/server/dto"
	"github.com/soundprediction/go-evolsynth/pkg/telemetry"
	"github.com/soundprediction/go-evolsynth/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (http.Handler, *llm.ScriptedClient) {
	t.Helper()
	client := llm.NewScriptedClient("gpt-4o-mini", llm.StaticResponse("1. What is Go used for?"))
	metrics := telemetry.NewMetrics()
	pipeline := evolsynth.NewClient(client, nil, evolsynth.WithMetrics(metrics))
	t.Cleanup(func() { _ = pipeline.Close() })

	cfg := &config.Config{
		Server:     config.ServerConfig{Host: "localhost", Port: 8080, Mode: "test"},
		Pipeline:   config.PipelineConfig{ChunkSize: 200, ChunkOverlap: 20},
		Generation: types.DefaultGenerationSettings(),
	}
	srv := server.New(cfg, pipeline, metrics, nil)
	srv.Setup()
	return srv.Handler(), client
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

const generateBody = `{
	"documents": [{"content": "Go is used for cloud services and command line tools."}],
	"settings": {"simple_evolution_count": 1, "multi_context_evolution_count": 0,
		"reasoning_evolution_count": 0, "complex_evolution_count": 0, "skip_evaluation": true}
}`

func TestHealthAndReadiness(t *testing.T) {
	h, _ := newTestServer(t)

	w := do(h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(h, http.MethodGet, "/ready", "")
	require.Equal(t, http.StatusOK, w.Code)
	var ready dto.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ready))
	assert.Equal(t, "ready", ready.Status)
	assert.Equal(t, "memory", ready.CacheBackend)
}

func TestGenerateEndpoint(t *testing.T) {
	h, client := newTestServer(t)

	w := do(h, http.MethodPost, "/generate", generateBody)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result types.GenerationResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.Len(t, result.Dataset.EvolvedQuestions, 1)
	assert.Equal(t, types.EvolutionSimple, result.Dataset.EvolvedQuestions[0].EvolutionType)
	assert.Len(t, result.Dataset.QuestionAnswers, 1)
	assert.Nil(t, result.Dataset.Evaluation)
	assert.Equal(t, 1, result.Metrics.QuestionsRequested)
	calls := client.CallCount()

	// Second identical request is served from the cache.
	w = do(h, http.MethodPost, "/generate", generateBody)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.Metrics.CacheHit)
	assert.Equal(t, calls, client.CallCount())

	w = do(h, http.MethodDelete, "/cache/generation", "")
	require.Equal(t, http.StatusOK, w.Code)
	var cleared dto.ClearCacheResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cleared))
	assert.Equal(t, 1, cleared.Deleted)

	w = do(h, http.MethodGet, "/cache/stats", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"backend":"memory"`)

	w = do(h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "evolsynth_pipeline_runs_total")
}

func TestGenerateEndpointRejectsBadInput(t *testing.T) {
	h, client := newTestServer(t)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"no documents", `{"documents": []}`, "invalid_documents"},
		{"bad settings", `{"documents": [{"content": "x"}], "settings": {"max_tokens": 5}}`, "invalid_settings"},
		{"unknown setting", `{"documents": [{"content": "x"}], "settings": {"colour": "blue"}}`, "invalid_request"},
		{"unsupported file", `{"files": [{"filename": "a.pdf", "content": ""}]}`, "invalid_documents"},
		{"malformed json", `{"documents": `, "invalid_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(h, http.MethodPost, "/generate", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			var e dto.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
			assert.Equal(t, tt.code, e.Error)
		})
	}
	assert.Equal(t, 0, client.CallCount())
}

func TestEvaluateSampleAndCacheErrors(t *testing.T) {
	h, _ := newTestServer(t)

	w := do(h, http.MethodPost, "/evaluate", `{"dataset": {"evolved_questions": []}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(h, http.MethodPost, "/evaluate", `{"dataset": {
		"evolved_questions": [{"id": "q1", "question": "What is Go used for?", "evolution_type": "simple_evolution", "complexity_level": 2}],
		"question_answers": [{"question_id": "q1", "answer": "Services."}]
	}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var eval dto.EvaluateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &eval))
	assert.Len(t, eval.Scores, 3)

	w = do(h, http.MethodGet, "/documents/sample", "")
	require.Equal(t, http.StatusOK, w.Code)
	var samples dto.SampleDocumentsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &samples))
	assert.Len(t, samples.Documents, 3)
	assert.Equal(t, 3, samples.Summary.TotalDocuments)

	w = do(h, http.MethodDelete, "/cache/embeddings", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
