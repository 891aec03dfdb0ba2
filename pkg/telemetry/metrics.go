package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the generation pipeline.
//
// Every instance owns its registry so multiple pipelines (and tests) can coexist.
// All methods are safe to call on a nil *Metrics.
//
// Usage:
//
//	metrics := telemetry.NewMetrics()
//	metrics.ObserveLLMCall("gpt-4o-mini", "success", time.Since(start))
//	http.Handle("/metrics", metrics.Handler())
type Metrics struct {
	Registry *prometheus.Registry

	// LLMRequests counts generation attempts.
	// Labels: model, status (success|transient|permanent)
	LLMRequests *prometheus.CounterVec

	// LLMRequestDuration measures attempt latency in seconds.
	// Labels: model
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRetries counts retried attempts.
	// Labels: model, reason
	LLMRetries *prometheus.CounterVec

	// LLMTokens tracks token consumption.
	// Labels: model, type (prompt|completion)
	LLMTokens *prometheus.CounterVec

	// PoolInFlight is the number of held generation pool slots.
	PoolInFlight prometheus.Gauge

	// CacheRequests counts cache lookups.
	// Labels: namespace, result (hit|miss|error)
	CacheRequests *prometheus.CounterVec

	// PipelineRuns counts pipeline runs.
	// Labels: mode (fast|standard), outcome (generated|cached|rejected|partial)
	PipelineRuns *prometheus.CounterVec

	// PipelineDuration measures whole-run latency in seconds.
	// Labels: mode
	PipelineDuration *prometheus.HistogramVec

	// StageFailures counts contained failures.
	// Labels: stage, kind
	StageFailures *prometheus.CounterVec

	// ScoreStrategies counts which parsing layer produced each judge score.
	// Labels: strategy
	ScoreStrategies *prometheus.CounterVec

	// LoggedErrors counts error-level log records.
	// Labels: stage
	LoggedErrors *prometheus.CounterVec
}

// NewMetrics creates the metric set on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		LLMRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evolsynth_llm_requests_total",
				Help: "Total number of generation attempts by model and status",
			},
			[]string{"model", "status"},
		),

		LLMRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "evolsynth_llm_request_duration_seconds",
				Help:    "Duration of generation attempts in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"model"},
		),

		LLMRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evolsynth_llm_retries_total",
				Help: "Total number of retried generation attempts",
			},
			[]string{"model", "reason"},
		),

		LLMTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evolsynth_llm_tokens_total",
				Help: "Total number of tokens used by model and type",
			},
			[]string{"model", "type"},
		),

		PoolInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "evolsynth_llm_pool_in_flight",
				Help: "Generation pool slots currently held",
			},
		),

		CacheRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evolsynth_cache_requests_total",
				Help: "Cache lookups by namespace and result",
			},
			[]string{"namespace", "result"},
		),

		PipelineRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evolsynth_pipeline_runs_total",
				Help: "Pipeline runs by mode and outcome",
			},
			[]string{"mode", "outcome"},
		),

		PipelineDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "evolsynth_pipeline_duration_seconds",
				Help:    "Duration of pipeline runs in seconds",
				Buckets: []float64{0.01, 0.5, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"mode"},
		),

		StageFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evolsynth_stage_failures_total",
				Help: "Contained pipeline failures by stage and kind",
			},
			[]string{"stage", "kind"},
		),

		ScoreStrategies: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evolsynth_score_parse_total",
				Help: "Judge scores by parsing strategy",
			},
			[]string{"strategy"},
		),

		LoggedErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evolsynth_logged_errors_total",
				Help: "Error-level log records by pipeline stage",
			},
			[]string{"stage"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

func (m *Metrics) ObserveLLMCall(model, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.LLMRequests.WithLabelValues(model, status).Inc()
	m.LLMRequestDuration.WithLabelValues(model).Observe(d.Seconds())
}

func (m *Metrics) IncRetry(model, reason string) {
	if m == nil {
		return
	}
	m.LLMRetries.WithLabelValues(model, reason).Inc()
}

func (m *Metrics) AddTokens(model string, prompt, completion int) {
	if m == nil {
		return
	}
	m.LLMTokens.WithLabelValues(model, "prompt").Add(float64(prompt))
	m.LLMTokens.WithLabelValues(model, "completion").Add(float64(completion))
}

func (m *Metrics) SetPoolInFlight(n int) {
	if m == nil {
		return
	}
	m.PoolInFlight.Set(float64(n))
}

func (m *Metrics) ObserveCache(namespace, result string) {
	if m == nil {
		return
	}
	m.CacheRequests.WithLabelValues(namespace, result).Inc()
}

func (m *Metrics) ObservePipeline(mode, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.PipelineRuns.WithLabelValues(mode, outcome).Inc()
	m.PipelineDuration.WithLabelValues(mode).Observe(d.Seconds())
}

func (m *Metrics) IncStageFailure(stage, kind string) {
	if m == nil {
		return
	}
	m.StageFailures.WithLabelValues(stage, kind).Inc()
}

func (m *Metrics) IncScoreStrategy(strategy string) {
	if m == nil {
		return
	}
	m.ScoreStrategies.WithLabelValues(strategy).Inc()
}
