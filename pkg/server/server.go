package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/soundprediction/go-evolsynth/pkg/config"
	"github.com/soundprediction/go-evolsynth/pkg/documents"
	"github.com/soundprediction/go-evolsynth/pkg/server/handlers"
	"github.com/soundprediction/go-evolsynth/pkg/telemetry"
)

// Server is the HTTP boundary of the generation pipeline.
type Server struct {
	config   *config.Config
	pipeline handlers.Pipeline
	metrics  *telemetry.Metrics
	logger   *slog.Logger
	router   *gin.Engine
	server   *http.Server
}

// New creates a server. Call Setup before Start or Handler.
func New(cfg *config.Config, pipeline handlers.Pipeline, metrics *telemetry.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Server.Mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
		gin.SetMode(cfg.Server.Mode)
	}
	return &Server{
		config:   cfg,
		pipeline: pipeline,
		metrics:  metrics,
		logger:   logger,
	}
}

// Setup registers middleware and routes.
func (s *Server) Setup() {
	s.router = gin.New()
	s.router.Use(gin.Recovery(), s.requestLogger())

	health := handlers.NewHealthHandler(s.pipeline)
	generate := handlers.NewGenerateHandler(s.pipeline, s.config.Generation,
		documents.NewChunker(s.config.Pipeline.ChunkSize, s.config.Pipeline.ChunkOverlap), s.logger)
	cacheHandler := handlers.NewCacheHandler(s.pipeline)

	s.router.GET("/health", health.HealthCheck)
	s.router.GET("/ready", health.ReadinessCheck)
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	s.router.POST("/generate", generate.Generate)
	s.router.POST("/evaluate", generate.Evaluate)
	s.router.GET("/documents/sample", handlers.SampleDocuments)

	s.router.GET("/cache/stats", cacheHandler.Stats)
	s.router.DELETE("/cache/:namespace", cacheHandler.Clear)

	s.server = &http.Server{
		Addr:              s.config.Address(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	if s.server == nil {
		return fmt.Errorf("server not set up")
	}
	s.logger.Info("http server listening", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the server down, waiting for in-flight requests until ctx is done.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		s.logger.Log(c.Request.Context(), level, "http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
