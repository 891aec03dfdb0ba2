package evolsynth

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/soundprediction/go-evolsynth/pkg/server"
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the evolsynth HTTP server",
	Long: `Start the HTTP server exposing dataset generation and evaluation.

The server provides endpoints for:
- Generating datasets (POST /generate)
- Scoring existing datasets (POST /evaluate)
- Sample documents (GET /documents/sample)
- Cache statistics and namespace clearing
- Health, readiness and Prometheus metrics`,
	RunE: runServer,
}

var (
	serverHost   string
	serverPort   int
	serverMode   string
	serverDryRun bool
)

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().StringVar(&serverHost, "host", "localhost", "Server host")
	serverCmd.Flags().IntVar(&serverPort, "port", 8080, "Server port")
	serverCmd.Flags().StringVar(&serverMode, "mode", "release", "Server mode (debug, release, test)")
	serverCmd.Flags().BoolVar(&serverDryRun, "dry-run", false, "Use canned responses instead of calling the LLM")
	serverCmd.Flags().String("llm-model", "", "LLM model")
	serverCmd.Flags().String("llm-base-url", "", "LLM base URL")
	serverCmd.Flags().String("redis-url", "", "Redis URL for the shared cache")
}

func runServer(cmd *cobra.Command, args []string) error {
	overrideConfigWithFlags(cmd)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx := cmd.Context()
	pipeline, err := newPipeline(ctx, cfg, appLogger, metrics, serverDryRun)
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}
	defer pipeline.Close()

	srv := server.New(cfg, pipeline, metrics, appLogger)
	srv.Setup()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- srv.Start()
	}()

	select {
	case err := <-serverErrChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case sig := <-sigChan:
		appLogger.Info("received signal, shutting down", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := srv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		appLogger.Info("server stopped gracefully")
		return nil
	}
}

func overrideConfigWithFlags(cmd *cobra.Command) {
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serverHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = serverPort
	}
	if cmd.Flags().Changed("mode") {
		cfg.Server.Mode = serverMode
	}
	if cmd.Flags().Changed("llm-model") {
		cfg.LLM.Model, _ = cmd.Flags().GetString("llm-model")
	}
	if cmd.Flags().Changed("llm-base-url") {
		cfg.LLM.BaseURL, _ = cmd.Flags().GetString("llm-base-url")
	}
	if cmd.Flags().Changed("redis-url") {
		cfg.Cache.RedisURL, _ = cmd.Flags().GetString("redis-url")
	}
}
