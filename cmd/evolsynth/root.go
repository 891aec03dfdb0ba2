package evolsynth

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/soundprediction/go-evolsynth/pkg/config"
	"github.com/soundprediction/go-evolsynth/pkg/logger"
	"github.com/soundprediction/go-evolsynth/pkg/telemetry"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	logFormat  string

	cfg       *config.Config
	appLogger *slog.Logger
	metrics   *telemetry.Metrics
)

var rootCmd = &cobra.Command{
	Use:   "evolsynth",
	Short: "Generate synthetic evaluation datasets from documents",
	Long: `evolsynth turns source documents into question/answer evaluation datasets.

Seed questions are extracted from each document, evolved into harder variants
(simple, multi-context, reasoning and complex), answered from locally retrieved
context and scored by an LLM judge.

Configuration is read from an optional file, EVOLSYNTH_* environment variables
and OPENAI_API_KEY, OPENAI_BASE_URL and REDIS_URL.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if cmd.Flags().Changed("log-level") {
			cfg.Log.Level = logLevel
		}
		if cmd.Flags().Changed("log-format") {
			cfg.Log.Format = logFormat
		}

		level, err := logger.ParseLevel(cfg.Log.Level)
		if err != nil {
			return err
		}
		metrics = telemetry.NewMetrics()
		appLogger, err = logger.New(os.Stderr, cfg.Log.Format, level, func(h slog.Handler) slog.Handler {
			return telemetry.NewErrorCountingHandler(h, metrics)
		})
		if err != nil {
			return err
		}
		slog.SetDefault(appLogger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a config file (yaml, json or toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
