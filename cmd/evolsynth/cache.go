package evolsynth

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cacheFormat string

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the generation cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache backend and entry counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := newStore(cmd.Context(), cfg.Cache, appLogger, metrics)
		if err != nil {
			return err
		}
		defer store.Close()

		stats, err := store.Stats(cmd.Context())
		if err != nil {
			return err
		}
		return writeResult(cmd.OutOrStdout(), cacheFormat, stats)
	},
}

var cacheClearCmd = &cobra.Command{
	Use:       "clear <generation|docs|contexts>",
	Short:     "Remove every entry of one namespace",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"generation", "docs", "contexts"},
	RunE: func(cmd *cobra.Command, args []string) error {
		pipeline, err := newPipeline(cmd.Context(), cfg, appLogger, metrics, true)
		if err != nil {
			return err
		}
		defer pipeline.Close()

		n, err := pipeline.ClearCache(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d entries from %s\n", n, args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd)
	cacheStatsCmd.Flags().StringVar(&cacheFormat, "format", "json", "Output format (json, yaml)")
}
