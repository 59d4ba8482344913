package main

import (
	"fmt"
	"os"

	"github.com/maltedev/review-scraper/internal/config"
	"github.com/maltedev/review-scraper/internal/logger"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:           "review-scraper",
		Short:         "Incremental review extraction service",
		Long:          "review-scraper drives pooled browser sessions to extract reviews page by page, buffering them per target so later pages are served without refetching.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if _, err := logger.Setup(os.Stderr, loaded.Logging.Level, loaded.Logging.Format); err != nil {
				return fmt.Errorf("setup logger: %w", err)
			}
			*cfg = *loaded
			return nil
		},
	}

	rootCmd.AddCommand(
		newServeCmd(cfg),
		newFetchCmd(cfg),
		newImportCmd(cfg),
	)

	return rootCmd
}
