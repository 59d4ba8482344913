package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/maltedev/review-scraper/internal/config"
	"github.com/maltedev/review-scraper/internal/database"
	"github.com/spf13/cobra"
)

func newImportCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "import <export.csv>",
		Short: "Import a CSV review export into the review store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cfg.Database.Enabled() {
				return errors.New("DB_HOST must be set to import reviews")
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open export: %w", err)
			}
			defer f.Close()

			ctx := cmd.Context()
			db, err := openDatabase(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			repo := database.NewReviewRepository(db)
			if err := repo.EnsureSchema(ctx); err != nil {
				return err
			}

			stats, err := repo.Import(ctx, f, slog.Default().With("component", "import"))
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "rows=%d imported=%d skipped=%d\n", stats.Rows, stats.Imported, stats.Skipped)
			return err
		},
	}
}
