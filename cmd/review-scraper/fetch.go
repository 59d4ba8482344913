package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/maltedev/review-scraper/internal/config"
	"github.com/maltedev/review-scraper/internal/models"
	"github.com/spf13/cobra"
)

func newFetchCmd(cfg *config.Config) *cobra.Command {
	var skip, limit int

	cmd := &cobra.Command{
		Use:   "fetch <target>",
		Short: "Fetch one page of reviews for a target and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := models.NewPagination(skip, limit)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			logger := slog.Default()

			e, err := newEngine(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := e.close(context.Background()); err != nil {
					logger.Error("failed to close engine", "error", err)
				}
			}()

			reviews, err := e.fetcher.FetchPage(ctx, args[0], p)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", args[0], err)
			}
			if reviews == nil {
				reviews = []models.Review{}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]interface{}{"reviews": reviews})
		},
	}

	cmd.Flags().IntVar(&skip, "skip", models.DefaultSkip, "number of reviews to skip")
	cmd.Flags().IntVar(&limit, "limit", models.DefaultLimit, "number of reviews to return")
	return cmd
}
