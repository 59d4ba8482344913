package database

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/maltedev/review-scraper/internal/models"
)

// Column order of the review export: created, name, text, sentiment, rating.
const (
	colCreatedAt = iota
	colReviewerName
	colReviewText
	colSentiment
	colRating
	exportColumns
)

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

type ImportStats struct {
	Rows     int `json:"rows"`
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// ParseExport reads a CSV review export with a header row. Rows that do not
// form a valid review are skipped and counted. The result is newest first.
func ParseExport(r io.Reader, logger *slog.Logger) ([]models.Review, ImportStats, error) {
	var stats ImportStats

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, stats, nil
		}
		return nil, stats, fmt.Errorf("failed to read header: %w", err)
	}

	var reviews []models.Review
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("failed to read row %d: %w", stats.Rows+1, err)
		}
		stats.Rows++

		review, err := ParseExportRow(record)
		if err != nil {
			stats.Skipped++
			logger.Debug("skipping export row", "row", stats.Rows, "error", err)
			continue
		}
		reviews = append(reviews, review)
	}

	sort.SliceStable(reviews, func(i, j int) bool {
		return reviews[i].CreatedAt.After(reviews[j].CreatedAt)
	})

	stats.Imported = len(reviews)
	return reviews, stats, nil
}

// ParseExportRow converts one export row. Empty text or sentiment cells
// mean the value is absent.
func ParseExportRow(record []string) (models.Review, error) {
	if len(record) < exportColumns {
		return models.Review{}, fmt.Errorf("expected %d columns, got %d", exportColumns, len(record))
	}

	createdAt, err := parseTimestamp(record[colCreatedAt])
	if err != nil {
		return models.Review{}, err
	}

	rating, err := models.ParseRating(record[colRating])
	if err != nil {
		return models.Review{}, err
	}

	var sentiment *models.Sentiment
	if raw := strings.TrimSpace(record[colSentiment]); raw != "" {
		s, err := models.ParseSentiment(raw)
		if err != nil {
			return models.Review{}, err
		}
		sentiment = &s
	}

	var text *string
	if raw := record[colReviewText]; strings.TrimSpace(raw) != "" {
		text = &raw
	}

	return models.NewReview(createdAt, strings.TrimSpace(record[colReviewerName]), rating, text, sentiment)
}

// parseTimestamp treats values without a zone as UTC.
func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unrecognised timestamp %q", models.ErrInvalidReview, raw)
}

// Import parses an export and stores the valid rows.
func (r *ReviewRepository) Import(ctx context.Context, src io.Reader, logger *slog.Logger) (ImportStats, error) {
	reviews, stats, err := ParseExport(src, logger)
	if err != nil {
		return stats, err
	}

	if err := r.InsertMany(ctx, reviews); err != nil {
		return stats, fmt.Errorf("failed to store imported reviews: %w", err)
	}

	logger.Info("reviews imported", "rows", stats.Rows, "imported", stats.Imported, "skipped", stats.Skipped)
	return stats, nil
}
