package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/maltedev/review-scraper/internal/models"
)

const reviewsSchema = `
	CREATE TABLE IF NOT EXISTS reviews (
		id            BIGSERIAL PRIMARY KEY,
		created_at    TIMESTAMPTZ  NOT NULL,
		reviewer_name VARCHAR(100) NOT NULL,
		rating        NUMERIC(2,1) NOT NULL CHECK (rating BETWEEN 1.0 AND 5.0),
		sentiment     SMALLINT     CHECK (sentiment IN (-1, 0, 1)),
		review_text   VARCHAR(500),
		imported_at   TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
		CHECK ((sentiment IS NULL) = (review_text IS NULL))
	);
	CREATE INDEX IF NOT EXISTS idx_reviews_created_at ON reviews (created_at DESC, id DESC);`

// ReviewRepository stores reviews imported from exports. Listing is
// newest first.
type ReviewRepository struct {
	db *DB
}

func NewReviewRepository(db *DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

func (r *ReviewRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, reviewsSchema); err != nil {
		return fmt.Errorf("failed to create reviews schema: %w", err)
	}
	return nil
}

func insertReview(ctx context.Context, tx pgx.Tx, review models.Review) error {
	var sentiment *int
	if review.Sentiment != nil {
		s := int(*review.Sentiment)
		sentiment = &s
	}

	query := `
		INSERT INTO reviews (created_at, reviewer_name, rating, sentiment, review_text)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := tx.Exec(ctx, query,
		review.CreatedAt,
		review.ReviewerName,
		review.Rating.Float64(),
		sentiment,
		review.ReviewText,
	)
	if err != nil {
		return fmt.Errorf("failed to insert review: %w", err)
	}
	return nil
}

// InsertMany stores all reviews in one transaction.
func (r *ReviewRepository) InsertMany(ctx context.Context, reviews []models.Review) error {
	if len(reviews) == 0 {
		return nil
	}

	return r.db.Transaction(ctx, func(tx pgx.Tx) error {
		for _, review := range reviews {
			if err := review.Validate(); err != nil {
				return err
			}
			if err := insertReview(ctx, tx, review); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *ReviewRepository) List(ctx context.Context, p models.Pagination) ([]models.Review, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	query := `
		SELECT created_at, reviewer_name, rating, sentiment, review_text
		FROM reviews
		ORDER BY created_at DESC, id DESC
		OFFSET $1 LIMIT $2`

	rows, err := r.db.Query(ctx, query, p.Skip, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}
	defer rows.Close()

	reviews := make([]models.Review, 0, p.Limit)
	for rows.Next() {
		var (
			createdAt time.Time
			name      string
			rating    float64
			sentiment *int
			text      *string
		)
		if err := rows.Scan(&createdAt, &name, &rating, &sentiment, &text); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}

		var s *models.Sentiment
		if sentiment != nil {
			v := models.Sentiment(*sentiment)
			s = &v
		}

		review, err := models.NewReview(createdAt, name, models.RatingFromFloat(rating), text, s)
		if err != nil {
			return nil, fmt.Errorf("stored review is invalid: %w", err)
		}
		reviews = append(reviews, review)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reviews: %w", err)
	}
	return reviews, nil
}

func (r *ReviewRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM reviews`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count reviews: %w", err)
	}
	return count, nil
}
