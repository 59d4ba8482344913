package parser

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/review-scraper/internal/models"
)

// ReviewParser converts an HTML snapshot of a review modal into reviews in
// page order. Cards that cannot be turned into a valid review are skipped.
type ReviewParser interface {
	Parse(html string) ([]models.Review, error)
}

func newDocument(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

func cleanText(s *goquery.Selection) string {
	return strings.TrimSpace(s.Text())
}

// optionalText returns nil for a missing or blank element.
func optionalText(s *goquery.Selection) *string {
	if s.Length() == 0 {
		return nil
	}
	text := cleanText(s)
	if text == "" {
		return nil
	}
	return &text
}

// buildReview derives a sentiment from the rating when the card carries
// text, since neither layout labels sentiment itself.
func buildReview(createdAt time.Time, name string, rating models.Rating, text *string) (models.Review, error) {
	var sentiment *models.Sentiment
	if text != nil {
		s := models.SentimentFromRating(rating)
		sentiment = &s
	}
	return models.NewReview(createdAt, name, rating, text, sentiment)
}

func collect(logger *slog.Logger, cards *goquery.Selection, parse func(*goquery.Selection) (models.Review, error)) []models.Review {
	reviews := make([]models.Review, 0, cards.Length())
	cards.Each(func(i int, card *goquery.Selection) {
		review, err := parse(card)
		if err != nil {
			logger.Warn("skipping review card", "index", i, "error", err)
			return
		}
		reviews = append(reviews, review)
	})
	return reviews
}
