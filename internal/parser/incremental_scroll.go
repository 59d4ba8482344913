package parser

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/review-scraper/internal/models"
)

const (
	IncrementalScrollCardSelector = "[data-qa='review-card-component-element']"

	scrollLabelSelector       = "div[id^='label-']"
	scrollNameSelector        = "[data-qa='text']"
	scrollDateSelector        = "b[data-qa='text']"
	scrollDescriptionSelector = "div[id^='description-']"
	scrollRatingSelector      = "[data-qa='rating-display-element']"
	scrollCommentSelector     = "[data-qa='review-card-comment']"

	scrollDateLayout    = "Monday 2 January 2006"
	defaultScrollRating = "3.0"
)

// IncrementalScrollParser reads the info modal that loads more cards as it
// is scrolled.
type IncrementalScrollParser struct {
	logger *slog.Logger
}

func NewIncrementalScrollParser() *IncrementalScrollParser {
	return &IncrementalScrollParser{
		logger: slog.Default().With("component", "parser", "layout", "incremental-scroll"),
	}
}

func (p *IncrementalScrollParser) Parse(html string) ([]models.Review, error) {
	doc, err := newDocument(html)
	if err != nil {
		return nil, err
	}

	return collect(p.logger, doc.Find(IncrementalScrollCardSelector), p.parseCard), nil
}

func (p *IncrementalScrollParser) parseCard(card *goquery.Selection) (models.Review, error) {
	label := card.Find(scrollLabelSelector).First()
	if label.Length() == 0 {
		return models.Review{}, fmt.Errorf("label element not found")
	}

	name := cleanText(label.Find(scrollNameSelector).First())

	dateRaw := strings.Join(strings.Fields(cleanText(label.Find(scrollDateSelector).First())), " ")
	createdAt, err := time.ParseInLocation(scrollDateLayout, dateRaw, time.UTC)
	if err != nil {
		return models.Review{}, fmt.Errorf("failed to parse review date %q: %w", dateRaw, err)
	}

	description := card.Find(scrollDescriptionSelector).First()
	if description.Length() == 0 {
		return models.Review{}, fmt.Errorf("description element not found")
	}

	rating, err := p.ExtractRating(description)
	if err != nil {
		return models.Review{}, err
	}

	text := optionalText(description.Find(scrollCommentSelector).First())

	return buildReview(createdAt, name, rating, text)
}

// ExtractRating reads the leading number of the rating title, e.g.
// "4 out of 5 stars".
func (p *IncrementalScrollParser) ExtractRating(description *goquery.Selection) (models.Rating, error) {
	el := description.Find(scrollRatingSelector).First()
	if el.Length() == 0 {
		return 0, fmt.Errorf("rating element not found")
	}

	raw, _ := el.Attr("title")
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		fields = []string{defaultScrollRating}
	}

	return models.ParseRating(fields[0])
}
