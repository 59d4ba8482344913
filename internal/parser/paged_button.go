package parser

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/review-scraper/internal/models"
)

const (
	PagedButtonItemsSelector = ".c-reviews-items"
	PagedButtonItemSelector  = ".c-reviews-item"

	pagedButtonAuthorSelector = "[data-test-id='review-author']"
	pagedButtonDateSelector   = "[data-test-id='review-date']"
	pagedButtonStarsSelector  = "[data-test-id='rating-multi-star-component'] [class*='c-rating-mask']"
	pagedButtonTextSelector   = "[data-test-id='review-text']"

	pagedButtonDateLayout = "2/1/2006"

	// A star mask without a style attribute renders three of five stars.
	defaultMaskPercentage = 60.0
	percentPerStar        = 20.0
)

// PagedButtonParser reads the review modal that grows with a "show more" button.
type PagedButtonParser struct {
	percentPattern *regexp.Regexp
	logger         *slog.Logger
}

func NewPagedButtonParser() *PagedButtonParser {
	return &PagedButtonParser{
		percentPattern: regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`),
		logger:         slog.Default().With("component", "parser", "layout", "paged-button"),
	}
}

func (p *PagedButtonParser) Parse(html string) ([]models.Review, error) {
	doc, err := newDocument(html)
	if err != nil {
		return nil, err
	}

	cards := doc.Find(PagedButtonItemsSelector).First().Find(PagedButtonItemSelector)
	return collect(p.logger, cards, p.parseCard), nil
}

func (p *PagedButtonParser) parseCard(card *goquery.Selection) (models.Review, error) {
	name := cleanText(card.Find(pagedButtonAuthorSelector).First())

	dateRaw := cleanText(card.Find(pagedButtonDateSelector).First())
	createdAt, err := time.ParseInLocation(pagedButtonDateLayout, dateRaw, time.UTC)
	if err != nil {
		return models.Review{}, fmt.Errorf("failed to parse review date %q: %w", dateRaw, err)
	}

	rating, err := p.ExtractRating(card)
	if err != nil {
		return models.Review{}, err
	}

	text := optionalText(card.Find(pagedButtonTextSelector).First())

	return buildReview(createdAt, name, rating, text)
}

// ExtractRating converts the width percentage of the star mask into a rating.
func (p *PagedButtonParser) ExtractRating(card *goquery.Selection) (models.Rating, error) {
	stars := card.Find(pagedButtonStarsSelector).First()
	if stars.Length() == 0 {
		return 0, fmt.Errorf("rating element not found")
	}

	percentage := defaultMaskPercentage
	if style, ok := stars.Attr("style"); ok && strings.TrimSpace(style) != "" {
		parsed, err := p.parsePercentage(style)
		if err != nil {
			return 0, err
		}
		percentage = parsed
	}

	return models.RatingFromFloat(percentage / percentPerStar), nil
}

// parsePercentage takes the last percentage in a declaration such as
// "width: 80%;".
func (p *PagedButtonParser) parsePercentage(style string) (float64, error) {
	matches := p.percentPattern.FindAllStringSubmatch(style, -1)
	if len(matches) == 0 {
		return 0, fmt.Errorf("no percentage in style %q", style)
	}

	value, err := strconv.ParseFloat(matches[len(matches)-1][1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid percentage in style %q: %w", style, err)
	}
	return value, nil
}
