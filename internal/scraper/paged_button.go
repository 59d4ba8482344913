package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/review-scraper/internal/browser"
	"github.com/maltedev/review-scraper/internal/models"
	"github.com/maltedev/review-scraper/internal/pacing"
	"github.com/maltedev/review-scraper/internal/parser"
)

const (
	PagedButtonModalSelector  = "[data-test-id='reviews-modal']"
	PagedButtonShowMoreButton = "[data-test-id='review-show-more-button']"

	locateTimeout = 10 * time.Second
)

// PagedButton handles the modal that appends reviews each time its
// "show more" button is clicked.
type PagedButton struct {
	pacer  *pacing.Pacer
	parser parser.ReviewParser
	logger *slog.Logger
}

func NewPagedButton(pacer *pacing.Pacer) *PagedButton {
	return &PagedButton{
		pacer:  pacer,
		parser: parser.NewPagedButtonParser(),
		logger: slog.Default().With("component", "scraper", "strategy", "paged-button"),
	}
}

func (p *PagedButton) Name() string {
	return "paged-button"
}

func (p *PagedButton) Detect(ctx context.Context, s browser.Session) (bool, error) {
	return s.Exists(ctx, PagedButtonModalSelector)
}

func (p *PagedButton) LoadMore(ctx context.Context, s browser.Session) (LoadResult, error) {
	err := p.pacer.Pace(ctx, "scroll to show more", time.Second, 0, func(ctx context.Context) error {
		return s.ScrollIntoView(ctx, PagedButtonShowMoreButton)
	})
	if errors.Is(err, browser.ErrNotFound) {
		p.logger.Warn("load more button not found")
		return Exhausted, nil
	}
	if err != nil {
		return Loaded, err
	}

	err = p.pacer.Pace(ctx, "click show more", time.Second, 2*time.Second, func(ctx context.Context) error {
		return s.Click(ctx, PagedButtonShowMoreButton, locateTimeout)
	})
	if errors.Is(err, browser.ErrTimeout) {
		p.logger.Warn("load more button not clickable")
		return Exhausted, nil
	}
	if err != nil {
		return Loaded, err
	}

	err = s.WaitFor(ctx, parser.PagedButtonItemSelector, locateTimeout)
	if errors.Is(err, browser.ErrTimeout) {
		p.logger.Warn("no new reviews loaded after clicking")
		return Exhausted, nil
	}
	if err != nil {
		return Loaded, err
	}

	return Loaded, nil
}

func (p *PagedButton) Parse(ctx context.Context, s browser.Session) ([]models.Review, error) {
	html, err := s.Content(ctx)
	if err != nil {
		return nil, err
	}

	reviews, err := p.parser.Parse(html)
	if err != nil {
		return nil, fmt.Errorf("failed to parse review modal: %w", err)
	}
	return reviews, nil
}
