package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/review-scraper/internal/browser"
	"github.com/maltedev/review-scraper/internal/models"
	"github.com/maltedev/review-scraper/internal/pacing"
	"github.com/maltedev/review-scraper/internal/parser"
)

const (
	IncrementalScrollModalSelector   = "[data-qa='restaurant-info-modal']"
	IncrementalScrollContentSelector = IncrementalScrollModalSelector + " [data-qa='modal-scroll-content']"

	settleDelay = 2 * time.Second
)

// IncrementalScroll handles the modal that renders more reviews as its
// scroll container reaches the bottom.
type IncrementalScroll struct {
	pacer  *pacing.Pacer
	parser parser.ReviewParser
	logger *slog.Logger
}

func NewIncrementalScroll(pacer *pacing.Pacer) *IncrementalScroll {
	return &IncrementalScroll{
		pacer:  pacer,
		parser: parser.NewIncrementalScrollParser(),
		logger: slog.Default().With("component", "scraper", "strategy", "incremental-scroll"),
	}
}

func (i *IncrementalScroll) Name() string {
	return "incremental-scroll"
}

func (i *IncrementalScroll) Detect(ctx context.Context, s browser.Session) (bool, error) {
	return s.Exists(ctx, IncrementalScrollModalSelector)
}

type heights struct {
	before, after int
}

func (i *IncrementalScroll) LoadMore(ctx context.Context, s browser.Session) (LoadResult, error) {
	found, err := s.Exists(ctx, IncrementalScrollContentSelector)
	if err != nil {
		return Loaded, err
	}
	if !found {
		return Loaded, fmt.Errorf("scroll container: %w", browser.ErrNotFound)
	}

	h, err := pacing.Do(ctx, i.pacer, "scroll modal", time.Second, 0, func(ctx context.Context) (heights, error) {
		before, err := s.ScrollHeight(ctx, IncrementalScrollContentSelector)
		if err != nil {
			return heights{}, err
		}
		if err := s.ScrollToBottom(ctx, IncrementalScrollContentSelector); err != nil {
			return heights{}, err
		}
		if err := i.pacer.Wait(ctx, settleDelay); err != nil {
			return heights{}, err
		}
		after, err := s.ScrollHeight(ctx, IncrementalScrollContentSelector)
		if err != nil {
			return heights{}, err
		}
		return heights{before: before, after: after}, nil
	})
	if err != nil {
		return Loaded, err
	}

	if h.after == h.before {
		i.logger.Info("scroll height unchanged", "height", h.after)
		return Exhausted, nil
	}
	return Loaded, nil
}

func (i *IncrementalScroll) Parse(ctx context.Context, s browser.Session) ([]models.Review, error) {
	html, err := s.Content(ctx)
	if err != nil {
		return nil, err
	}

	reviews, err := i.parser.Parse(html)
	if err != nil {
		return nil, fmt.Errorf("failed to parse review modal: %w", err)
	}
	return reviews, nil
}
