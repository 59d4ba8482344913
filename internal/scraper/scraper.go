package scraper

import (
	"context"
	"errors"
	"fmt"

	"github.com/maltedev/review-scraper/internal/browser"
	"github.com/maltedev/review-scraper/internal/models"
)

var (
	ErrUnsupportedStructure = errors.New("unsupported page structure")
	ErrSessionNotReady      = errors.New("session not ready")
)

// LoadResult reports whether a load step revealed more content.
type LoadResult int

const (
	Loaded LoadResult = iota
	Exhausted
)

func (r LoadResult) String() string {
	if r == Exhausted {
		return "exhausted"
	}
	return "loaded"
}

// Strategy drives one known review layout.
type Strategy interface {
	Name() string
	// Detect reports whether the loaded page uses this layout.
	Detect(ctx context.Context, s browser.Session) (bool, error)
	// LoadMore triggers one "load more" action. Running out of content is
	// the Exhausted result, not an error.
	LoadMore(ctx context.Context, s browser.Session) (LoadResult, error)
	// Parse returns every review currently rendered, in page order.
	Parse(ctx context.Context, s browser.Session) ([]models.Review, error)
}

// Step is the outcome of one fill step.
type Step struct {
	Reviews   []models.Review
	Exhausted bool
}

func Continue(reviews []models.Review) Step {
	return Step{Reviews: reviews}
}

func ExhaustedStep() Step {
	return Step{Exhausted: true}
}

// Advance runs LoadMore followed by Parse when more content was loaded.
func Advance(ctx context.Context, strategy Strategy, s browser.Session) (Step, error) {
	if s == nil {
		return Step{}, ErrSessionNotReady
	}

	result, err := strategy.LoadMore(ctx, s)
	if err != nil {
		return Step{}, fmt.Errorf("%s: failed to load more reviews: %w", strategy.Name(), err)
	}
	if result == Exhausted {
		return ExhaustedStep(), nil
	}

	reviews, err := strategy.Parse(ctx, s)
	if err != nil {
		return Step{}, fmt.Errorf("%s: failed to parse reviews: %w", strategy.Name(), err)
	}
	return Continue(reviews), nil
}
