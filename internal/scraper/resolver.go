package scraper

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maltedev/review-scraper/internal/browser"
	"github.com/maltedev/review-scraper/internal/pacing"
)

// Resolver picks the first strategy, in priority order, whose layout
// marker is present on the loaded page.
type Resolver struct {
	strategies []Strategy
	logger     *slog.Logger
}

func NewResolver(strategies ...Strategy) *Resolver {
	return &Resolver{
		strategies: strategies,
		logger:     slog.Default().With("component", "resolver"),
	}
}

// DefaultResolver tries incremental-scroll before paged-button.
func DefaultResolver(pacer *pacing.Pacer) *Resolver {
	return NewResolver(NewIncrementalScroll(pacer), NewPagedButton(pacer))
}

func (r *Resolver) Resolve(ctx context.Context, s browser.Session) (Strategy, error) {
	if s == nil {
		return nil, ErrSessionNotReady
	}

	for _, strategy := range r.strategies {
		ok, err := strategy.Detect(ctx, s)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to detect layout: %w", strategy.Name(), err)
		}
		if ok {
			r.logger.Debug("strategy resolved", "strategy", strategy.Name(), "session_id", s.ID())
			return strategy, nil
		}
	}

	return nil, ErrUnsupportedStructure
}
