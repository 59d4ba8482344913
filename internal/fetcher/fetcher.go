package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/maltedev/review-scraper/internal/browser"
	"github.com/maltedev/review-scraper/internal/cache"
	"github.com/maltedev/review-scraper/internal/events"
	"github.com/maltedev/review-scraper/internal/keylock"
	"github.com/maltedev/review-scraper/internal/metrics"
	"github.com/maltedev/review-scraper/internal/models"
	"github.com/maltedev/review-scraper/internal/pacing"
	"github.com/maltedev/review-scraper/internal/pool"
	"github.com/maltedev/review-scraper/internal/scraper"
)

const DefaultURLTemplate = "https://www.just-eat.co.uk/%s/reviews?openOnWeb=true"

var ErrInvalidTarget = errors.New("invalid target")

type SessionPool interface {
	Acquire(ctx context.Context) (browser.Session, error)
	Release(s browser.Session) error
	Discard(s browser.Session) error
	Stats() pool.Stats
}

type StrategyResolver interface {
	Resolve(ctx context.Context, s browser.Session) (scraper.Strategy, error)
}

// Notifier receives a summary after each fill loop that added reviews.
type Notifier interface {
	PublishReviewsExtracted(ctx context.Context, payload *events.ReviewsExtractedPayload) error
}

type Options struct {
	// URLTemplate has a single %s verb for the target identifier.
	URLTemplate string
	// StepDelay is the base pause before each fill step.
	StepDelay time.Duration
	Notifier  Notifier
}

func DefaultOptions() Options {
	return Options{
		URLTemplate: DefaultURLTemplate,
		StepDelay:   time.Second,
	}
}

// Fetcher answers paginated review requests from the target buffers,
// driving a pooled browser session to grow a buffer when it is too short.
type Fetcher struct {
	pool     SessionPool
	resolver StrategyResolver
	buffers  *cache.Buffers
	pacer    *pacing.Pacer
	locks    *keylock.KeyLock
	opts     Options
	logger   *slog.Logger
}

func New(p SessionPool, resolver StrategyResolver, buffers *cache.Buffers, pacer *pacing.Pacer, opts Options) *Fetcher {
	if opts.URLTemplate == "" {
		opts.URLTemplate = DefaultURLTemplate
	}
	if opts.StepDelay <= 0 {
		opts.StepDelay = time.Second
	}

	return &Fetcher{
		pool:     p,
		resolver: resolver,
		buffers:  buffers,
		pacer:    pacer,
		locks:    keylock.New(),
		opts:     opts,
		logger:   slog.Default().With("component", "fetcher"),
	}
}

func (f *Fetcher) TargetURL(target string) string {
	return fmt.Sprintf(f.opts.URLTemplate, url.PathEscape(target))
}

// FetchPage returns the requested window of reviews for target. A shorter
// result than requested means the source ran out of reviews.
func (f *Fetcher) FetchPage(ctx context.Context, target string, p models.Pagination) ([]models.Review, error) {
	if target == "" {
		return nil, ErrInvalidTarget
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	required := p.End()

	if f.buffers.Len(target) >= required {
		metrics.BufferHits.Inc()
		metrics.FetchDuration.WithLabelValues("buffer").Observe(time.Since(start).Seconds())
		return f.buffers.Slice(target, p.Skip, p.Limit), nil
	}

	unlock, err := f.locks.Lock(ctx, target)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// another caller may have filled the buffer while we waited
	if f.buffers.Len(target) >= required {
		metrics.BufferHits.Inc()
		metrics.FetchDuration.WithLabelValues("buffer").Observe(time.Since(start).Seconds())
		return f.buffers.Slice(target, p.Skip, p.Limit), nil
	}

	metrics.BufferMisses.Inc()
	if err := f.fill(ctx, target, required); err != nil {
		return nil, err
	}

	metrics.FetchDuration.WithLabelValues("fill").Observe(time.Since(start).Seconds())
	return f.buffers.Slice(target, p.Skip, p.Limit), nil
}

type fillResult struct {
	strategy  string
	appended  int
	steps     int
	exhausted bool
}

func (f *Fetcher) fill(ctx context.Context, target string, required int) error {
	s, err := f.pool.Acquire(ctx)
	if err != nil {
		metrics.FetchErrors.WithLabelValues("session").Inc()
		return err
	}

	logger := f.logger.With("target", target, "session_id", s.ID())
	f.observePool()

	faulted := false
	defer func() {
		var releaseErr error
		if faulted {
			releaseErr = f.pool.Discard(s)
		} else {
			releaseErr = f.pool.Release(s)
		}
		if releaseErr != nil {
			logger.Error("failed to return session", "error", releaseErr)
		}
		f.observePool()
	}()

	if err := s.Navigate(ctx, f.TargetURL(target)); err != nil {
		faulted = true
		metrics.FetchErrors.WithLabelValues("fault").Inc()
		return err
	}

	strategy, err := f.resolver.Resolve(ctx, s)
	if errors.Is(err, scraper.ErrUnsupportedStructure) {
		metrics.FetchErrors.WithLabelValues("unsupported").Inc()
		logger.Warn("unsupported page structure")
		return err
	}
	if err != nil {
		faulted = true
		metrics.FetchErrors.WithLabelValues("fault").Inc()
		return err
	}

	result, err := f.run(ctx, logger, target, required, strategy, s)
	if err != nil {
		faulted = true
		metrics.FetchErrors.WithLabelValues("fault").Inc()
		return err
	}

	logger.Info("fill loop finished",
		"strategy", result.strategy,
		"steps", result.steps,
		"appended", result.appended,
		"exhausted", result.exhausted,
		"buffered", f.buffers.Len(target),
	)

	if result.appended > 0 {
		f.notify(ctx, logger, target, result)
	}
	return nil
}

// run drives load-more steps until the buffer holds required reviews or
// the page stops producing new ones. Each parse yields every visible
// review, so only the part beyond the buffered length is appended.
func (f *Fetcher) run(ctx context.Context, logger *slog.Logger, target string, required int, strategy scraper.Strategy, s browser.Session) (fillResult, error) {
	result := fillResult{strategy: strategy.Name()}
	lastVisible := -1

	for f.buffers.Len(target) < required {
		step, err := pacing.Do(ctx, f.pacer, "fill step", f.opts.StepDelay, 0, func(ctx context.Context) (scraper.Step, error) {
			return scraper.Advance(ctx, strategy, s)
		})
		result.steps++
		if err != nil {
			metrics.FillSteps.WithLabelValues(result.strategy, "error").Inc()
			return result, err
		}
		if step.Exhausted {
			metrics.FillSteps.WithLabelValues(result.strategy, "exhausted").Inc()
			logger.Info("no more reviews available")
			result.exhausted = true
			break
		}
		metrics.FillSteps.WithLabelValues(result.strategy, "loaded").Inc()

		visible := len(step.Reviews)
		buffered := f.buffers.Len(target)

		if visible <= buffered {
			if visible <= lastVisible {
				logger.Warn("no new reviews parsed after loading", "visible", visible)
				result.exhausted = true
				break
			}
			// the page is still catching up with reviews buffered earlier
			lastVisible = visible
			continue
		}
		lastVisible = visible

		delta := step.Reviews[buffered:]
		if _, err := f.buffers.Append(ctx, target, delta); err != nil {
			return result, err
		}
		result.appended += len(delta)
		metrics.ReviewsExtracted.WithLabelValues(result.strategy).Add(float64(len(delta)))
	}

	return result, nil
}

func (f *Fetcher) notify(ctx context.Context, logger *slog.Logger, target string, result fillResult) {
	if f.opts.Notifier == nil {
		return
	}

	payload := &events.ReviewsExtractedPayload{
		Target:     target,
		Strategy:   result.strategy,
		Appended:   result.appended,
		BufferSize: f.buffers.Len(target),
		Steps:      result.steps,
		Exhausted:  result.exhausted,
	}
	if err := f.opts.Notifier.PublishReviewsExtracted(ctx, payload); err != nil {
		logger.Error("failed to publish extraction event", "error", err)
	}
}

func (f *Fetcher) observePool() {
	stats := f.pool.Stats()
	metrics.SetPoolSessions(stats.Idle, stats.InUse)
}
