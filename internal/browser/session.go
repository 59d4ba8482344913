package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/playwright-community/playwright-go"
)

var (
	ErrTimeout  = errors.New("timed out waiting for element")
	ErrNotFound = errors.New("element not found")
)

// Session is a live handle to one browsing context. Implementations are
// not safe for concurrent use; the pool hands each session to one caller
// at a time.
type Session interface {
	ID() string
	Navigate(ctx context.Context, url string) error
	Exists(ctx context.Context, selector string) (bool, error)
	// ScrollIntoView returns ErrNotFound when nothing matches selector.
	ScrollIntoView(ctx context.Context, selector string) error
	// Click waits up to timeout for the element to become clickable.
	Click(ctx context.Context, selector string, timeout time.Duration) error
	// WaitFor waits up to timeout for at least one element to be attached.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	ScrollHeight(ctx context.Context, selector string) (int, error)
	ScrollToBottom(ctx context.Context, selector string) error
	Content(ctx context.Context) (string, error)
	Close() error
}

type PlaywrightSession struct {
	id      string
	context playwright.BrowserContext
	page    playwright.Page
	retries int
	logger  *slog.Logger
}

func (s *PlaywrightSession) ID() string {
	return s.id
}

func classify(op string, err error) error {
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%s: %w: %v", op, ErrTimeout, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Navigate loads url, retrying with a growing backoff.
func (s *PlaywrightSession) Navigate(ctx context.Context, url string) error {
	attempts := max(s.retries, 1)
	var lastErr error

	for i := 0; i < attempts; i++ {
		if i > 0 {
			s.logger.Info("retrying navigation", "attempt", i+1, "url", url)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(i+1) * time.Second):
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		_, err := s.page.Goto(url, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
			Timeout:   playwright.Float(30000),
		})
		if err == nil {
			s.humanize()
			return nil
		}

		lastErr = err
		s.logger.Error("navigation failed", "error", err, "attempt", i+1)
	}

	return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}

// humanize moves the mouse along a short random path after page load.
func (s *PlaywrightSession) humanize() {
	for i := 0; i < 3; i++ {
		x := float64(100 + i*200 + rand.Intn(50))
		y := float64(100 + i*150 + rand.Intn(50))
		if err := s.page.Mouse().Move(x, y); err != nil {
			s.logger.Debug("mouse move failed", "error", err)
			return
		}
	}
}

func (s *PlaywrightSession) Exists(ctx context.Context, selector string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	count, err := s.page.Locator(selector).Count()
	if err != nil {
		return false, classify("failed to count "+selector, err)
	}
	return count > 0, nil
}

func (s *PlaywrightSession) ScrollIntoView(ctx context.Context, selector string) error {
	found, err := s.Exists(ctx, selector)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%s: %w", selector, ErrNotFound)
	}

	if _, err := s.page.Locator(selector).First().Evaluate(`el => el.scrollIntoView(true)`, nil); err != nil {
		return classify("failed to scroll to "+selector, err)
	}
	return nil
}

func (s *PlaywrightSession) Click(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.page.Locator(selector).First().Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return classify("failed to click "+selector, err)
	}
	return nil
}

func (s *PlaywrightSession) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return classify("failed waiting for "+selector, err)
	}
	return nil
}

func (s *PlaywrightSession) ScrollHeight(ctx context.Context, selector string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	result, err := s.page.Locator(selector).First().Evaluate(`el => el.scrollHeight`, nil)
	if err != nil {
		return 0, classify("failed to read scroll height of "+selector, err)
	}
	return toInt(result)
}

func (s *PlaywrightSession) ScrollToBottom(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := s.page.Locator(selector).First().Evaluate(`el => el.scrollTo(0, el.scrollHeight)`, nil); err != nil {
		return classify("failed to scroll "+selector, err)
	}
	return nil
}

func (s *PlaywrightSession) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	html, err := s.page.Content()
	if err != nil {
		return "", classify("failed to get page content", err)
	}
	return html, nil
}

func (s *PlaywrightSession) Close() error {
	if err := s.context.Close(); err != nil {
		return fmt.Errorf("failed to close context: %w", err)
	}
	s.logger.Debug("session closed")
	return nil
}

func toInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(math.Round(n)), nil
	default:
		return 0, fmt.Errorf("unexpected numeric value %T", v)
	}
}
