package pacing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"
)

var (
	ErrNoDelay      = errors.New("pacing requires a non-zero pre or post delay")
	ErrInvalidDelay = errors.New("pacing delay must not be negative")
)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep waits on a timer so other goroutines keep running.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type Options struct {
	JitterLow  float64
	JitterHigh float64
	Sleep      SleepFunc
	Seed       int64
}

func DefaultOptions() Options {
	return Options{
		JitterLow:  0.75,
		JitterHigh: 1.25,
		Sleep:      Sleep,
		Seed:       time.Now().UnixNano(),
	}
}

// Pacer surrounds remote interactions with randomized delays.
type Pacer struct {
	low    float64
	high   float64
	sleep  SleepFunc
	mu     sync.Mutex
	rnd    *rand.Rand
	logger *slog.Logger
}

func New(opts Options) (*Pacer, error) {
	if opts.JitterLow <= 0 || opts.JitterHigh < opts.JitterLow {
		return nil, fmt.Errorf("invalid jitter range [%v, %v]", opts.JitterLow, opts.JitterHigh)
	}
	if opts.Sleep == nil {
		opts.Sleep = Sleep
	}

	return &Pacer{
		low:    opts.JitterLow,
		high:   opts.JitterHigh,
		sleep:  opts.Sleep,
		rnd:    rand.New(rand.NewSource(opts.Seed)),
		logger: slog.Default().With("component", "pacing"),
	}, nil
}

// Jitter scales d by a uniform multiplier drawn from the jitter range.
func (p *Pacer) Jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}

	p.mu.Lock()
	f := p.rnd.Float64()
	p.mu.Unlock()

	factor := p.low + f*(p.high-p.low)
	return time.Duration(float64(d) * factor)
}

// Wait sleeps for a jittered d.
func (p *Pacer) Wait(ctx context.Context, d time.Duration) error {
	return p.sleep(ctx, p.Jitter(d))
}

// Pace sleeps a jittered pre delay, runs action, then sleeps a jittered
// post delay. The post delay is skipped when action fails.
func (p *Pacer) Pace(ctx context.Context, name string, pre, post time.Duration, action func(context.Context) error) error {
	_, err := Do(ctx, p, name, pre, post, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, action(ctx)
	})
	return err
}

// Do is Pace for actions that produce a value.
func Do[T any](ctx context.Context, p *Pacer, name string, pre, post time.Duration, action func(context.Context) (T, error)) (T, error) {
	var zero T

	if pre < 0 || post < 0 {
		return zero, fmt.Errorf("%w: %s pre=%v post=%v", ErrInvalidDelay, name, pre, post)
	}
	if pre == 0 && post == 0 {
		return zero, fmt.Errorf("%w: %s", ErrNoDelay, name)
	}

	if pre > 0 {
		d := p.Jitter(pre)
		p.logger.Debug("pre-action delay", "action", name, "delay", d)
		if err := p.sleep(ctx, d); err != nil {
			return zero, err
		}
	}

	result, err := action(ctx)
	if err != nil {
		return zero, err
	}

	if post > 0 {
		d := p.Jitter(post)
		p.logger.Debug("post-action delay", "action", name, "delay", d)
		if err := p.sleep(ctx, d); err != nil {
			return zero, err
		}
	}

	return result, nil
}
