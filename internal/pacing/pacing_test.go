package pacing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func newTestPacer(t *testing.T, rec *recordingSleeper) *Pacer {
	t.Helper()
	opts := DefaultOptions()
	opts.Sleep = rec.sleep
	opts.Seed = 42
	p, err := New(opts)
	require.NoError(t, err)
	return p
}

func TestPace_DelaysWithinJitterRange(t *testing.T) {
	rec := &recordingSleeper{}
	p := newTestPacer(t, rec)

	var order []string
	err := p.Pace(context.Background(), "click", time.Second, 2*time.Second, func(ctx context.Context) error {
		order = append(order, "action")
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"action"}, order)
	require.Len(t, rec.delays, 2)
	assert.GreaterOrEqual(t, rec.delays[0], 750*time.Millisecond)
	assert.LessOrEqual(t, rec.delays[0], 1250*time.Millisecond)
	assert.GreaterOrEqual(t, rec.delays[1], 1500*time.Millisecond)
	assert.LessOrEqual(t, rec.delays[1], 2500*time.Millisecond)
}

func TestPace_OnlyPreDelay(t *testing.T) {
	rec := &recordingSleeper{}
	p := newTestPacer(t, rec)

	err := p.Pace(context.Background(), "scroll", time.Second, 0, func(ctx context.Context) error { return nil })
	require.NoError(t, err)
	assert.Len(t, rec.delays, 1)
}

func TestPace_BothZeroIsCallerError(t *testing.T) {
	rec := &recordingSleeper{}
	p := newTestPacer(t, rec)

	called := false
	err := p.Pace(context.Background(), "noop", 0, 0, func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrNoDelay)
	assert.False(t, called)
	assert.Empty(t, rec.delays)
}

func TestPace_NegativeDelay(t *testing.T) {
	p := newTestPacer(t, &recordingSleeper{})
	err := p.Pace(context.Background(), "bad", -time.Second, time.Second, func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrInvalidDelay)
}

func TestPace_ActionErrorSkipsPostDelay(t *testing.T) {
	rec := &recordingSleeper{}
	p := newTestPacer(t, rec)
	boom := errors.New("boom")

	err := p.Pace(context.Background(), "click", time.Second, time.Second, func(ctx context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Len(t, rec.delays, 1)
}

func TestDo_ReturnsValue(t *testing.T) {
	p := newTestPacer(t, &recordingSleeper{})

	height, err := Do(context.Background(), p, "height", time.Second, 0, func(ctx context.Context) (int, error) {
		return 1200, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1200, height)
}

func TestSleep_HonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := Sleep(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSleep_DoesNotBlockOtherGoroutines(t *testing.T) {
	done := make(chan struct{})
	go func() {
		_ = Sleep(context.Background(), 200*time.Millisecond)
		close(done)
	}()

	ticked := make(chan struct{})
	go func() { close(ticked) }()

	select {
	case <-ticked:
	case <-done:
		t.Fatal("sleep finished before concurrent work ran")
	}
	<-done
}

func TestNew_RejectsInvalidJitter(t *testing.T) {
	tests := []struct {
		name      string
		low, high float64
	}{
		{"zero low", 0, 1},
		{"inverted", 1.5, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(Options{JitterLow: tt.low, JitterHigh: tt.high})
			assert.Error(t, err)
		})
	}
}

func TestWait_UsesJitteredDelay(t *testing.T) {
	rec := &recordingSleeper{}
	p := newTestPacer(t, rec)

	require.NoError(t, p.Wait(context.Background(), 2*time.Second))
	require.Len(t, rec.delays, 1)
	assert.InDelta(t, float64(2*time.Second), float64(rec.delays[0]), float64(500*time.Millisecond))
}

func TestJitter_FixedRange(t *testing.T) {
	p, err := New(Options{JitterLow: 1, JitterHigh: 1})
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, p.Jitter(3*time.Second))
	assert.Equal(t, time.Duration(0), p.Jitter(0))
}
