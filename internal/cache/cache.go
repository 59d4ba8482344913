package cache

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/maltedev/review-scraper/internal/keylock"
	"github.com/maltedev/review-scraper/internal/models"
)

type Options struct {
	// TTL is measured from the last append to a target.
	TTL time.Duration
	// Capacity bounds the number of targets held at once.
	Capacity int
	// OnEvict is called when a target is dropped by expiry, capacity or
	// Remove.
	OnEvict func(target string, size int)
}

func DefaultOptions() Options {
	return Options{
		TTL:      time.Hour,
		Capacity: 1000,
	}
}

// Buffers holds the reviews extracted so far for each target, in the order
// they were discovered. Reads do not refresh recency, so capacity eviction
// drops the least recently written target first.
type Buffers struct {
	lru   *expirable.LRU[string, []models.Review]
	locks *keylock.KeyLock
}

func New(opts Options) (*Buffers, error) {
	if opts.TTL <= 0 {
		return nil, fmt.Errorf("buffer TTL must be positive, got %v", opts.TTL)
	}
	if opts.Capacity < 1 {
		return nil, fmt.Errorf("buffer capacity must be at least 1, got %d", opts.Capacity)
	}

	var onEvict expirable.EvictCallback[string, []models.Review]
	if opts.OnEvict != nil {
		onEvict = func(target string, reviews []models.Review) {
			opts.OnEvict(target, len(reviews))
		}
	}

	return &Buffers{
		lru:   expirable.NewLRU[string, []models.Review](opts.Capacity, onEvict, opts.TTL),
		locks: keylock.New(),
	}, nil
}

// Get returns a copy of the buffer for target, or nil when absent or expired.
func (b *Buffers) Get(target string) []models.Review {
	reviews, ok := b.lru.Peek(target)
	if !ok {
		return nil
	}
	return slices.Clone(reviews)
}

func (b *Buffers) Len(target string) int {
	reviews, _ := b.lru.Peek(target)
	return len(reviews)
}

// Append extends the buffer for target and restarts its TTL. Appends to
// the same target are applied in call order; distinct targets do not
// contend.
func (b *Buffers) Append(ctx context.Context, target string, reviews []models.Review) (int, error) {
	unlock, err := b.locks.Lock(ctx, target)
	if err != nil {
		return 0, err
	}
	defer unlock()

	current, _ := b.lru.Peek(target)
	next := make([]models.Review, 0, len(current)+len(reviews))
	next = append(next, current...)
	next = append(next, reviews...)
	b.lru.Add(target, next)

	return len(next), nil
}

// Slice returns the window [skip, skip+limit) clipped to the buffer length.
func (b *Buffers) Slice(target string, skip, limit int) []models.Review {
	reviews, _ := b.lru.Peek(target)
	if skip < 0 || limit <= 0 || skip >= len(reviews) {
		return []models.Review{}
	}

	end := len(reviews)
	if limit < end-skip {
		end = skip + limit
	}
	return slices.Clone(reviews[skip:end])
}

func (b *Buffers) Remove(target string) bool {
	return b.lru.Remove(target)
}

func (b *Buffers) Purge() {
	b.lru.Purge()
}

// Targets returns the number of live target buffers.
func (b *Buffers) Targets() int {
	return b.lru.Len()
}
