package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/maltedev/review-scraper/internal/browser"
	"golang.org/x/sync/semaphore"
)

var (
	ErrPoolClosed          = errors.New("session pool is closed")
	ErrOutstandingSessions = errors.New("sessions still checked out at shutdown")
	ErrUnknownSession      = errors.New("session does not belong to this pool")
)

// Factory creates a new session. It is called at most once per session.
type Factory func(ctx context.Context) (browser.Session, error)

type Options struct {
	// Size bounds the number of live sessions.
	Size int
	// MaxIdle bounds the sessions kept for reuse after release.
	MaxIdle int
}

func DefaultOptions() Options {
	return Options{Size: 1, MaxIdle: 1}
}

type Stats struct {
	Size     int   `json:"size"`
	Created  int64 `json:"created"`
	Disposed int64 `json:"disposed"`
	Acquired int64 `json:"acquired"`
	Live     int   `json:"live"`
	Idle     int   `json:"idle"`
	InUse    int   `json:"in_use"`
}

// Pool hands out sessions to one caller at a time. Waiters are served in
// arrival order.
type Pool struct {
	factory Factory
	size    int
	maxIdle int
	sem     *semaphore.Weighted

	// done is cancelled by Shutdown to wake blocked waiters.
	done     context.Context
	shutdown context.CancelFunc

	mu    sync.Mutex
	idle  []browser.Session
	inUse map[string]browser.Session
	// orphaned holds sessions disposed by Shutdown while checked out; their
	// permits are returned when the holder checks them in.
	orphaned map[string]struct{}
	closed   bool
	created  int64
	disposed int64
	acquired int64

	logger *slog.Logger
}

func New(factory Factory, opts Options) (*Pool, error) {
	if factory == nil {
		return nil, errors.New("session factory is required")
	}
	if opts.Size < 1 {
		return nil, fmt.Errorf("pool size must be at least 1, got %d", opts.Size)
	}
	if opts.MaxIdle < 0 || opts.MaxIdle > opts.Size {
		return nil, fmt.Errorf("max idle must be within 0..%d, got %d", opts.Size, opts.MaxIdle)
	}

	done, shutdown := context.WithCancel(context.Background())

	return &Pool{
		factory:  factory,
		size:     opts.Size,
		maxIdle:  opts.MaxIdle,
		sem:      semaphore.NewWeighted(int64(opts.Size)),
		done:     done,
		shutdown: shutdown,
		inUse:    make(map[string]browser.Session),
		orphaned: make(map[string]struct{}),
		logger:   slog.Default().With("component", "pool"),
	}, nil
}

// Acquire blocks until a session is available, ctx is done or the pool
// shuts down. Idle sessions are reused before new ones are created.
func (p *Pool) Acquire(ctx context.Context) (browser.Session, error) {
	if p.isClosed() {
		return nil, ErrPoolClosed
	}

	waitCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(p.done, cancel)
	err := p.sem.Acquire(waitCtx, 1)
	stop()
	cancel()
	if err != nil {
		if p.isClosed() {
			return nil, ErrPoolClosed
		}
		return nil, err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.sem.Release(1)
		return nil, ErrPoolClosed
	}
	if n := len(p.idle); n > 0 {
		s := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.inUse[s.ID()] = s
		p.acquired++
		p.mu.Unlock()
		p.logger.Debug("reusing idle session", "session_id", s.ID())
		return s, nil
	}
	p.mu.Unlock()

	s, err := p.factory(ctx)
	if err != nil {
		p.sem.Release(1)
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.close(s)
		p.sem.Release(1)
		return nil, ErrPoolClosed
	}
	p.inUse[s.ID()] = s
	p.created++
	p.acquired++
	p.mu.Unlock()

	p.logger.Info("session created", "session_id", s.ID())
	return s, nil
}

// Release returns s for reuse, or disposes it when the idle set is full.
func (p *Pool) Release(s browser.Session) error {
	return p.checkIn(s, false)
}

// Discard disposes s instead of returning it to the idle set. Use it for
// sessions that faulted.
func (p *Pool) Discard(s browser.Session) error {
	return p.checkIn(s, true)
}

func (p *Pool) checkIn(s browser.Session, discard bool) error {
	p.mu.Lock()
	if _, ok := p.inUse[s.ID()]; !ok {
		if _, orphan := p.orphaned[s.ID()]; orphan {
			// already disposed by Shutdown
			delete(p.orphaned, s.ID())
			p.mu.Unlock()
			p.sem.Release(1)
			return nil
		}
		closed := p.closed
		p.mu.Unlock()
		if closed {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrUnknownSession, s.ID())
	}
	delete(p.inUse, s.ID())

	if !discard && !p.closed && len(p.idle) < p.maxIdle {
		p.idle = append(p.idle, s)
		p.mu.Unlock()
		p.sem.Release(1)
		return nil
	}
	p.mu.Unlock()

	err := p.close(s)
	p.sem.Release(1)
	return err
}

func (p *Pool) close(s browser.Session) error {
	err := s.Close()

	p.mu.Lock()
	p.disposed++
	p.mu.Unlock()

	if err != nil {
		p.logger.Error("failed to dispose session", "session_id", s.ID(), "error", err)
		return fmt.Errorf("failed to dispose session %s: %w", s.ID(), err)
	}
	p.logger.Debug("session disposed", "session_id", s.ID())
	return nil
}

// Shutdown disposes every session. Sessions still checked out are
// disposed too and reported as ErrOutstandingSessions.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	outstanding := make([]browser.Session, 0, len(p.inUse))
	for id, s := range p.inUse {
		outstanding = append(outstanding, s)
		p.orphaned[id] = struct{}{}
	}
	p.inUse = make(map[string]browser.Session)
	p.mu.Unlock()
	p.shutdown()

	var errs []error
	for _, s := range idle {
		if err := p.close(s); err != nil {
			errs = append(errs, err)
		}
	}
	for _, s := range outstanding {
		if err := p.close(s); err != nil {
			errs = append(errs, err)
		}
	}
	if len(outstanding) > 0 {
		errs = append(errs, fmt.Errorf("%w: %d", ErrOutstandingSessions, len(outstanding)))
	}
	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}

	p.logger.Info("pool shut down", "idle_disposed", len(idle), "outstanding_disposed", len(outstanding))
	return errors.Join(errs...)
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Stats{
		Size:     p.size,
		Created:  p.created,
		Disposed: p.disposed,
		Acquired: p.acquired,
		Live:     len(p.idle) + len(p.inUse),
		Idle:     len(p.idle),
		InUse:    len(p.inUse),
	}
}

func (p *Pool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
