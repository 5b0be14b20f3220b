// Package pool provides a bounded, mutex-guarded resource pool with FIFO
// reuse, lazy creation up to capacity, cleanup-before-reuse and bounded
// blocking acquisition. It is instantiated for browser processes and for
// the pages inside each browser.
package pool

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrTimeout is returned when no slot frees within the acquire timeout.
var ErrTimeout = errors.New("pool: acquire timed out")

// ErrClosed is returned when acquiring from a pool that has been shut down.
var ErrClosed = errors.New("pool: closed")

// lowWater is the idle-queue length above which a returned handle is
// destroyed instead of pooled, as long as the total stays above MinIdle.
// Keeps the idle footprint small without thrashing below the minimum.
const lowWater = 2

// Config controls a pool instance.
type Config struct {
	// Capacity is the maximum number of outstanding handles.
	Capacity int

	// MinIdle is the floor below which returned handles are never evicted.
	MinIdle int

	// AcquireTimeout bounds how long Acquire blocks for a free slot.
	// Zero means wait only on the caller's context.
	AcquireTimeout time.Duration
}

// Funcs supplies the handle lifecycle callbacks.
//
// Cleanup runs on release before a handle re-enters the idle queue; when it
// returns an error the handle is destroyed instead of reused, and capacity
// regenerates lazily on a later Acquire. Cleanup and Destroy run outside
// the pool guard, so slow handle work never blocks pool bookkeeping.
type Funcs[H comparable] struct {
	Create  func() (H, error)
	Destroy func(H)
	Cleanup func(H) error
}

// Pool is a bounded pool of handles. It is safe for concurrent use.
//
// Invariant: idle + inUse == total <= Capacity, and every live handle is in
// exactly one of the two. Waiters racing for a freed slot are not served in
// FIFO order; any waiter may win.
type Pool[H comparable] struct {
	cfg   Config
	funcs Funcs[H]

	idle chan H // FIFO reuse order

	mu     sync.Mutex
	inUse  map[H]struct{}
	total  int
	closed bool
}

// New creates an empty pool. Handles are created lazily by Acquire, or
// eagerly via Initialize.
func New[H comparable](cfg Config, funcs Funcs[H]) *Pool[H] {
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}
	if cfg.MinIdle > cfg.Capacity {
		cfg.MinIdle = cfg.Capacity
	}
	return &Pool[H]{
		cfg:   cfg,
		funcs: funcs,
		idle:  make(chan H, cfg.Capacity),
		inUse: make(map[H]struct{}),
	}
}

// Initialize synchronously creates n idle handles. A creation failure is
// fatal and propagated: it means the underlying engine cannot start, which
// is an environment problem retrying will not fix.
func (p *Pool[H]) Initialize(n int) error {
	if n > p.cfg.Capacity {
		n = p.cfg.Capacity
	}
	for i := 0; i < n; i++ {
		h, err := p.funcs.Create()
		if err != nil {
			return err
		}
		p.mu.Lock()
		p.total++
		p.mu.Unlock()
		p.idle <- h
	}
	return nil
}

// Acquire returns an idle handle, creating one if the pool is under
// capacity, and otherwise blocks until a handle is released or the acquire
// timeout / context expires.
func (p *Pool[H]) Acquire(ctx context.Context) (H, error) {
	var zero H

	// Fast path: an idle handle is ready.
	select {
	case h := <-p.idle:
		return p.checkout(h)
	default:
	}

	// Under capacity: create a new handle directly into in-use.
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return zero, ErrClosed
	}
	if p.total < p.cfg.Capacity {
		p.total++
		p.mu.Unlock()
		h, err := p.funcs.Create()
		if err != nil {
			p.mu.Lock()
			p.total--
			p.mu.Unlock()
			return zero, err
		}
		p.mu.Lock()
		p.inUse[h] = struct{}{}
		p.mu.Unlock()
		return h, nil
	}
	p.mu.Unlock()

	// At capacity: wait for a release.
	var expired <-chan time.Time
	if p.cfg.AcquireTimeout > 0 {
		t := time.NewTimer(p.cfg.AcquireTimeout)
		defer t.Stop()
		expired = t.C
	}
	select {
	case h := <-p.idle:
		return p.checkout(h)
	case <-expired:
		return zero, ErrTimeout
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (p *Pool[H]) checkout(h H) (H, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.destroy(h)
		var zero H
		return zero, ErrClosed
	}
	p.inUse[h] = struct{}{}
	p.mu.Unlock()
	return h, nil
}

// Release returns a handle to the pool. Releasing a handle that is not
// currently checked out is a no-op, so double release never corrupts pool
// state. The handle is cleaned before it becomes eligible for reuse; if
// cleanup fails, or the idle queue is already above the low-water mark with
// the total above MinIdle, the handle is destroyed instead.
func (p *Pool[H]) Release(h H) {
	p.mu.Lock()
	if _, ok := p.inUse[h]; !ok {
		p.mu.Unlock()
		return
	}
	delete(p.inUse, h)
	closed := p.closed
	p.mu.Unlock()

	if closed {
		p.destroy(h)
		return
	}

	if p.funcs.Cleanup != nil {
		if err := p.funcs.Cleanup(h); err != nil {
			slog.Warn("pool: cleanup failed, discarding handle", "error", err)
			p.destroy(h)
			return
		}
	}

	p.mu.Lock()
	evict := len(p.idle) >= lowWater && p.total > p.cfg.MinIdle
	closed = p.closed
	p.mu.Unlock()
	if closed || evict {
		p.destroy(h)
		return
	}

	p.idle <- h
}

func (p *Pool[H]) destroy(h H) {
	p.mu.Lock()
	p.total--
	p.mu.Unlock()
	p.funcs.Destroy(h)
}

// Shutdown destroys every handle, idle and in-use alike. It must not be
// called while acquisitions are in flight; the pool provides no quiescence
// barrier.
func (p *Pool[H]) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	stale := make([]H, 0, len(p.inUse))
	for h := range p.inUse {
		stale = append(stale, h)
	}
	p.inUse = make(map[H]struct{})
	p.mu.Unlock()

	for _, h := range stale {
		p.destroy(h)
	}
drain:
	for {
		select {
		case h := <-p.idle:
			p.destroy(h)
		default:
			break drain
		}
	}
}

// Stats is a snapshot of the pool's occupancy.
type Stats struct {
	Capacity int
	Idle     int
	InUse    int
}

// Stats returns the pool's current occupancy.
func (p *Pool[H]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Capacity: p.cfg.Capacity,
		Idle:     len(p.idle),
		InUse:    len(p.inUse),
	}
}
