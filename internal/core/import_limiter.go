package core

// import_limiter.go bounds how many imports write to the store at once.
//
// Each import holds one slot of a weighted semaphore for the duration of its
// transaction. A caller that cannot get a slot within maxWait receives
// ErrTooManyImports. Shutdown uses WaitForDrain to let running imports finish.

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrTooManyImports is returned when every import slot stayed busy for the
// whole wait period. Clients should retry after a short delay.
var ErrTooManyImports = errors.New("too many concurrent imports, please try again later")

const (
	DefaultMaxConcurrentImports = 5
	DefaultMaxImportWait        = 30 * time.Second
)

// ImportLimiter limits parallel imports.
type ImportLimiter struct {
	sem     *semaphore.Weighted
	size    int
	maxWait time.Duration

	mu      sync.Mutex
	active  int
	drained chan struct{} // closed while active == 0
}

// NewImportLimiter allows at most maxConcurrent imports; waiters give up after maxWait.
func NewImportLimiter(maxConcurrent int, maxWait time.Duration) *ImportLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentImports
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxImportWait
	}

	drained := make(chan struct{})
	close(drained)

	return &ImportLimiter{
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
		size:    maxConcurrent,
		maxWait: maxWait,
		drained: drained,
	}
}

// Acquire takes a slot, waiting up to maxWait. The caller must Release it.
// A cancelled ctx returns ctx.Err() rather than ErrTooManyImports.
func (l *ImportLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	if err := l.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyImports
	}
	l.track(1)
	return nil
}

// TryAcquire takes a slot only if one is free right now.
func (l *ImportLimiter) TryAcquire() bool {
	if !l.sem.TryAcquire(1) {
		return false
	}
	l.track(1)
	return true
}

// Release returns a slot taken by Acquire or TryAcquire.
func (l *ImportLimiter) Release() {
	l.track(-1)
	l.sem.Release(1)
}

func (l *ImportLimiter) track(delta int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev := l.active
	l.active += delta
	switch {
	case prev == 0 && l.active > 0:
		l.drained = make(chan struct{})
	case prev > 0 && l.active == 0:
		close(l.drained)
	}
}

// ActiveCount returns the number of imports holding a slot.
func (l *ImportLimiter) ActiveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// MaxConcurrent returns the number of slots.
func (l *ImportLimiter) MaxConcurrent() int {
	return l.size
}

// WaitForDrain blocks until no import holds a slot or ctx is done.
func (l *ImportLimiter) WaitForDrain(ctx context.Context) error {
	for {
		l.mu.Lock()
		ch := l.drained
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
			if l.ActiveCount() == 0 {
				return nil
			}
		}
	}
}

// ImportLimiterStatus is a snapshot of limiter usage.
type ImportLimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the current usage.
func (l *ImportLimiter) Status() ImportLimiterStatus {
	active := l.ActiveCount()
	return ImportLimiterStatus{
		Active:        active,
		Available:     l.size - active,
		MaxConcurrent: l.size,
	}
}
