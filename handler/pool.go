package handler

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"

	"golang.org/x/sync/semaphore"
)

// Pool bounds the number of blocking bodies executing at once. Work submitted
// through Do always runs on a separate goroutine so the caller's dispatcher is
// never occupied by it.
type Pool struct {
	size int64
	sem  *semaphore.Weighted
}

// NewPool creates a pool running at most size bodies concurrently. size <= 0
// uses GOMAXPROCS.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	return &Pool{size: int64(size), sem: semaphore.NewWeighted(int64(size))}
}

// Size returns the pool capacity.
func (p *Pool) Size() int { return int(p.size) }

// Do runs fn on a pool worker and waits for it. If ctx is cancelled before a
// worker is available the work is not started. Once started, fn runs to
// completion even if ctx is cancelled.
func (p *Pool) Do(ctx context.Context, fn func() error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		defer p.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				done <- &PanicError{Value: r, Stack: debug.Stack()}
			}
		}()
		done <- fn()
	}()

	if err := <-done; err != nil {
		return fmt.Errorf("blocking body: %w", err)
	}
	return nil
}
