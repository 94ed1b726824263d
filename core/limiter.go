package core

import (
	"context"
	"sync"
	"time"
)

// CallLimiter allows at most max calls per window. Callers exceeding the
// budget wait until the window has elapsed since the last admitted call.
// A max of 0 disables limiting.
type CallLimiter struct {
	max    int
	window time.Duration
	now    func() time.Time

	mu    sync.Mutex
	count int
	last  time.Time
}

// NewCallLimiter creates a limiter admitting max calls per window.
func NewCallLimiter(max int, window time.Duration) *CallLimiter {
	return &CallLimiter{max: max, window: window, now: time.Now}
}

// Wait blocks until a call may proceed or ctx is done.
func (l *CallLimiter) Wait(ctx context.Context) error {
	if l == nil || l.max <= 0 {
		return nil
	}
	for {
		l.mu.Lock()
		now := l.now()
		if l.count >= l.max {
			if elapsed := now.Sub(l.last); elapsed < l.window {
				wait := l.window - elapsed
				l.mu.Unlock()

				t := time.NewTimer(wait)
				select {
				case <-ctx.Done():
					t.Stop()
					return ctx.Err()
				case <-t.C:
				}
				continue
			}
			l.count = 0
		}
		l.count++
		l.last = now
		l.mu.Unlock()
		return nil
	}
}

// Count returns the number of calls admitted in the current window.
func (l *CallLimiter) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.count
}

// Remaining returns how many calls are left in the current window.
func (l *CallLimiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.max == 0 {
		return -1 // unlimited
	}

	return l.max - l.count
}
