package queue

import (
	"context"
	"sync"
	"time"
)

// limiter caps job starts across all workers to max per rolling window.
type limiter struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	starts []time.Time
}

func newLimiter(max int, window time.Duration) *limiter {
	return &limiter{max: max, window: window}
}

// wait blocks until a start slot is available and claims it. Returns
// true when the caller actually had to wait.
func (l *limiter) wait(ctx context.Context) (bool, error) {
	waited := false
	for {
		l.mu.Lock()
		now := time.Now()

		// Drop starts that have aged out of the window.
		cutoff := now.Add(-l.window)
		i := 0
		for i < len(l.starts) && !l.starts[i].After(cutoff) {
			i++
		}
		l.starts = l.starts[i:]

		if len(l.starts) < l.max {
			l.starts = append(l.starts, now)
			l.mu.Unlock()
			return waited, nil
		}

		sleep := l.starts[0].Add(l.window).Sub(now)
		l.mu.Unlock()

		waited = true
		select {
		case <-ctx.Done():
			return waited, ctx.Err()
		case <-time.After(sleep):
		}
	}
}
