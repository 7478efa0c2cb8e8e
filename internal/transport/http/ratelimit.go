package http

import (
	"context"
	"sync/atomic"
	"time"
)

// rateLimiter caps inbound frames per connection within a fixed window.
type rateLimiter struct {
	limit   int64
	window  time.Duration
	counter atomic.Int64
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	if limit <= 0 {
		return nil
	}
	if window <= 0 {
		window = time.Minute
	}
	return &rateLimiter{limit: int64(limit), window: window}
}

func (r *rateLimiter) allow() bool {
	if r == nil {
		return true
	}
	return r.counter.Add(1) <= r.limit
}

// run resets the counter every window until ctx is done.
func (r *rateLimiter) run(ctx context.Context) {
	if r == nil {
		return
	}
	ticker := time.NewTicker(r.window)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.counter.Store(0)
			case <-ctx.Done():
				return
			}
		}
	}()
}
