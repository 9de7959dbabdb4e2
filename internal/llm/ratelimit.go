package llm

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// minWait keeps wait from spinning when a token is a rounding error away.
const minWait = time.Millisecond

// rateLimiter is a token bucket refilled from elapsed time, so it needs no
// background goroutine. A 429 from the endpoint pauses every caller until
// the server's Retry-After has passed.
type rateLimiter struct {
	now      func() time.Time
	last     time.Time
	paused   time.Time
	tokens   float64
	capacity float64
	perToken time.Duration
	mu       sync.Mutex
}

// newRateLimiter allows requestsPerMinute calls per minute, starting full.
func newRateLimiter(requestsPerMinute int) *rateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = DefaultRateLimit
	}
	rl := &rateLimiter{
		now:      time.Now,
		tokens:   float64(requestsPerMinute),
		capacity: float64(requestsPerMinute),
		perToken: time.Minute / time.Duration(requestsPerMinute),
	}
	rl.last = rl.now()
	return rl
}

// wait blocks until a call may be made or ctx is done.
func (rl *rateLimiter) wait(ctx context.Context) error {
	for {
		delay := rl.reserve()
		if delay == 0 {
			return nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("rate limiter canceled: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

// reserve takes a token and returns zero, or returns how long until one
// may be available.
func (rl *rateLimiter) reserve() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Before(rl.paused) {
		return rl.paused.Sub(now)
	}

	if elapsed := now.Sub(rl.last); elapsed > 0 {
		rl.tokens += float64(elapsed) / float64(rl.perToken)
		if rl.tokens > rl.capacity {
			rl.tokens = rl.capacity
		}
		rl.last = now
	}

	if rl.tokens >= 1 {
		rl.tokens--
		return 0
	}
	if delay := time.Duration((1 - rl.tokens) * float64(rl.perToken)); delay > minWait {
		return delay
	}
	return minWait
}

// pause holds every caller for d, as asked by a Retry-After header. One call
// is allowed as soon as the pause ends.
func (rl *rateLimiter) pause(d time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	until := rl.now().Add(d)
	if until.After(rl.paused) {
		rl.paused = until
		rl.last = until
		rl.tokens = 1
	}
}
