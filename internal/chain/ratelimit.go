package chain

import (
	"context"
	"sync"
	"time"
)

// Limiter enforces a minimum wall-clock gap between outbound calls. It is a
// token bucket of size one: each Wait reserves the next allowed slot under
// the lock, so two concurrent callers can never both decide "safe to call
// now" from a stale timestamp. Calls are delayed, never dropped.
type Limiter struct {
	clock    Clock
	interval time.Duration

	mu   sync.Mutex
	next time.Time // earliest time the next call may go out
}

// NewLimiter creates a limiter with the given minimum inter-call interval.
func NewLimiter(interval time.Duration, clock Clock) *Limiter {
	if clock == nil {
		clock = RealClock{}
	}
	return &Limiter{clock: clock, interval: interval}
}

// Wait blocks until the caller's reserved slot arrives or ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	if l.interval <= 0 {
		return ctx.Err()
	}

	l.mu.Lock()
	now := l.clock.Now()
	slot := l.next
	if slot.Before(now) {
		slot = now
	}
	l.next = slot.Add(l.interval)
	l.mu.Unlock()

	return l.clock.Sleep(ctx, slot.Sub(now))
}
