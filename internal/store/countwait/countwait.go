// Package countwait provides a value-threshold rendezvous. Readers block
// until the follower's counter reaches their threshold; the follower
// advances the counter as events become durable.
package countwait

import (
	"context"
	"sync"
	"time"
)

// Outcome is the result of a Wait call.
type Outcome int

const (
	// OK means the counter reached the requested threshold.
	OK Outcome = iota
	// Timeout means the wait deadline elapsed first.
	Timeout
	// Canceled means the caller's context was canceled first.
	Canceled
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case Timeout:
		return "timeout"
	case Canceled:
		return "canceled"
	default:
		return "unknown"
	}
}

type waiter struct {
	threshold int64
	done      chan struct{}
}

// CounterWait is a monotonic counter with threshold waiters.
//
// The counter only moves forward through Update; Reset is the sole way to
// move it backward and is reserved for snapshot re-basing, where the event-id
// axis itself may have jumped.
type CounterWait struct {
	mu      sync.Mutex
	value   int64
	waiters map[*waiter]struct{}
}

// New creates a CounterWait starting at zero.
func New() *CounterWait {
	return &CounterWait{waiters: make(map[*waiter]struct{})}
}

// Value returns the current counter value.
func (c *CounterWait) Value() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Update advances the counter to n if n is greater than the current value
// and wakes every waiter whose threshold is now satisfied. Once Update(n)
// returns, any Wait(m) with m <= n returns immediately with OK.
func (c *CounterWait) Update(n int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n <= c.value {
		return
	}
	c.value = n
	c.wakeLocked()
}

// Reset unconditionally sets the counter to n, waking waiters whose
// threshold is <= n. Waiters above n stay blocked.
func (c *CounterWait) Reset(n int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = n
	c.wakeLocked()
}

func (c *CounterWait) wakeLocked() {
	for w := range c.waiters {
		if w.threshold <= c.value {
			close(w.done)
			delete(c.waiters, w)
		}
	}
}

// Wait blocks until the counter reaches threshold, the timeout elapses, or
// ctx is canceled. A timeout of zero or less waits only on the context.
func (c *CounterWait) Wait(ctx context.Context, threshold int64, timeout time.Duration) Outcome {
	c.mu.Lock()
	if c.value >= threshold {
		c.mu.Unlock()
		return OK
	}
	w := &waiter{threshold: threshold, done: make(chan struct{})}
	c.waiters[w] = struct{}{}
	c.mu.Unlock()

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case <-w.done:
		return OK
	case <-timer:
		return c.abandon(w, Timeout)
	case <-ctx.Done():
		return c.abandon(w, Canceled)
	}
}

// abandon removes a waiter that gave up. The wake path may have already
// satisfied it, in which case OK wins.
func (c *CounterWait) abandon(w *waiter, outcome Outcome) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, pending := c.waiters[w]; !pending {
		return OK
	}
	delete(c.waiters, w)
	return outcome
}
