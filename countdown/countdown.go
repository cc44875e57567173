package countdown

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrRunning is returned by Start while an armed countdown has time left.
	ErrRunning = errors.New("countdown still running")
	// ErrInvalidDuration is returned by Start for non-positive durations.
	ErrInvalidDuration = errors.New("countdown duration must be positive")
)

// Countdown tracks time-to-deadline against a monotonic clock. The zero
// value is not usable; construct with New or NewWithNow.
type Countdown struct {
	mu       sync.Mutex
	now      func() time.Time
	deadline time.Time
	armed    bool
	expired  bool
}

// New returns an unarmed countdown on the real clock.
func New() *Countdown {
	return NewWithNow(time.Now)
}

// NewWithNow returns an unarmed countdown reading time from now, for tests
// and callers with an injected clock.
func NewWithNow(now func() time.Time) *Countdown {
	if now == nil {
		now = time.Now
	}
	return &Countdown{now: now}
}

// Start arms the countdown for d. Starting over a countdown that is armed
// and not yet expired is an error: a running window must run out (or be
// Reset for a new challenge) before it can be rearmed.
func (c *Countdown) Start(d time.Duration) error {
	if d <= 0 {
		return ErrInvalidDuration
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.armed && !c.expiredLocked() {
		return ErrRunning
	}
	c.deadline = c.now().Add(d)
	c.armed = true
	c.expired = false
	return nil
}

// Remaining reports the time left, zero once expired or while unarmed.
func (c *Countdown) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.armed || c.expiredLocked() {
		return 0
	}
	return c.deadline.Sub(c.now())
}

// Expired reports whether an armed countdown has run out. The transition is
// sticky: once observed, Expired stays true until Reset even if the clock
// misbehaves.
func (c *Countdown) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.armed && c.expiredLocked()
}

// Reset disarms the countdown. Legal only when transitioning to a new
// challenge; the flow owns that rule, Reset itself is unconditional.
func (c *Countdown) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.armed = false
	c.expired = false
	c.deadline = time.Time{}
}

func (c *Countdown) expiredLocked() bool {
	if c.expired {
		return true
	}
	if c.armed && !c.now().Before(c.deadline) {
		c.expired = true
	}
	return c.expired
}
