// internal/timer/countdown.go
//
// Countdown for a puzzle attempt. It produces two one-shot signals:
//   - warning: once, when WarnAt remains (only if the limit is longer than WarnAt);
//   - expiry:  once, when the limit is reached.
// Stop cancels whatever has not fired yet. Callbacks run on their own
// goroutine (time.AfterFunc) and must do their own locking.

package timer

import (
	"sync"
	"time"
)

// DefaultLimit and DefaultWarnAt match the in-game clock.
const (
	DefaultLimit  = 600 * time.Second
	DefaultWarnAt = 10 * time.Second
)

// Countdown fires OnWarning and OnExpire at most once each.
type Countdown struct {
	limit  time.Duration
	warnAt time.Duration

	OnWarning func(remaining time.Duration)
	OnExpire  func()

	mu      sync.Mutex
	started time.Time
	warn    *time.Timer
	expire  *time.Timer
	stopped bool
}

// New creates a stopped countdown.
func New(limit, warnAt time.Duration) *Countdown {
	return &Countdown{limit: limit, warnAt: warnAt}
}

// Start begins counting. Calling Start twice, or after Stop, has no effect.
func (c *Countdown) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped || !c.started.IsZero() {
		return
	}
	c.started = time.Now()
	if c.limit > c.warnAt && c.warnAt > 0 {
		c.warn = time.AfterFunc(c.limit-c.warnAt, c.fireWarning)
	}
	c.expire = time.AfterFunc(c.limit, c.fireExpire)
}

// Stop cancels pending signals. It is safe to call more than once.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	if c.warn != nil {
		c.warn.Stop()
	}
	if c.expire != nil {
		c.expire.Stop()
	}
}

// Remaining is the time left, never negative. Before Start it is the
// full limit.
func (c *Countdown) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started.IsZero() {
		return c.limit
	}
	left := c.limit - time.Since(c.started)
	if left < 0 {
		return 0
	}
	return left
}

func (c *Countdown) fireWarning() {
	c.mu.Lock()
	stopped := c.stopped
	c.mu.Unlock()
	if !stopped && c.OnWarning != nil {
		c.OnWarning(c.warnAt)
	}
}

func (c *Countdown) fireExpire() {
	c.mu.Lock()
	stopped := c.stopped
	c.stopped = true
	c.mu.Unlock()
	if !stopped && c.OnExpire != nil {
		c.OnExpire()
	}
}
