// Package historytest provides a manually driven clock for deterministic
// tests of debounced history.
package historytest

import (
	"sync"
	"time"

	"github.com/serroba/docs-undo/internal/history"
)

// Clock is a history.Clock whose time only moves when Advance is called.
type Clock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*timer
}

type timer struct {
	clock   *Clock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func (t *timer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	if t.stopped || t.fired {
		return false
	}

	t.stopped = true

	return true
}

// NewClock returns a clock starting at a fixed instant.
func NewClock() *Clock {
	return &Clock{
		now: time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC),
	}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

// AfterFunc schedules f to run when the clock is advanced past d.
func (c *Clock) AfterFunc(d time.Duration, f func()) history.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &timer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)

	return t
}

// Advance moves time forward by d, running due callbacks in time order on
// the calling goroutine. Callbacks may schedule further timers.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()

		next := c.nextDueLocked(target)
		if next == nil {
			c.now = target
			c.compactLocked()
			c.mu.Unlock()

			return
		}

		if next.at.After(c.now) {
			c.now = next.at
		}

		next.fired = true
		c.mu.Unlock()

		next.f()
	}
}

// Pending returns the number of timers that have neither fired nor stopped.
func (c *Clock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0

	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}

	return n
}

func (c *Clock) nextDueLocked(target time.Time) *timer {
	var next *timer

	for _, t := range c.timers {
		if t.stopped || t.fired || t.at.After(target) {
			continue
		}

		if next == nil || t.at.Before(next.at) {
			next = t
		}
	}

	return next
}

func (c *Clock) compactLocked() {
	kept := c.timers[:0]

	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			kept = append(kept, t)
		}
	}

	c.timers = kept
}

var _ history.Clock = (*Clock)(nil)
