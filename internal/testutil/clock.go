package testutil

import "sync"

// Clock is a deterministic microsecond clock for journal tests.
//
// The first call to NowMicros returns start; each further call advances by
// step. The same test with the same Clock writes byte-identical journals,
// which is what golden files rely on.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Clock struct {
	mu   sync.Mutex
	next uint64
	step uint64
}

// NewClock creates a clock that starts at start and advances by step.
func NewClock(start, step uint64) *Clock {
	return &Clock{next: start, step: step}
}

// NowMicros returns the current value and advances the clock.
func (c *Clock) NowMicros() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.next
	c.next += c.step
	return now
}

// Peek returns the value the next NowMicros call will return.
func (c *Clock) Peek() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.next
}

// Set moves the clock so the next NowMicros call returns us.
func (c *Clock) Set(us uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next = us
}
