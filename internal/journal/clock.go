package journal

import (
	"sync/atomic"
	"time"
)

// Clock stamps journal entries with microseconds since the Unix epoch.
type Clock interface {
	NowMicros() uint64
}

// WallClock reads time.Now.
type WallClock struct{}

// NowMicros implements Clock.
func (WallClock) NowMicros() uint64 {
	return uint64(time.Now().UnixMicro())
}

// MonotonicClock never returns a value lower than one it already returned,
// so entries stay ordered when the wall clock steps backwards.
//
// Safe for concurrent use, although an engine only calls it from its owner.
type MonotonicClock struct {
	base Clock
	last atomic.Uint64
}

// NewMonotonicClock wraps base.
func NewMonotonicClock(base Clock) *MonotonicClock {
	return &MonotonicClock{base: base}
}

// NowMicros implements Clock.
func (c *MonotonicClock) NowMicros() uint64 {
	now := c.base.NowMicros()
	for {
		last := c.last.Load()
		if now < last {
			now = last
		}
		if c.last.CompareAndSwap(last, now) {
			return now
		}
	}
}

// Current returns the last value handed out, or 0.
func (c *MonotonicClock) Current() uint64 {
	return c.last.Load()
}
