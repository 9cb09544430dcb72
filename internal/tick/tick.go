// Package tick provides a free-running, wrapping tick counter and the
// conversion from tick deltas to elapsed time.
//
// Ticks are coarse (10ms) and wrap at 2^32. Consumers never compare ticks
// directly; they only take deltas with Elapsed.
package tick

import "time"

// Ticks is a hardware-style tick count since an arbitrary epoch (boot).
type Ticks uint32

// TicksPerSecond is the fixed tick rate.
const TicksPerSecond = 100

// Period is the duration of a single tick.
const Period = time.Second / TicksPerSecond

// Clock returns the current tick value. Now must never block.
type Clock interface {
	Now() Ticks
}

// Elapsed returns the time between prev and now.
// The subtraction wraps, so a counter rollover between the two samples
// still yields the small true delta.
func Elapsed(prev, now Ticks) time.Duration {
	delta := now - prev
	return time.Duration(delta) * Period
}

// SystemClock derives ticks from the Go monotonic clock.
type SystemClock struct {
	start  time.Time
	offset Ticks
	since  func(time.Time) time.Duration
}

// NewSystemClock returns a clock whose first reading is offset.
// A non-zero offset is useful for exercising rollover early.
func NewSystemClock(offset Ticks) *SystemClock {
	return &SystemClock{
		start:  time.Now(),
		offset: offset,
		since:  time.Since,
	}
}

// Now returns the ticks elapsed since construction, plus the offset,
// truncated to 32 bits.
func (c *SystemClock) Now() Ticks {
	n := uint64(c.since(c.start) / Period)
	return c.offset + Ticks(uint32(n))
}
