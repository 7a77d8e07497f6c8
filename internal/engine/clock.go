package engine

import "sync/atomic"

// Clock is the runner's monotonic iteration counter. Iteration numbers in
// logs, errors and reports come from it.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next iteration number and advances the clock.
func (c *Clock) Next() int {
	return int(c.seq.Add(1))
}

// Current returns the current iteration number without advancing.
func (c *Clock) Current() int {
	return int(c.seq.Load())
}

// Reset rewinds the clock to 0.
func (c *Clock) Reset() {
	c.seq.Store(0)
}
