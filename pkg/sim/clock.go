// Package sim is a deterministic virtual board: a virtual clock, bit-level
// HX711 and DHT11 models, an in-memory UART and PWM/GPIO recorders. Running the
// real sampler on it exercises every driver without hardware.
package sim

import (
	"sync/atomic"
	"time"
)

// DefaultPollCost is how far the clock moves on each Now call.
const DefaultPollCost = time.Microsecond

// Clock is a virtual monotonic clock. Every Now call costs PollCost so that
// busy-wait loops make progress; Delay advances the clock by exactly d.
type Clock struct {
	now  atomic.Int64
	cost time.Duration
}

// NewClock returns a clock at zero. pollCost <= 0 selects DefaultPollCost.
func NewClock(pollCost time.Duration) *Clock {
	if pollCost <= 0 {
		pollCost = DefaultPollCost
	}
	return &Clock{cost: pollCost}
}

func (c *Clock) Now() time.Duration {
	return time.Duration(c.now.Add(int64(c.cost)))
}

func (c *Clock) Delay(d time.Duration) {
	if d > 0 {
		c.now.Add(int64(d))
	}
}

// Peek returns the current time without advancing it. Peripheral models use
// it so that observing the bus does not move time.
func (c *Clock) Peek() time.Duration {
	return time.Duration(c.now.Load())
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.Delay(d)
}

// AdvanceTo moves the clock to t if t is in the future.
func (c *Clock) AdvanceTo(t time.Duration) {
	for {
		cur := c.now.Load()
		if int64(t) <= cur || c.now.CompareAndSwap(cur, int64(t)) {
			return
		}
	}
}
