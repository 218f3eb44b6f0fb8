package hal

import "time"

// SystemClock is a Clock backed by the runtime's monotonic time.
type SystemClock struct {
	start time.Time
}

// NewSystemClock returns a clock whose zero is the moment of the call.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

// Now returns the time elapsed since the clock was created.
func (c *SystemClock) Now() time.Duration {
	return time.Since(c.start)
}

// Delay spins for short holds and sleeps for anything a millisecond or longer.
func (c *SystemClock) Delay(d time.Duration) {
	if d >= time.Millisecond {
		time.Sleep(d)
		return
	}
	end := c.Now() + d
	for c.Now() < end {
	}
}
