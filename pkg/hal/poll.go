package hal

import (
	"errors"
	"time"
)

// ErrTimeout is returned when a bounded poll does not observe its condition.
var ErrTimeout = errors.New("hal: timeout")

// Poll spins on cond until it reports true or timeout elapses on clock.
// The condition is always evaluated at least once.
func Poll(clock Clock, timeout time.Duration, cond func() bool) error {
	deadline := clock.Now() + timeout
	for !cond() {
		if clock.Now() >= deadline {
			return ErrTimeout
		}
	}
	return nil
}

// WaitLevel waits until pin reads level, bounded by timeout.
func WaitLevel(pin Pin, clock Clock, level Level, timeout time.Duration) error {
	return Poll(clock, timeout, func() bool { return pin.Get() == level })
}
