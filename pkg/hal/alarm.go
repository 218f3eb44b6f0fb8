package hal

import (
	"sync/atomic"
	"time"
)

// SoftAlarm implements Alarm by comparing a Clock against an armed deadline.
// It stands in for a hardware capture/compare channel on boards that do not
// expose one.
type SoftAlarm struct {
	clock    Clock
	deadline atomic.Int64
	armed    atomic.Bool
}

var _ Alarm = (*SoftAlarm)(nil)

// NewSoftAlarm returns a disarmed alarm on clock.
func NewSoftAlarm(clock Clock) *SoftAlarm {
	return &SoftAlarm{clock: clock}
}

// ArmAt schedules the compare event at t.
func (a *SoftAlarm) ArmAt(t time.Duration) {
	a.deadline.Store(int64(t))
	a.armed.Store(true)
}

// Fired reports whether the alarm is armed and its deadline has passed.
func (a *SoftAlarm) Fired() bool {
	if !a.armed.Load() {
		return false
	}
	return a.clock.Now() >= time.Duration(a.deadline.Load())
}

// Disarm cancels a pending compare event.
func (a *SoftAlarm) Disarm() {
	a.armed.Store(false)
}
