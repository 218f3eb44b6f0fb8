// Package hal defines the hardware collaborators the sampler core consumes:
// GPIO lines, a monotonic clock, a compare alarm, a byte transport and a PWM
// output. Implementations exist for TinyGo boards (firmware), Linux SBCs
// (periphhal) and the virtual board (sim).
package hal

import "time"

// Level is a logic level on a GPIO line.
type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l {
		return "high"
	}
	return "low"
}

// Direction selects whether a line is driven or sampled.
type Direction uint8

const (
	Input Direction = iota
	Output
)

// Pin is a single bidirectional GPIO line.
type Pin interface {
	Set(level Level)
	Get() Level
	SetDirection(dir Direction)
}

// Clock is a monotonic time source measured from boot.
type Clock interface {
	Now() time.Duration
	// Delay blocks the caller for d. Used for sub-millisecond protocol holds.
	Delay(d time.Duration)
}

// Alarm is a one-shot compare event on a Clock.
type Alarm interface {
	ArmAt(t time.Duration)
	Fired() bool
	Disarm()
}

// Transport is the serial byte link. It matches the TinyGo machine.UART
// method set so boards can pass their UART directly.
type Transport interface {
	WriteByte(c byte) error
	ReadByte() (byte, error)
	Buffered() int
}

// PWM drives the actuator output. Duty is expressed in counts of the
// configured period.
type PWM interface {
	SetDuty(counts uint32)
	Enable(on bool)
}
