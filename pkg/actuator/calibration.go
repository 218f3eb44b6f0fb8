// Package actuator maps drive percentages to servo PWM duty counts and
// switches the spray output.
package actuator

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"golang.org/x/exp/constraints"
)

var ErrCalibration = errors.New("actuator: invalid calibration")

// Curve shapes the percentage before interpolation.
type Curve uint8

const (
	Linear Curve = iota
	Parabolic
)

func (c Curve) String() string {
	switch c {
	case Linear:
		return "linear"
	case Parabolic:
		return "parabolic"
	}
	return "unknown"
}

// ParseCurve accepts "linear" (or empty) and "parabolic".
func ParseCurve(s string) (Curve, error) {
	switch s {
	case "", "linear":
		return Linear, nil
	case "parabolic":
		return Parabolic, nil
	}
	return Linear, fmt.Errorf("%w: unknown curve %q", ErrCalibration, s)
}

// Direction of travel.
type Direction int8

const (
	Forward Direction = 1
	Reverse Direction = -1
)

// Calibration is expressed in timer counts. The defaults describe a 50 Hz
// hobby servo on a 250 kHz timer: 1.5 ms stop, 1.92 ms full forward and 1 ms
// full reverse.
type Calibration struct {
	Period  uint32
	Stop    uint32
	Forward uint32
	Reverse uint32
	Curve   Curve
}

func DefaultCalibration() Calibration {
	return Calibration{
		Period:  5000,
		Stop:    375,
		Forward: 480,
		Reverse: 250,
		Curve:   Linear,
	}
}

// Validate checks that all duty points fit in the period.
func (c Calibration) Validate() error {
	if c.Period == 0 {
		return fmt.Errorf("%w: zero period", ErrCalibration)
	}
	for _, v := range []uint32{c.Stop, c.Forward, c.Reverse} {
		if v > c.Period {
			return fmt.Errorf("%w: duty %d exceeds period %d", ErrCalibration, v, c.Period)
		}
	}
	if c.Curve != Linear && c.Curve != Parabolic {
		return fmt.Errorf("%w: unknown curve %d", ErrCalibration, c.Curve)
	}
	return nil
}

// Duty returns the compare value for dir at pct percent (clamped to 100).
func (c Calibration) Duty(dir Direction, pct uint8) uint32 {
	p := float32(clamp(pct, 0, 100)) / 100
	if c.Curve == Parabolic {
		p = math32.Pow(p, 2)
	}
	end := c.Forward
	if dir == Reverse {
		end = c.Reverse
	}
	d := float32(c.Stop) + (float32(end)-float32(c.Stop))*p
	return clamp(uint32(math32.Round(math32.Max(d, 0))), 0, c.Period)
}

func clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
