package periphhal

import (
	"sync"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"

	"github.com/itohio/goloadcell/pkg/hal"
)

// DefaultServoFrequency is the frame rate of hobby servos.
const DefaultServoFrequency = 50 * physic.Hertz

// PWM adapts a periph PWM-capable line to hal.PWM. Duty counts are relative
// to period, so the actuator calibration carries over from the MCU timer.
type PWM struct {
	mu      sync.Mutex
	p       gpio.PinOut
	period  uint32
	freq    physic.Frequency
	duty    uint32
	enabled bool
	err     error
}

var _ hal.PWM = (*PWM)(nil)

// OpenPWM looks up a PWM line by name.
func OpenPWM(name string, period uint32, freq physic.Frequency) (*PWM, error) {
	if err := Init(); err != nil {
		return nil, err
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, errors.Errorf("pwm %q not found", name)
	}
	return NewPWM(p, period, freq)
}

// NewPWM wraps a line. The output starts disabled.
func NewPWM(p gpio.PinOut, period uint32, freq physic.Frequency) (*PWM, error) {
	if period == 0 {
		return nil, errors.New("pwm period must be positive")
	}
	if freq == 0 {
		freq = DefaultServoFrequency
	}
	return &PWM{p: p, period: period, freq: freq}, nil
}

// SetDuty updates the duty; an enabled output is updated immediately.
func (w *PWM) SetDuty(counts uint32) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.duty = min(counts, w.period)
	if w.enabled {
		w.apply()
	}
}

// Enable starts or stops the waveform. A stopped output is held low.
func (w *PWM) Enable(on bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.enabled = on
	if on {
		w.apply()
		return
	}
	w.setErr(w.p.Out(gpio.Low))
}

// Duty converts counts to periph's fixed-point duty.
func (w *PWM) Duty() gpio.Duty {
	w.mu.Lock()
	defer w.mu.Unlock()
	return toDuty(w.duty, w.period)
}

// Err returns and clears the last driver error.
func (w *PWM) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	err := w.err
	w.err = nil
	return err
}

func (w *PWM) apply() {
	w.setErr(w.p.PWM(toDuty(w.duty, w.period), w.freq))
}

func (w *PWM) setErr(err error) {
	if err != nil {
		w.err = errors.Wrapf(err, "pwm %s", w.p.Name())
	}
}

func toDuty(counts, period uint32) gpio.Duty {
	return gpio.Duty(uint64(counts) * uint64(gpio.DutyMax) / uint64(period))
}
