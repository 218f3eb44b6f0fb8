package actuator

import "github.com/itohio/goloadcell/pkg/hal"

// Actuator owns the drive PWM channel and the optional spray output.
type Actuator struct {
	pwm   hal.PWM
	spray hal.Pin
	cal   Calibration

	duty     uint32
	enabled  bool
	spraying bool
}

// New validates cal. spray may be nil.
func New(pwm hal.PWM, spray hal.Pin, cal Calibration) (*Actuator, error) {
	if err := cal.Validate(); err != nil {
		return nil, err
	}
	return &Actuator{pwm: pwm, spray: spray, cal: cal}, nil
}

// Configure parks the drive at stop with the output disabled and the spray off.
func (a *Actuator) Configure() {
	if a.spray != nil {
		a.spray.SetDirection(hal.Output)
	}
	a.Spray(false)
	a.Stop()
	a.Disable()
}

func (a *Actuator) Calibration() Calibration {
	return a.cal
}

// Drive sets the duty for dir at pct percent.
func (a *Actuator) Drive(dir Direction, pct uint8) {
	a.setDuty(a.cal.Duty(dir, pct))
}

// Stop sets the stop duty. The output stays enabled.
func (a *Actuator) Stop() {
	a.setDuty(a.cal.Stop)
}

func (a *Actuator) Enable() {
	a.enabled = true
	a.pwm.Enable(true)
}

func (a *Actuator) Disable() {
	a.enabled = false
	a.pwm.Enable(false)
}

func (a *Actuator) Spray(on bool) {
	a.spraying = on
	if a.spray != nil {
		a.spray.Set(hal.Level(on))
	}
}

func (a *Actuator) Duty() uint32 {
	return a.duty
}

func (a *Actuator) Enabled() bool {
	return a.enabled
}

func (a *Actuator) Spraying() bool {
	return a.spraying
}

func (a *Actuator) setDuty(d uint32) {
	a.duty = d
	a.pwm.SetDuty(d)
}
