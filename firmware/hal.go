//go:build tinygo

package main

import (
	"machine"

	"github.com/itohio/goloadcell/pkg/hal"
)

// pin adapts machine.Pin to hal.Pin. Input mode enables the pull-up so an
// open-drain line idles high.
type pin struct {
	p    machine.Pin
	pull bool
}

var _ hal.Pin = (*pin)(nil)

func (p *pin) Set(l hal.Level) {
	p.p.Set(bool(l))
}

func (p *pin) Get() hal.Level {
	return hal.Level(p.p.Get())
}

func (p *pin) SetDirection(d hal.Direction) {
	mode := machine.PinInput
	switch {
	case d == hal.Output:
		mode = machine.PinOutput
	case p.pull:
		mode = machine.PinInputPullup
	}
	p.p.Configure(machine.PinConfig{Mode: mode})
}

// pwmTimer is the part of a TinyGo PWM peripheral the actuator needs.
type pwmTimer interface {
	Configure(config machine.PWMConfig) error
	Channel(pin machine.Pin) (uint8, error)
	Top() uint32
	Set(channel uint8, value uint32)
}

// pwm adapts a timer channel to hal.PWM. Duty counts are relative to period
// and rescaled to the timer's top value.
type pwm struct {
	timer   pwmTimer
	channel uint8
	period  uint32
	duty    uint32
	enabled bool
}

var _ hal.PWM = (*pwm)(nil)

func newPWM(timer pwmTimer, p machine.Pin, period uint32) (*pwm, error) {
	if err := timer.Configure(machine.PWMConfig{Period: PWM_PERIOD_NS}); err != nil {
		return nil, err
	}
	ch, err := timer.Channel(p)
	if err != nil {
		return nil, err
	}
	timer.Set(ch, 0)
	return &pwm{timer: timer, channel: ch, period: period}, nil
}

func (w *pwm) SetDuty(counts uint32) {
	w.duty = min(counts, w.period)
	if w.enabled {
		w.apply()
	}
}

func (w *pwm) Enable(on bool) {
	w.enabled = on
	if on {
		w.apply()
	} else {
		w.timer.Set(w.channel, 0)
	}
}

func (w *pwm) apply() {
	w.timer.Set(w.channel, uint32(uint64(w.duty)*uint64(w.timer.Top())/uint64(w.period)))
}

// adcVoltage reads the supply through a divider on an ADC pin.
type adcVoltage struct {
	adc machine.ADC
}

func newADCVoltage(p machine.Pin) *adcVoltage {
	adc := machine.ADC{Pin: p}
	adc.Configure(machine.ADCConfig{Reference: ADC_REFERENCE_MV})
	return &adcVoltage{adc: adc}
}

// ReadMillivolts converts the 16-bit scaled reading.
func (a *adcVoltage) ReadMillivolts() (uint16, error) {
	raw := uint32(a.adc.Get())
	mv := raw * ADC_REFERENCE_MV * VOLTAGE_DIVIDER / 0xffff
	return uint16(min(mv, 0xffff)), nil
}
