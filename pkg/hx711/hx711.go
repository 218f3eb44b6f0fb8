// Package hx711 reads the HX711 24-bit load-cell ADC over its two-wire
// clock/data interface.
//
//	d := hx711.New(clk, data, clock, hx711.Config{})
//	d.Configure()
//	s, err := d.ReadSample(hx711.GainA128)
//
// The data line going low signals a finished conversion. Each read clocks out
// 24 bits MSB first followed by 1-3 extra pulses that select the channel and
// gain of the next conversion.
package hx711

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/itohio/goloadcell/pkg/hal"
)

// Gain is the total number of clock pulses per read. Pulses beyond the 24 data
// bits configure the next conversion.
type Gain uint8

const (
	GainA128 Gain = 25 // channel A, gain 128
	GainB32  Gain = 26 // channel B, gain 32
	GainA64  Gain = 27 // channel A, gain 64
)

// Valid reports whether g is one of the documented presets.
func (g Gain) Valid() bool {
	return g >= GainA128 && g <= GainA64
}

func (g Gain) String() string {
	switch g {
	case GainA128:
		return "A128"
	case GainB32:
		return "B32"
	case GainA64:
		return "A64"
	}
	return "invalid"
}

// ParseGain accepts the names printed by String, case-insensitively. Empty
// selects GainA128.
func ParseGain(s string) (Gain, error) {
	switch strings.ToUpper(s) {
	case "", "A128":
		return GainA128, nil
	case "B32":
		return GainB32, nil
	case "A64":
		return GainA64, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidGain, s)
}

const (
	dataBits = 24
	signBit  = 1 << (dataBits - 1)
	mask24   = 1<<dataBits - 1

	// MinValue and MaxValue bound a decoded sample.
	MinValue = -signBit
	MaxValue = signBit - 1
)

// Errors returned by the driver.
var (
	ErrNotReady    = errors.New("hx711: not ready")
	ErrInvalidGain = errors.New("hx711: invalid gain")
)

// Config holds timing. Zero fields take defaults.
type Config struct {
	// ReadyTimeout bounds the wait for data-ready. Default 150 ms, which covers
	// one conversion at the chip's 10 Hz rate.
	ReadyTimeout time.Duration
	// PulseHold is the time the clock is held at each level. Default 1 us.
	// Holding the clock high for more than 60 us powers the chip down.
	PulseHold time.Duration
}

func (c Config) withDefaults() Config {
	if c.ReadyTimeout <= 0 {
		c.ReadyTimeout = 150 * time.Millisecond
	}
	if c.PulseHold <= 0 {
		c.PulseHold = time.Microsecond
	}
	return c
}

// RawSample is one conversion result.
type RawSample struct {
	Value int32  // sign-extended 24-bit value
	Raw   uint32 // bits as shifted in
	Gain  Gain   // gain preset used for this read
}

// Device is an HX711 on two GPIO lines.
type Device struct {
	clk   hal.Pin
	data  hal.Pin
	clock hal.Clock
	cfg   Config
}

// New creates a driver. It does not touch the lines; call Configure.
func New(clk, data hal.Pin, clock hal.Clock, cfg Config) *Device {
	return &Device{
		clk:   clk,
		data:  data,
		clock: clock,
		cfg:   cfg.withDefaults(),
	}
}

// Configure sets the clock line as a low output and the data line as input.
func (d *Device) Configure() {
	d.clk.SetDirection(hal.Output)
	d.clk.Set(hal.Low)
	d.data.SetDirection(hal.Input)
}

// Ready reports whether a conversion is waiting to be read.
func (d *Device) Ready() bool {
	return d.data.Get() == hal.Low
}

// ReadSample waits for data-ready, shifts in one conversion and programs
// gain for the next one. It blocks for at most ReadyTimeout plus the shift
// time.
func (d *Device) ReadSample(gain Gain) (RawSample, error) {
	if !gain.Valid() {
		return RawSample{}, ErrInvalidGain
	}
	if err := hal.Poll(d.clock, d.cfg.ReadyTimeout, d.Ready); err != nil {
		return RawSample{}, ErrNotReady
	}
	d.clock.Delay(d.cfg.PulseHold)

	var raw uint32
	for i := 0; i < dataBits; i++ {
		d.clk.Set(hal.High)
		raw <<= 1
		d.clock.Delay(d.cfg.PulseHold)

		d.clk.Set(hal.Low)
		if d.data.Get() == hal.High {
			raw |= 1
		}
		d.clock.Delay(d.cfg.PulseHold)
	}

	for i := 0; i < int(gain)-dataBits; i++ {
		d.pulse()
	}

	return RawSample{
		Value: Decode24(raw),
		Raw:   raw,
		Gain:  gain,
	}, nil
}

func (d *Device) pulse() {
	d.clk.Set(hal.High)
	d.clock.Delay(d.cfg.PulseHold)
	d.clk.Set(hal.Low)
	d.clock.Delay(d.cfg.PulseHold)
}

// PowerDown holds the clock high, which puts the chip to sleep after 60 us.
func (d *Device) PowerDown() {
	d.clk.Set(hal.High)
}

// PowerUp returns the clock low; the chip resets to GainA128.
func (d *Device) PowerUp() {
	d.clk.Set(hal.Low)
}

// Decode24 converts a 24-bit two's-complement word to int32. A set sign bit
// is undone by inverting, adding one and masking to 24 bits, which yields the
// magnitude.
func Decode24(raw uint32) int32 {
	raw &= mask24
	if raw&signBit == 0 {
		return int32(raw)
	}
	mag := (^raw + 1) & mask24
	return -int32(mag)
}

// Encode24 returns the 24-bit two's-complement word the chip would shift out
// for v. Values outside [MinValue, MaxValue] are clamped.
func Encode24(v int32) uint32 {
	if v < MinValue {
		v = MinValue
	}
	if v > MaxValue {
		v = MaxValue
	}
	return uint32(v) & mask24
}
