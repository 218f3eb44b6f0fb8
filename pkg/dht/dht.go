// Package dht drives DHT11-class humidity/temperature sensors over their
// single-wire, self-clocked protocol.
//
// A measurement is split in two phases so the caller never stalls for the
// sensor's wake latency:
//
//	d.Start()             // pull the line low and arm the wake alarm
//	...                   // main loop keeps running
//	if d.Awake() {
//		f, err := d.Read() // bounded busy-wait bit capture
//	}
//
// After a read the sensor needs to rest before the next Start; the driver
// raises a rest signal and leaves the interval to the caller.
package dht

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/itohio/goloadcell/pkg/hal"
)

// Errors returned by Read.
var (
	ErrTimeout  = errors.New("dht: timeout")
	ErrChecksum = errors.New("dht: checksum mismatch")
)

// Timing holds protocol timing. Zero fields take defaults.
type Timing struct {
	// WakeLatency is how long the host holds the line low. Default 18 ms.
	WakeLatency time.Duration
	// StartHold is the idle-high hold before pulling low. Default 250 us.
	StartHold time.Duration
	// ReleaseHold is the high pulse driven before switching to input. Default 20 us.
	ReleaseHold time.Duration
	// EdgeTimeout bounds each wait for a line transition. Default 200 us.
	EdgeTimeout time.Duration
	// BitThreshold separates a short (0) from a long (1) high pulse. Default 40 us.
	BitThreshold time.Duration
}

func (t Timing) withDefaults() Timing {
	if t.WakeLatency <= 0 {
		t.WakeLatency = 18 * time.Millisecond
	}
	if t.StartHold <= 0 {
		t.StartHold = 250 * time.Microsecond
	}
	if t.ReleaseHold <= 0 {
		t.ReleaseHold = 20 * time.Microsecond
	}
	if t.EdgeTimeout <= 0 {
		t.EdgeTimeout = 200 * time.Microsecond
	}
	if t.BitThreshold <= 0 {
		t.BitThreshold = 40 * time.Microsecond
	}
	return t
}

// Frame is the 5-byte sensor payload.
type Frame struct {
	HumidityInt  uint8
	HumidityFrac uint8
	TempInt      uint8 // bit 7 is the sign
	TempFrac     uint8
	Checksum     uint8
}

// Sum returns the checksum the first four bytes require.
func (f Frame) Sum() uint8 {
	return f.HumidityInt + f.HumidityFrac + f.TempInt + f.TempFrac
}

// Valid reports whether the checksum matches.
func (f Frame) Valid() bool {
	return f.Sum() == f.Checksum
}

// Negative reports whether the temperature is below zero.
func (f Frame) Negative() bool {
	return f.TempInt&0x80 != 0
}

// Celsius returns the integer temperature magnitude without the sign bit.
func (f Frame) Celsius() uint8 {
	return f.TempInt & 0x7F
}

// DeciCelsius returns tenths of °C.
func (f Frame) DeciCelsius() int32 {
	v := int32(f.Celsius())*10 + int32(f.TempFrac%10)
	if f.Negative() {
		return -v
	}
	return v
}

// DeciRelHumidity returns tenths of %RH.
func (f Frame) DeciRelHumidity() int32 {
	return int32(f.HumidityInt)*10 + int32(f.HumidityFrac%10)
}

func (f *Frame) setByte(i int, b uint8) {
	switch i {
	case 0:
		f.HumidityInt = b
	case 1:
		f.HumidityFrac = b
	case 2:
		f.TempInt = b
	case 3:
		f.TempFrac = b
	case 4:
		f.Checksum = b
	}
}

// Bytes returns the frame in wire order.
func (f Frame) Bytes() [5]byte {
	return [5]byte{f.HumidityInt, f.HumidityFrac, f.TempInt, f.TempFrac, f.Checksum}
}

// NewFrame builds a frame with a correct checksum.
func NewFrame(humInt, humFrac, tempInt, tempFrac uint8) Frame {
	f := Frame{
		HumidityInt:  humInt,
		HumidityFrac: humFrac,
		TempInt:      tempInt,
		TempFrac:     tempFrac,
	}
	f.Checksum = f.Sum()
	return f
}

// Device is a DHT sensor on one open-drain GPIO line.
type Device struct {
	pin    hal.Pin
	clock  hal.Clock
	alarm  hal.Alarm
	timing Timing

	resting atomic.Bool
}

// New creates a driver. Call Configure before Start.
func New(pin hal.Pin, clock hal.Clock, alarm hal.Alarm, timing Timing) *Device {
	return &Device{
		pin:    pin,
		clock:  clock,
		alarm:  alarm,
		timing: timing.withDefaults(),
	}
}

// Configure drives the line idle high.
func (d *Device) Configure() {
	d.idle()
}

func (d *Device) idle() {
	d.pin.SetDirection(hal.Output)
	d.pin.Set(hal.High)
}

// Timing returns the effective timing.
func (d *Device) Timing() Timing {
	return d.timing
}

// Start signals the sensor to wake and arms the wake alarm. The line stays
// low until Read releases it.
func (d *Device) Start() {
	d.resting.Store(false)
	d.pin.SetDirection(hal.Output)
	d.pin.Set(hal.High)
	d.clock.Delay(d.timing.StartHold)
	d.pin.Set(hal.Low)
	d.alarm.ArmAt(d.clock.Now() + d.timing.WakeLatency)
}

// Awake reports whether the wake latency armed by Start has elapsed.
func (d *Device) Awake() bool {
	return d.alarm.Fired()
}

// Resting reports whether a successful read asked for a rest interval that
// has not been ended by Start.
func (d *Device) Resting() bool {
	return d.resting.Load()
}

// Read captures one frame. Every edge wait is bounded by EdgeTimeout; on
// any failure the line is returned to idle output.
func (d *Device) Read() (Frame, error) {
	d.alarm.Disarm()

	d.pin.Set(hal.High)
	d.clock.Delay(d.timing.ReleaseHold)
	d.pin.SetDirection(hal.Input)

	// Response: sensor pulls low, then high, then low again before the
	// first bit.
	for _, lvl := range [...]hal.Level{hal.Low, hal.High, hal.Low} {
		if err := d.wait(lvl); err != nil {
			d.idle()
			return Frame{}, err
		}
	}

	var f Frame
	for i := 0; i < 5; i++ {
		var b uint8
		for bit := 0; bit < 8; bit++ {
			b <<= 1
			if err := d.wait(hal.High); err != nil {
				d.idle()
				return Frame{}, err
			}
			d.clock.Delay(d.timing.BitThreshold)
			if d.pin.Get() == hal.High {
				b |= 1
			}
			if err := d.wait(hal.Low); err != nil {
				d.idle()
				return Frame{}, err
			}
		}
		f.setByte(i, b)
	}

	d.idle()
	if !f.Valid() {
		return Frame{}, ErrChecksum
	}
	d.resting.Store(true)
	return f, nil
}

func (d *Device) wait(level hal.Level) error {
	if err := hal.WaitLevel(d.pin, d.clock, level, d.timing.EdgeTimeout); err != nil {
		return ErrTimeout
	}
	return nil
}
