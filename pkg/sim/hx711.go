package sim

import (
	"sync"
	"time"

	"github.com/itohio/goloadcell/pkg/hal"
	"github.com/itohio/goloadcell/pkg/hx711"
)

// DefaultConversionTime matches the chip's 10 samples per second rate.
const DefaultConversionTime = 100 * time.Millisecond

// powerDownHold is how long a high clock takes to put the chip to sleep.
const powerDownHold = 60 * time.Microsecond

// HX711 models the ADC's two-wire interface. The data line is low while a
// conversion is ready; each rising clock edge shifts out the next bit, MSB
// first. Pulses 25 to 27 select the gain of the next conversion.
type HX711 struct {
	mu    sync.Mutex
	clock *Clock

	conversion time.Duration
	value      func(t time.Duration) int32
	stuck      bool

	gain     hx711.Gain
	readyAt  time.Duration
	shifting bool
	word     uint32
	rises    int
	clkHigh  bool
	highAt   time.Duration
	reads    int
}

// NewHX711 returns a chip whose first conversion completes after one
// conversion time. value returns the A-channel reading at gain 128.
func NewHX711(clock *Clock, conversion time.Duration, value func(t time.Duration) int32) *HX711 {
	if conversion <= 0 {
		conversion = DefaultConversionTime
	}
	if value == nil {
		value = func(time.Duration) int32 { return 0 }
	}
	return &HX711{
		clock:      clock,
		conversion: conversion,
		value:      value,
		gain:       hx711.GainA128,
		readyAt:    clock.Peek() + conversion,
	}
}

// SetValue replaces the signal source.
func (c *HX711) SetValue(value func(t time.Duration) int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = value
}

// SetStuck holds the data line high, as a disconnected or dead chip would.
func (c *HX711) SetStuck(stuck bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stuck = stuck
}

// Gain is the gain preset selected for the next conversion.
func (c *HX711) Gain() hx711.Gain {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finishLocked()
	return c.gain
}

// Reads is the number of completed conversion reads.
func (c *HX711) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finishLocked()
	return c.reads
}

// ClockPin is the PD_SCK line.
func (c *HX711) ClockPin() hal.Pin { return hxClock{c} }

// DataPin is the DOUT line.
func (c *HX711) DataPin() hal.Pin { return hxData{c} }

func (c *HX711) sample(now time.Duration) uint32 {
	v := int64(c.value(now))
	switch c.gain {
	case hx711.GainA64:
		v /= 2
	case hx711.GainB32:
		v /= 4
	}
	return hx711.Encode24(int32(max(min(v, int64(hx711.MaxValue)), int64(hx711.MinValue))))
}

func (c *HX711) rise(now time.Duration) {
	c.clkHigh = true
	c.highAt = now
	if c.shifting && c.rises >= int(hx711.GainA128) && now >= c.readyAt {
		c.finishLocked()
	}
	if !c.shifting {
		if c.stuck || now < c.readyAt {
			return
		}
		c.finishLocked()
		c.shifting = true
		c.word = c.sample(now)
		c.rises = 1
		return
	}
	if c.rises >= int(hx711.GainA64) {
		return
	}
	c.rises++
	if c.rises == int(hx711.GainA128) {
		// The converter free-runs; the next result lands on the next
		// conversion boundary.
		c.readyAt = (now/c.conversion + 1) * c.conversion
	}
}

func (c *HX711) fall(now time.Duration) {
	if c.clkHigh && now-c.highAt > powerDownHold {
		c.shifting = false
		c.rises = 0
		c.gain = hx711.GainA128
		c.readyAt = now + c.conversion
	}
	c.clkHigh = false
}

// finishLocked closes a completed shift: pulses past the 24th select the
// next gain.
func (c *HX711) finishLocked() {
	if !c.shifting || c.rises < int(hx711.GainA128) {
		return
	}
	c.gain = hx711.Gain(c.rises)
	c.shifting = false
	c.rises = 0
	c.reads++
}

func (c *HX711) data() hal.Level {
	if c.stuck {
		return hal.High
	}
	c.finishLocked()
	if c.shifting {
		bit := 24 - c.rises
		if bit < 0 {
			return hal.High
		}
		return hal.Level(c.word>>uint(bit)&1 == 1)
	}
	return hal.Level(c.clock.Peek() < c.readyAt)
}

type hxClock struct{ c *HX711 }

func (p hxClock) Set(l hal.Level) {
	p.c.mu.Lock()
	defer p.c.mu.Unlock()
	now := p.c.clock.Peek()
	switch {
	case l == hal.High && !p.c.clkHigh:
		p.c.rise(now)
	case l == hal.Low && p.c.clkHigh:
		p.c.fall(now)
	}
}

func (p hxClock) Get() hal.Level {
	p.c.mu.Lock()
	defer p.c.mu.Unlock()
	return hal.Level(p.c.clkHigh)
}

func (hxClock) SetDirection(hal.Direction) {}

type hxData struct{ c *HX711 }

func (hxData) Set(hal.Level) {}

func (p hxData) Get() hal.Level {
	p.c.mu.Lock()
	defer p.c.mu.Unlock()
	return p.c.data()
}

func (hxData) SetDirection(hal.Direction) {}
