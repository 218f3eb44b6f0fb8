package periphhal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"

	"github.com/itohio/goloadcell/pkg/hal"
)

func TestPin(t *testing.T) {
	line := &gpiotest.Pin{N: "GPIO5", L: gpio.High}
	p := NewPin(line, gpio.PullUp)
	assert.Equal(t, "GPIO5", p.Name())
	assert.Equal(t, hal.High, p.Get())

	line.L = gpio.Low
	assert.Equal(t, hal.Low, p.Get())

	// Writes to an input are latched until it becomes an output.
	p.Set(hal.High)
	p.SetDirection(hal.Output)
	assert.Equal(t, gpio.High, line.L)
	assert.Equal(t, hal.High, p.Get())

	p.Set(hal.Low)
	assert.Equal(t, gpio.Low, line.L)
	assert.NoError(t, p.Err())
}

func TestPWM(t *testing.T) {
	line := &gpiotest.Pin{N: "GPIO18"}
	w, err := NewPWM(line, 5000, 0)
	require.NoError(t, err)

	w.SetDuty(375)
	assert.Zero(t, line.D, "disabled output is not driven")

	w.Enable(true)
	assert.Equal(t, gpio.Duty(uint64(375)*uint64(gpio.DutyMax)/5000), line.D)
	assert.Equal(t, DefaultServoFrequency, line.F)

	w.SetDuty(480)
	assert.Equal(t, toDuty(480, 5000), line.D)
	assert.Equal(t, toDuty(480, 5000), w.Duty())

	w.SetDuty(9000)
	assert.Equal(t, gpio.DutyMax, line.D)

	w.Enable(false)
	assert.Equal(t, gpio.Low, line.L)
	assert.NoError(t, w.Err())

	_, err = NewPWM(line, 0, physic.Hertz)
	assert.Error(t, err)
}

func TestADSConfig(t *testing.T) {
	msb, lsb, err := adsConfig(0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xC3, 0x83}, []byte{msb, lsb})

	msb, _, err = adsConfig(3)
	require.NoError(t, err)
	assert.Equal(t, byte(0xF3), msb)

	_, _, err = adsConfig(4)
	assert.Error(t, err)
}

func TestToMillivolts(t *testing.T) {
	assert.Equal(t, uint16(2048), toMillivolts(0x4000, 1))
	assert.Equal(t, uint16(4096), toMillivolts(0x4000, 2))
	assert.Equal(t, uint16(0), toMillivolts(-100, 2))
	assert.Equal(t, uint16(65535), toMillivolts(0x7fff, 100))
}

func TestADS1115ReadMillivolts(t *testing.T) {
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: DefaultADS1115Address, W: []byte{adsPointerConfig, 0xD3, 0x83}},
			{Addr: DefaultADS1115Address, W: []byte{adsPointerConv}, R: []byte{0x40, 0x00}},
		},
	}
	a, err := NewADS1115(bus, ADS1115Config{Channel: 1, Divider: 2, Settle: 1})
	require.NoError(t, err)

	mv, err := a.ReadMillivolts()
	require.NoError(t, err)
	assert.Equal(t, uint16(4096), mv)
	assert.NoError(t, bus.Close())
	assert.NoError(t, a.Close())
}
