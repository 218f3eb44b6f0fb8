//go:build tinygo

//go:generate tinygo flash -target=xiao

package main

import (
	"machine"
	"time"

	"github.com/itohio/goloadcell/pkg/actuator"
	"github.com/itohio/goloadcell/pkg/dht"
	"github.com/itohio/goloadcell/pkg/framing"
	"github.com/itohio/goloadcell/pkg/hal"
	"github.com/itohio/goloadcell/pkg/hx711"
	"github.com/itohio/goloadcell/pkg/sampler"
)

var uart = machine.UART0

func main() {
	uart.Configure(machine.UARTConfig{BaudRate: UART_BAUD_RATE})

	clock := hal.NewSystemClock()

	loadCell := hx711.New(&pin{p: PIN_HX711_CLOCK}, &pin{p: PIN_HX711_DATA}, clock, hx711.Config{})
	loadCell.Configure()

	climate := dht.New(&pin{p: PIN_DHT, pull: true}, clock, hal.NewSoftAlarm(clock), dht.Timing{})
	climate.Configure()

	cal := actuator.DefaultCalibration()
	drive, err := newPWM(machine.TCC0, PIN_DRIVE, cal.Period)
	if err != nil {
		halt()
	}
	act, err := actuator.New(drive, &pin{p: PIN_SPRAY}, cal)
	if err != nil {
		halt()
	}
	act.Configure()

	cfg := sampler.DefaultConfig()
	hw := sampler.Hardware{
		LoadCell:  loadCell,
		Humidity:  climate,
		Actuator:  act,
		Transport: uart,
		Indicator: &pin{p: PIN_LED},
	}
	if SENSE_VOLTAGE {
		cfg.Layout = framing.VoltageLayout
		hw.Voltage = newADCVoltage(PIN_VOLTAGE_ADC)
	}

	s, err := sampler.New(cfg, hw)
	if err != nil {
		halt()
	}

	go func() {
		ticker := time.NewTicker(TICK_PERIOD)
		for range ticker.C {
			s.OnTick()
		}
	}()

	// The UART driver owns the receive interrupt; bytes are pumped from its
	// ring buffer on every wake-up. Ticks guarantee one every TICK_PERIOD.
	for {
		hal.Pump(uart, s.OnByteReceived)
		s.PollMainCycle()
		<-s.Wake()
	}
}

// halt blinks the LED forever on a wiring error.
func halt() {
	led := PIN_LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	for {
		led.Set(!led.Get())
		time.Sleep(100 * time.Millisecond)
	}
}
