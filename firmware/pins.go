//go:build tinygo

package main

import (
	"machine"
	"time"
)

const (
	// Timing
	TICK_PERIOD = 2 * time.Millisecond // Hardware timer period; 50 ticks per frame gives 10 Hz telemetry

	// Load cell (HX711)
	PIN_HX711_CLOCK = machine.D2
	PIN_HX711_DATA  = machine.D3

	// Humidity sensor (DHT11), open drain with external pull-up
	PIN_DHT = machine.D4

	// Actuator: servo-style PWM and the spray valve
	PIN_DRIVE = machine.D7
	PIN_SPRAY = machine.D8

	// Indicator LED, toggled on every frame
	PIN_LED = machine.LED

	// Supply sensing through a resistor divider
	PIN_VOLTAGE_ADC  = machine.A10
	SENSE_VOLTAGE    = false // Enables the voltage field in telemetry frames
	ADC_REFERENCE_MV = 3300
	VOLTAGE_DIVIDER  = 2

	// PWM frame: 20 ms at 50 Hz, matching the calibration's 5000-count period
	PWM_PERIOD_NS = 20_000_000

	// Serial configuration
	// Frame "LLLLLLLL,HH,TTt,\n\r" is 18 bytes; at 10 Hz that is 180 bytes/s,
	// well inside 9600 baud (960 bytes/s).
	UART_BAUD_RATE = 9600
)
