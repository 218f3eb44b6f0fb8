package sample

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/goloadcell/pkg/config"
	"github.com/itohio/goloadcell/pkg/device"
	"github.com/itohio/goloadcell/pkg/dht"
	"github.com/itohio/goloadcell/pkg/framing"
)

func reading(at time.Time, load int32) device.Reading {
	return device.Reading{Timestamp: at, Telemetry: framing.Telemetry{Load: load}}
}

func TestCountsToLoad(t *testing.T) {
	tests := []struct {
		name   string
		counts int32
		cal    config.CalibrationConfig
		want   float64
	}{
		{"zero", 0, config.CalibrationConfig{Scale: 0.01}, 0},
		{"scaled", 2450, config.CalibrationConfig{Scale: 0.01}, 24.5},
		{"tared", 2450, config.CalibrationConfig{Tare: 450, Scale: 0.5}, 1000},
		{"negative", -52000, config.CalibrationConfig{Scale: 0.001}, -52},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, countsToLoad(tt.counts, tt.cal), 1e-9)
		})
	}
}

func TestConvertReading_Climate(t *testing.T) {
	cal := config.Default().Calibration
	var climate Sample
	now := time.Now()

	s := convertReading(reading(now, 100), cal, &climate)
	assert.False(t, s.HasClimate)
	assert.False(t, s.Fresh)

	r := reading(now, 200)
	r.Fresh = true
	r.Humidity = dht.NewFrame(45, 0, 23|0x80, 5)
	s = convertReading(r, cal, &climate)
	assert.True(t, s.HasClimate)
	assert.True(t, s.Fresh)
	assert.Equal(t, 45.0, s.Humidity)
	assert.Equal(t, -23.5, s.Temperature)

	// Stale frames keep the last climate reading.
	s = convertReading(reading(now, 300), cal, &climate)
	assert.True(t, s.HasClimate)
	assert.False(t, s.Fresh)
	assert.Equal(t, 45.0, s.Humidity)
	assert.InDelta(t, 3.0, s.Load, 1e-9)
}

func TestConvertReading_Voltage(t *testing.T) {
	var climate Sample
	r := reading(time.Now(), 0)
	s := convertReading(r, config.Default().Calibration, &climate)
	assert.False(t, s.HasVoltage)

	r.HasVoltage = true
	r.VoltageMV = 3712
	s = convertReading(r, config.Default().Calibration, &climate)
	assert.True(t, s.HasVoltage)
	assert.InDelta(t, 3.712, s.Voltage, 1e-9)
}

func TestNewConverter(t *testing.T) {
	cfg := config.Default()
	cfg.Calibration = config.CalibrationConfig{Tare: 1000, Scale: 0.1, Units: "g"}

	in := make(chan device.Reading, 4)
	out := NewConverter(cfg, 4)(in)

	now := time.Now()
	in <- reading(now, 1000)
	failed := reading(now.Add(100*time.Millisecond), 0)
	failed.LoadErr = true
	failed.Fresh = true
	failed.Humidity = dht.NewFrame(50, 0, 20, 0)
	in <- failed
	in <- reading(now.Add(200*time.Millisecond), 1500)
	close(in)

	var got []Sample
	for s := range out {
		got = append(got, s)
	}
	require.Len(t, got, 2, "load errors are dropped")
	assert.Equal(t, 0.0, got[0].Load)
	assert.False(t, got[0].HasClimate)
	assert.Equal(t, now, got[0].Timestamp)

	assert.InDelta(t, 50.0, got[1].Load, 1e-9)
	assert.True(t, got[1].HasClimate, "climate from a dropped frame is kept")
	assert.False(t, got[1].Fresh)
	assert.Equal(t, 50.0, got[1].Humidity)
	assert.Equal(t, 20.0, got[1].Temperature)
}
