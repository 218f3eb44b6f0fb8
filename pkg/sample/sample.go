package sample

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/itohio/goloadcell/pkg/config"
	"github.com/itohio/goloadcell/pkg/device"
)

// Sample represents a processed measurement sample with physical values.
type Sample struct {
	Timestamp   time.Time
	Load        float64 // Calibrated load in calibration units
	Humidity    float64 // Last known relative humidity (%RH)
	Temperature float64 // Last known temperature (°C)
	Voltage     float64 // Supply voltage (V)

	HasClimate bool // Humidity and Temperature hold a reading
	Fresh      bool // The climate reading arrived with this frame
	HasVoltage bool
}

// Converter is a function type that converts a Reading channel to a Sample channel.
type Converter func(in <-chan device.Reading) <-chan Sample

// NewConverter creates a converter function that transforms Readings to Samples.
// Frames whose load read failed are dropped; a fresh climate reading they
// carry is kept for the following samples.
func NewConverter(cfg *config.Config, bufSize int) Converter {
	if bufSize <= 0 {
		bufSize = 100
	}
	cal := cfg.Calibration
	log := logrus.WithField("component", "converter")

	return func(in <-chan device.Reading) <-chan Sample {
		out := make(chan Sample, bufSize)

		go func() {
			defer close(out)

			var climate Sample
			for r := range in {
				s := convertReading(r, cal, &climate)
				if r.LoadErr {
					log.Debug("load cell not ready, dropping frame")
					continue
				}

				select {
				case out <- s:
				case <-time.After(time.Second):
					log.Warn("converter output channel full, dropping sample")
				}
			}
		}()

		return out
	}
}

// convertReading converts r using cal. climate carries the last known
// humidity and temperature between calls.
func convertReading(r device.Reading, cal config.CalibrationConfig, climate *Sample) Sample {
	if r.Fresh {
		climate.Humidity = float64(r.Humidity.DeciRelHumidity()) / 10
		climate.Temperature = float64(r.Humidity.DeciCelsius()) / 10
		climate.HasClimate = true
	}

	s := Sample{
		Timestamp:   r.Timestamp,
		Load:        countsToLoad(r.Load, cal),
		Humidity:    climate.Humidity,
		Temperature: climate.Temperature,
		HasClimate:  climate.HasClimate,
		Fresh:       r.Fresh,
	}
	if r.HasVoltage {
		s.Voltage = float64(r.VoltageMV) / 1000
		s.HasVoltage = true
	}
	return s
}

// countsToLoad applies tare and scale to a raw load-cell reading.
func countsToLoad(counts int32, cal config.CalibrationConfig) float64 {
	return float64(counts-cal.Tare) * cal.Scale
}
