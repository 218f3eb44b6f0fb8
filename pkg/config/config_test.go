package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/goloadcell/pkg/actuator"
	"github.com/itohio/goloadcell/pkg/framing"
	"github.com/itohio/goloadcell/pkg/hx711"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(tmpfile.Name()) })

	_, err = tmpfile.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())
	return tmpfile.Name()
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NotNil(t, cfg)
	assert.Equal(t, "COM3", cfg.Serial.Port)
	assert.Equal(t, 9600, cfg.Serial.Baud)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 2*time.Millisecond, cfg.Sampler.TickPeriod)
	assert.Equal(t, uint32(50), cfg.Sampler.CadenceTicks)
	assert.Equal(t, uint32(625), cfg.Sampler.RestTicks)
	assert.Equal(t, "A128", cfg.Sampler.Gain)
	assert.True(t, cfg.Sampler.StartHalted)
	assert.Equal(t, uint32(375), cfg.Actuator.Stop)
	assert.Equal(t, "linear", cfg.Actuator.Curve)
	assert.Equal(t, "g", cfg.Calibration.Units)
	assert.Equal(t, float64(30), cfg.Measurement.WindowSeconds)
	assert.Equal(t, uint16(0x48), cfg.SBC.ADCAddress)
	require.NoError(t, cfg.Validate())
}

func TestLoad_FileNotExists(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, "COM3", cfg.Serial.Port)
}

func TestLoad_ValidYAML(t *testing.T) {
	name := writeTemp(t, `
serial:
  port: "/dev/ttyACM0"
  baud: 115200

sampler:
  cadence_ticks: 25
  gain: a64
  layout: voltage
  start_halted: false

timing:
  ready_timeout: 200ms
  wake_latency: 20ms

actuator:
  period: 5000
  stop: 375
  forward: 500
  reverse: 250
  curve: parabolic

calibration:
  tare: 1200
  scale: 0.5
  units: kg

mock:
  profile: square
  battery_mv: 3700
`)

	cfg, err := Load(name)
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
	assert.Equal(t, 115200, cfg.Serial.Baud)
	assert.Equal(t, uint32(25), cfg.Sampler.CadenceTicks)
	assert.Equal(t, uint32(625), cfg.Sampler.RestTicks) // default
	assert.False(t, cfg.Sampler.StartHalted)
	assert.Equal(t, 200*time.Millisecond, cfg.Timing.ReadyTimeout)
	assert.Equal(t, int32(1200), cfg.Calibration.Tare)
	assert.Equal(t, "kg", cfg.Calibration.Units)
	assert.Equal(t, "square", cfg.Mock.Profile)
	assert.Equal(t, uint16(3700), cfg.Mock.BatteryMV)

	sc, err := cfg.SamplerConfig()
	require.NoError(t, err)
	assert.Equal(t, hx711.GainA64, sc.Gain)
	assert.True(t, sc.Layout.Has(framing.FieldVoltage))
	assert.Equal(t, uint32(25), sc.Scheduler.CadenceTicks)
	assert.False(t, sc.StartHalted)

	assert.Equal(t, 200*time.Millisecond, cfg.HX711Config().ReadyTimeout)
	assert.Equal(t, 20*time.Millisecond, cfg.DHTTiming().WakeLatency)

	cal, err := cfg.ActuatorCalibration()
	require.NoError(t, err)
	assert.Equal(t, actuator.Parabolic, cal.Curve)
	assert.Equal(t, uint32(500), cal.Forward)
}

func TestLoad_InvalidYAML(t *testing.T) {
	name := writeTemp(t, "invalid: yaml: content: [")

	cfg, err := Load(name)
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_InvalidPresets(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"gain", "sampler:\n  gain: B64\n"},
		{"layout", "sampler:\n  layout: wide\n"},
		{"curve", "actuator:\n  curve: cubic\n"},
		{"calibration", "actuator:\n  period: 100\n  stop: 375\n  forward: 480\n  reverse: 250\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeTemp(t, tt.yaml))
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}

func TestLoad_PartialYAML(t *testing.T) {
	name := writeTemp(t, `
serial:
  port: "/dev/ttyACM0"
`)

	cfg, err := Load(name)
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// Should use defaults for missing fields
	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
	assert.Equal(t, 9600, cfg.Serial.Baud)                      // default
	assert.Equal(t, float64(30), cfg.Measurement.WindowSeconds) // default
	assert.True(t, cfg.Sampler.StartHalted)                     // default
}

func TestLoad_ZeroedFields(t *testing.T) {
	name := writeTemp(t, `
serial:
  baud: 0
sampler:
  cadence_ticks: 0
  gain: ""
actuator:
  period: 0
`)

	cfg, err := Load(name)
	require.NoError(t, err)
	assert.Equal(t, 9600, cfg.Serial.Baud)
	assert.Equal(t, uint32(50), cfg.Sampler.CadenceTicks)
	assert.Equal(t, "A128", cfg.Sampler.Gain)
	assert.Equal(t, uint32(5000), cfg.Actuator.Period)
}

func TestSave(t *testing.T) {
	cfg := Default()
	cfg.Serial.Port = "/dev/ttyUSB0"
	cfg.Measurement.WindowSeconds = 15
	cfg.Sampler.Layout = "voltage"
	cfg.Mock.Period = 3 * time.Second

	tmpfile, err := os.CreateTemp("", "test_save_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	err = cfg.Save(tmpfile.Name())
	require.NoError(t, err)

	// Load it back and verify
	loaded, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", loaded.Serial.Port)
	assert.Equal(t, float64(15), loaded.Measurement.WindowSeconds)
	assert.Equal(t, "voltage", loaded.Sampler.Layout)
	assert.Equal(t, 3*time.Second, loaded.Mock.Period)
}

func TestLayout(t *testing.T) {
	cfg := Default()
	assert.Equal(t, framing.DefaultLayout.Width(), cfg.Layout().Width())

	cfg.Sampler.Layout = "voltage"
	assert.True(t, cfg.Layout().Has(framing.FieldVoltage))

	cfg.Sampler.Layout = "bogus"
	assert.Equal(t, framing.DefaultLayout.Width(), cfg.Layout().Width())
}
