package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/itohio/goloadcell/pkg/actuator"
	"github.com/itohio/goloadcell/pkg/dht"
	"github.com/itohio/goloadcell/pkg/framing"
	"github.com/itohio/goloadcell/pkg/hx711"
	"github.com/itohio/goloadcell/pkg/sampler"
	"github.com/itohio/goloadcell/pkg/scheduler"
)

// Config represents the application configuration.
type Config struct {
	Serial      SerialConfig      `yaml:"serial"`
	Log         LogConfig         `yaml:"log"`
	Sampler     SamplerConfig     `yaml:"sampler"`
	Timing      TimingConfig      `yaml:"timing"`
	Actuator    ActuatorConfig    `yaml:"actuator"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Measurement MeasurementConfig `yaml:"measurement"`
	Mock        MockConfig        `yaml:"mock"`
	SBC         SBCConfig         `yaml:"sbc"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// LogConfig selects the logrus level.
type LogConfig struct {
	Level string `yaml:"level"`
}

// SamplerConfig contains the instrument's main-loop parameters.
type SamplerConfig struct {
	TickPeriod   time.Duration `yaml:"tick_period"`   // Hardware timer period
	CadenceTicks uint32        `yaml:"cadence_ticks"` // Ticks between telemetry frames
	RestTicks    uint32        `yaml:"rest_ticks"`    // Ticks the humidity sensor rests after a read
	Gain         string        `yaml:"gain"`          // A128, B32 or A64
	Layout       string        `yaml:"layout"`        // default or voltage
	StartHalted  bool          `yaml:"start_halted"`
}

// TimingConfig contains sensor protocol timing. Zero values take driver defaults.
type TimingConfig struct {
	ReadyTimeout time.Duration `yaml:"ready_timeout"`
	PulseHold    time.Duration `yaml:"pulse_hold"`
	WakeLatency  time.Duration `yaml:"wake_latency"`
	EdgeTimeout  time.Duration `yaml:"edge_timeout"`
	BitThreshold time.Duration `yaml:"bit_threshold"`
}

// ActuatorConfig contains the drive PWM calibration in timer counts.
type ActuatorConfig struct {
	Period  uint32 `yaml:"period"`
	Stop    uint32 `yaml:"stop"`
	Forward uint32 `yaml:"forward"`
	Reverse uint32 `yaml:"reverse"`
	Curve   string `yaml:"curve"` // linear or parabolic
}

// CalibrationConfig converts raw load counts to mass.
type CalibrationConfig struct {
	Tare  int32   `yaml:"tare"`  // Raw counts at zero load
	Scale float64 `yaml:"scale"` // Units per count
	Units string  `yaml:"units"`
}

// MeasurementConfig contains host-side measurement parameters.
type MeasurementConfig struct {
	WindowSeconds    float64 `yaml:"window_seconds"`
	AverageSamples   int     `yaml:"average_samples"`    // Number of samples to average (0 = disabled, default)
	EventThreshold   float64 `yaml:"event_threshold"`    // Load rate that starts a load event (units/s)
	MinEventDuration float64 `yaml:"min_event_duration"` // Minimum event duration in seconds (filters noise)
}

// MockConfig contains simulated instrument configuration.
type MockConfig struct {
	Profile      string        `yaml:"profile"`   // constant, sine, square or ramp
	Offset       int32         `yaml:"offset"`    // Raw counts
	Amplitude    int32         `yaml:"amplitude"` // Raw counts
	Period       time.Duration `yaml:"period"`
	Noise        int32         `yaml:"noise"` // Peak noise in counts
	Seed         uint64        `yaml:"seed"`
	Humidity     float32       `yaml:"humidity"`    // %RH
	Temperature  float32       `yaml:"temperature"` // °C
	DHTFaultRate float64       `yaml:"dht_fault_rate"`
	BatteryMV    uint16        `yaml:"battery_mv"` // 0 disables the voltage field
	Speed        float64       `yaml:"speed"`      // Virtual time per wall-clock time
}

// SBCConfig names the periph.io lines of a Linux single-board build.
type SBCConfig struct {
	UART       string  `yaml:"uart"`
	HX711Clock string  `yaml:"hx711_clock"`
	HX711Data  string  `yaml:"hx711_data"`
	DHT        string  `yaml:"dht"`
	PWM        string  `yaml:"pwm"`
	Spray      string  `yaml:"spray"`
	LED        string  `yaml:"led"`
	I2CBus     string  `yaml:"i2c_bus"` // Empty disables supply sensing
	ADCAddress uint16  `yaml:"adc_address"`
	ADCChannel int     `yaml:"adc_channel"`
	Divider    float64 `yaml:"divider"` // Supply voltage divider ratio
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	cal := actuator.DefaultCalibration()
	return &Config{
		Serial: SerialConfig{
			Port: "COM3", // Default for Windows, should be "/dev/ttyACM0" on Linux/Mac
			Baud: 9600,
		},
		Log: LogConfig{
			Level: "info",
		},
		Sampler: SamplerConfig{
			TickPeriod:   2 * time.Millisecond,
			CadenceTicks: scheduler.DefaultCadenceTicks,
			RestTicks:    scheduler.DefaultRestTicks,
			Gain:         hx711.GainA128.String(),
			Layout:       "default",
			StartHalted:  true,
		},
		Actuator: ActuatorConfig{
			Period:  cal.Period,
			Stop:    cal.Stop,
			Forward: cal.Forward,
			Reverse: cal.Reverse,
			Curve:   cal.Curve.String(),
		},
		Calibration: CalibrationConfig{
			Tare:  0,
			Scale: 0.01,
			Units: "g",
		},
		Measurement: MeasurementConfig{
			WindowSeconds:    30,
			AverageSamples:   0,
			EventThreshold:   50,
			MinEventDuration: 0.3,
		},
		Mock: MockConfig{
			Profile:     "sine",
			Offset:      250000,
			Amplitude:   100000,
			Period:      20 * time.Second,
			Noise:       200,
			Seed:        1,
			Humidity:    45,
			Temperature: 23,
			Speed:       1,
		},
		SBC: SBCConfig{
			UART:       "/dev/ttyS0",
			HX711Clock: "GPIO5",
			HX711Data:  "GPIO6",
			DHT:        "GPIO4",
			PWM:        "GPIO18",
			Spray:      "GPIO23",
			LED:        "GPIO24",
			ADCAddress: 0x48,
			Divider:    2,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the fields that name presets.
func (c *Config) Validate() error {
	if _, err := c.SamplerConfig(); err != nil {
		return fmt.Errorf("invalid sampler config: %w", err)
	}
	if _, err := c.ActuatorCalibration(); err != nil {
		return fmt.Errorf("invalid actuator config: %w", err)
	}
	return nil
}

// SamplerConfig builds the main-loop configuration.
func (c *Config) SamplerConfig() (sampler.Config, error) {
	gain, err := hx711.ParseGain(c.Sampler.Gain)
	if err != nil {
		return sampler.Config{}, err
	}
	layout, err := framing.LayoutByName(c.Sampler.Layout)
	if err != nil {
		return sampler.Config{}, err
	}
	return sampler.Config{
		Scheduler: scheduler.Config{
			CadenceTicks: c.Sampler.CadenceTicks,
			RestTicks:    c.Sampler.RestTicks,
		},
		Gain:        gain,
		Layout:      layout,
		StartHalted: c.Sampler.StartHalted,
	}, nil
}

// Layout is the telemetry layout named by the sampler section.
func (c *Config) Layout() framing.Layout {
	l, err := framing.LayoutByName(c.Sampler.Layout)
	if err != nil {
		return framing.DefaultLayout
	}
	return l
}

// HX711Config returns the load-cell driver timing.
func (c *Config) HX711Config() hx711.Config {
	return hx711.Config{
		ReadyTimeout: c.Timing.ReadyTimeout,
		PulseHold:    c.Timing.PulseHold,
	}
}

// DHTTiming returns the humidity driver timing.
func (c *Config) DHTTiming() dht.Timing {
	return dht.Timing{
		WakeLatency:  c.Timing.WakeLatency,
		EdgeTimeout:  c.Timing.EdgeTimeout,
		BitThreshold: c.Timing.BitThreshold,
	}
}

// ActuatorCalibration returns the validated drive calibration.
func (c *Config) ActuatorCalibration() (actuator.Calibration, error) {
	curve, err := actuator.ParseCurve(c.Actuator.Curve)
	if err != nil {
		return actuator.Calibration{}, err
	}
	cal := actuator.Calibration{
		Period:  c.Actuator.Period,
		Stop:    c.Actuator.Stop,
		Forward: c.Actuator.Forward,
		Reverse: c.Actuator.Reverse,
		Curve:   curve,
	}
	return cal, cal.Validate()
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.Baud == 0 {
		c.Serial.Baud = def.Serial.Baud
	}

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}

	if c.Sampler.TickPeriod == 0 {
		c.Sampler.TickPeriod = def.Sampler.TickPeriod
	}
	if c.Sampler.CadenceTicks == 0 {
		c.Sampler.CadenceTicks = def.Sampler.CadenceTicks
	}
	if c.Sampler.RestTicks == 0 {
		c.Sampler.RestTicks = def.Sampler.RestTicks
	}
	if c.Sampler.Gain == "" {
		c.Sampler.Gain = def.Sampler.Gain
	}
	if c.Sampler.Layout == "" {
		c.Sampler.Layout = def.Sampler.Layout
	}

	if c.Actuator.Period == 0 {
		c.Actuator = def.Actuator
	}
	if c.Actuator.Curve == "" {
		c.Actuator.Curve = def.Actuator.Curve
	}

	if c.Calibration.Scale == 0 {
		c.Calibration.Scale = def.Calibration.Scale
	}
	if c.Calibration.Units == "" {
		c.Calibration.Units = def.Calibration.Units
	}

	if c.Measurement.WindowSeconds == 0 {
		c.Measurement.WindowSeconds = def.Measurement.WindowSeconds
	}
	if c.Measurement.EventThreshold == 0 {
		c.Measurement.EventThreshold = def.Measurement.EventThreshold
	}

	if c.Mock.Profile == "" {
		c.Mock.Profile = def.Mock.Profile
	}
	if c.Mock.Period == 0 {
		c.Mock.Period = def.Mock.Period
	}
	if c.Mock.Speed == 0 {
		c.Mock.Speed = def.Mock.Speed
	}

	if c.SBC.ADCAddress == 0 {
		c.SBC.ADCAddress = def.SBC.ADCAddress
	}
	if c.SBC.Divider == 0 {
		c.SBC.Divider = def.SBC.Divider
	}
}
