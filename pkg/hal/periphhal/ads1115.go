package periphhal

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
)

const (
	adsPointerConv   = 0x00
	adsPointerConfig = 0x01

	// DefaultADS1115Address is the address with ADDR tied to ground.
	DefaultADS1115Address = 0x48
)

// ADS1115Config selects the battery channel of an ADS1115 and the resistor
// divider in front of it.
type ADS1115Config struct {
	Bus     string // "" opens the first bus
	Address uint16
	Channel int     // single-ended input 0..3
	Divider float32 // battery volts per ADC volt
	// Settle is how long to wait for a single-shot conversion. Default 10 ms
	// covers the 128 SPS data rate.
	Settle time.Duration
}

// ADS1115 reads the supply voltage through an ADS1115 ADC and implements
// sampler.VoltageSource.
type ADS1115 struct {
	mu     sync.Mutex
	dev    *i2c.Dev
	closer i2c.BusCloser
	cfg    ADS1115Config
	config [2]byte
}

// OpenADS1115 opens the I2C bus and prepares the converter.
func OpenADS1115(cfg ADS1115Config) (*ADS1115, error) {
	if err := Init(); err != nil {
		return nil, err
	}
	bus, err := i2creg.Open(cfg.Bus)
	if err != nil {
		return nil, errors.Wrap(err, "open i2c")
	}
	a, err := NewADS1115(bus, cfg)
	if err != nil {
		bus.Close()
		return nil, err
	}
	a.closer = bus
	return a, nil
}

// NewADS1115 uses an already opened bus.
func NewADS1115(bus i2c.Bus, cfg ADS1115Config) (*ADS1115, error) {
	if cfg.Address == 0 {
		cfg.Address = DefaultADS1115Address
	}
	if cfg.Divider <= 0 {
		cfg.Divider = 1
	}
	if cfg.Settle <= 0 {
		cfg.Settle = 10 * time.Millisecond
	}
	msb, lsb, err := adsConfig(cfg.Channel)
	if err != nil {
		return nil, err
	}
	return &ADS1115{
		dev:    &i2c.Dev{Addr: cfg.Address, Bus: bus},
		cfg:    cfg,
		config: [2]byte{msb, lsb},
	}, nil
}

// ReadMillivolts runs one single-shot conversion.
func (a *ADS1115) ReadMillivolts() (uint16, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.dev.Tx([]byte{adsPointerConfig, a.config[0], a.config[1]}, nil); err != nil {
		return 0, errors.Wrap(err, "write config")
	}
	time.Sleep(a.cfg.Settle)
	buf := make([]byte, 2)
	if err := a.dev.Tx([]byte{adsPointerConv}, buf); err != nil {
		return 0, errors.Wrap(err, "read conversion")
	}
	raw := int16(buf[0])<<8 | int16(buf[1])
	return toMillivolts(raw, a.cfg.Divider), nil
}

func (a *ADS1115) Close() error {
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}

// adsFullScale is the ±4.096 V range selected by adsConfig.
const adsFullScale = 4.096

func toMillivolts(raw int16, divider float32) uint16 {
	if raw <= 0 {
		return 0
	}
	mv := float32(raw) * adsFullScale / 32768 * divider * 1000
	if mv > 65535 {
		return 65535
	}
	return uint16(mv + 0.5)
}

// adsConfig builds a single-shot, single-ended, ±4.096 V, 128 SPS config
// word with the comparator disabled.
func adsConfig(channel int) (byte, byte, error) {
	if channel < 0 || channel > 3 {
		return 0, 0, errors.Errorf("invalid ads1115 channel %d", channel)
	}
	mux := uint16(0x4 + channel)
	var config uint16 = 0x8000 // start a conversion
	config |= mux << 12
	config |= 0x1 << 9 // ±4.096 V
	config |= 1 << 8   // single-shot
	config |= 0x4 << 5 // 128 SPS
	config |= 0x3      // comparator off
	return byte(config >> 8), byte(config & 0xff), nil
}
