// Package sampler is the instrument's main loop. It sequences the humidity
// sensor, reads the load cell on every cadence tick, streams telemetry frames
// and executes host commands.
//
// A board wires the callbacks to its interrupt sources and runs:
//
//	for {
//		s.PollMainCycle()
//		<-s.Wake()
//	}
package sampler

import (
	"errors"
	"sync/atomic"

	"github.com/itohio/goloadcell/pkg/actuator"
	"github.com/itohio/goloadcell/pkg/dht"
	"github.com/itohio/goloadcell/pkg/framing"
	"github.com/itohio/goloadcell/pkg/hal"
	"github.com/itohio/goloadcell/pkg/hx711"
	"github.com/itohio/goloadcell/pkg/scheduler"
)

// ErrHardware is returned by New when a mandatory collaborator is missing.
var ErrHardware = errors.New("sampler: missing hardware")

// LoadCell reads one conversion.
type LoadCell interface {
	ReadSample(gain hx711.Gain) (hx711.RawSample, error)
}

// Actuator is the drive output commanded by the host.
type Actuator interface {
	Drive(dir actuator.Direction, pct uint8)
	Stop()
	Enable()
	Disable()
	Spray(on bool)
}

// VoltageSource reports the supply voltage.
type VoltageSource interface {
	ReadMillivolts() (uint16, error)
}

// Hardware is everything the main loop drives. Voltage and Indicator are
// optional.
type Hardware struct {
	LoadCell  LoadCell
	Humidity  scheduler.Sensor
	Actuator  Actuator
	Transport hal.Transport
	Voltage   VoltageSource
	Indicator hal.Pin
}

// Config of the main loop.
type Config struct {
	Scheduler scheduler.Config
	Gain      hx711.Gain
	Layout    framing.Layout
	// StartHalted keeps the instrument silent until the host sends G.
	StartHalted bool
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		Scheduler:   scheduler.DefaultConfig(),
		Gain:        hx711.GainA128,
		Layout:      framing.DefaultLayout,
		StartHalted: true,
	}
}

// Stats are running counters.
type Stats struct {
	Frames           uint32
	LoadTimeouts     uint32
	HumidityReads    uint32
	HumidityTimeouts uint32
	ChecksumErrors   uint32
	Commands         uint32
	Malformed        uint32
	Overruns         uint32
	TxErrors         uint32
}

type counters struct {
	frames           atomic.Uint32
	loadTimeouts     atomic.Uint32
	humidityReads    atomic.Uint32
	humidityTimeouts atomic.Uint32
	checksumErrors   atomic.Uint32
	commands         atomic.Uint32
	malformed        atomic.Uint32
	txErrors         atomic.Uint32
}

// Sampler owns the scheduler, the frame encoder and the command receiver.
// OnTick and OnByteReceived may be called from interrupt or goroutine
// context; PollMainCycle must be called from a single loop.
type Sampler struct {
	cfg   Config
	hw    Hardware
	sched *scheduler.Scheduler
	enc   *framing.Encoder
	rx    *framing.Receiver
	wake  chan struct{}

	halted    atomic.Bool
	state     atomic.Uint32
	telemetry framing.Telemetry
	led       hal.Level
	stats     counters
}

// New validates cfg and parks the actuator.
func New(cfg Config, hw Hardware) (*Sampler, error) {
	if hw.LoadCell == nil || hw.Humidity == nil || hw.Actuator == nil || hw.Transport == nil {
		return nil, ErrHardware
	}
	if cfg.Gain == 0 {
		cfg.Gain = hx711.GainA128
	}
	if !cfg.Gain.Valid() {
		return nil, hx711.ErrInvalidGain
	}
	if len(cfg.Layout.Fields) == 0 {
		cfg.Layout = framing.DefaultLayout
	}
	enc, err := framing.NewEncoder(cfg.Layout)
	if err != nil {
		return nil, err
	}

	s := &Sampler{
		cfg:   cfg,
		hw:    hw,
		sched: scheduler.New(hw.Humidity, cfg.Scheduler),
		enc:   enc,
		rx:    framing.NewReceiver(),
		wake:  make(chan struct{}, 1),
	}
	s.cfg.Scheduler = s.sched.Config()

	if hw.Indicator != nil {
		hw.Indicator.SetDirection(hal.Output)
		hw.Indicator.Set(hal.Low)
	}
	hw.Actuator.Stop()
	if cfg.StartHalted {
		s.halted.Store(true)
		hw.Actuator.Disable()
	} else {
		hw.Actuator.Enable()
	}
	return s, nil
}

// OnTick is the hardware timer callback.
func (s *Sampler) OnTick() {
	s.sched.OnTick()
	s.signal()
}

// OnByteReceived is the receive callback.
func (s *Sampler) OnByteReceived(b byte) {
	s.rx.Feed(b)
	s.signal()
}

// Wake is signalled by OnTick and OnByteReceived. The main loop blocks on it
// between cycles.
func (s *Sampler) Wake() <-chan struct{} {
	return s.wake
}

func (s *Sampler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// PollMainCycle runs one iteration of the main loop.
func (s *Sampler) PollMainCycle() {
	if !s.halted.Load() {
		ev := s.sched.Poll()
		s.state.Store(uint32(ev.State))
		if ev.HasReading {
			s.recordHumidity(ev.Reading)
		}
		if ev.SampleDue {
			s.emit()
		}
	}
	s.dispatch()
}

func (s *Sampler) recordHumidity(r scheduler.Reading) {
	s.stats.humidityReads.Add(1)
	if r.Err != nil {
		if errors.Is(r.Err, dht.ErrChecksum) {
			s.stats.checksumErrors.Add(1)
		} else {
			s.stats.humidityTimeouts.Add(1)
		}
		s.telemetry.Fresh = false
		s.telemetry.HumidityErr = true
		return
	}
	s.telemetry.Humidity = r.Frame
	s.telemetry.Fresh = true
	s.telemetry.HumidityErr = false
}

func (s *Sampler) emit() {
	t := &s.telemetry
	sample, err := s.hw.LoadCell.ReadSample(s.cfg.Gain)
	t.Load, t.LoadErr = sample.Value, err != nil
	if err != nil {
		s.stats.loadTimeouts.Add(1)
	}
	if s.hw.Voltage != nil {
		mv, err := s.hw.Voltage.ReadMillivolts()
		t.VoltageMV, t.HasVoltage = mv, err == nil
	}

	if err := hal.WriteAll(s.hw.Transport, s.enc.Encode(*t)); err != nil {
		s.stats.txErrors.Add(1)
	} else {
		s.stats.frames.Add(1)
	}

	// Humidity and its error marker are shown once.
	t.Fresh = false
	t.HumidityErr = false

	if s.hw.Indicator != nil {
		s.led = !s.led
		s.hw.Indicator.Set(s.led)
	}
}

func (s *Sampler) dispatch() {
	frame, ok := s.rx.Take()
	if !ok {
		return
	}
	cmd, err := framing.ParseCommand(frame)
	if err != nil {
		s.stats.malformed.Add(1)
		return
	}
	s.stats.commands.Add(1)
	if s.halted.Load() && cmd.Op != framing.OpGo {
		return
	}

	a := s.hw.Actuator
	switch cmd.Op {
	case framing.OpQuit:
		a.Stop()
		a.Disable()
		s.halted.Store(true)
	case framing.OpStop:
		a.Stop()
	case framing.OpGo:
		a.Stop()
		a.Enable()
		s.halted.Store(false)
	case framing.OpForward:
		a.Drive(actuator.Forward, cmd.Percent)
	case framing.OpReverse:
		a.Drive(actuator.Reverse, cmd.Percent)
	case framing.OpSprayOn:
		a.Spray(true)
	case framing.OpSprayOff:
		a.Spray(false)
	}
}

// Halted reports whether the instrument waits for G.
func (s *Sampler) Halted() bool {
	return s.halted.Load()
}

// State is the humidity cycle state observed by the last running cycle.
func (s *Sampler) State() scheduler.State {
	return scheduler.State(s.state.Load())
}

// Config returns the effective configuration.
func (s *Sampler) Config() Config {
	return s.cfg
}

// Stats returns a snapshot of the counters.
func (s *Sampler) Stats() Stats {
	return Stats{
		Frames:           s.stats.frames.Load(),
		LoadTimeouts:     s.stats.loadTimeouts.Load(),
		HumidityReads:    s.stats.humidityReads.Load(),
		HumidityTimeouts: s.stats.humidityTimeouts.Load(),
		ChecksumErrors:   s.stats.checksumErrors.Load(),
		Commands:         s.stats.commands.Load(),
		Malformed:        s.stats.malformed.Load(),
		Overruns:         s.rx.Overruns(),
		TxErrors:         s.stats.txErrors.Load(),
	}
}
