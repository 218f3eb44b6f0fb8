// Package scheduler drives the humidity sensor's wake/read/rest cycle and the
// telemetry cadence from a hardware tick.
package scheduler

import (
	"sync/atomic"

	"github.com/itohio/goloadcell/pkg/dht"
)

// State of the humidity acquisition cycle.
type State uint8

const (
	// AwaitingWake: the sensor is idle and the next poll starts a wake pulse.
	AwaitingWake State = iota
	// WaitingWake: the wake pulse is in progress.
	WaitingWake
	// Sampling: the wake alarm fired and the next poll reads the sensor.
	Sampling
	// WaitingRest: the sensor needs time before it can be woken again.
	WaitingRest
)

func (s State) String() string {
	switch s {
	case AwaitingWake:
		return "awaiting-wake"
	case WaitingWake:
		return "waiting-wake"
	case Sampling:
		return "sampling"
	case WaitingRest:
		return "waiting-rest"
	}
	return "unknown"
}

// Sensor is the part of a humidity driver the scheduler sequences.
type Sensor interface {
	Start()
	Awake() bool
	Read() (dht.Frame, error)
	Resting() bool
}

// Config holds tick counts. A tick is one hardware timer period.
type Config struct {
	CadenceTicks uint32
	RestTicks    uint32
}

const (
	DefaultCadenceTicks = 50  // 10 Hz at a 2 ms tick
	DefaultRestTicks    = 625 // 1.25 s at a 2 ms tick
)

// DefaultConfig returns the stock tick counts.
func DefaultConfig() Config {
	return Config{
		CadenceTicks: DefaultCadenceTicks,
		RestTicks:    DefaultRestTicks,
	}
}

func (c Config) withDefaults() Config {
	if c.CadenceTicks == 0 {
		c.CadenceTicks = DefaultCadenceTicks
	}
	if c.RestTicks == 0 {
		c.RestTicks = DefaultRestTicks
	}
	return c
}

// Reading is the outcome of one sensor read.
type Reading struct {
	Frame   dht.Frame
	Err     error
	Resting bool // the driver raised its rest signal
}

// Event is what a single Poll produced.
type Event struct {
	SampleDue  bool
	HasReading bool
	Reading    Reading
	State      State // state after the poll
}

// Scheduler advances at most one state transition per Poll. OnTick may be
// called from interrupt or goroutine context; everything else belongs to the
// main loop.
type Scheduler struct {
	sensor  Sensor
	cfg     Config
	ticks   atomic.Uint32
	cadence Cadence

	state    State
	restFrom uint32
}

// New returns a scheduler in AwaitingWake.
func New(sensor Sensor, cfg Config) *Scheduler {
	cfg = cfg.withDefaults()
	s := &Scheduler{
		sensor: sensor,
		cfg:    cfg,
		state:  AwaitingWake,
	}
	s.cadence.threshold = cfg.CadenceTicks
	return s
}

// OnTick advances the tick counters.
func (s *Scheduler) OnTick() {
	s.ticks.Add(1)
	s.cadence.Tick()
}

// Ticks returns the number of ticks seen so far. It wraps.
func (s *Scheduler) Ticks() uint32 {
	return s.ticks.Load()
}

// State returns the current state.
func (s *Scheduler) State() State {
	return s.state
}

// Config returns the effective configuration.
func (s *Scheduler) Config() Config {
	return s.cfg
}

// Poll performs at most one state transition and reports cadence.
func (s *Scheduler) Poll() Event {
	var ev Event
	switch s.state {
	case AwaitingWake:
		s.sensor.Start()
		s.state = WaitingWake
	case WaitingWake:
		if s.sensor.Awake() {
			s.state = Sampling
		}
	case Sampling:
		f, err := s.sensor.Read()
		ev.HasReading = true
		ev.Reading = Reading{Frame: f, Err: err, Resting: s.sensor.Resting()}
		s.restFrom = s.ticks.Load()
		s.state = WaitingRest
	case WaitingRest:
		if s.ticks.Load()-s.restFrom >= s.cfg.RestTicks {
			s.state = AwaitingWake
		}
	}
	ev.SampleDue = s.cadence.Due()
	ev.State = s.state
	return ev
}

// Cadence counts ticks towards a threshold.
type Cadence struct {
	ticks     atomic.Uint32
	threshold uint32
}

// NewCadence returns a cadence that is due every threshold ticks.
func NewCadence(threshold uint32) *Cadence {
	if threshold == 0 {
		threshold = 1
	}
	return &Cadence{threshold: threshold}
}

// Tick adds one tick.
func (c *Cadence) Tick() {
	c.ticks.Add(1)
}

// Due reports whether the threshold was reached and, if so, resets the
// counter to zero. Ticks beyond the threshold are discarded.
func (c *Cadence) Due() bool {
	for {
		v := c.ticks.Load()
		if v < c.threshold {
			return false
		}
		if c.ticks.CompareAndSwap(v, 0) {
			return true
		}
	}
}

// Pending returns the ticks counted since the last reset.
func (c *Cadence) Pending() uint32 {
	return c.ticks.Load()
}
