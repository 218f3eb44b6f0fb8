package sim

import (
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/itohio/goloadcell/pkg/actuator"
	"github.com/itohio/goloadcell/pkg/dht"
	"github.com/itohio/goloadcell/pkg/framing"
	"github.com/itohio/goloadcell/pkg/hal"
	"github.com/itohio/goloadcell/pkg/hx711"
	"github.com/itohio/goloadcell/pkg/sampler"
)

// DefaultTickPeriod is the hardware timer period of the reference board.
const DefaultTickPeriod = 2 * time.Millisecond

// BoardConfig describes a virtual instrument.
type BoardConfig struct {
	TickPeriod     time.Duration
	PollCost       time.Duration
	ConversionTime time.Duration

	Sampler     sampler.Config
	HX711       hx711.Config
	DHT         dht.Timing
	Calibration actuator.Calibration

	Load        func(t time.Duration) int32
	Environment func(t time.Duration) Environment
	// BatteryMV enables supply voltage sensing when non-zero.
	BatteryMV uint16
}

// DefaultBoardConfig returns a board that starts halted, like the firmware.
func DefaultBoardConfig() BoardConfig {
	return BoardConfig{
		TickPeriod:     DefaultTickPeriod,
		PollCost:       DefaultPollCost,
		ConversionTime: DefaultConversionTime,
		Sampler:        sampler.DefaultConfig(),
		Calibration:    actuator.DefaultCalibration(),
	}
}

// Board runs the real sampler against simulated peripherals.
type Board struct {
	Clock    *Clock
	LoadCell *HX711
	Climate  *DHT11
	UART     *UART
	Drive    *PWM
	Spray    *Pin
	LED      *Pin
	Battery  *Battery

	Actuator *actuator.Actuator
	Sampler  *sampler.Sampler

	log      logrus.FieldLogger
	tick     time.Duration
	nextTick time.Duration
	ticks    uint64
}

// NewBoard wires a virtual instrument whose transmitted frames are flushed to
// out after every main-loop cycle.
func NewBoard(cfg BoardConfig, out io.Writer) (*Board, error) {
	if cfg.TickPeriod <= 0 {
		cfg.TickPeriod = DefaultTickPeriod
	}
	if cfg.Calibration.Period == 0 {
		cfg.Calibration = actuator.DefaultCalibration()
	}

	clock := NewClock(cfg.PollCost)
	b := &Board{
		Clock:    clock,
		LoadCell: NewHX711(clock, cfg.ConversionTime, cfg.Load),
		Climate:  NewDHT11(clock, cfg.Environment),
		UART:     NewUART(out),
		Drive:    &PWM{},
		Spray:    &Pin{},
		LED:      &Pin{},
		log:      logrus.WithField("component", "sim"),
		tick:     cfg.TickPeriod,
		nextTick: cfg.TickPeriod,
	}

	act, err := actuator.New(b.Drive, b.Spray, cfg.Calibration)
	if err != nil {
		return nil, err
	}
	act.Configure()
	b.Actuator = act

	lc := hx711.New(b.LoadCell.ClockPin(), b.LoadCell.DataPin(), clock, cfg.HX711)
	lc.Configure()
	climate := dht.New(b.Climate, clock, hal.NewSoftAlarm(clock), cfg.DHT)
	climate.Configure()

	hw := sampler.Hardware{
		LoadCell:  lc,
		Humidity:  climate,
		Actuator:  act,
		Transport: b.UART,
		Indicator: b.LED,
	}
	if cfg.BatteryMV > 0 {
		b.Battery = NewBattery(cfg.BatteryMV)
		hw.Voltage = b.Battery
	}
	b.Sampler, err = sampler.New(cfg.Sampler, hw)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// SetLogger replaces the board logger.
func (b *Board) SetLogger(l logrus.FieldLogger) {
	b.log = l
}

// Ticks is the number of timer ticks delivered so far.
func (b *Board) Ticks() uint64 {
	return b.ticks
}

// Send queues a host command on the board's receive line.
func (b *Board) Send(c framing.Command) {
	b.UART.Write(c.Encode(nil))
}

// Step runs one main-loop iteration. When no wake-up is pending the clock
// skips to the next tick, the way the firmware sleeps until its next
// interrupt.
func (b *Board) Step() {
	select {
	case <-b.Sampler.Wake():
	default:
		b.Clock.AdvanceTo(b.nextTick)
	}
	for b.Clock.Peek() >= b.nextTick {
		b.Sampler.OnTick()
		b.nextTick += b.tick
		b.ticks++
	}
	hal.Pump(b.UART, b.Sampler.OnByteReceived)
	b.Sampler.PollMainCycle()
	if err := b.UART.Flush(); err != nil {
		b.log.WithError(err).Warn("flush failed")
	}
}

// RunFor steps the board until d of virtual time has passed.
func (b *Board) RunFor(d time.Duration) {
	until := b.Clock.Peek() + d
	for b.Clock.Peek() < until {
		b.Step()
	}
}

// RunUntil steps the board until cond holds or limit of virtual time passes.
func (b *Board) RunUntil(cond func() bool, limit time.Duration) bool {
	until := b.Clock.Peek() + limit
	for !cond() {
		if b.Clock.Peek() >= until {
			return false
		}
		b.Step()
	}
	return true
}

// Run paces virtual time against the wall clock, speed times faster than
// real time, until ctx is done.
func (b *Board) Run(ctx context.Context, speed float64) error {
	if speed <= 0 {
		speed = 1
	}
	const frame = 10 * time.Millisecond
	ticker := time.NewTicker(frame)
	defer ticker.Stop()

	start := time.Now()
	base := b.Clock.Peek()
	b.log.WithField("speed", speed).Info("virtual board running")
	for {
		select {
		case <-ctx.Done():
			b.log.WithField("stats", b.Sampler.Stats()).Info("virtual board stopped")
			return ctx.Err()
		case now := <-ticker.C:
			target := base + time.Duration(float64(now.Sub(start))*speed)
			for b.Clock.Peek() < target && ctx.Err() == nil {
				b.Step()
			}
		}
	}
}
