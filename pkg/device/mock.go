package device

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/itohio/goloadcell/pkg/config"
	"github.com/itohio/goloadcell/pkg/framing"
	"github.com/itohio/goloadcell/pkg/sim"
)

// Mock runs the instrument firmware on a virtual board and talks to it
// through an in-memory serial line.
type Mock struct {
	cfg    *config.Config
	layout framing.Layout
	log    logrus.FieldLogger

	board     *sim.Board
	pw        *io.PipeWriter
	samples   chan Reading
	running   sync.WaitGroup
	mu        sync.RWMutex
	cancel    context.CancelFunc
	connected bool
}

// NewMock creates a new mocked device instance. A nil cfg uses defaults.
func NewMock(cfg *config.Config) *Mock {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Mock{
		cfg:     cfg,
		layout:  cfg.Layout(),
		log:     logrus.WithField("device", "mock"),
		samples: make(chan Reading, DefaultBufferSize),
	}
}

// BoardConfig builds a virtual board from the configuration.
func BoardConfig(cfg *config.Config) (sim.BoardConfig, error) {
	bc := sim.DefaultBoardConfig()

	sc, err := cfg.SamplerConfig()
	if err != nil {
		return bc, err
	}
	cal, err := cfg.ActuatorCalibration()
	if err != nil {
		return bc, err
	}
	load, err := sim.Profile{
		Kind:      sim.ProfileKind(cfg.Mock.Profile),
		Offset:    cfg.Mock.Offset,
		Amplitude: cfg.Mock.Amplitude,
		Period:    cfg.Mock.Period,
		Noise:     cfg.Mock.Noise,
		Seed:      cfg.Mock.Seed,
	}.Source()
	if err != nil {
		return bc, err
	}
	env := sim.Environment{Humidity: cfg.Mock.Humidity, Temperature: cfg.Mock.Temperature}

	bc.TickPeriod = cfg.Sampler.TickPeriod
	bc.Sampler = sc
	bc.HX711 = cfg.HX711Config()
	bc.DHT = cfg.DHTTiming()
	bc.Calibration = cal
	bc.Load = load
	bc.Environment = func(time.Duration) sim.Environment { return env }
	if sc.Layout.Has(framing.FieldVoltage) {
		bc.BatteryMV = cfg.Mock.BatteryMV
	}
	return bc, nil
}

// Connect builds the virtual board and starts running it in real time scaled
// by the configured speed.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return ErrConnected
	}

	bc, err := BoardConfig(m.cfg)
	if err != nil {
		return errors.Wrap(err, "invalid mock configuration")
	}
	pr, pw := io.Pipe()
	board, err := sim.NewBoard(bc, pw)
	if err != nil {
		return errors.Wrap(err, "failed to build virtual board")
	}
	board.SetLogger(m.log)
	if m.cfg.Mock.DHTFaultRate > 0 {
		board.Climate.SetFaultRate(m.cfg.Mock.DHTFaultRate, m.cfg.Mock.Seed)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.board = board
	m.pw = pw
	m.cancel = cancel
	m.samples = make(chan Reading, DefaultBufferSize)
	m.connected = true

	samples := m.samples
	m.running.Add(2)
	go func() {
		defer m.running.Done()
		defer close(samples)
		readFrames(ctx, pr, m.layout, samples, m.log)
		// Unblock a board flush that raced the cancellation.
		pr.Close()
	}()
	go func() {
		defer m.running.Done()
		defer pw.Close()
		if err := board.Run(ctx, m.cfg.Mock.Speed); err != nil && !errors.Is(err, context.Canceled) {
			m.log.WithError(err).Error("virtual board stopped")
		}
	}()

	m.log.Info("connected to mocked device")
	return nil
}

// Close stops the board, waits for both goroutines and closes the samples
// channel.
func (m *Mock) Close() error {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return nil
	}
	m.cancel()
	m.connected = false
	m.mu.Unlock()

	m.running.Wait()
	m.log.Info("disconnected from mocked device")
	return nil
}

// Samples returns the channel for reading samples.
func (m *Mock) Samples() <-chan Reading {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.samples
}

// Send queues a command on the board's receive line.
func (m *Mock) Send(cmd framing.Command) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.connected {
		return ErrNotConnected
	}
	m.board.Send(cmd)
	return nil
}

// IsConnected returns whether the device is currently connected.
func (m *Mock) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// Board exposes the virtual board while connected.
func (m *Mock) Board() *sim.Board {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.board
}
