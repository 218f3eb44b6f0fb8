// Command sbc runs the instrument on a Linux single-board computer: the
// load cell, humidity sensor and actuator hang off GPIO lines driven through
// periph.io, and telemetry leaves through the board's UART.
package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"

	"github.com/itohio/goloadcell/pkg/actuator"
	"github.com/itohio/goloadcell/pkg/config"
	"github.com/itohio/goloadcell/pkg/dht"
	"github.com/itohio/goloadcell/pkg/hal"
	"github.com/itohio/goloadcell/pkg/hal/periphhal"
	"github.com/itohio/goloadcell/pkg/hx711"
	"github.com/itohio/goloadcell/pkg/sampler"
)

func main() {
	var (
		configFlag   = flag.String("config", "config.yaml", "Configuration file path")
		uartFlag     = flag.String("uart", "", "UART device override (e.g., /dev/ttyAMA0)")
		logLevelFlag = flag.String("log-level", "", "Log level override (debug, info, warn, error)")
		statsFlag    = flag.Duration("stats", 10*time.Second, "Interval between statistics log lines (0 = disabled)")
	)
	flag.Parse()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load(*configFlag)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if *uartFlag != "" {
		cfg.SBC.UART = *uartFlag
	}
	if *logLevelFlag != "" {
		cfg.Log.Level = *logLevelFlag
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logrus.WithError(err).Fatal("Invalid log level")
	}
	logrus.SetLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *statsFlag); err != nil {
		logrus.WithError(err).Fatal("Instrument failed")
	}
}

// board holds the opened peripherals.
type board struct {
	hw      sampler.Hardware
	drive   *periphhal.PWM
	act     *actuator.Actuator
	adc     *periphhal.ADS1115
	tx      *uartTransport
	rx      io.Reader
	closers []func() error
}

func (b *board) close() {
	if b.act != nil {
		b.act.Stop()
		b.act.Disable()
	}
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			logrus.WithError(err).Warn("Failed to release peripheral")
		}
	}
}

func openBoard(cfg *config.Config) (*board, error) {
	if err := periphhal.Init(); err != nil {
		return nil, err
	}
	b := &board{}
	clock := hal.NewSystemClock()

	clk, err := periphhal.OpenPin(cfg.SBC.HX711Clock, gpio.PullNoChange)
	if err != nil {
		return nil, errors.Wrap(err, "hx711 clock")
	}
	data, err := periphhal.OpenPin(cfg.SBC.HX711Data, gpio.PullNoChange)
	if err != nil {
		return nil, errors.Wrap(err, "hx711 data")
	}
	lc := hx711.New(clk, data, clock, cfg.HX711Config())
	lc.Configure()

	line, err := periphhal.OpenPin(cfg.SBC.DHT, gpio.PullUp)
	if err != nil {
		return nil, errors.Wrap(err, "dht")
	}
	climate := dht.New(line, clock, hal.NewSoftAlarm(clock), cfg.DHTTiming())
	climate.Configure()

	cal, err := cfg.ActuatorCalibration()
	if err != nil {
		return nil, err
	}
	b.drive, err = periphhal.OpenPWM(cfg.SBC.PWM, cal.Period, periphhal.DefaultServoFrequency)
	if err != nil {
		return nil, errors.Wrap(err, "drive")
	}
	spray, err := periphhal.OpenPin(cfg.SBC.Spray, gpio.PullNoChange)
	if err != nil {
		return nil, errors.Wrap(err, "spray")
	}
	b.act, err = actuator.New(b.drive, spray, cal)
	if err != nil {
		return nil, err
	}
	b.act.Configure()

	led, err := periphhal.OpenPin(cfg.SBC.LED, gpio.PullNoChange)
	if err != nil {
		return nil, errors.Wrap(err, "led")
	}

	port, err := openUART(cfg.SBC.UART, cfg.Serial.Baud)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", cfg.SBC.UART)
	}
	if err := port.SetReadTimeout(100 * time.Millisecond); err != nil {
		port.Close()
		return nil, errors.Wrap(err, "uart read timeout")
	}
	b.closers = append(b.closers, port.Close)
	b.tx = newUARTTransport(port)

	b.hw = sampler.Hardware{
		LoadCell:  lc,
		Humidity:  climate,
		Actuator:  b.act,
		Transport: b.tx,
		Indicator: led,
	}

	if cfg.SBC.I2CBus != "" {
		b.adc, err = periphhal.OpenADS1115(periphhal.ADS1115Config{
			Bus:     cfg.SBC.I2CBus,
			Address: cfg.SBC.ADCAddress,
			Channel: cfg.SBC.ADCChannel,
			Divider: float32(cfg.SBC.Divider),
		})
		if err != nil {
			b.close()
			return nil, errors.Wrap(err, "supply adc")
		}
		b.closers = append(b.closers, b.adc.Close)
		b.hw.Voltage = b.adc
	}

	b.rx = port
	return b, nil
}

func run(ctx context.Context, cfg *config.Config, statsEvery time.Duration) error {
	log := logrus.WithField("component", "sbc")

	sc, err := cfg.SamplerConfig()
	if err != nil {
		return err
	}
	b, err := openBoard(cfg)
	if err != nil {
		return err
	}
	defer b.close()

	s, err := sampler.New(sc, b.hw)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"uart":   cfg.SBC.UART,
		"baud":   cfg.Serial.Baud,
		"tick":   cfg.Sampler.TickPeriod,
		"layout": cfg.Sampler.Layout,
		"halted": s.Halted(),
	}).Info("Instrument ready")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rxDone := make(chan struct{})
	go func() {
		defer close(rxDone)
		readLoop(ctx, b.rx, s.OnByteReceived, log)
		cancel()
	}()

	ticker := time.NewTicker(cfg.Sampler.TickPeriod)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.OnTick()
			}
		}
	}()

	var stats <-chan time.Time
	if statsEvery > 0 {
		t := time.NewTicker(statsEvery)
		defer t.Stop()
		stats = t.C
	}

	for {
		s.PollMainCycle()
		if err := b.tx.Flush(); err != nil {
			log.WithError(err).Warn("uart write failed")
		}

		select {
		case <-ctx.Done():
			<-rxDone
			log.WithField("stats", s.Stats()).Info("Instrument stopped")
			return nil
		case <-stats:
			logStats(log, s)
		case <-s.Wake():
		}
	}
}

func logStats(log logrus.FieldLogger, s *sampler.Sampler) {
	st := s.Stats()
	log.WithFields(logrus.Fields{
		"frames":            st.Frames,
		"load_timeouts":     st.LoadTimeouts,
		"humidity_reads":    st.HumidityReads,
		"humidity_timeouts": st.HumidityTimeouts,
		"checksum_errors":   st.ChecksumErrors,
		"commands":          st.Commands,
		"malformed":         st.Malformed,
		"overruns":          st.Overruns,
		"tx_errors":         st.TxErrors,
		"halted":            s.Halted(),
		"state":             s.State(),
	}).Debug("Statistics")
}
