package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/itohio/goloadcell/pkg/framing"
	"github.com/itohio/goloadcell/pkg/meter"
	"github.com/itohio/goloadcell/pkg/sample"
)

// runHeadless streams the instrument to the log until ctx is cancelled.
// Every fresh climate reading and every finished load event is logged at
// info level; individual samples at debug level.
func runHeadless(ctx context.Context, state *appState) error {
	dev := openDevice(state)
	if err := dev.Connect(); err != nil {
		return errors.Wrapf(err, "connect to %s", deviceName(state))
	}
	logrus.Infof("Connected to %s", deviceName(state))

	reporter := newEventReporter(state.cfg.Calibration.Units, logrus.WithField("component", "headless"))
	state.loadMeter.OnUpdate(func(samples []sample.Sample, _ []float64, events []meter.Event) {
		if len(samples) == 0 {
			return
		}
		reporter.report(samples[len(samples)-1], events)
	})

	chain := startChain(state, dev)
	if err := dev.Send(framing.Command{Op: framing.OpGo}); err != nil {
		closeMeasurementChain(chain)
		return errors.Wrap(err, "start instrument")
	}

	select {
	case <-ctx.Done():
	case <-chain.meterGoroutine:
		logrus.Warn("Instrument stream ended")
	}
	closeMeasurementChain(chain)
	logrus.Info("Measurement stopped")
	return nil
}

// eventReporter logs what changed since the previous update. It runs on the
// meter goroutine only.
type eventReporter struct {
	units  string
	log    logrus.FieldLogger
	logged map[eventKey]bool
}

// eventKey identifies an event across window shifts.
type eventKey struct {
	end       int64
	direction int
}

func newEventReporter(units string, log logrus.FieldLogger) *eventReporter {
	return &eventReporter{
		units:  units,
		log:    log,
		logged: make(map[eventKey]bool),
	}
}

func (r *eventReporter) report(latest sample.Sample, events []meter.Event) {
	fields := logrus.Fields{"load": latest.Load, "units": r.units}
	if latest.HasVoltage {
		fields["voltage"] = latest.Voltage
	}
	r.log.WithFields(fields).Debug("sample")

	if latest.Fresh {
		r.log.WithFields(logrus.Fields{
			"humidity":    latest.Humidity,
			"temperature": latest.Temperature,
		}).Info("climate")
	}

	seen := make(map[eventKey]bool, len(events))
	for _, e := range events {
		k := eventKey{end: e.EndTime.UnixNano(), direction: e.Direction}
		seen[k] = true
		if e.Active || r.logged[k] {
			continue
		}
		r.logged[k] = true
		r.log.WithFields(logrus.Fields{
			"delta":     e.Delta,
			"units":     r.units,
			"duration":  e.Duration(),
			"peak_rate": e.PeakRate,
		}).Info(direction(e))
	}
	// Forget events that left the window.
	for k := range r.logged {
		if !seen[k] {
			delete(r.logged, k)
		}
	}
}

func direction(e meter.Event) string {
	if e.Direction < 0 {
		return "unloaded"
	}
	return "loaded"
}
