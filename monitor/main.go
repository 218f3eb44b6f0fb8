package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/sirupsen/logrus"

	"github.com/itohio/goloadcell/pkg/config"
	"github.com/itohio/goloadcell/pkg/device"
	"github.com/itohio/goloadcell/pkg/framing"
	"github.com/itohio/goloadcell/pkg/meter"
	"github.com/itohio/goloadcell/pkg/sample"
	"github.com/itohio/goloadcell/pkg/scope"
)

func main() {
	var (
		portFlag           = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
		configFlag         = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag           = flag.Bool("mock", false, "Use simulated instrument instead of serial port")
		headlessFlag       = flag.Bool("headless", false, "Log readings and events instead of opening a window")
		logLevelFlag       = flag.String("log-level", "", "Log level override (debug, info, warn, error)")
		averageSamplesFlag = flag.Int("average-samples", -1, "Number of samples to average (0 = disabled, overrides config)")
	)
	flag.Parse()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load(*configFlag)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}
	if *averageSamplesFlag >= 0 {
		cfg.Measurement.AverageSamples = *averageSamplesFlag
	}
	if *logLevelFlag != "" {
		cfg.Log.Level = *logLevelFlag
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logrus.WithError(err).Fatal("Invalid log level")
	}
	logrus.SetLevel(level)

	state := &appState{
		cfg:        cfg,
		configPath: *configFlag,
		loadMeter:  meter.New(cfg),
		useMock:    *mockFlag,
	}

	if *headlessFlag {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := runHeadless(ctx, state); err != nil {
			logrus.WithError(err).Fatal("Measurement failed")
		}
		return
	}

	application := app.NewWithID("com.itohio.goloadcell")

	window := application.NewWindow("Load Cell Monitor")
	window.Resize(fyne.NewSize(1200, 800))
	window.CenterOnScreen()
	state.window = window

	toolbar := createToolbar(state)

	scopeWidget := scope.New(cfg)
	state.scopeWidget = scopeWidget

	content := container.NewBorder(
		toolbar,
		nil,
		nil,
		nil,
		scopeWidget,
	)

	window.SetContent(content)
	window.SetOnClosed(func() {
		closeMeasurementChain(state.chain)
	})
	window.ShowAndRun()
}

// measurementChain tracks the components of the measurement chain for graceful shutdown.
type measurementChain struct {
	device         device.Device
	samplesStream  <-chan sample.Sample
	meterGoroutine chan struct{} // Closed when meter goroutine exits
}

// appState holds the application state.
type appState struct {
	cfg         *config.Config
	configPath  string
	device      device.Device
	loadMeter   *meter.Meter
	scopeWidget *scope.ScopeWidget
	window      fyne.Window
	connectBtn  *widget.Button
	controls    *controls
	useMock     bool
	chain       *measurementChain // Current measurement chain (nil if not connected)

	// Throttling for scope updates
	lastUpdateTime time.Time
	updateMu       sync.Mutex
}

// createToolbar creates the application toolbar with Connect, Settings and
// the instrument controls.
func createToolbar(state *appState) fyne.CanvasObject {
	connectBtn := widget.NewButtonWithIcon("", theme.LoginIcon(), func() {
		handleConnect(state)
	})
	state.connectBtn = connectBtn

	settingsBtn := widget.NewButtonWithIcon("", theme.SettingsIcon(), func() {
		showSettingsDialog(state)
	})

	state.controls = newControls(state)
	state.controls.setEnabled(false)

	return container.NewBorder(
		nil,
		nil,
		container.NewHBox(connectBtn, settingsBtn),
		state.controls.container(),
		nil,
	)
}

// openDevice creates the configured device.
func openDevice(state *appState) device.Device {
	if state.useMock {
		return device.NewMock(state.cfg)
	}
	return device.New(state.cfg.Serial.Port, state.cfg.Serial.Baud, device.DefaultBufferSize, state.cfg.Layout())
}

func deviceName(state *appState) string {
	if state.useMock {
		return "simulated instrument"
	}
	return state.cfg.Serial.Port
}

// startChain connects dev to the meter: readings are converted, optionally
// averaged and fed to the meter until the device closes its stream.
func startChain(state *appState, dev device.Device) *measurementChain {
	state.loadMeter.ResetShutdown()

	stream := sample.NewConverter(state.cfg, 500)(dev.Samples())
	if state.cfg.Measurement.AverageSamples > 0 {
		stream = sample.NewAveragingConverter(state.cfg.Measurement.AverageSamples, 500)(stream)
	}

	meterDone := make(chan struct{})
	go func() {
		defer close(meterDone)
		state.loadMeter.ProcessSamples(stream)
	}()

	return &measurementChain{
		device:         dev,
		samplesStream:  stream,
		meterGoroutine: meterDone,
	}
}

// closeMeasurementChain gracefully closes the measurement chain.
// Waits for all goroutines to finish and channels to drain.
func closeMeasurementChain(chain *measurementChain) {
	if chain == nil {
		return
	}

	// Park the instrument before letting go of the link.
	if chain.device != nil {
		if err := chain.device.Send(framing.Command{Op: framing.OpQuit}); err != nil {
			logrus.WithError(err).Debug("Quit not delivered")
		}
		if err := chain.device.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close device")
		}
	}

	// The meter goroutine exits once the converters drain.
	if chain.meterGoroutine != nil {
		<-chain.meterGoroutine
	}
}

// handleConnect handles the connect/disconnect button click.
func handleConnect(state *appState) {
	if state.device != nil && state.device.IsConnected() {
		closeMeasurementChain(state.chain)
		state.chain = nil
		state.device = nil
		state.controls.reset()
		state.controls.setEnabled(false)
		logrus.Infof("Disconnected from %s", deviceName(state))
		return
	}

	dev := openDevice(state)
	if err := dev.Connect(); err != nil {
		dialog.ShowError(fmt.Errorf("failed to connect to %s: %w", deviceName(state), err), state.window)
		return
	}
	state.device = dev
	logrus.Infof("Connected to %s", deviceName(state))

	state.scopeWidget.Clear()

	// A fresh meter picks up measurement settings changed since the last run.
	state.loadMeter = meter.New(state.cfg)

	// Register callback with the meter to update the scope widget.
	// Throttle updates to ~60 FPS (16.67ms between updates) to keep the UI smooth.
	const updateInterval = 16 * time.Millisecond
	state.loadMeter.OnUpdate(func(samples []sample.Sample, derivatives []float64, events []meter.Event) {
		state.updateMu.Lock()
		now := time.Now()
		if now.Sub(state.lastUpdateTime) < updateInterval {
			state.updateMu.Unlock()
			return
		}
		state.lastUpdateTime = now
		state.updateMu.Unlock()

		// Scope widget handles downsampling internally, so pass full data
		fyne.Do(func() {
			state.scopeWidget.UpdateData(samples, derivatives, events)
		})
	})

	state.chain = startChain(state, dev)
	state.controls.setEnabled(true)

	// The instrument boots halted.
	state.controls.send(framing.Command{Op: framing.OpGo})
}
