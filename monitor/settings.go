package main

import (
	"fmt"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/goloadcell/pkg/actuator"
	"github.com/itohio/goloadcell/pkg/config"
	"github.com/itohio/goloadcell/pkg/device"
	"github.com/itohio/goloadcell/pkg/hx711"
	"github.com/itohio/goloadcell/pkg/sim"
)

// showSettingsDialog displays a settings dialog with tabs for all configuration options.
func showSettingsDialog(state *appState) {
	tabs := container.NewAppTabs(
		createSerialTab(state),
		createSamplerTab(state),
		createActuatorTab(state),
		createCalibrationTab(state),
		createMeasurementTab(state),
		createMockTab(state),
	)

	content := container.NewBorder(nil, nil, nil, nil, tabs)
	content.Resize(fyne.NewSize(600, 500))

	d := dialog.NewCustom("Settings", "Close", content, state.window)
	d.Resize(fyne.NewSize(600, 500))
	d.Show()
}

// saveConfig validates and stores the configuration. Invalid edits are
// rolled back.
func saveConfig(state *appState, backup config.Config) bool {
	if err := state.cfg.Validate(); err != nil {
		*state.cfg = backup
		dialog.ShowError(err, state.window)
		return false
	}
	if err := state.cfg.Save(state.configPath); err != nil {
		dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
		return false
	}
	return true
}

// restart rebuilds the measurement chain so a running instrument picks up
// the new settings.
func restart(state *appState) {
	if state.device == nil || !state.device.IsConnected() {
		return
	}
	handleConnect(state) // disconnect
	handleConnect(state) // connect with new settings
}

func parseFloat(e *widget.Entry, dst *float64) {
	if v, err := strconv.ParseFloat(e.Text, 64); err == nil {
		*dst = v
	}
}

func parseInt[T ~int | ~int32 | ~uint16 | ~uint32 | ~uint64](e *widget.Entry, dst *T) {
	if v, err := strconv.ParseInt(e.Text, 10, 64); err == nil {
		*dst = T(v)
	}
}

func parseDuration(e *widget.Entry, dst *time.Duration) {
	if v, err := time.ParseDuration(e.Text); err == nil {
		*dst = v
	}
}

func entry(text string) *widget.Entry {
	e := widget.NewEntry()
	e.SetText(text)
	return e
}

// createSerialTab creates the Serial configuration tab.
func createSerialTab(state *appState) *container.TabItem {
	ports, err := device.Ports()
	portOptions := []string{}
	portMap := make(map[string]string) // Map display name to actual port name

	if err == nil {
		for _, port := range ports {
			displayName := port.Name
			if port.Description != "" && port.Description != port.Name {
				displayName = fmt.Sprintf("%s (%s)", port.Name, port.Description)
			}
			portOptions = append(portOptions, displayName)
			portMap[displayName] = port.Name
		}
	}

	currentPort := state.cfg.Serial.Port
	currentDisplay := currentPort
	found := false
	for _, opt := range portOptions {
		if portMap[opt] == currentPort {
			currentDisplay = opt
			found = true
			break
		}
	}
	if !found && currentPort != "" {
		portOptions = append(portOptions, currentPort)
		portMap[currentPort] = currentPort
	}

	portSelect := widget.NewSelect(portOptions, nil)
	if currentDisplay != "" {
		portSelect.SetSelected(currentDisplay)
	}
	baudEntry := entry(strconv.Itoa(state.cfg.Serial.Baud))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Serial Port", Widget: portSelect},
			{Text: "Baud Rate", Widget: baudEntry},
		},
		OnSubmit: func() {
			backup := *state.cfg
			if portSelect.Selected != "" {
				selectedPort := portMap[portSelect.Selected]
				if selectedPort == "" {
					selectedPort = portSelect.Selected
				}
				state.cfg.Serial.Port = selectedPort
			}
			parseInt(baudEntry, &state.cfg.Serial.Baud)

			changed := backup.Serial != state.cfg.Serial
			if saveConfig(state, backup) && changed && !state.useMock {
				restart(state)
			}
		},
	}

	return container.NewTabItem("Serial", form)
}

// createSamplerTab edits the instrument main loop. Only the simulated
// instrument applies these; a real one has them in firmware.
func createSamplerTab(state *appState) *container.TabItem {
	s := &state.cfg.Sampler
	tickEntry := entry(s.TickPeriod.String())
	cadenceEntry := entry(strconv.FormatUint(uint64(s.CadenceTicks), 10))
	restEntry := entry(strconv.FormatUint(uint64(s.RestTicks), 10))
	gainSelect := widget.NewSelect([]string{
		hx711.GainA128.String(), hx711.GainB32.String(), hx711.GainA64.String(),
	}, nil)
	gainSelect.SetSelected(s.Gain)
	layoutSelect := widget.NewSelect([]string{"default", "voltage"}, nil)
	layoutSelect.SetSelected(s.Layout)

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Tick Period", Widget: tickEntry},
			{Text: "Cadence (ticks)", Widget: cadenceEntry},
			{Text: "Humidity Rest (ticks)", Widget: restEntry},
			{Text: "Gain", Widget: gainSelect},
			{Text: "Frame Layout", Widget: layoutSelect},
		},
		OnSubmit: func() {
			backup := *state.cfg
			parseDuration(tickEntry, &s.TickPeriod)
			parseInt(cadenceEntry, &s.CadenceTicks)
			parseInt(restEntry, &s.RestTicks)
			s.Gain = gainSelect.Selected
			s.Layout = layoutSelect.Selected
			if saveConfig(state, backup) {
				restart(state)
			}
		},
	}

	return container.NewTabItem("Sampler", form)
}

// createActuatorTab edits the drive PWM calibration.
func createActuatorTab(state *appState) *container.TabItem {
	a := &state.cfg.Actuator
	periodEntry := entry(strconv.FormatUint(uint64(a.Period), 10))
	stopEntry := entry(strconv.FormatUint(uint64(a.Stop), 10))
	forwardEntry := entry(strconv.FormatUint(uint64(a.Forward), 10))
	reverseEntry := entry(strconv.FormatUint(uint64(a.Reverse), 10))
	curveSelect := widget.NewSelect([]string{actuator.Linear.String(), actuator.Parabolic.String()}, nil)
	curveSelect.SetSelected(a.Curve)

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Period (counts)", Widget: periodEntry},
			{Text: "Stop (counts)", Widget: stopEntry},
			{Text: "Full Forward (counts)", Widget: forwardEntry},
			{Text: "Full Reverse (counts)", Widget: reverseEntry},
			{Text: "Curve", Widget: curveSelect},
		},
		OnSubmit: func() {
			backup := *state.cfg
			parseInt(periodEntry, &a.Period)
			parseInt(stopEntry, &a.Stop)
			parseInt(forwardEntry, &a.Forward)
			parseInt(reverseEntry, &a.Reverse)
			a.Curve = curveSelect.Selected
			if saveConfig(state, backup) && state.useMock {
				restart(state)
			}
		},
	}

	return container.NewTabItem("Actuator", form)
}

// createCalibrationTab edits the counts to mass conversion.
func createCalibrationTab(state *appState) *container.TabItem {
	c := &state.cfg.Calibration
	tareEntry := entry(strconv.FormatInt(int64(c.Tare), 10))
	scaleEntry := entry(strconv.FormatFloat(c.Scale, 'g', -1, 64))
	unitsEntry := entry(c.Units)

	tareBtn := widget.NewButton("Tare", func() {
		if latest, ok := state.loadMeter.Latest(); ok && c.Scale != 0 {
			counts := int64(latest.Load/c.Scale) + int64(c.Tare)
			tareEntry.SetText(strconv.FormatInt(counts, 10))
		}
	})

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Tare (counts)", Widget: container.NewBorder(nil, nil, nil, tareBtn, tareEntry)},
			{Text: "Scale (units/count)", Widget: scaleEntry},
			{Text: "Units", Widget: unitsEntry},
		},
		OnSubmit: func() {
			backup := *state.cfg
			parseInt(tareEntry, &c.Tare)
			parseFloat(scaleEntry, &c.Scale)
			if unitsEntry.Text != "" {
				c.Units = unitsEntry.Text
			}
			if saveConfig(state, backup) {
				restart(state)
			}
		},
	}

	return container.NewTabItem("Calibration", form)
}

// createMeasurementTab creates the Measurement configuration tab.
func createMeasurementTab(state *appState) *container.TabItem {
	m := &state.cfg.Measurement
	windowSecondsEntry := entry(fmt.Sprintf("%.1f", m.WindowSeconds))
	thresholdEntry := entry(fmt.Sprintf("%.3f", m.EventThreshold))
	minDurationEntry := entry(fmt.Sprintf("%.2f", m.MinEventDuration))
	averageSamplesEntry := entry(strconv.Itoa(m.AverageSamples))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Window (seconds)", Widget: windowSecondsEntry},
			{Text: "Event Threshold (units/s)", Widget: thresholdEntry},
			{Text: "Min Event Duration (s)", Widget: minDurationEntry},
			{Text: "Average Samples (0=disabled)", Widget: averageSamplesEntry},
		},
		OnSubmit: func() {
			backup := *state.cfg
			parseFloat(windowSecondsEntry, &m.WindowSeconds)
			parseFloat(thresholdEntry, &m.EventThreshold)
			parseFloat(minDurationEntry, &m.MinEventDuration)
			parseInt(averageSamplesEntry, &m.AverageSamples)
			if saveConfig(state, backup) {
				restart(state)
			}
		},
	}

	return container.NewTabItem("Measurement", form)
}

// createMockTab creates the simulated instrument configuration tab.
func createMockTab(state *appState) *container.TabItem {
	m := &state.cfg.Mock
	profileSelect := widget.NewSelect([]string{
		string(sim.ProfileConstant), string(sim.ProfileSine), string(sim.ProfileSquare), string(sim.ProfileRamp),
	}, nil)
	profileSelect.SetSelected(m.Profile)
	offsetEntry := entry(strconv.FormatInt(int64(m.Offset), 10))
	amplitudeEntry := entry(strconv.FormatInt(int64(m.Amplitude), 10))
	periodEntry := entry(m.Period.String())
	noiseEntry := entry(strconv.FormatInt(int64(m.Noise), 10))
	humidityEntry := entry(fmt.Sprintf("%.0f", m.Humidity))
	temperatureEntry := entry(fmt.Sprintf("%.1f", m.Temperature))
	faultEntry := entry(fmt.Sprintf("%.2f", m.DHTFaultRate))
	batteryEntry := entry(strconv.FormatUint(uint64(m.BatteryMV), 10))
	speedEntry := entry(fmt.Sprintf("%.1f", m.Speed))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Load Profile", Widget: profileSelect},
			{Text: "Offset (counts)", Widget: offsetEntry},
			{Text: "Amplitude (counts)", Widget: amplitudeEntry},
			{Text: "Period", Widget: periodEntry},
			{Text: "Noise (counts)", Widget: noiseEntry},
			{Text: "Humidity (%RH)", Widget: humidityEntry},
			{Text: "Temperature (°C)", Widget: temperatureEntry},
			{Text: "Humidity Fault Rate", Widget: faultEntry},
			{Text: "Battery (mV, 0=off)", Widget: batteryEntry},
			{Text: "Speed", Widget: speedEntry},
		},
		OnSubmit: func() {
			backup := *state.cfg
			m.Profile = profileSelect.Selected
			parseInt(offsetEntry, &m.Offset)
			parseInt(amplitudeEntry, &m.Amplitude)
			parseDuration(periodEntry, &m.Period)
			parseInt(noiseEntry, &m.Noise)
			parseFloat32(humidityEntry, &m.Humidity)
			parseFloat32(temperatureEntry, &m.Temperature)
			parseFloat(faultEntry, &m.DHTFaultRate)
			parseInt(batteryEntry, &m.BatteryMV)
			parseFloat(speedEntry, &m.Speed)
			if saveConfig(state, backup) && state.useMock {
				restart(state)
			}
		},
	}

	return container.NewTabItem("Mock", form)
}

func parseFloat32(e *widget.Entry, dst *float32) {
	if v, err := strconv.ParseFloat(e.Text, 32); err == nil {
		*dst = float32(v)
	}
}
