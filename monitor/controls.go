package main

import (
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/sirupsen/logrus"

	"github.com/itohio/goloadcell/pkg/framing"
)

// controls drive the instrument: run state, actuator speed and spray.
type controls struct {
	state *appState

	goBtn    *widget.Button
	quitBtn  *widget.Button
	stopBtn  *widget.Button
	sprayBtn *widget.Button
	drive    *widget.Slider
	label    *widget.Label

	running  bool
	spraying bool
}

func newControls(state *appState) *controls {
	c := &controls{state: state}

	c.goBtn = widget.NewButtonWithIcon("", theme.MediaPlayIcon(), func() {
		c.send(framing.Command{Op: framing.OpGo})
	})
	c.quitBtn = widget.NewButtonWithIcon("", theme.MediaPauseIcon(), func() {
		c.send(framing.Command{Op: framing.OpQuit})
	})
	c.stopBtn = widget.NewButtonWithIcon("", theme.MediaStopIcon(), func() {
		c.drive.SetValue(0)
		c.send(framing.Command{Op: framing.OpStop})
	})
	c.sprayBtn = widget.NewButtonWithIcon("", theme.ColorPaletteIcon(), func() {
		op := framing.OpSprayOn
		if c.spraying {
			op = framing.OpSprayOff
		}
		c.send(framing.Command{Op: op})
	})

	// Negative values reverse the actuator.
	c.drive = widget.NewSlider(-framing.MaxPercent, framing.MaxPercent)
	c.drive.Step = 5
	c.label = widget.NewLabel(driveLabel(0))
	c.drive.OnChanged = func(v float64) {
		c.label.SetText(driveLabel(v))
	}
	c.drive.OnChangeEnded = func(v float64) {
		c.send(driveCommand(v))
	}

	return c
}

func (c *controls) container() fyne.CanvasObject {
	slider := container.NewGridWrap(fyne.NewSize(200, c.drive.MinSize().Height), c.drive)
	return container.NewHBox(c.goBtn, c.quitBtn, c.stopBtn, slider, c.label, c.sprayBtn)
}

// driveCommand maps a slider position to F, R or S.
func driveCommand(v float64) framing.Command {
	switch {
	case v > 0:
		return framing.Command{Op: framing.OpForward, Percent: uint8(v)}
	case v < 0:
		return framing.Command{Op: framing.OpReverse, Percent: uint8(-v)}
	}
	return framing.Command{Op: framing.OpStop}
}

func driveLabel(v float64) string {
	switch {
	case v > 0:
		return fmt.Sprintf("fwd %3.0f%%", v)
	case v < 0:
		return fmt.Sprintf("rev %3.0f%%", -v)
	}
	return "stop    "
}

// send delivers cmd and mirrors its effect on the buttons. Commands other
// than G are ignored by a halted instrument, so the UI follows the same rule.
func (c *controls) send(cmd framing.Command) {
	dev := c.state.device
	if dev == nil || !dev.IsConnected() {
		return
	}
	if err := dev.Send(cmd); err != nil {
		dialog.ShowError(fmt.Errorf("failed to send %s: %w", cmd, err), c.state.window)
		return
	}
	logrus.WithField("command", cmd.String()).Debug("Command sent")

	switch cmd.Op {
	case framing.OpGo:
		c.running = true
		c.drive.SetValue(0)
	case framing.OpQuit:
		c.running = false
		c.drive.SetValue(0)
	case framing.OpSprayOn:
		c.spraying = c.running
	case framing.OpSprayOff:
		c.spraying = false
	}
	c.update()
}

// reset forgets the instrument state after a disconnect.
func (c *controls) reset() {
	c.running = false
	c.spraying = false
	c.drive.SetValue(0)
	c.update()
}

func (c *controls) setEnabled(on bool) {
	for _, w := range []fyne.Disableable{c.goBtn, c.quitBtn, c.stopBtn, c.sprayBtn} {
		if on {
			w.Enable()
		} else {
			w.Disable()
		}
	}
	if on {
		c.update()
	}
}

// update refreshes button emphasis and which controls a halted instrument
// accepts.
func (c *controls) update() {
	setImportance(c.goBtn, c.running)
	setImportance(c.sprayBtn, c.spraying)
	for _, w := range []fyne.Disableable{c.quitBtn, c.stopBtn, c.sprayBtn} {
		if c.running {
			w.Enable()
		} else {
			w.Disable()
		}
	}
}

// setImportance updates a single button's visual state.
func setImportance(btn *widget.Button, on bool) {
	if on {
		btn.Importance = widget.HighImportance
	} else {
		btn.Importance = widget.MediumImportance
	}
	btn.Refresh()
}
