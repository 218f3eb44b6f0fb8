package scope

import (
	"fmt"
	"image/color"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"

	"github.com/itohio/goloadcell/pkg/meter"
	"github.com/itohio/goloadcell/pkg/sample"
)

var (
	gridColor    = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	labelColor   = color.RGBA{R: 150, G: 150, B: 150, A: 255}
	loadColor    = color.RGBA{R: 255, G: 165, B: 0, A: 255}   // Orange
	rateColor    = color.RGBA{R: 100, G: 200, B: 255, A: 255} // Light blue
	loadingColor = color.RGBA{R: 0, G: 160, B: 80, A: 255}
	unloadColor  = color.RGBA{R: 200, G: 60, B: 60, A: 255}
	statusColor  = color.RGBA{R: 200, G: 200, B: 200, A: 255}
)

// scopeRenderer renders the scope widget.
type scopeRenderer struct {
	scope *ScopeWidget

	bg      *canvas.Rectangle
	objects []fyne.CanvasObject

	lastSize fyne.Size
}

// plot maps data coordinates onto the drawing area.
type plot struct {
	x, y, w, h float32
	xMin, xMax time.Time
	yMin, yMax float64
}

func (p plot) px(t time.Time) float32 {
	return p.x + float32(t.Sub(p.xMin).Seconds()/p.xMax.Sub(p.xMin).Seconds())*p.w
}

func (p plot) py(v, lo, hi float64) float32 {
	return p.y + p.h - float32((v-lo)/(hi-lo))*p.h
}

// MinSize returns the minimum size of the widget.
func (r *scopeRenderer) MinSize() fyne.Size {
	return fyne.NewSize(400, 300)
}

// Layout arranges the widget components.
func (r *scopeRenderer) Layout(size fyne.Size) {
	r.bg.Resize(size)

	if r.lastSize != size {
		r.lastSize = size
		r.scope.BaseWidget.Refresh()
	}
}

// Refresh rebuilds all canvas objects from the current data.
func (r *scopeRenderer) Refresh() {
	s := r.scope
	s.mu.RLock()
	samples := s.displaySamples
	derivatives := s.displayDerivatives
	events := s.events
	latest, has := s.latest, s.has
	p := plot{xMin: s.xMin, xMax: s.xMax, yMin: s.yMin, yMax: s.yMax}
	rateMin, rateMax := s.rateMin, s.rateMax
	units := s.cfg.Calibration.Units

	size := s.Size()
	r.objects = []fyne.CanvasObject{r.bg}
	if size.Width == 0 || size.Height == 0 {
		s.mu.RUnlock()
		return
	}

	const marginLeft, marginRight, marginTop, marginBottom = 70, 60, 30, 40
	p.x, p.y = marginLeft, marginTop
	p.w = size.Width - marginLeft - marginRight
	p.h = size.Height - marginTop - marginBottom

	r.drawGrid(p, rateMin, rateMax, units)
	r.drawEvents(p, events, samples, units)
	if len(samples) > 1 {
		r.drawLoad(p, samples)
	}
	if len(derivatives) > 0 && len(samples) > 1 {
		r.drawRate(p, derivatives, samples, rateMin, rateMax)
	}
	if has {
		r.drawStatus(p, latest, units)
	}
	s.mu.RUnlock()

	canvas.Refresh(r.bg)
}

func (r *scopeRenderer) line(c color.Color, width float32, a, b fyne.Position) {
	l := canvas.NewLine(c)
	l.Position1 = a
	l.Position2 = b
	l.StrokeWidth = width
	r.objects = append(r.objects, l)
}

func (r *scopeRenderer) text(s string, c color.Color, size float32, align fyne.TextAlign, pos fyne.Position) {
	t := canvas.NewText(s, c)
	t.TextSize = size
	t.Alignment = align
	t.Move(pos)
	r.objects = append(r.objects, t)
}

// drawGrid draws the grid with load labels on the left and rate labels on
// the right.
func (r *scopeRenderer) drawGrid(p plot, rateMin, rateMax float64, units string) {
	const numHLines = 8
	for i := range numHLines + 1 {
		y := p.y + float32(i)*p.h/numHLines
		r.line(gridColor, 1, fyne.NewPos(p.x, y), fyne.NewPos(p.x+p.w, y))

		load := p.yMax - float64(i)*(p.yMax-p.yMin)/numHLines
		r.text(formatValue(load, units), labelColor, 10, fyne.TextAlignTrailing, fyne.NewPos(p.x-5, y-6))
		rate := rateMax - float64(i)*(rateMax-rateMin)/numHLines
		r.text(formatValue(rate, units+"/s"), rateColor, 10, fyne.TextAlignLeading, fyne.NewPos(p.x+p.w+5, y-6))
	}

	const numVLines = 10
	span := p.xMax.Sub(p.xMin)
	for i := range numVLines + 1 {
		x := p.x + float32(i)*p.w/numVLines
		r.line(gridColor, 1, fyne.NewPos(x, p.y), fyne.NewPos(x, p.y+p.h))
		r.text(formatTime(span*time.Duration(i)/numVLines), labelColor, 10, fyne.TextAlignCenter, fyne.NewPos(x-20, p.y+p.h+5))
	}
}

// drawLoad draws the load curve (orange).
func (r *scopeRenderer) drawLoad(p plot, samples []sample.Sample) {
	prev := fyne.NewPos(p.px(samples[0].Timestamp), p.py(samples[0].Load, p.yMin, p.yMax))
	for _, s := range samples[1:] {
		pos := fyne.NewPos(p.px(s.Timestamp), p.py(s.Load, p.yMin, p.yMax))
		r.line(loadColor, 1.5, prev, pos)
		prev = pos
	}
}

// drawRate draws the load rate (light blue, thicker) at the midpoint of each
// sample pair.
func (r *scopeRenderer) drawRate(p plot, derivatives []float64, samples []sample.Sample, lo, hi float64) {
	var prev fyne.Position
	for i, d := range derivatives {
		if i+1 >= len(samples) {
			break
		}
		mid := samples[i].Timestamp.Add(samples[i+1].Timestamp.Sub(samples[i].Timestamp) / 2)
		pos := fyne.NewPos(p.px(mid), p.py(d, lo, hi))
		if i > 0 {
			r.line(rateColor, 2.5, prev, pos)
		}
		prev = pos
	}
}

// drawEvents marks each event with start and end lines and labels it with
// its load change.
func (r *scopeRenderer) drawEvents(p plot, events []meter.Event, samples []sample.Sample, units string) {
	for _, e := range events {
		if e.StartIndex < 0 || e.EndIndex < e.StartIndex || e.EndIndex >= len(samples) {
			continue
		}
		c := loadingColor
		if e.Direction < 0 {
			c = unloadColor
		}
		xStart := p.px(e.StartTime)
		xEnd := p.px(e.EndTime)
		r.line(c, 1, fyne.NewPos(xStart, p.y), fyne.NewPos(xStart, p.y+p.h))
		r.line(c, 1, fyne.NewPos(xEnd, p.y), fyne.NewPos(xEnd, p.y+p.h))

		top := p.yMin
		for i := e.StartIndex; i <= e.EndIndex; i++ {
			top = max(top, samples[i].Load)
		}
		label := fmt.Sprintf("%+.1f %s", e.Delta, units)
		r.text(label, c, 12, fyne.TextAlignCenter, fyne.NewPos((xStart+xEnd)/2-30, p.py(top, p.yMin, p.yMax)-15))
	}
}

// drawStatus prints the newest reading above the plot.
func (r *scopeRenderer) drawStatus(p plot, s sample.Sample, units string) {
	status := "load " + formatValue(s.Load, units)
	if s.HasClimate {
		status += fmt.Sprintf("   %.0f %%RH   %.1f °C", s.Humidity, s.Temperature)
	}
	if s.HasVoltage {
		status += fmt.Sprintf("   %.2f V", s.Voltage)
	}
	r.text(status, statusColor, 11, fyne.TextAlignLeading, fyne.NewPos(p.x+10, p.y-22))
}

// Objects returns all canvas objects for rendering.
func (r *scopeRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

// Destroy cleans up resources.
func (r *scopeRenderer) Destroy() {}

func formatValue(v float64, units string) string {
	return strconv.FormatFloat(v, 'f', precision(v), 64) + " " + units
}

func precision(v float64) int {
	switch a := max(v, -v); {
	case a >= 100:
		return 0
	case a >= 1:
		return 1
	}
	return 3
}

func formatTime(d time.Duration) string {
	if d < time.Second {
		return strconv.FormatFloat(d.Seconds(), 'f', 2, 64) + "s"
	}
	return strconv.FormatFloat(d.Seconds(), 'f', 1, 64) + "s"
}
