package scope

import (
	"image/color"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/goloadcell/pkg/config"
	"github.com/itohio/goloadcell/pkg/meter"
	"github.com/itohio/goloadcell/pkg/sample"
)

// ScopeWidget is a custom Fyne widget that draws the load trace, its rate of
// change and detected load events, oscilloscope style.
type ScopeWidget struct {
	widget.BaseWidget

	cfg *config.Config

	// Data (protected by mu)
	mu     sync.RWMutex
	events []meter.Event
	latest sample.Sample
	has    bool

	// Display buffers (reused for downsampling)
	displaySamples     []sample.Sample
	displayDerivatives []float64

	// Auto-scaling
	yMin, yMax       float64
	rateMin, rateMax float64
	xMin, xMax       time.Time

	maxDisplayPoints int
}

// New creates a new ScopeWidget instance.
func New(cfg *config.Config) *ScopeWidget {
	s := &ScopeWidget{
		cfg:                cfg,
		displaySamples:     make([]sample.Sample, 0, 1000),
		displayDerivatives: make([]float64, 0, 1000),
		maxDisplayPoints:   1000,
	}
	s.ExtendBaseWidget(s)
	s.updateAutoScale(nil)
	return s
}

// UpdateData updates the widget with new measurement data. Call it on the
// Fyne thread (fyne.Do).
func (s *ScopeWidget) UpdateData(samples []sample.Sample, derivatives []float64, events []meter.Event) {
	s.mu.Lock()

	// Events index the full buffer; remap them onto the decimated one.
	step := 1.0
	if len(samples) > s.maxDisplayPoints {
		step = float64(len(samples)) / float64(s.maxDisplayPoints)
	}
	s.displaySamples = sample.DownsampleSamples(s.displaySamples, samples, s.maxDisplayPoints)
	s.displayDerivatives = sample.DownsampleDerivatives(s.displayDerivatives, derivatives, s.maxDisplayPoints)
	s.events = s.events[:0]
	for _, e := range events {
		e.StartIndex = int(float64(e.StartIndex) / step)
		e.EndIndex = min(int(float64(e.EndIndex)/step), len(s.displaySamples)-1)
		s.events = append(s.events, e)
	}
	if len(samples) > 0 {
		s.latest = samples[len(samples)-1]
		s.has = true
	}
	s.updateAutoScale(samples)

	s.mu.Unlock()

	s.Refresh()
}

// Clear drops all data.
func (s *ScopeWidget) Clear() {
	s.mu.Lock()
	s.displaySamples = s.displaySamples[:0]
	s.displayDerivatives = s.displayDerivatives[:0]
	s.events = s.events[:0]
	s.has = false
	s.updateAutoScale(nil)
	s.mu.Unlock()
	s.Refresh()
}

// updateAutoScale calculates the axis ranges from the displayed data. The
// rate trace gets its own range so it stays readable next to the load.
func (s *ScopeWidget) updateAutoScale(samples []sample.Sample) {
	window := time.Duration(s.cfg.Measurement.WindowSeconds * float64(time.Second))
	if len(s.displaySamples) == 0 {
		s.yMin, s.yMax = 0, 1
		s.rateMin, s.rateMax = -1, 1
		s.xMin = time.Now()
		s.xMax = s.xMin.Add(window)
		return
	}

	s.yMin, s.yMax = padRange(minMax(s.displaySamples, func(v sample.Sample) float64 { return v.Load }))
	s.rateMin, s.rateMax = padRange(minMax(s.displayDerivatives, func(v float64) float64 { return v }))

	s.xMin = samples[0].Timestamp
	s.xMax = samples[len(samples)-1].Timestamp
	if s.xMax.Sub(s.xMin) < window {
		s.xMax = s.xMin.Add(window)
	}
}

func minMax[T any](values []T, get func(T) float64) (lo, hi float64) {
	if len(values) == 0 {
		return 0, 0
	}
	lo, hi = get(values[0]), get(values[0])
	for _, v := range values[1:] {
		x := get(v)
		lo = min(lo, x)
		hi = max(hi, x)
	}
	return lo, hi
}

// padRange adds a 10% margin and widens an empty range.
func padRange(lo, hi float64) (float64, float64) {
	span := hi - lo
	if span == 0 {
		span = 1
	}
	margin := span * 0.1
	return lo - margin, hi + margin
}

// CreateRenderer creates the widget renderer.
func (s *ScopeWidget) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.RGBA{R: 20, G: 20, B: 20, A: 255}) // Dark background
	return &scopeRenderer{
		scope:   s,
		bg:      bg,
		objects: []fyne.CanvasObject{bg},
	}
}
