package meter

import (
	"math"
	"sync"
	"time"

	"github.com/itohio/goloadcell/pkg/config"
	"github.com/itohio/goloadcell/pkg/sample"
)

var _ LoadMeter = (*Meter)(nil)

// Event is a stretch of samples over which the load kept changing in one
// direction faster than the threshold: an item placed on or taken off the
// cell, or the actuator pushing against it.
type Event struct {
	StartIndex int       // Start sample index in buffer
	EndIndex   int       // End sample index in buffer (updated as the event continues)
	StartTime  time.Time // Start timestamp
	EndTime    time.Time // End timestamp (updated as the event continues)
	Direction  int       // +1 loading, -1 unloading
	Delta      float64   // Load change from start to end
	PeakRate   float64   // Largest |load rate| seen during the event (units/s)
	Active     bool      // Still growing
}

// Duration of the event.
func (e Event) Duration() time.Duration {
	return e.EndTime.Sub(e.StartTime)
}

// UpdateFunc receives the current window. The slices are copies.
type UpdateFunc func(samples []sample.Sample, derivatives []float64, events []Event)

// LoadMeter processes samples, maintains buffers, and detects load events.
type LoadMeter interface {
	ProcessSamples(input <-chan sample.Sample)
	Samples() []sample.Sample // Current samples buffer (FIFO, ordered first to last)
	Derivatives() []float64   // Load rate; n-1 derivatives for n samples
	Events() []Event          // Detected events within window
	OnUpdate(UpdateFunc)      // Register callback for updates
}

// Meter implements LoadMeter.
//
// Samples are kept for a time window. derivative[i] is the load rate between
// sample[i] and sample[i+1], so n samples always have n-1 derivatives.
type Meter struct {
	samples     []sample.Sample
	derivatives []float64
	events      []Event
	current     Event
	open        bool

	mu sync.RWMutex

	callbacks []UpdateFunc
	cbMu      sync.RWMutex

	windowDuration   time.Duration
	threshold        float64
	minEventDuration time.Duration

	// Set when the input channel closes; suppresses callbacks.
	shutdown bool
}

// New creates a new Meter from the measurement section of cfg.
func New(cfg *config.Config) *Meter {
	return &Meter{
		windowDuration:   time.Duration(cfg.Measurement.WindowSeconds * float64(time.Second)),
		threshold:        math.Abs(cfg.Measurement.EventThreshold),
		minEventDuration: time.Duration(cfg.Measurement.MinEventDuration * float64(time.Second)),
	}
}

// ProcessSamples consumes input until it closes, then stops notifying.
func (m *Meter) ProcessSamples(input <-chan sample.Sample) {
	for s := range input {
		m.processSample(s)
	}
	m.mu.Lock()
	m.shutdown = true
	m.mu.Unlock()
}

func (m *Meter) processSample(s sample.Sample) {
	m.mu.Lock()

	if n := len(m.samples); n > 0 {
		prev := m.samples[n-1]
		var d float64
		if dt := s.Timestamp.Sub(prev.Timestamp).Seconds(); dt > 0 {
			d = (s.Load - prev.Load) / dt
		}
		m.derivatives = append(m.derivatives, d)
	}
	m.samples = append(m.samples, s)
	m.trim(s.Timestamp.Add(-m.windowDuration))
	m.updateEvents()

	shouldNotify := !m.shutdown
	m.mu.Unlock()

	if shouldNotify {
		m.notifyCallbacks()
	}
}

// trim drops samples at or before cutoff together with their derivatives and
// shifts event indices.
func (m *Meter) trim(cutoff time.Time) {
	k := 0
	for k < len(m.samples)-1 && !m.samples[k].Timestamp.After(cutoff) {
		k++
	}
	if k == 0 {
		return
	}
	m.samples = append(m.samples[:0], m.samples[k:]...)
	m.derivatives = append(m.derivatives[:0], m.derivatives[min(k, len(m.derivatives)):]...)

	kept := m.events[:0]
	for _, e := range m.events {
		if e.shift(k, m.samples) {
			kept = append(kept, e)
		}
	}
	m.events = kept
	if m.open && !m.current.shift(k, m.samples) {
		m.open = false
	}
}

// shift moves e's indices back by k. It reports false when the event left
// the window entirely.
func (e *Event) shift(k int, samples []sample.Sample) bool {
	e.StartIndex -= k
	e.EndIndex -= k
	if e.EndIndex < 0 {
		return false
	}
	if e.StartIndex < 0 {
		e.StartIndex = 0
		e.StartTime = samples[0].Timestamp
	}
	return true
}

func (m *Meter) updateEvents() {
	if len(m.derivatives) == 0 {
		return
	}
	last := len(m.samples) - 1
	d := m.derivatives[len(m.derivatives)-1]
	dir := 0
	switch {
	case d > m.threshold:
		dir = 1
	case d < -m.threshold:
		dir = -1
	}

	if m.open && dir == m.current.Direction {
		m.current.EndIndex = last
		m.current.EndTime = m.samples[last].Timestamp
		m.current.Delta = m.samples[last].Load - m.samples[m.current.StartIndex].Load
		m.current.PeakRate = math.Max(m.current.PeakRate, math.Abs(d))
		return
	}

	if m.open {
		m.open = false
		m.current.Active = false
		if m.current.Duration() >= m.minEventDuration {
			m.events = append(m.events, m.current)
		}
	}
	if dir != 0 {
		m.open = true
		m.current = Event{
			StartIndex: last - 1,
			EndIndex:   last,
			StartTime:  m.samples[last-1].Timestamp,
			EndTime:    m.samples[last].Timestamp,
			Direction:  dir,
			Delta:      m.samples[last].Load - m.samples[last-1].Load,
			PeakRate:   math.Abs(d),
			Active:     true,
		}
	}
}

// eventsLocked returns closed events plus the open one once it is long enough.
func (m *Meter) eventsLocked() []Event {
	result := make([]Event, len(m.events), len(m.events)+1)
	copy(result, m.events)
	if m.open && m.current.Duration() >= m.minEventDuration {
		result = append(result, m.current)
	}
	return result
}

// Samples returns a copy of the current samples buffer.
func (m *Meter) Samples() []sample.Sample {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]sample.Sample, len(m.samples))
	copy(result, m.samples)
	return result
}

// Derivatives returns a copy of the current derivatives buffer.
func (m *Meter) Derivatives() []float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]float64, len(m.derivatives))
	copy(result, m.derivatives)
	return result
}

// Events returns a copy of the detected events.
func (m *Meter) Events() []Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.eventsLocked()
}

// Latest returns the newest sample.
func (m *Meter) Latest() (sample.Sample, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.samples) == 0 {
		return sample.Sample{}, false
	}
	return m.samples[len(m.samples)-1], true
}

// OnUpdate registers a callback invoked after every processed sample.
// The callback should copy data quickly and return as fast as possible.
func (m *Meter) OnUpdate(callback UpdateFunc) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.callbacks = append(m.callbacks, callback)
}

// ResetShutdown allows callbacks again. Call it before starting a new
// measurement chain.
func (m *Meter) ResetShutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdown = false
}

// Reset clears all buffers.
func (m *Meter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = m.samples[:0]
	m.derivatives = m.derivatives[:0]
	m.events = m.events[:0]
	m.open = false
}

func (m *Meter) notifyCallbacks() {
	m.mu.RLock()
	samplesCopy := make([]sample.Sample, len(m.samples))
	copy(samplesCopy, m.samples)
	derivativesCopy := make([]float64, len(m.derivatives))
	copy(derivativesCopy, m.derivatives)
	eventsCopy := m.eventsLocked()
	m.mu.RUnlock()

	m.cbMu.RLock()
	callbacks := make([]UpdateFunc, len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.cbMu.RUnlock()

	for _, cb := range callbacks {
		if cb != nil {
			cb(samplesCopy, derivativesCopy, eventsCopy)
		}
	}
}
