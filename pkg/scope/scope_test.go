package scope

import (
	"testing"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/goloadcell/pkg/config"
	"github.com/itohio/goloadcell/pkg/meter"
	"github.com/itohio/goloadcell/pkg/sample"
)

func ramp(n int, start time.Time) ([]sample.Sample, []float64) {
	samples := make([]sample.Sample, n)
	for i := range samples {
		samples[i] = sample.Sample{
			Timestamp: start.Add(time.Duration(i) * 100 * time.Millisecond),
			Load:      float64(i),
		}
	}
	derivatives := make([]float64, n-1)
	for i := range derivatives {
		derivatives[i] = 10
	}
	return samples, derivatives
}

func TestUpdateDataAutoScale(t *testing.T) {
	test.NewTempApp(t)
	s := New(config.Default())

	start := time.Unix(100, 0)
	samples, derivatives := ramp(11, start)
	s.UpdateData(samples, derivatives, nil)

	s.mu.RLock()
	defer s.mu.RUnlock()
	assert.InDelta(t, -1, s.yMin, 1e-9)
	assert.InDelta(t, 11, s.yMax, 1e-9)
	assert.InDelta(t, 9.9, s.rateMin, 1e-9)
	assert.InDelta(t, 10.1, s.rateMax, 1e-9)
	assert.Equal(t, start, s.xMin)
	assert.Equal(t, start.Add(30*time.Second), s.xMax, "short traces still span the window")
	assert.True(t, s.has)
	assert.Equal(t, 10.0, s.latest.Load)
}

func TestUpdateDataRemapsEvents(t *testing.T) {
	test.NewTempApp(t)
	s := New(config.Default())

	samples, derivatives := ramp(3000, time.Unix(100, 0))
	events := []meter.Event{{StartIndex: 300, EndIndex: 2999, Direction: 1}}
	s.UpdateData(samples, derivatives, events)

	s.mu.RLock()
	defer s.mu.RUnlock()
	require.Len(t, s.displaySamples, s.maxDisplayPoints)
	require.Len(t, s.events, 1)
	assert.Equal(t, 100, s.events[0].StartIndex)
	assert.Equal(t, s.maxDisplayPoints-1, s.events[0].EndIndex)
}

func TestClear(t *testing.T) {
	test.NewTempApp(t)
	s := New(config.Default())

	samples, derivatives := ramp(5, time.Unix(100, 0))
	s.UpdateData(samples, derivatives, []meter.Event{{EndIndex: 4}})
	s.Clear()

	s.mu.RLock()
	defer s.mu.RUnlock()
	assert.Empty(t, s.displaySamples)
	assert.Empty(t, s.events)
	assert.False(t, s.has)
	assert.Equal(t, 0.0, s.yMin)
	assert.Equal(t, 1.0, s.yMax)
}

func TestRenderer(t *testing.T) {
	test.NewTempApp(t)
	s := New(config.Default())
	w := test.NewWindow(s)
	defer w.Close()
	w.Resize(fyne.NewSize(800, 600))

	r := test.WidgetRenderer(s)
	empty := len(r.Objects())

	samples, derivatives := ramp(20, time.Unix(100, 0))
	s.UpdateData(samples, derivatives, []meter.Event{{
		StartIndex: 5, EndIndex: 10,
		StartTime: samples[5].Timestamp, EndTime: samples[10].Timestamp,
		Direction: 1, Delta: 5,
	}})
	assert.Greater(t, len(r.Objects()), empty)
	assert.Equal(t, fyne.NewSize(400, 300), r.MinSize())
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "1250 g", formatValue(1250.4, "g"))
	assert.Equal(t, "-12.5 g", formatValue(-12.46, "g"))
	assert.Equal(t, "0.125 kg", formatValue(0.125, "kg"))
	assert.Equal(t, "0.50s", formatTime(500*time.Millisecond))
	assert.Equal(t, "3.0s", formatTime(3*time.Second))
}
