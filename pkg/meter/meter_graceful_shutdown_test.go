package meter

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/itohio/goloadcell/pkg/config"
	"github.com/itohio/goloadcell/pkg/sample"
)

func shutdownConfig() *config.Config {
	return &config.Config{
		Measurement: config.MeasurementConfig{
			WindowSeconds:    10.0,
			EventThreshold:   50,
			MinEventDuration: 1.0,
		},
	}
}

// runChain feeds loads through ProcessSamples and waits for it to return.
func runChain(t *testing.T, m *Meter, loads ...float64) {
	t.Helper()
	input := make(chan sample.Sample, len(loads))
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.ProcessSamples(input)
	}()

	now := time.Now()
	for i, l := range loads {
		input <- sample.Sample{Timestamp: now.Add(time.Duration(i) * 100 * time.Millisecond), Load: l}
	}
	close(input)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ProcessSamples did not finish within timeout")
	}
}

// TestMeter_GracefulShutdown_NoCallbacksAfterClose tests that meter stops sending
// callbacks after the input channel is closed.
func TestMeter_GracefulShutdown_NoCallbacksAfterClose(t *testing.T) {
	m := New(shutdownConfig())

	var mu sync.Mutex
	callbackCount := 0
	m.OnUpdate(func([]sample.Sample, []float64, []Event) {
		mu.Lock()
		callbackCount++
		mu.Unlock()
	})

	runChain(t, m, 1, 2, 3)
	mu.Lock()
	initialCount := callbackCount
	mu.Unlock()
	assert.Equal(t, 3, initialCount)

	// Late sample after shutdown must not notify.
	m.processSample(sample.Sample{Timestamp: time.Now().Add(time.Hour), Load: 4})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, initialCount, callbackCount, "No callbacks should be sent after channel closes")
}

// TestMeter_ResetShutdown tests that ResetShutdown allows callbacks again.
func TestMeter_ResetShutdown(t *testing.T) {
	m := New(shutdownConfig())

	var mu sync.Mutex
	callbackCount := 0
	m.OnUpdate(func([]sample.Sample, []float64, []Event) {
		mu.Lock()
		callbackCount++
		mu.Unlock()
	})

	runChain(t, m, 0.1, 0.2)
	mu.Lock()
	count1 := callbackCount
	mu.Unlock()

	m.ResetShutdown()
	m.Reset()
	runChain(t, m, 0.3, 0.4)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, count1+2, callbackCount, "Callbacks should resume after ResetShutdown")
}
