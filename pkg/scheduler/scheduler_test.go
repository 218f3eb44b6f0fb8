package scheduler

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/goloadcell/pkg/dht"
)

type fakeSensor struct {
	starts  int
	reads   int
	awake   bool
	resting bool
	frame   dht.Frame
	err     error

	readBeforeAwake bool
}

func (f *fakeSensor) Start() {
	f.starts++
	f.awake = false
	f.resting = false
}

func (f *fakeSensor) Awake() bool { return f.awake }

func (f *fakeSensor) Read() (dht.Frame, error) {
	if !f.awake {
		f.readBeforeAwake = true
	}
	f.reads++
	if f.err != nil {
		return dht.Frame{}, f.err
	}
	f.resting = true
	return f.frame, nil
}

func (f *fakeSensor) Resting() bool { return f.resting }

func TestStateTransitions(t *testing.T) {
	sensor := &fakeSensor{frame: dht.NewFrame(40, 0, 22, 0)}
	s := New(sensor, Config{CadenceTicks: 1000, RestTicks: 3})
	assert.Equal(t, AwaitingWake, s.State())

	ev := s.Poll()
	assert.Equal(t, WaitingWake, ev.State)
	assert.Equal(t, 1, sensor.starts)

	// Stays put until the alarm fires.
	for i := 0; i < 5; i++ {
		ev = s.Poll()
		assert.Equal(t, WaitingWake, ev.State)
	}
	assert.Zero(t, sensor.reads)

	sensor.awake = true
	ev = s.Poll()
	assert.Equal(t, Sampling, ev.State)
	assert.False(t, ev.HasReading)

	ev = s.Poll()
	assert.Equal(t, WaitingRest, ev.State)
	require.True(t, ev.HasReading)
	assert.NoError(t, ev.Reading.Err)
	assert.Equal(t, sensor.frame, ev.Reading.Frame)
	assert.True(t, ev.Reading.Resting)

	// Rest is counted in ticks, not polls.
	for i := 0; i < 10; i++ {
		assert.Equal(t, WaitingRest, s.Poll().State)
	}
	s.OnTick()
	s.OnTick()
	assert.Equal(t, WaitingRest, s.Poll().State)
	s.OnTick()
	assert.Equal(t, AwaitingWake, s.Poll().State)

	assert.Equal(t, WaitingWake, s.Poll().State)
	assert.Equal(t, 2, sensor.starts)
	assert.False(t, sensor.readBeforeAwake)
}

func TestReadErrorStillRests(t *testing.T) {
	errBoom := errors.New("boom")
	sensor := &fakeSensor{err: errBoom}
	s := New(sensor, Config{CadenceTicks: 1000, RestTicks: 1})

	s.Poll()
	sensor.awake = true
	s.Poll()
	ev := s.Poll()
	require.True(t, ev.HasReading)
	assert.ErrorIs(t, ev.Reading.Err, errBoom)
	assert.False(t, ev.Reading.Resting)
	assert.Equal(t, WaitingRest, ev.State)

	s.OnTick()
	assert.Equal(t, AwaitingWake, s.Poll().State)
}

func TestSampleDue(t *testing.T) {
	s := New(&fakeSensor{}, Config{CadenceTicks: 4, RestTicks: 1})
	due := 0
	for tick := 0; tick < 20; tick++ {
		s.OnTick()
		if s.Poll().SampleDue {
			due++
		}
	}
	assert.Equal(t, 5, due)
}

func TestCadenceResetsToZero(t *testing.T) {
	c := NewCadence(3)
	c.Tick()
	c.Tick()
	assert.False(t, c.Due())
	c.Tick()
	c.Tick()
	c.Tick()
	assert.True(t, c.Due())
	assert.Zero(t, c.Pending())
	assert.False(t, c.Due())
}

func TestCadenceConcurrentTicks(t *testing.T) {
	c := NewCadence(10)
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				c.Tick()
			}
		}()
	}
	due := 0
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for {
		if c.Due() {
			due++
		}
		select {
		case <-done:
			if c.Due() {
				due++
			}
			assert.LessOrEqual(t, due, 400)
			assert.Greater(t, due, 0)
			assert.Less(t, c.Pending(), uint32(10))
			return
		default:
		}
	}
}

func TestDefaults(t *testing.T) {
	s := New(&fakeSensor{}, Config{})
	assert.Equal(t, DefaultConfig(), s.Config())
	assert.Equal(t, uint32(1), NewCadence(0).threshold)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "awaiting-wake", AwaitingWake.String())
	assert.Equal(t, "waiting-wake", WaitingWake.String())
	assert.Equal(t, "sampling", Sampling.String())
	assert.Equal(t, "waiting-rest", WaitingRest.String())
	assert.Equal(t, "unknown", State(9).String())
}
