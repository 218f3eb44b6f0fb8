package sample

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(out <-chan Sample) []Sample {
	var samples []Sample
	for s := range out {
		samples = append(samples, s)
	}
	return samples
}

func TestNewAveragingConverter_MovingAverage(t *testing.T) {
	in := make(chan Sample, 10)
	out := NewAveragingConverter(3, 10)(in)

	for _, s := range ramp(5) {
		in <- s
	}
	close(in)

	got := drain(out)
	require.Len(t, got, 5)
	want := []float64{0, 0.5, 1, 2, 3}
	for i, s := range got {
		assert.InDelta(t, want[i], s.Load, 1e-9, "sample %d", i)
	}
}

func TestNewAveragingConverter_KeepsTimestampAndClimate(t *testing.T) {
	in := make(chan Sample, 2)
	out := NewAveragingConverter(4, 2)(in)

	now := time.Now()
	in <- Sample{Timestamp: now, Load: 10, Humidity: 40, HasClimate: true}
	in <- Sample{Timestamp: now.Add(time.Second), Load: 20, Humidity: 41, HasClimate: true, Fresh: true}
	close(in)

	got := drain(out)
	require.Len(t, got, 2)
	assert.Equal(t, now.Add(time.Second), got[1].Timestamp)
	assert.Equal(t, 41.0, got[1].Humidity)
	assert.True(t, got[1].Fresh)
	assert.Equal(t, 15.0, got[1].Load)
}

func TestNewAveragingConverter_Voltage(t *testing.T) {
	in := make(chan Sample, 3)
	out := NewAveragingConverter(3, 3)(in)

	in <- Sample{Voltage: 3.6, HasVoltage: true}
	in <- Sample{}
	in <- Sample{Voltage: 3.8, HasVoltage: true}
	close(in)

	got := drain(out)
	require.Len(t, got, 3)
	assert.False(t, got[1].HasVoltage)
	assert.Zero(t, got[1].Voltage)
	assert.InDelta(t, 3.7, got[2].Voltage, 1e-9)
}

func TestNewAveragingConverter_EmptyChannel(t *testing.T) {
	in := make(chan Sample)
	out := NewAveragingConverter(3, 10)(in)
	close(in)

	_, ok := <-out
	assert.False(t, ok, "Output channel should be closed")
}

func TestNewAveragingConverter_InvalidWindowSize(t *testing.T) {
	in := make(chan Sample, 3)
	out := NewAveragingConverter(0, 0)(in)

	for _, s := range ramp(3) {
		in <- s
	}
	close(in)

	got := drain(out)
	require.Len(t, got, 3)
	for i, s := range got {
		assert.Equal(t, float64(i), s.Load, "window of one passes samples through")
	}
}
