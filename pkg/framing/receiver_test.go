package framing

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feed(r *Receiver, s string) (completed int) {
	for i := 0; i < len(s); i++ {
		if r.Feed(s[i]) {
			completed++
		}
	}
	return completed
}

func TestReceiverCompletesAtFrameLen(t *testing.T) {
	r := NewReceiver()
	for i, b := range []byte("F053") {
		assert.False(t, r.Feed(b))
		assert.Equal(t, i+1, r.Index())
	}
	assert.False(t, r.Pending())
	assert.True(t, r.Feed('\n'))
	assert.Equal(t, 0, r.Index())

	frame, ok := r.Take()
	require.True(t, ok)
	assert.Equal(t, "F053\n", string(frame))
	assert.False(t, r.Pending())

	_, ok = r.Take()
	assert.False(t, ok)
}

func TestReceiverResetsOnCommandChar(t *testing.T) {
	r := NewReceiver()
	assert.Equal(t, 0, feed(r, "F0"))
	assert.Equal(t, 2, r.Index())

	// A command character mid-frame restarts it.
	assert.Equal(t, 1, feed(r, "R025\n"))
	frame, ok := r.Take()
	require.True(t, ok)
	assert.Equal(t, "R025\n", string(frame))
}

func TestReceiverResynchronizesAfterNoise(t *testing.T) {
	r := NewReceiver()
	assert.Equal(t, 0, feed(r, "12\r"))
	assert.Equal(t, 3, r.Index())
	assert.Equal(t, 1, feed(r, "S000\n"))
	frame, ok := r.Take()
	require.True(t, ok)
	assert.Equal(t, "S000\n", string(frame))
}

func TestReceiverNonCommandBytesComplete(t *testing.T) {
	r := NewReceiver()
	// Five bytes with no command character still raise end-of-frame; the
	// parser rejects them.
	assert.Equal(t, 1, feed(r, "12345"))
	frame, ok := r.Take()
	require.True(t, ok)
	_, err := ParseCommand(frame)
	assert.ErrorIs(t, err, ErrMalformedCommand)
}

func TestReceiverOverrun(t *testing.T) {
	r := NewReceiver()
	assert.Equal(t, 3, feed(r, "F010\nF020\nF030\n"))
	assert.Equal(t, uint32(2), r.Overruns())

	frame, ok := r.Take()
	require.True(t, ok)
	assert.Equal(t, "F010\n", string(frame))

	assert.Equal(t, 1, feed(r, "F040\n"))
	frame, ok = r.Take()
	require.True(t, ok)
	assert.Equal(t, "F040\n", string(frame))
	assert.Equal(t, uint32(2), r.Overruns())
}

func TestReceiverConcurrentHandOff(t *testing.T) {
	r := NewReceiver()
	const frames = 500

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < frames; i++ {
			for r.Pending() {
			}
			feed(r, Command{Op: OpForward, Percent: uint8(i % 101)}.String()+"\n")
		}
	}()

	got := 0
	for got < frames {
		frame, ok := r.Take()
		if !ok {
			continue
		}
		c, err := ParseCommand(frame)
		require.NoError(t, err)
		assert.Equal(t, uint8(got%101), c.Percent)
		got++
	}
	wg.Wait()
	assert.Zero(t, r.Overruns())
}
