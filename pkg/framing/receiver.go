package framing

import "sync/atomic"

// Receiver assembles command frames from single bytes. Feed is called by the
// byte producer (an interrupt handler or reader goroutine); Take is called by
// the main loop. A completed frame is handed over through a single slot guarded
// by an atomic flag, so the two sides never touch the same bytes concurrently.
type Receiver struct {
	// producer-owned
	buf [FrameLen]byte
	idx int

	slot     [FrameLen]byte
	pending  atomic.Bool
	overruns atomic.Uint32

	// consumer-owned
	out [FrameLen]byte
}

// NewReceiver returns an empty receiver.
func NewReceiver() *Receiver {
	return &Receiver{}
}

// Feed stores b and reports whether it completed a frame. Any command
// character restarts the frame. A frame that completes while the previous one
// is still pending is dropped and counted as an overrun.
func (r *Receiver) Feed(b byte) bool {
	if IsCommandChar(b) {
		r.idx = 0
	}
	r.buf[r.idx] = b
	r.idx++
	if r.idx < FrameLen {
		return false
	}
	r.idx = 0
	if r.pending.Load() {
		r.overruns.Add(1)
		return true
	}
	r.slot = r.buf
	r.pending.Store(true)
	return true
}

// Index is the producer's current write position.
func (r *Receiver) Index() int {
	return r.idx
}

// Pending reports whether a completed frame waits to be taken.
func (r *Receiver) Pending() bool {
	return r.pending.Load()
}

// Take moves the pending frame to consumer-owned storage and frees the slot.
// The returned slice is valid until the next Take.
func (r *Receiver) Take() ([]byte, bool) {
	if !r.pending.Load() {
		return nil, false
	}
	r.out = r.slot
	r.pending.Store(false)
	return r.out[:], true
}

// Overruns is the number of frames dropped because the slot was full.
func (r *Receiver) Overruns() uint32 {
	return r.overruns.Load()
}
