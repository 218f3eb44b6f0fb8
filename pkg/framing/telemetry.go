package framing

import "github.com/itohio/goloadcell/pkg/dht"

// Telemetry is the content of one frame.
type Telemetry struct {
	Load    int32
	LoadErr bool // the load-cell read failed this cycle

	Humidity    dht.Frame
	Fresh       bool // Humidity was read since the previous frame
	HumidityErr bool // the last humidity read failed

	VoltageMV  uint16
	HasVoltage bool
}

const (
	placeholder = 'X'
	errMarker   = 'E'
)

// Encoder renders telemetry into a fixed buffer rebuilt in place on every
// call. It is not safe for concurrent use.
type Encoder struct {
	layout Layout
	buf    []byte
	starts []int
}

// NewEncoder validates layout and preallocates the frame buffer.
func NewEncoder(layout Layout) (*Encoder, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	e := &Encoder{
		layout: layout,
		buf:    make([]byte, layout.Width()),
		starts: make([]int, len(layout.Fields)),
	}
	pos := 0
	for i, f := range layout.Fields {
		e.starts[i] = pos
		pos += f.Width
		e.buf[pos] = layout.Separator
		pos++
	}
	e.buf[pos] = layout.Terminator[0]
	e.buf[pos+1] = layout.Terminator[1]
	return e, nil
}

// Layout returns the encoder's layout.
func (e *Encoder) Layout() Layout {
	return e.layout
}

// Encode renders t and returns the frame. The returned slice aliases the
// encoder's buffer and is valid until the next call.
func (e *Encoder) Encode(t Telemetry) []byte {
	markerDone := false
	for i, f := range e.layout.Fields {
		dst := e.buf[e.starts[i] : e.starts[i]+f.Width]
		switch f.Kind {
		case FieldLoad:
			if t.LoadErr {
				fill(dst, placeholder)
				dst[0] = errMarker
				continue
			}
			putLoad(dst, t.Load)
		case FieldHumidity, FieldTemperature:
			if !t.Fresh {
				fill(dst, placeholder)
				if t.HumidityErr && !markerDone {
					dst[0] = errMarker
				}
				markerDone = true
				continue
			}
			if f.Kind == FieldHumidity {
				putUint(dst, uint32(t.Humidity.HumidityInt))
				continue
			}
			dst[0] = '+'
			if t.Humidity.Negative() {
				dst[0] = '-'
			}
			putUint(dst[1:], uint32(t.Humidity.Celsius()))
		case FieldVoltage:
			if !t.HasVoltage {
				fill(dst, placeholder)
				continue
			}
			putUint(dst, uint32(t.VoltageMV))
		}
	}
	return e.buf
}

func fill(dst []byte, c byte) {
	for i := range dst {
		dst[i] = c
	}
}

// putUint writes v zero-padded to len(dst) digits, saturating at all nines.
func putUint(dst []byte, v uint32) {
	if v > maxDigits(len(dst)) {
		fill(dst, '9')
		return
	}
	for i := len(dst) - 1; i >= 0; i-- {
		dst[i] = byte('0' + v%10)
		v /= 10
	}
}

// putLoad writes v zero-padded with the minus sign immediately left of the
// first significant digit: 2450 -> 00002450, -52000 -> 00-52000.
func putLoad(dst []byte, v int32) {
	if v >= 0 {
		putUint(dst, uint32(v))
		return
	}
	mag := uint32(-int64(v))
	if limit := maxDigits(len(dst) - 1); mag > limit {
		mag = limit
	}
	putUint(dst, mag)
	first := 0
	for first < len(dst)-1 && dst[first] == '0' {
		first++
	}
	dst[first-1] = '-'
}

func maxDigits(n int) uint32 {
	if n >= 10 {
		return ^uint32(0)
	}
	m := uint32(1)
	for i := 0; i < n; i++ {
		m *= 10
	}
	return m - 1
}
