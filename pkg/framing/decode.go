package framing

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/itohio/goloadcell/pkg/dht"
)

// ErrMalformedFrame is returned by Decode for a line that does not match the layout.
var ErrMalformedFrame = errors.New("framing: malformed telemetry frame")

// Decode parses one telemetry line produced by an Encoder with the same
// layout. Surrounding whitespace and terminator bytes are ignored.
func Decode(line []byte, layout Layout) (Telemetry, error) {
	var t Telemetry
	line = bytes.Trim(line, " \t\r\n")
	line = bytes.TrimRight(line, string(layout.Terminator[:]))
	parts := bytes.Split(line, []byte{layout.Separator})
	if len(parts) != len(layout.Fields)+1 || len(parts[len(parts)-1]) != 0 {
		return t, fmt.Errorf("%w: expected %d fields, got %q", ErrMalformedFrame, len(layout.Fields), line)
	}

	humidityPlaceholder := false
	var temp, hum uint8
	tempNeg := false
	for i, f := range layout.Fields {
		p := parts[i]
		if len(p) != f.Width {
			return t, fmt.Errorf("%w: %s field %q has width %d, want %d", ErrMalformedFrame, f.Kind, p, len(p), f.Width)
		}
		switch f.Kind {
		case FieldLoad:
			if p[0] == errMarker && isPlaceholder(p[1:]) {
				t.LoadErr = true
				continue
			}
			v, err := parseLoad(p)
			if err != nil {
				return t, err
			}
			t.Load = v
		case FieldHumidity, FieldTemperature:
			if p[0] == errMarker && isPlaceholder(p[1:]) {
				t.HumidityErr = true
				humidityPlaceholder = true
				continue
			}
			if isPlaceholder(p) {
				humidityPlaceholder = true
				continue
			}
			if f.Kind == FieldHumidity {
				v, ok := parseUint(p)
				if !ok || v > 0xff {
					return t, fmt.Errorf("%w: humidity %q", ErrMalformedFrame, p)
				}
				hum = uint8(v)
				continue
			}
			if p[0] != '+' && p[0] != '-' {
				return t, fmt.Errorf("%w: temperature %q has no sign", ErrMalformedFrame, p)
			}
			v, ok := parseUint(p[1:])
			if !ok || v > 0x7f {
				return t, fmt.Errorf("%w: temperature %q", ErrMalformedFrame, p)
			}
			temp = uint8(v)
			tempNeg = p[0] == '-' && v != 0
		case FieldVoltage:
			if isPlaceholder(p) {
				continue
			}
			v, ok := parseUint(p)
			if !ok || v > 0xffff {
				return t, fmt.Errorf("%w: voltage %q", ErrMalformedFrame, p)
			}
			t.VoltageMV = uint16(v)
			t.HasVoltage = true
		}
	}

	hasHumidity := layout.Has(FieldHumidity) || layout.Has(FieldTemperature)
	if hasHumidity && !humidityPlaceholder {
		if tempNeg {
			temp |= 0x80
		}
		t.Humidity = dht.NewFrame(hum, 0, temp, 0)
		t.Fresh = true
	}
	return t, nil
}

func isPlaceholder(p []byte) bool {
	for _, c := range p {
		if c != placeholder {
			return false
		}
	}
	return true
}

func parseUint(p []byte) (uint32, bool) {
	if len(p) == 0 {
		return 0, false
	}
	var v uint32
	for _, c := range p {
		if c < '0' || c > '9' {
			return 0, false
		}
		v = v*10 + uint32(c-'0')
	}
	return v, true
}

// parseLoad accepts leading zeros, an optional minus sign placed anywhere
// inside the zero padding, and digits.
func parseLoad(p []byte) (int32, error) {
	neg := false
	i := 0
	for i < len(p) && p[i] == '0' {
		i++
	}
	if i < len(p) && p[i] == '-' {
		neg = true
		i++
	}
	digits := p[i:]
	if len(digits) == 0 && !neg {
		return 0, nil
	}
	v, ok := parseUint(digits)
	if !ok {
		return 0, fmt.Errorf("%w: load %q", ErrMalformedFrame, p)
	}
	if neg {
		return -int32(v), nil
	}
	return int32(v), nil
}
