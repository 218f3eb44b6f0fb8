// Package framing implements the instrument's serial protocol: fixed-width
// ASCII telemetry frames (device to host) and short fixed-length command
// frames (host to device).
//
// A telemetry frame is a sequence of fields, each followed by a separator, and
// a two-byte terminator:
//
//	00-52000,45,+23,\n\r
//	^load    ^rh ^temp
//
// Field positions never move: a stale humidity reading is replaced by X
// placeholders and a failed one by an E marker in the first placeholder
// position.
package framing

import (
	"errors"
	"fmt"
)

// ErrLayout is returned for a layout the encoder cannot render.
var ErrLayout = errors.New("framing: invalid layout")

// FieldKind identifies what a telemetry field carries.
type FieldKind uint8

const (
	FieldLoad FieldKind = iota + 1
	FieldHumidity
	FieldTemperature
	FieldVoltage
)

func (k FieldKind) String() string {
	switch k {
	case FieldLoad:
		return "load"
	case FieldHumidity:
		return "humidity"
	case FieldTemperature:
		return "temperature"
	case FieldVoltage:
		return "voltage"
	}
	return "unknown"
}

// minWidth is the narrowest field that can hold every value of the kind.
func (k FieldKind) minWidth() int {
	switch k {
	case FieldLoad:
		return 8 // "-8388608"
	case FieldHumidity:
		return 2
	case FieldTemperature:
		return 3 // sign column + two digits
	case FieldVoltage:
		return 1
	}
	return 0
}

// Field is one fixed-width column of a telemetry frame.
type Field struct {
	Kind  FieldKind
	Width int
}

// Layout describes a telemetry frame.
type Layout struct {
	Fields     []Field
	Separator  byte
	Terminator [2]byte
}

// DefaultLayout is the two-sensor frame: load, humidity, temperature.
var DefaultLayout = Layout{
	Fields: []Field{
		{Kind: FieldLoad, Width: 8},
		{Kind: FieldHumidity, Width: 2},
		{Kind: FieldTemperature, Width: 3},
	},
	Separator:  ',',
	Terminator: [2]byte{'\n', '\r'},
}

// VoltageLayout extends DefaultLayout with battery millivolts.
var VoltageLayout = Layout{
	Fields: []Field{
		{Kind: FieldLoad, Width: 8},
		{Kind: FieldHumidity, Width: 2},
		{Kind: FieldTemperature, Width: 3},
		{Kind: FieldVoltage, Width: 4},
	},
	Separator:  ',',
	Terminator: [2]byte{'\n', '\r'},
}

// LayoutByName returns a predefined layout: "default" or "voltage".
func LayoutByName(name string) (Layout, error) {
	switch name {
	case "", "default":
		return DefaultLayout, nil
	case "voltage":
		return VoltageLayout, nil
	}
	return Layout{}, fmt.Errorf("%w: unknown layout %q", ErrLayout, name)
}

// Width returns the total frame length including separators and terminator.
func (l Layout) Width() int {
	n := len(l.Terminator)
	for _, f := range l.Fields {
		n += f.Width + 1
	}
	return n
}

// Has reports whether the layout contains a field of kind k.
func (l Layout) Has(k FieldKind) bool {
	for _, f := range l.Fields {
		if f.Kind == k {
			return true
		}
	}
	return false
}

// Validate checks that every field is known, wide enough and appears once.
func (l Layout) Validate() error {
	if len(l.Fields) == 0 {
		return fmt.Errorf("%w: no fields", ErrLayout)
	}
	seen := map[FieldKind]bool{}
	for _, f := range l.Fields {
		min := f.Kind.minWidth()
		if min == 0 {
			return fmt.Errorf("%w: unknown field kind %d", ErrLayout, f.Kind)
		}
		if f.Width < min {
			return fmt.Errorf("%w: %s field needs width >= %d, got %d", ErrLayout, f.Kind, min, f.Width)
		}
		if seen[f.Kind] {
			return fmt.Errorf("%w: duplicate %s field", ErrLayout, f.Kind)
		}
		seen[f.Kind] = true
	}
	return nil
}
