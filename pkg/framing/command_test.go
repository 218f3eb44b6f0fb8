package framing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		want    Command
		wantErr bool
	}{
		{name: "forward", frame: "F053\n", want: Command{Op: OpForward, Percent: 53}},
		{name: "reverse", frame: "R100\n", want: Command{Op: OpReverse, Percent: 100}},
		{name: "clamped", frame: "F250\n", want: Command{Op: OpForward, Percent: 100}},
		{name: "stop", frame: "S000\n", want: Command{Op: OpStop}},
		{name: "quit", frame: "Q000\n", want: Command{Op: OpQuit}},
		{name: "go ignores digits", frame: "Gxyz\n", want: Command{Op: OpGo}},
		{name: "spray on", frame: "M000\n", want: Command{Op: OpSprayOn}},
		{name: "spray off", frame: "N000\n", want: Command{Op: OpSprayOff}},
		{name: "terminator ignored", frame: "F010X", want: Command{Op: OpForward, Percent: 10}},
		{name: "unknown op", frame: "Z000\n", wantErr: true},
		{name: "bad digits", frame: "F0a3\n", wantErr: true},
		{name: "short", frame: "F0", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand([]byte(tt.frame))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedCommand)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCommandEncode(t *testing.T) {
	assert.Equal(t, "F053\n", string(Command{Op: OpForward, Percent: 53}.Encode(nil)))
	assert.Equal(t, "R100\n", string(Command{Op: OpReverse, Percent: 200}.Encode(nil)))
	assert.Equal(t, "G000\n", string(Command{Op: OpGo}.Encode(nil)))
	assert.Equal(t, "S000", Command{Op: OpStop}.String())

	for _, c := range []Command{{Op: OpForward, Percent: 7}, {Op: OpReverse, Percent: 99}, {Op: OpQuit}} {
		frame := c.Encode(nil)
		require.Len(t, frame, FrameLen)
		got, err := ParseCommand(frame)
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
}

func TestIsCommandChar(t *testing.T) {
	for _, b := range []byte(CommandSet) {
		assert.True(t, IsCommandChar(b), string(b))
	}
	for _, b := range []byte("0123456789\n\rXEqf") {
		assert.False(t, IsCommandChar(b), string(b))
	}
}

func TestOpString(t *testing.T) {
	assert.Equal(t, "forward", OpForward.String())
	assert.Equal(t, "spray-off", OpSprayOff.String())
	assert.Equal(t, "unknown", Op('Z').String())
}
