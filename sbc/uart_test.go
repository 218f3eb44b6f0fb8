package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/goloadcell/pkg/framing"
	"github.com/itohio/goloadcell/pkg/hal"
)

func TestUARTTransport(t *testing.T) {
	var out bytes.Buffer
	tx := newUARTTransport(&out)

	require.NoError(t, hal.WriteAll(tx, []byte("00001234,XX,XXX,\n\r")))
	assert.Zero(t, out.Len(), "bytes leave on Flush")
	require.NoError(t, tx.Flush())
	assert.Equal(t, "00001234,XX,XXX,\n\r", out.String())

	assert.Zero(t, tx.Buffered())
	_, err := tx.ReadByte()
	assert.ErrorIs(t, err, errNoRx)
}

func TestReadLoop(t *testing.T) {
	logger, hook := test.NewNullLogger()
	rx := framing.NewReceiver()

	// One byte per Read, then EOF.
	r := iotest.OneByteReader(strings.NewReader("G000\n"))
	readLoop(context.Background(), r, func(b byte) { rx.Feed(b) }, logger)

	frame, ok := rx.Take()
	require.True(t, ok)
	cmd, err := framing.ParseCommand(frame)
	require.NoError(t, err)
	assert.Equal(t, framing.OpGo, cmd.Op)
	assert.Empty(t, hook.AllEntries(), "EOF is not an error")
}

func TestReadLoopError(t *testing.T) {
	logger, hook := test.NewNullLogger()
	var got []byte
	readLoop(context.Background(), iotest.ErrReader(errors.New("unplugged")), func(b byte) {
		got = append(got, b)
	}, logger)

	assert.Empty(t, got)
	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, "uart read failed", hook.LastEntry().Message)
}

func TestReadLoopCancelled(t *testing.T) {
	logger, hook := test.NewNullLogger()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	readLoop(ctx, iotest.ErrReader(errors.New("closed")), func(byte) {}, logger)
	assert.Empty(t, hook.AllEntries())
}
