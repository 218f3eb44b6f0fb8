package main

import (
	"bufio"
	"context"
	"errors"
	"io"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"

	"github.com/itohio/goloadcell/pkg/hal"
)

var errNoRx = errors.New("uart: receive is interrupt driven")

// uartTransport adapts an OS serial port to hal.Transport. Transmitted bytes
// are buffered until Flush; received bytes are delivered by readLoop, so the
// polling half of the interface reports an empty FIFO.
type uartTransport struct {
	w *bufio.Writer
}

var _ hal.Transport = (*uartTransport)(nil)

func newUARTTransport(w io.Writer) *uartTransport {
	return &uartTransport{w: bufio.NewWriterSize(w, 64)}
}

func (t *uartTransport) WriteByte(c byte) error {
	return t.w.WriteByte(c)
}

func (t *uartTransport) ReadByte() (byte, error) {
	return 0, errNoRx
}

func (t *uartTransport) Buffered() int {
	return 0
}

// Flush sends everything written since the previous call.
func (t *uartTransport) Flush() error {
	return t.w.Flush()
}

// openUART opens the SBC's serial line 8N1.
func openUART(name string, baud int) (serial.Port, error) {
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, err
	}
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, err
	}
	return port, nil
}

// readLoop feeds every received byte to onByte, playing the receive
// interrupt, until ctx is done or r fails. r must return periodically (a
// read timeout) for cancellation to be noticed.
func readLoop(ctx context.Context, r io.Reader, onByte func(b byte), log logrus.FieldLogger) {
	buf := make([]byte, 64)
	for ctx.Err() == nil {
		n, err := r.Read(buf)
		for _, b := range buf[:n] {
			onByte(b)
		}
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, io.EOF) {
				log.WithError(err).Error("uart read failed")
			}
			return
		}
	}
}
