// Package device is the host side of the instrument link: it receives
// telemetry frames, decodes them into Readings and sends commands.
package device

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"github.com/itohio/goloadcell/pkg/framing"
)

const (
	// DefaultBaudRate is the instrument UART rate.
	DefaultBaudRate = 9600
	// DefaultBufferSize is the default size for the samples channel buffer.
	DefaultBufferSize = 100
)

var (
	ErrConnected    = errors.New("already connected")
	ErrNotConnected = errors.New("not connected")
)

// Reading is one decoded telemetry frame stamped with its arrival time.
type Reading struct {
	Timestamp time.Time
	framing.Telemetry
}

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Serial represents a connection to the instrument over a serial port.
type Serial struct {
	port     string
	baudRate int
	bufSize  int
	layout   framing.Layout
	log      logrus.FieldLogger

	conn      serial.Port
	samples   chan Reading
	done      chan struct{}
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
}

// New creates a new Serial instance with the specified port, baud rate,
// buffer size and telemetry layout.
func New(port string, baudRate int, bufSize int, layout framing.Layout) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if bufSize == 0 {
		bufSize = DefaultBufferSize
	}
	if len(layout.Fields) == 0 {
		layout = framing.DefaultLayout
	}

	return &Serial{
		port:     port,
		baudRate: baudRate,
		bufSize:  bufSize,
		layout:   layout,
		log:      logrus.WithField("port", port),
		samples:  make(chan Reading, bufSize),
	}
}

// Ports returns a list of available serial ports. USB ports are described by
// their product name and VID:PID.
func Ports() ([]Port, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		names, err := serial.GetPortsList()
		if err != nil {
			return nil, errors.Wrap(err, "failed to list serial ports")
		}
		result := make([]Port, 0, len(names))
		for _, name := range names {
			result = append(result, Port{Name: name, Description: name})
		}
		return result, nil
	}

	result := make([]Port, 0, len(details))
	for _, d := range details {
		desc := d.Name
		if d.IsUSB {
			desc = fmt.Sprintf("%s %s:%s", d.Product, d.VID, d.PID)
		}
		result = append(result, Port{Name: d.Name, Description: desc})
	}
	return result, nil
}

// Connect opens the serial port and starts reading frames.
func (d *Serial) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return ErrConnected
	}

	port, err := serial.Open(d.port, &serial.Mode{
		BaudRate: d.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return errors.Wrapf(err, "failed to open serial port %s", d.port)
	}
	// Drop whatever arrived before we were listening; the first line would be partial.
	if err := port.ResetInputBuffer(); err != nil {
		d.log.WithError(err).Debug("reset input buffer")
	}

	d.conn = port
	d.connected = true
	d.ctx, d.cancel = context.WithCancel(context.Background())
	d.samples = make(chan Reading, d.bufSize)
	d.done = make(chan struct{})

	go func() {
		defer close(d.done)
		defer close(d.samples)
		readFrames(d.ctx, port, d.layout, d.samples, d.log)
	}()

	d.log.WithField("baud", d.baudRate).Info("connected")
	return nil
}

// Close closes the connection, waits for the reader to stop and closes the
// samples channel.
func (d *Serial) Close() error {
	d.mu.Lock()
	if !d.connected {
		d.mu.Unlock()
		return nil
	}
	d.cancel()
	var err error
	if d.conn != nil {
		if err = d.conn.Close(); err != nil {
			d.log.WithError(err).Warn("error closing serial port")
		}
		d.conn = nil
	}
	d.connected = false
	done := d.done
	d.mu.Unlock()

	<-done
	d.log.Info("disconnected")
	return errors.Wrap(err, "close serial port")
}

// Samples returns the channel for reading samples. It is closed by Close.
func (d *Serial) Samples() <-chan Reading {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.samples
}

// Send writes one command frame.
func (d *Serial) Send(cmd framing.Command) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.connected {
		return ErrNotConnected
	}
	if _, err := d.conn.Write(cmd.Encode(nil)); err != nil {
		return errors.Wrapf(err, "failed to send %s", cmd)
	}
	d.log.WithField("command", cmd.String()).Debug("sent")
	return nil
}

// IsConnected returns whether the device is currently connected.
func (d *Serial) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// readFrames decodes newline separated frames from r until it fails or ctx
// is done. Samples are dropped when out is full.
func readFrames(ctx context.Context, r io.Reader, layout framing.Layout, out chan<- Reading, log logrus.FieldLogger) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		t, err := framing.Decode(line, layout)
		if err != nil {
			log.WithError(err).Debug("skipping line")
			continue
		}

		select {
		case out <- Reading{Timestamp: time.Now(), Telemetry: t}:
		case <-ctx.Done():
			return
		default:
			log.Warn("samples channel full, dropping sample")
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		log.WithError(err).Error("error reading frames")
	}
}
