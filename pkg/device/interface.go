package device

import "github.com/itohio/goloadcell/pkg/framing"

// Device defines the interface for instruments (real or mocked).
type Device interface {
	Connect() error
	Close() error
	Samples() <-chan Reading
	Send(cmd framing.Command) error
	IsConnected() bool
}

// Ensure Serial implements Device.
var _ Device = (*Serial)(nil)

// Ensure Mock implements Device.
var _ Device = (*Mock)(nil)
