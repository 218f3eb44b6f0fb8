package sim

import (
	"errors"
	"io"
	"sync"

	"github.com/itohio/goloadcell/pkg/hal"
)

// ErrEmpty is returned by ReadByte when nothing was received.
var ErrEmpty = errors.New("sim: receive buffer empty")

// UART is an in-memory serial port. Bytes written by the firmware side are
// buffered until Flush hands them to the host writer; bytes injected by the
// host are read back by the firmware side.
type UART struct {
	mu  sync.Mutex
	rx  []byte
	tx  []byte
	out io.Writer
}

var _ hal.Transport = (*UART)(nil)

// NewUART returns a port that flushes to out. out may be nil, in which case
// transmitted bytes accumulate until TakeTx.
func NewUART(out io.Writer) *UART {
	return &UART{out: out}
}

func (u *UART) WriteByte(c byte) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.tx = append(u.tx, c)
	return nil
}

func (u *UART) ReadByte() (byte, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.rx) == 0 {
		return 0, ErrEmpty
	}
	b := u.rx[0]
	u.rx = u.rx[1:]
	return b, nil
}

func (u *UART) Buffered() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.rx)
}

// Inject queues bytes as if the host had sent them. It implements io.Writer.
func (u *UART) Write(p []byte) (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.rx = append(u.rx, p...)
	return len(p), nil
}

// Flush writes pending transmit bytes to the host writer.
func (u *UART) Flush() error {
	u.mu.Lock()
	if u.out == nil || len(u.tx) == 0 {
		u.mu.Unlock()
		return nil
	}
	p := u.tx
	u.tx = nil
	u.mu.Unlock()
	_, err := u.out.Write(p)
	return err
}

// TakeTx returns and clears the pending transmit bytes.
func (u *UART) TakeTx() []byte {
	u.mu.Lock()
	defer u.mu.Unlock()
	p := u.tx
	u.tx = nil
	return p
}

// PWM records the duty and enable state it is given.
type PWM struct {
	mu      sync.Mutex
	duty    uint32
	enabled bool
	writes  int
}

func (p *PWM) SetDuty(counts uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.duty = counts
	p.writes++
}

func (p *PWM) Enable(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled = on
}

func (p *PWM) Duty() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duty
}

func (p *PWM) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

// Pin is a plain output line that counts level changes.
type Pin struct {
	mu      sync.Mutex
	level   hal.Level
	dir     hal.Direction
	toggles int
}

func (p *Pin) Set(l hal.Level) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l != p.level {
		p.toggles++
	}
	p.level = l
}

func (p *Pin) Get() hal.Level {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

func (p *Pin) SetDirection(d hal.Direction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dir = d
}

func (p *Pin) Toggles() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.toggles
}

// Battery reports a fixed supply voltage.
type Battery struct {
	mu sync.Mutex
	mv uint16
}

func NewBattery(mv uint16) *Battery {
	return &Battery{mv: mv}
}

func (b *Battery) Set(mv uint16) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mv = mv
}

func (b *Battery) ReadMillivolts() (uint16, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mv, nil
}
