// Package periphhal implements the hal collaborators on Linux single-board
// computers through periph.io.
package periphhal

import (
	"sync"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/itohio/goloadcell/pkg/hal"
)

var initOnce = sync.OnceValue(func() error {
	_, err := host.Init()
	return err
})

// Init loads the periph host drivers. It is safe to call more than once.
func Init() error {
	return errors.Wrap(initOnce(), "host init")
}

// Pin adapts a periph GPIO to hal.Pin. hal.Pin has no error returns, so the
// last driver error is kept and reported by Err.
type Pin struct {
	mu    sync.Mutex
	p     gpio.PinIO
	pull  gpio.Pull
	dir   hal.Direction
	level hal.Level
	err   error
}

var _ hal.Pin = (*Pin)(nil)

// OpenPin looks a line up by name ("GPIO17", "P1_11", ...). pull applies
// whenever the line is an input.
func OpenPin(name string, pull gpio.Pull) (*Pin, error) {
	if err := Init(); err != nil {
		return nil, err
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, errors.Errorf("gpio %q not found", name)
	}
	return NewPin(p, pull), nil
}

// NewPin wraps an already resolved line. The line starts as an input.
func NewPin(p gpio.PinIO, pull gpio.Pull) *Pin {
	pin := &Pin{p: p, pull: pull, dir: hal.Input}
	pin.setErr(p.In(pull, gpio.NoEdge))
	return pin
}

func (p *Pin) Set(l hal.Level) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.level = l
	if p.dir == hal.Output {
		p.setErr(p.p.Out(gpio.Level(l)))
	}
}

func (p *Pin) Get() hal.Level {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dir == hal.Output {
		return p.level
	}
	return hal.Level(p.p.Read())
}

func (p *Pin) SetDirection(d hal.Direction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dir = d
	if d == hal.Output {
		p.setErr(p.p.Out(gpio.Level(p.level)))
		return
	}
	p.setErr(p.p.In(p.pull, gpio.NoEdge))
}

// Name is the periph line name.
func (p *Pin) Name() string {
	return p.p.Name()
}

// Err returns and clears the last driver error.
func (p *Pin) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.err
	p.err = nil
	return err
}

func (p *Pin) setErr(err error) {
	if err != nil {
		p.err = errors.Wrapf(err, "gpio %s", p.p.Name())
	}
}
