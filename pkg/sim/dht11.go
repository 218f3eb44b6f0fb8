package sim

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/chewxy/math32"

	"github.com/itohio/goloadcell/pkg/dht"
	"github.com/itohio/goloadcell/pkg/hal"
)

// DHT11 response timing.
const (
	dhtMinWake      = 18 * time.Millisecond
	dhtResponseLag  = 30 * time.Microsecond
	dhtAckLow       = 80 * time.Microsecond
	dhtAckHigh      = 80 * time.Microsecond
	dhtBitLow       = 50 * time.Microsecond
	dhtZeroHigh     = 26 * time.Microsecond
	dhtOneHigh      = 70 * time.Microsecond
	dhtSegmentCount = 2 + 2*40 + 1
)

// DHTMode selects how the model answers a wake pulse.
type DHTMode uint8

const (
	DHTNormal  DHTMode = iota
	DHTAbsent          // never answers
	DHTCorrupt         // answers with a bad checksum
)

// Environment is the climate the sensor reports.
type Environment struct {
	Humidity    float32 // %RH
	Temperature float32 // °C
}

// Frame converts e to what a DHT11 would send: integer humidity and
// temperature with one decimal digit.
func (e Environment) Frame() dht.Frame {
	rh := math32.Round(math32.Max(0, math32.Min(e.Humidity, 99)))
	t := math32.Max(-127.9, math32.Min(e.Temperature, 127.9))
	neg := t < 0
	t = math32.Abs(t)
	whole := math32.Floor(t)
	frac := math32.Round((t - whole) * 10)
	if frac >= 10 {
		whole++
		frac = 0
	}
	ti := uint8(whole)
	if neg && (ti != 0 || frac != 0) {
		ti |= 0x80
	}
	return dht.NewFrame(uint8(rh), 0, ti, uint8(frac))
}

// DHT11 models the sensor as the single open-drain line the host sees. The
// host must hold the line low for at least 18 ms; when it releases the line the
// sensor answers with an 80 us low, an 80 us high and 40 bits of 50 us low
// followed by 26 us (0) or 70 us (1) high, then a final 50 us low.
type DHT11 struct {
	mu    sync.Mutex
	clock *Clock

	env       func(t time.Duration) Environment
	mode      DHTMode
	faultRate float64
	rng       *rand.Rand

	dir      hal.Direction
	driven   hal.Level
	lowSince time.Duration

	responding bool
	edges      [dhtSegmentCount]time.Duration // end of each segment
	cursor     int

	wakes     int
	responses int
}

// NewDHT11 returns an idle sensor. env may be nil for a constant 50 %RH, 20 °C.
func NewDHT11(clock *Clock, env func(t time.Duration) Environment) *DHT11 {
	if env == nil {
		env = func(time.Duration) Environment { return Environment{Humidity: 50, Temperature: 20} }
	}
	return &DHT11{
		clock:  clock,
		env:    env,
		driven: hal.High,
		rng:    rand.New(rand.NewPCG(1, 2)),
	}
}

// SetMode forces a failure mode.
func (d *DHT11) SetMode(m DHTMode) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mode = m
}

// SetFaultRate makes a fraction of responses corrupt. seed makes the sequence
// reproducible.
func (d *DHT11) SetFaultRate(rate float64, seed uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.faultRate = rate
	d.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// SetEnvironment replaces the climate source.
func (d *DHT11) SetEnvironment(env func(t time.Duration) Environment) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.env = env
}

// Wakes counts valid wake pulses; Responses counts answered ones.
func (d *DHT11) Wakes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.wakes
}

func (d *DHT11) Responses() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.responses
}

// Direction is the host's current line direction.
func (d *DHT11) Direction() hal.Direction {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dir
}

// Set drives the line while the host has it as an output.
func (d *DHT11) Set(l hal.Level) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dir != hal.Output {
		d.driven = l
		return
	}
	d.drive(l)
}

func (d *DHT11) SetDirection(dir hal.Direction) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if dir == d.dir {
		return
	}
	d.dir = dir
	if dir == hal.Output {
		d.responding = false
		if d.driven == hal.Low {
			d.lowSince = d.clock.Peek()
		}
		return
	}
	// Releasing a low line counts as the end of the wake pulse.
	if d.driven == hal.Low {
		d.release(d.clock.Peek())
	}
}

func (d *DHT11) Get() hal.Level {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dir == hal.Output {
		return d.driven
	}
	if !d.responding {
		return hal.High
	}
	now := d.clock.Peek()
	for d.cursor < len(d.edges) && now >= d.edges[d.cursor] {
		d.cursor++
	}
	if d.cursor == len(d.edges) {
		d.responding = false
		return hal.High
	}
	if now < d.edges[0]-dhtAckLow {
		return hal.High
	}
	// Segments alternate starting low.
	return hal.Level(d.cursor%2 == 1)
}

func (d *DHT11) drive(l hal.Level) {
	now := d.clock.Peek()
	switch {
	case l == hal.Low && d.driven == hal.High:
		d.lowSince = now
		d.responding = false
	case l == hal.High && d.driven == hal.Low:
		d.release(now)
	}
	d.driven = l
}

func (d *DHT11) release(now time.Duration) {
	if now-d.lowSince < dhtMinWake {
		return
	}
	d.wakes++
	if d.mode == DHTAbsent {
		return
	}
	f := d.env(now).Frame()
	if d.mode == DHTCorrupt || (d.faultRate > 0 && d.rng.Float64() < d.faultRate) {
		f.Checksum++
	}
	d.schedule(now+dhtResponseLag, f.Bytes())
	d.responses++
}

func (d *DHT11) schedule(start time.Duration, payload [5]byte) {
	t := start + dhtAckLow
	d.edges[0] = t
	t += dhtAckHigh
	d.edges[1] = t
	i := 2
	for _, b := range payload {
		for bit := 7; bit >= 0; bit-- {
			t += dhtBitLow
			d.edges[i] = t
			if b>>uint(bit)&1 == 1 {
				t += dhtOneHigh
			} else {
				t += dhtZeroHigh
			}
			d.edges[i+1] = t
			i += 2
		}
	}
	d.edges[i] = t + dhtBitLow
	d.cursor = 0
	d.responding = true
}
