package sim

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/chewxy/math32"
)

// ProfileKind names a load signal shape.
type ProfileKind string

const (
	ProfileConstant ProfileKind = "constant"
	ProfileSine     ProfileKind = "sine"
	ProfileSquare   ProfileKind = "square"
	ProfileRamp     ProfileKind = "ramp"
)

// Profile generates raw load-cell counts over virtual time.
type Profile struct {
	Kind      ProfileKind
	Offset    int32
	Amplitude int32
	Period    time.Duration
	Noise     int32 // peak uniform noise in counts
	Seed      uint64
}

// Source returns a signal function for p.
func (p Profile) Source() (func(t time.Duration) int32, error) {
	shape, err := p.shape()
	if err != nil {
		return nil, err
	}
	if p.Noise <= 0 {
		return func(t time.Duration) int32 {
			return p.Offset + int32(shape(t)*float32(p.Amplitude))
		}, nil
	}
	var mu sync.Mutex
	rng := rand.New(rand.NewPCG(p.Seed, p.Seed+1))
	return func(t time.Duration) int32 {
		mu.Lock()
		n := rng.Int32N(2*p.Noise+1) - p.Noise
		mu.Unlock()
		return p.Offset + int32(shape(t)*float32(p.Amplitude)) + n
	}, nil
}

func (p Profile) phase(t time.Duration) float32 {
	if p.Period <= 0 {
		return 0
	}
	return float32(t%p.Period) / float32(p.Period)
}

func (p Profile) shape() (func(t time.Duration) float32, error) {
	switch p.Kind {
	case "", ProfileConstant:
		return func(time.Duration) float32 { return 0 }, nil
	case ProfileSine:
		return func(t time.Duration) float32 {
			return math32.Sin(2 * math32.Pi * p.phase(t))
		}, nil
	case ProfileSquare:
		return func(t time.Duration) float32 {
			if p.phase(t) < 0.5 {
				return 1
			}
			return -1
		}, nil
	case ProfileRamp:
		return func(t time.Duration) float32 {
			return 2*p.phase(t) - 1
		}, nil
	}
	return nil, fmt.Errorf("sim: unknown load profile %q", p.Kind)
}
