package sample

import (
	"github.com/sirupsen/logrus"
)

// NewAveragingConverter creates a converter that replaces each sample's load
// and voltage with the mean over the last windowSize samples. Climate values
// pass through unchanged.
func NewAveragingConverter(windowSize int, bufSize int) func(in <-chan Sample) <-chan Sample {
	if windowSize <= 0 {
		windowSize = 1
	}
	if bufSize <= 0 {
		bufSize = 100
	}
	log := logrus.WithField("component", "averaging")

	return func(in <-chan Sample) <-chan Sample {
		out := make(chan Sample, bufSize)

		go func() {
			defer close(out)

			w := newWindow(windowSize)
			for s := range in {
				avg := w.push(s)
				select {
				case out <- avg:
				default:
					log.Warn("averaging converter output channel full")
				}
			}
		}()

		return out
	}
}

// window is a fixed-size ring of samples with running sums.
type window struct {
	buf              []Sample
	next, n          int
	sumLoad, sumVolt float64
	volts            int
}

func newWindow(size int) *window {
	return &window{buf: make([]Sample, size)}
}

// push adds s, evicting the oldest sample when full, and returns s with the
// averaged values.
func (w *window) push(s Sample) Sample {
	if w.n == len(w.buf) {
		old := w.buf[w.next]
		w.sumLoad -= old.Load
		if old.HasVoltage {
			w.sumVolt -= old.Voltage
			w.volts--
		}
	} else {
		w.n++
	}
	w.buf[w.next] = s
	w.next = (w.next + 1) % len(w.buf)
	w.sumLoad += s.Load
	if s.HasVoltage {
		w.sumVolt += s.Voltage
		w.volts++
	}

	avg := s
	avg.Load = w.sumLoad / float64(w.n)
	if s.HasVoltage && w.volts > 0 {
		avg.Voltage = w.sumVolt / float64(w.volts)
	}
	return avg
}
