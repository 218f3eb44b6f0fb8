package sample

// Downsample decimates src to at most maxPoints evenly spaced elements.
// It reuses dst when its capacity is sufficient and returns the result.
// When src already fits, it is copied whole.
func Downsample[T any](dst, src []T, maxPoints int) []T {
	n := min(len(src), max(maxPoints, 0))
	if cap(dst) >= n {
		dst = dst[:0]
	} else {
		dst = make([]T, 0, n)
	}
	if len(src) <= n {
		return append(dst, src...)
	}

	step := float64(len(src)) / float64(n)
	for i := range n {
		dst = append(dst, src[int(float64(i)*step)])
	}
	return dst
}

// DownsampleSamples decimates samples for display.
func DownsampleSamples(dst []Sample, samples []Sample, maxPoints int) []Sample {
	return Downsample(dst, samples, maxPoints)
}

// DownsampleDerivatives decimates derivatives for display.
func DownsampleDerivatives(dst []float64, derivatives []float64, maxPoints int) []float64 {
	return Downsample(dst, derivatives, maxPoints)
}
