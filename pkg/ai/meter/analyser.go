package meter

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	minDecibels = -100.0
	maxDecibels = -30.0
)

// Analyser computes byte frequency data from the most recent FFTSize
// samples, the same way a browser AnalyserNode does: Blackman window,
// magnitude smoothed over time, decibels mapped onto 0..255.
type Analyser struct {
	size      int
	smoothing float64
	fft       *fourier.FFT
	window    []float64
	ring      []float64
	pos       int
	scratch   []float64
	coeffs    []complex128
	smoothed  []float64
	bins      []uint8
}

// NewAnalyser creates an analyser. size must be a power of two >= 32.
func NewAnalyser(size int, smoothing float64) *Analyser {
	if size < 32 || size&(size-1) != 0 {
		size = 256
	}
	if smoothing < 0 || smoothing >= 1 {
		smoothing = 0.8
	}

	window := make([]float64, size)
	const alpha = 0.16
	a0, a1, a2 := (1-alpha)/2, 0.5, alpha/2
	for i := range window {
		x := float64(i) / float64(size)
		window[i] = a0 - a1*math.Cos(2*math.Pi*x) + a2*math.Cos(4*math.Pi*x)
	}

	return &Analyser{
		size:      size,
		smoothing: smoothing,
		fft:       fourier.NewFFT(size),
		window:    window,
		ring:      make([]float64, size),
		scratch:   make([]float64, size),
		smoothed:  make([]float64, size/2),
		bins:      make([]uint8, size/2),
	}
}

// BinCount returns the number of frequency bins (half the FFT size).
func (a *Analyser) BinCount() int { return a.size / 2 }

// Push appends time-domain samples in [-1, 1].
func (a *Analyser) Push(samples []float64) {
	for _, s := range samples {
		a.ring[a.pos] = s
		a.pos = (a.pos + 1) % a.size
	}
}

// ByteFrequencyData runs one analysis pass and returns the bins. The slice
// is reused by the next call.
func (a *Analyser) ByteFrequencyData() []uint8 {
	for i := 0; i < a.size; i++ {
		a.scratch[i] = a.ring[(a.pos+i)%a.size] * a.window[i]
	}
	a.coeffs = a.fft.Coefficients(a.coeffs, a.scratch)

	scale := 255.0 / (maxDecibels - minDecibels)
	for k := range a.bins {
		mag := cmplx.Abs(a.coeffs[k]) / float64(a.size)
		a.smoothed[k] = a.smoothing*a.smoothed[k] + (1-a.smoothing)*mag

		db := minDecibels
		if a.smoothed[k] > 0 {
			db = 20 * math.Log10(a.smoothed[k])
		}
		v := math.Floor(scale * (db - minDecibels))
		switch {
		case v < 0:
			v = 0
		case v > 255:
			v = 255
		}
		a.bins[k] = uint8(v)
	}
	return a.bins
}

// Level returns the mean of the byte frequency data normalized to [0, 1].
func (a *Analyser) Level() float64 {
	bins := a.ByteFrequencyData()
	if len(bins) == 0 {
		return 0
	}
	var sum int
	for _, b := range bins {
		sum += int(b)
	}
	return float64(sum) / float64(len(bins)) / 255.0
}
