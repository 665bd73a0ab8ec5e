// Package audio implements the audio output on top of beep and the
// platform speaker. Builds without audio support degrade to a silent
// output that rejects playback.
package audio

import (
	"math"
	"math/cmplx"
	"sync"

	"github.com/gopxl/beep/v2"
	"gonum.org/v1/gonum/dsp/fourier"
)

// FFT parameters. 512-sample frames over a mono downmix give 256
// frequency bins, enough resolution for the low-band beat estimate.
const (
	fftSize  = 512
	binCount = fftSize / 2

	// Decibel range mapped onto the 0-255 magnitude scale.
	minDecibels = -100.0
	maxDecibels = -30.0
)

// spectrumTap captures a mono downmix of the audio pipeline into a ring
// buffer and computes byte-scaled frequency magnitudes on demand. A
// single tap outlives individual tracks; each track's streamer chain is
// wrapped with capture to feed it.
type spectrumTap struct {
	mu     sync.Mutex
	ring   [fftSize]float64
	pos    int
	fft    *fourier.FFT
	window []float64
	frame  []float64
	coeffs []complex128
}

func newSpectrumTap() *spectrumTap {
	t := &spectrumTap{
		fft: fourier.NewFFT(fftSize),
		// Coefficients requires dst to be nil or exactly Len()/2+1 long
		coeffs: make([]complex128, fftSize/2+1),
		window: make([]float64, fftSize),
		frame:  make([]float64, fftSize),
	}
	// Hann window
	for i := range t.window {
		t.window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(fftSize-1)))
	}
	return t
}

// BinCount returns the number of frequency bins.
func (t *spectrumTap) BinCount() int { return binCount }

// FrequencyData fills buf with per-bin byte magnitudes and returns the
// number of bins written. Magnitudes follow the usual analyser scaling:
// bin power in decibels, linearly mapped from [minDecibels, maxDecibels]
// onto 0-255.
func (t *spectrumTap) FrequencyData(buf []byte) int {
	t.mu.Lock()
	start := t.pos
	for i := 0; i < fftSize; i++ {
		t.frame[i] = t.ring[(start+i)%fftSize] * t.window[i]
	}
	t.mu.Unlock()

	t.coeffs = t.fft.Coefficients(t.coeffs, t.frame)

	n := binCount
	if len(buf) < n {
		n = len(buf)
	}
	for i := 0; i < n; i++ {
		mag := cmplx.Abs(t.coeffs[i]) / (fftSize / 2)
		db := minDecibels
		if mag > 0 {
			db = 20 * math.Log10(mag)
		}
		scaled := (db - minDecibels) / (maxDecibels - minDecibels) * 255
		if scaled < 0 {
			scaled = 0
		} else if scaled > 255 {
			scaled = 255
		}
		buf[i] = byte(scaled)
	}
	return n
}

// reset zeroes the ring so a new track does not inherit the tail of the
// previous one.
func (t *spectrumTap) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ring = [fftSize]float64{}
	t.pos = 0
}

func (t *spectrumTap) feed(samples [][2]float64, n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := 0; i < n; i++ {
		t.ring[t.pos] = (samples[i][0] + samples[i][1]) / 2
		t.pos = (t.pos + 1) % fftSize
	}
}

// capture wraps src so every streamed sample is mirrored into the tap.
func (t *spectrumTap) capture(src beep.Streamer) beep.Streamer {
	return &captureStreamer{src: src, tap: t}
}

type captureStreamer struct {
	src beep.Streamer
	tap *spectrumTap
}

func (c *captureStreamer) Stream(samples [][2]float64) (int, bool) {
	n, ok := c.src.Stream(samples)
	c.tap.feed(samples, n)
	return n, ok
}

func (c *captureStreamer) Err() error { return c.src.Err() }
