// Package audio provides microphone level monitoring, device enumeration,
// and cue-tone playback for the interaction visualizer.
package audio

import (
	"math"
	"math/cmplx"
)

// Spectrum analysis constants. Magnitudes are mapped to the 0-255 byte range
// used by the level normalization, with the dB window chosen to match
// typical analyser defaults.
const (
	// FFTSize is the number of samples per frequency snapshot.
	FFTSize = 512

	minDecibels = -100.0
	maxDecibels = -30.0
)

// ByteFrequencyData computes the magnitude spectrum of the sample window and
// scales each bin to 0-255. The input length must be FFTSize; samples are
// normalized PCM in [-1, 1]. Only the first FFTSize/2 bins carry information
// and are returned.
func ByteFrequencyData(samples []float64) []float64 {
	bins := make([]complex128, FFTSize)
	for i := range bins {
		if i < len(samples) {
			// Hann window reduces spectral leakage.
			w := 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(FFTSize-1)))
			bins[i] = complex(samples[i]*w, 0)
		}
	}

	fft(bins)

	out := make([]float64, FFTSize/2)
	for i := range out {
		mag := cmplx.Abs(bins[i]) / float64(FFTSize)
		db := -math.MaxFloat64
		if mag > 0 {
			db = 20 * math.Log10(mag)
		}
		scaled := 255 * (db - minDecibels) / (maxDecibels - minDecibels)
		if scaled < 0 {
			scaled = 0
		}
		if scaled > 255 {
			scaled = 255
		}
		out[i] = scaled
	}
	return out
}

// MeanMagnitude returns the average of the byte-scaled bins.
func MeanMagnitude(bins []float64) float64 {
	if len(bins) == 0 {
		return 0
	}
	var sum float64
	for _, b := range bins {
		sum += b
	}
	return sum / float64(len(bins))
}

// fft performs an in-place iterative radix-2 transform. len(x) must be a
// power of two.
func fft(x []complex128) {
	n := len(x)

	// Bit-reversal permutation.
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j |= bit
		if i < j {
			x[i], x[j] = x[j], x[i]
		}
	}

	for length := 2; length <= n; length <<= 1 {
		angle := -2 * math.Pi / float64(length)
		wl := cmplx.Rect(1, angle)
		for start := 0; start < n; start += length {
			w := complex(1, 0)
			for k := start; k < start+length/2; k++ {
				u := x[k]
				v := x[k+length/2] * w
				x[k] = u + v
				x[k+length/2] = u - v
				w *= wl
			}
		}
	}
}
