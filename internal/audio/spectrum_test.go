package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sineWindow(freqBin int, amplitude float64) []float64 {
	samples := make([]float64, FFTSize)
	for i := range samples {
		samples[i] = amplitude * math.Sin(2*math.Pi*float64(freqBin)*float64(i)/FFTSize)
	}
	return samples
}

func TestByteFrequencyDataPeaksAtToneBin(t *testing.T) {
	bins := ByteFrequencyData(sineWindow(32, 0.8))

	peak := 0
	for i, b := range bins {
		if b > bins[peak] {
			peak = i
		}
		assert.GreaterOrEqual(t, b, 0.0)
		assert.LessOrEqual(t, b, 255.0)
	}
	// Hann windowing smears the tone across neighbouring bins.
	assert.InDelta(t, 32, peak, 1)
}

func TestByteFrequencyDataSilenceIsZero(t *testing.T) {
	bins := ByteFrequencyData(make([]float64, FFTSize))
	assert.Equal(t, 0.0, MeanMagnitude(bins))
}

func TestLoudSignalHasHigherMeanThanQuiet(t *testing.T) {
	loud := MeanMagnitude(ByteFrequencyData(sineWindow(16, 0.9)))
	quiet := MeanMagnitude(ByteFrequencyData(sineWindow(16, 0.05)))
	assert.Greater(t, loud, quiet)
	assert.Greater(t, quiet, 0.0)
}

func TestMeanMagnitudeEmpty(t *testing.T) {
	assert.Equal(t, 0.0, MeanMagnitude(nil))
}
