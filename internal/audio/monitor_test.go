package audio

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// feedPCM pushes synthetic S16LE mono samples through the capture path.
func feedPCM(m *Monitor, samples []int16) {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		buf[2*i] = byte(s)
		buf[2*i+1] = byte(s >> 8)
	}
	m.ingest(buf)
}

func sinePCM(n int, freq, amplitude float64) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(amplitude * 32767 * math.Sin(2*math.Pi*freq*float64(i)/SampleRate))
	}
	return out
}

// startedForTest marks the monitor as capturing without acquiring a device.
func startedForTest(m *Monitor) {
	m.mu.Lock()
	m.started = true
	m.mu.Unlock()
}

func TestMonitorLevelRisesWithSignal(t *testing.T) {
	m := NewMonitor()
	startedForTest(m)

	feedPCM(m, sinePCM(FFTSize, 440, 0.8))

	now := time.Now()
	for range 50 {
		m.Tick(now)
	}

	assert.Greater(t, m.Level(), 0.1)
}

func TestMonitorSilenceStaysNearZero(t *testing.T) {
	m := NewMonitor()
	startedForTest(m)

	feedPCM(m, make([]int16, FFTSize))
	for range 50 {
		m.Tick(time.Now())
	}

	assert.Less(t, m.Level(), 0.05)
}

func TestMonitorStopResetsLevelAndIsIdempotent(t *testing.T) {
	m := NewMonitor()
	startedForTest(m)

	feedPCM(m, sinePCM(FFTSize, 440, 0.8))
	for range 20 {
		m.Tick(time.Now())
	}

	m.Stop()
	assert.Equal(t, 0.0, m.Level())

	// A second stop must be a no-op, and ticks after stop do nothing.
	m.Stop()
	m.Tick(time.Now())
	assert.Equal(t, 0.0, m.Level())
}

func TestMonitorDrainReturnsAndClearsRecording(t *testing.T) {
	m := NewMonitor()
	startedForTest(m)

	pcm := sinePCM(1000, 200, 0.5)
	feedPCM(m, pcm)

	got := m.Drain()
	assert.Equal(t, pcm, got)
	assert.Empty(t, m.Drain())
}

func TestMonitorIgnoresInputWhenStopped(t *testing.T) {
	m := NewMonitor()

	feedPCM(m, sinePCM(FFTSize, 440, 0.8))
	assert.Empty(t, m.Drain())

	m.Tick(time.Now())
	assert.Equal(t, 0.0, m.Level())
}

func TestMonitorRecordingIsBounded(t *testing.T) {
	m := NewMonitor()
	startedForTest(m)

	chunk := make([]int16, SampleRate) // one second per feed
	for range maxRecordingSeconds + 5 {
		feedPCM(m, chunk)
	}

	assert.LessOrEqual(t, len(m.Drain()), maxRecordingSamples)
}
