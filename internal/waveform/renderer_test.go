package waveform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constantSource(v float64) func() float64 {
	return func() float64 { return v }
}

func tick(r *Renderer, n int) {
	now := time.Now()
	for range n {
		r.Tick(now)
		now = now.Add(16 * time.Millisecond)
	}
}

func TestBarCountFromSurfaceWidth(t *testing.T) {
	r := NewRenderer(300, 50)
	assert.Equal(t, 75, r.BarCount())

	r.Resize(100, 50)
	assert.Equal(t, 25, r.BarCount())
}

func TestActiveModeConvergesOnConstantLevel(t *testing.T) {
	r := NewRenderer(300, 50)
	r.SetSource(constantSource(1.0))
	r.SetMode(ModeActive)

	tick(r, 50)

	frame := r.Frame()
	require.Len(t, frame.Bars, 75)
	for i, b := range frame.Bars {
		assert.GreaterOrEqualf(t, b, 0.95, "bar %d below convergence threshold", i)
	}
}

func TestActiveModePushesHistoryOnlyOnChange(t *testing.T) {
	r := NewRenderer(300, 50)
	r.SetSource(constantSource(0.5))
	r.SetMode(ModeActive)

	tick(r, 10)
	assert.Equal(t, 1, r.HistoryLen())

	r.SetSource(constantSource(0.6))
	tick(r, 1)
	assert.Equal(t, 2, r.HistoryLen())
}

func TestHistoryIsBounded(t *testing.T) {
	r := NewRenderer(300, 50)
	r.SetMode(ModeActive)

	v := 0.0
	r.SetSource(func() float64 {
		v += 0.001
		return v - float64(int(v))
	})

	tick(r, historyCap+50)
	assert.Equal(t, historyCap, r.HistoryLen())
}

func TestIdleFadeOutClearsBuffers(t *testing.T) {
	r := NewRenderer(300, 50)
	r.SetSource(constantSource(1.0))
	r.SetMode(ModeActive)
	tick(r, 50)

	r.SetMode(ModeIdle)
	tick(r, 300)

	assert.Equal(t, 0, r.BarCount())
	assert.Equal(t, 0, r.HistoryLen())

	// Re-entering active starts from a clean buffer sized for the surface.
	r.SetSource(constantSource(0.5))
	r.SetMode(ModeActive)
	tick(r, 1)
	assert.Equal(t, 75, r.BarCount())
}

func TestProcessingBlendsFromLastActiveSnapshot(t *testing.T) {
	r := NewRenderer(300, 50)
	r.SetSource(constantSource(1.0))
	r.SetMode(ModeActive)
	tick(r, 50)

	r.SetMode(ModeProcessing)
	tick(r, 1)

	// Right after the transition starts the bars still sit near the last
	// active snapshot, not at the synthetic wave's ceiling.
	frame := r.Frame()
	for _, b := range frame.Bars {
		assert.Greater(t, b, 0.7)
	}

	// After the blend completes the wave targets are bounded.
	tick(r, 300)
	frame = r.Frame()
	for _, b := range frame.Bars {
		assert.GreaterOrEqual(t, b, 0.05)
		assert.LessOrEqual(t, b, 0.9)
	}
}

func TestCenterBarReflectsNewestSample(t *testing.T) {
	r := NewRenderer(300, 50)
	r.SetMode(ModeActive)

	// Build a long quiet history, then spike.
	r.SetSource(constantSource(0.1))
	tick(r, 1)
	for i := range 60 {
		r.SetSource(constantSource(0.1 + float64(i%2)*0.001))
		tick(r, 1)
	}
	r.SetSource(constantSource(1.0))
	tick(r, 3)

	frame := r.Frame()
	center := len(frame.Bars) / 2
	assert.Greater(t, frame.Bars[center], frame.Bars[0],
		"center bar must track the newest sample, edges the oldest")
}

func TestEdgeFadeAlphas(t *testing.T) {
	r := NewRenderer(300, 50)
	frameTick := func() Frame {
		tick(r, 1)
		return r.Frame()
	}

	r.SetMode(ModeActive)
	r.SetSource(constantSource(0.5))
	frame := frameTick()

	require.NotEmpty(t, frame.Alphas)
	assert.Less(t, frame.Alphas[0], 1.0)
	assert.Less(t, frame.Alphas[len(frame.Alphas)-1], 1.0)

	mid := len(frame.Alphas) / 2
	assert.Equal(t, 1.0, frame.Alphas[mid])
}

func TestExternalLevelBypassesSource(t *testing.T) {
	r := NewRenderer(300, 50)
	r.SetSource(constantSource(0.0))
	r.SetMode(ModeActive)

	r.SetExternalLevel(1.0)
	tick(r, 50)

	frame := r.Frame()
	center := len(frame.Bars) / 2
	assert.Greater(t, frame.Bars[center], 0.9)

	r.ClearExternalLevel()
	tick(r, 1)
	assert.Equal(t, 2, r.HistoryLen())
}

func TestBlobIndicatorAttackFasterThanDecay(t *testing.T) {
	r := NewRenderer(300, 50)
	r.SetMode(ModeActive)

	r.SetSource(constantSource(1.0))
	tick(r, 5)
	risen := r.Frame().Level
	assert.Greater(t, risen, 0.7)

	r.SetSource(constantSource(0.0))
	tick(r, 5)
	fallen := r.Frame().Level
	assert.Greater(t, fallen, 0.4, "decay must be slower than attack")
}

func TestResizeMidStreamDoesNotPanic(t *testing.T) {
	r := NewRenderer(300, 50)
	r.SetSource(constantSource(0.8))
	r.SetMode(ModeActive)
	tick(r, 20)

	r.Resize(120, 40)
	tick(r, 5)

	assert.Equal(t, 30, r.BarCount())
}
