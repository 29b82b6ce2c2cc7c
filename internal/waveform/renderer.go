// Package waveform maintains the bar-waveform display model: a rolling
// history of level samples mapped center-outward onto smoothed display bars,
// with synthetic processing waves and idle fade-out as alternate modes.
package waveform

import (
	"math"
	"sync"
	"time"

	"github.com/voxtype/voxtype/internal/level"
)

// Mode selects which of the three render paths runs each frame.
type Mode int

// Render modes. Active draws the live history waveform, Processing the
// synthetic traveling wave, Idle the fade-out.
const (
	ModeIdle Mode = iota
	ModeActive
	ModeProcessing
)

// String returns the wire name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeActive:
		return "active"
	case ModeProcessing:
		return "processing"
	default:
		return "idle"
	}
}

// Geometry and tuning. The center bar shows the newest sample and edge bars
// progressively older ones, so the waveform spreads outward instead of
// scrolling.
const (
	BarWidth = 3
	BarGap   = 1

	historyCap = 100

	barRiseRate = 0.6
	barFallRate = 0.12

	processingRate  = 0.12
	transitionStep  = 0.025
	idleDecayFactor = 0.88
	clearThreshold  = 0.015

	minBarLevel = 0.02
	edgeFadePx  = 13.0

	// Blob indicator attack/decay.
	indicatorRise = 0.3
	indicatorFall = 0.08
)

// Frame is an immutable snapshot of one rendered frame, serialized to
// overlay clients as-is.
type Frame struct {
	Type   string    `json:"type"`
	Mode   string    `json:"mode"`
	Level  float64   `json:"level"`
	Bars   []float64 `json:"bars"`
	Alphas []float64 `json:"alphas"`
}

// Renderer owns the rendering surface model. The surface is resized only by
// external notifications; everything else mutates under the frame tick.
// It is safe for concurrent use.
type Renderer struct {
	mu sync.Mutex

	width  int
	height int

	mode        Mode
	source      func() float64
	external    float64
	hasExternal bool
	sensitivity float64

	history    []float64
	bars       []float64
	alphas     []float64
	lastActive []float64

	phase      float64
	transition float64

	indicator *level.Follower

	frame Frame
}

// NewRenderer returns a renderer for a surface of the given size.
func NewRenderer(width, height int) *Renderer {
	r := &Renderer{
		sensitivity: 1.0,
		indicator:   level.NewFollower(indicatorRise, indicatorFall),
	}
	r.Resize(width, height)
	return r
}

// SetSource installs the function read for the current level each frame.
// Only the active signal source may write the level; the renderer just
// reads it. A nil source reads as zero.
func (r *Renderer) SetSource(source func() float64) {
	r.mu.Lock()
	r.source = source
	r.mu.Unlock()
}

// SetExternalLevel feeds the renderer directly, bypassing any source. Used
// by the standalone overlay when levels arrive as audio-level events.
func (r *Renderer) SetExternalLevel(v float64) {
	r.mu.Lock()
	r.external = level.Clamp(v, 0, 1)
	r.hasExternal = true
	r.mu.Unlock()
}

// ClearExternalLevel reverts to the installed source.
func (r *Renderer) ClearExternalLevel() {
	r.mu.Lock()
	r.hasExternal = false
	r.mu.Unlock()
}

// SetSensitivity adjusts the active-mode gain.
func (r *Renderer) SetSensitivity(s float64) {
	r.mu.Lock()
	r.sensitivity = s
	r.mu.Unlock()
}

// SetMode switches the render path. Entering Processing snapshots the
// current bars so the synthetic wave can blend out of them; leaving Active
// empties the history so no stale samples bleed into a later session.
func (r *Renderer) SetMode(mode Mode) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if mode == r.mode {
		return
	}

	if r.mode == ModeActive {
		r.lastActive = append(r.lastActive[:0], r.bars...)
		r.history = r.history[:0]
	}
	if mode == ModeProcessing {
		r.transition = 0
	}
	r.mode = mode
}

// Mode returns the current render mode.
func (r *Renderer) Mode() Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

// Resize recomputes the bar count for a new surface size and reinitializes
// the display buffers. Safe to call between frames at any time.
func (r *Renderer) Resize(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if width < BarWidth+BarGap {
		width = BarWidth + BarGap
	}
	r.width = width
	r.height = height

	count := width / (BarWidth + BarGap)
	r.bars = make([]float64, count)
	r.lastActive = make([]float64, count)
	r.alphas = edgeFade(count, width)
}

// BarCount returns the number of visible bars for the current surface.
func (r *Renderer) BarCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bars)
}

// HistoryLen returns the number of buffered level samples.
func (r *Renderer) HistoryLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.history)
}

// Frame returns the latest rendered frame snapshot.
func (r *Renderer) Frame() Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frame
}

// Tick renders one frame from the current level and mode.
func (r *Renderer) Tick(_ time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := 0.0
	if r.hasExternal {
		current = r.external
	} else if r.source != nil {
		current = level.Clamp(r.source(), 0, 1)
	}

	switch r.mode {
	case ModeActive:
		r.tickActive(current)
	case ModeProcessing:
		r.tickProcessing()
	default:
		r.tickIdle()
	}

	displayed := r.indicator.Update(current)

	bars := make([]float64, len(r.bars))
	copy(bars, r.bars)
	alphas := make([]float64, len(r.alphas))
	copy(alphas, r.alphas)

	r.frame = Frame{
		Type:   "frame",
		Mode:   r.mode.String(),
		Level:  displayed,
		Bars:   bars,
		Alphas: alphas,
	}
}

// tickActive pushes the level into history and maps it center-outward onto
// the bars.
func (r *Renderer) tickActive(current float64) {
	if len(r.history) == 0 || r.history[len(r.history)-1] != current {
		r.history = append(r.history, current)
		if len(r.history) > historyCap {
			r.history = r.history[1:]
		}
	}

	if len(r.bars) == 0 {
		count := r.width / (BarWidth + BarGap)
		r.bars = make([]float64, count)
		r.lastActive = make([]float64, count)
		r.alphas = edgeFade(count, r.width)
	}

	half := float64(len(r.bars)) / 2
	historyLen := len(r.history)
	reach := math.Min(float64(historyLen), half*0.8)

	for i := range r.bars {
		distFromCenter := math.Abs(float64(i)-half) / half
		historyOffset := int(distFromCenter * reach)
		historyIndex := historyLen - 1 - historyOffset
		if historyIndex < 0 {
			historyIndex = 0
		}

		sample := r.history[historyIndex]
		target := level.Clamp(math.Sqrt(sample)*r.sensitivity, minBarLevel, 1)
		r.bars[i] = level.Next(r.bars[i], target, barRiseRate, barFallRate)
	}

	r.lastActive = append(r.lastActive[:0], r.bars...)
}

// tickProcessing advances the phase clock and blends from the last active
// snapshot into the traveling synthetic wave.
func (r *Renderer) tickProcessing() {
	r.phase += 0.06
	if r.transition < 1 {
		r.transition += transitionStep
		if r.transition > 1 {
			r.transition = 1
		}
	}

	for i := range r.bars {
		x := float64(i)
		wave := 0.35 +
			0.25*math.Sin(x*0.3+r.phase*2.0) +
			0.15*math.Cos(x*0.17-r.phase*1.3) +
			0.10*math.Sin(x*0.45+r.phase*0.7)
		target := level.Clamp(wave, 0.08, 0.85)

		if r.transition < 1 && i < len(r.lastActive) {
			target = r.lastActive[i]*(1-r.transition) + target*r.transition
		}

		r.bars[i] = level.Next(r.bars[i], target, processingRate, processingRate)
	}
}

// tickIdle decays every bar; once everything is negligible the buffers are
// cleared so the next session starts clean.
func (r *Renderer) tickIdle() {
	if len(r.bars) == 0 {
		return
	}

	allFaded := true
	for i := range r.bars {
		r.bars[i] *= idleDecayFactor
		if r.bars[i] >= clearThreshold {
			allFaded = false
		}
	}

	if allFaded {
		r.bars = r.bars[:0]
		r.history = r.history[:0]
	}
}

// edgeFade computes per-bar alpha from a linear gradient over the first and
// last few pixels of the surface.
func edgeFade(count, width int) []float64 {
	alphas := make([]float64, count)
	for i := range alphas {
		x := float64(i*(BarWidth+BarGap)) + float64(BarWidth)/2
		a := math.Min(x/edgeFadePx, (float64(width)-x)/edgeFadePx)
		alphas[i] = level.Clamp(a, 0, 1)
	}
	return alphas
}
