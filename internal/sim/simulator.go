// Package sim generates a synthetic speech envelope for the transcribing
// phase, when no microphone signal is available but the overlay should still
// look alive.
package sim

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/voxtype/voxtype/internal/frames"
	"github.com/voxtype/voxtype/internal/level"
)

// Envelope tuning. Frequencies are in Hz against elapsed seconds.
const (
	restingLevel = 0.15
	restingRate  = 0.03
	smoothRate   = 0.04

	baseFreq   = 1.2
	baseAmp    = 0.15
	baseOffset = 0.4

	wordFreq     = 2.5
	syllableFreq = 4.0

	envelopeScale = 0.45
	minLevel      = 0.2
	maxLevel      = 0.9

	// A new phrase begins when progress re-enters the first 5% of the
	// phrase, at which point a pause of 300-700ms is drawn.
	phraseStartWindow = 0.05
	minElapsed        = 0.5
	pauseMinMs        = 300
	pauseRangeMs      = 400
)

// Simulator produces a believable talking rhythm: phrases of varying length
// separated by randomized pauses, with word- and syllable-rate modulation
// inside each phrase. The pause durations are the only randomness; the
// generator is injected so tests can seed it.
type Simulator struct {
	clock frames.Clock
	rng   *rand.Rand

	mu            sync.Mutex
	started       bool
	startTime     time.Time
	phraseCounter int
	pauseUntil    time.Time
	level         float64
}

// NewSimulator returns a stopped simulator. A nil clock selects the system
// clock; a nil rng selects an unseeded generator.
func NewSimulator(clock frames.Clock, rng *rand.Rand) *Simulator {
	if clock == nil {
		clock = frames.SystemClock{}
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Simulator{clock: clock, rng: rng}
}

// Start resets the simulator and begins a fresh utterance. Restart
// semantics: a running simulator is stopped first, never resumed. The
// context is accepted for symmetry with the audio monitor and is not used.
func (s *Simulator) Start(_ context.Context) error {
	s.Stop()

	s.mu.Lock()
	s.started = true
	s.startTime = s.clock.Now()
	s.level = restingLevel
	s.mu.Unlock()
	return nil
}

// Stop resets elapsed time, the phrase counter, and the pause window, and
// zeroes the exposed level. Stopping a stopped simulator is a no-op.
func (s *Simulator) Stop() {
	s.mu.Lock()
	s.started = false
	s.startTime = time.Time{}
	s.phraseCounter = 0
	s.pauseUntil = time.Time{}
	s.level = 0
	s.mu.Unlock()
}

// Level returns the current synthetic level without blocking.
func (s *Simulator) Level() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level
}

// Tick advances the envelope by one frame.
func (s *Simulator) Tick(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	// Between phrases the level settles toward the resting value.
	if now.Before(s.pauseUntil) {
		s.level = level.Next(s.level, restingLevel, restingRate, restingRate)
		return
	}

	elapsed := now.Sub(s.startTime).Seconds()

	phraseLength := 3 + math.Sin(float64(s.phraseCounter)*0.5)
	progress := math.Mod(elapsed, phraseLength)
	t := progress / phraseLength
	envelope := math.Sin(t*math.Pi)*0.5 + 0.5

	if t < phraseStartWindow && elapsed > minElapsed {
		s.phraseCounter++
		pause := time.Duration(pauseMinMs+s.rng.Float64()*pauseRangeMs) * time.Millisecond
		s.pauseUntil = now.Add(pause)
		s.level = level.Next(s.level, restingLevel, restingRate, restingRate)
		return
	}

	base := math.Sin(2*math.Pi*baseFreq*elapsed)*baseAmp + baseOffset
	word := math.Sin(2*math.Pi*wordFreq*elapsed)*0.4 + 0.6         // [0.2, 1.0]
	syllable := math.Sin(2*math.Pi*syllableFreq*elapsed)*0.1 + 0.9 // [0.8, 1.0]

	target := (base + word*syllable*envelope) * envelopeScale
	target = level.Clamp(target, minLevel, maxLevel)

	s.level = level.Next(s.level, target, smoothRate, smoothRate)
}
