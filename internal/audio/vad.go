package audio

import (
	"sync"
	"time"
)

// VADConfig holds the configurable thresholds for voice activity detection.
type VADConfig struct {
	Threshold   float64 // normalized level below which audio is considered silent
	SilenceMs   int64   // milliseconds of silence before speech is considered ended
	MinSpeechMs int64   // minimum speech duration before silence can end the utterance
}

// DefaultVADConfig is tuned for dictation: a short phrase pause does not end
// the utterance, a full second of silence does.
var DefaultVADConfig = VADConfig{
	Threshold:   0.08,
	SilenceMs:   1000,
	MinSpeechMs: 300,
}

// VADEvent represents the result of a voice activity update.
type VADEvent struct {
	Speaking    bool  // audio is currently above the threshold
	SilenceMs   int64 // current trailing silence duration (0 while speaking)
	SpeechEnded bool  // true on the frame when trailing silence is confirmed
}

// VAD tracks trailing silence on the capture level and reports when an
// utterance has ended. It is safe for concurrent use.
type VAD struct {
	mu           sync.Mutex
	speechStart  time.Time
	silenceStart time.Time
	sawSpeech    bool
	ended        bool
}

// NewVAD returns a detector in the initial (no speech seen) state.
func NewVAD() *VAD {
	return &VAD{}
}

// Update advances the detector with the current normalized level.
func (d *VAD) Update(level float64, cfg VADConfig, now time.Time) VADEvent {
	d.mu.Lock()
	defer d.mu.Unlock()

	speaking := level >= cfg.Threshold

	if speaking {
		if !d.sawSpeech {
			d.sawSpeech = true
			d.speechStart = now
		}
		d.silenceStart = time.Time{}
		return VADEvent{Speaking: true}
	}

	// Silence before any speech does not count as an ended utterance.
	if !d.sawSpeech || d.ended {
		return VADEvent{}
	}

	if d.silenceStart.IsZero() {
		d.silenceStart = now
	}
	silence := now.Sub(d.silenceStart).Milliseconds()
	speech := d.silenceStart.Sub(d.speechStart).Milliseconds()

	if silence >= cfg.SilenceMs && speech >= cfg.MinSpeechMs {
		d.ended = true
		return VADEvent{SilenceMs: silence, SpeechEnded: true}
	}

	return VADEvent{SilenceMs: silence}
}

// Reset prepares the detector for a new utterance.
func (d *VAD) Reset() {
	d.mu.Lock()
	d.speechStart = time.Time{}
	d.silenceStart = time.Time{}
	d.sawSpeech = false
	d.ended = false
	d.mu.Unlock()
}
