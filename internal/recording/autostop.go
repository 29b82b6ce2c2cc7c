package recording

import (
	"context"
	"log/slog"
	"time"

	"github.com/voxtype/voxtype/internal/audio"
)

// autoStopInterval is how often the supervisor samples the capture level.
const autoStopInterval = 50 * time.Millisecond

// VADSource supplies the inputs the auto-stop supervisor needs: the live
// capture level and the user's detection settings.
type VADSource interface {
	Level() float64
	VADSettings() (enabled bool, threshold float64)
}

// AutoStop ends a recording session once the speaker has fallen silent. It
// polls the capture level while a session is recording and calls Stop on the
// session manager when the detector confirms trailing silence.
type AutoStop struct {
	sessions *Manager
	source   VADSource
	detector *audio.VAD
	interval time.Duration
}

// NewAutoStop builds a supervisor around the session manager.
func NewAutoStop(sessions *Manager, source VADSource) *AutoStop {
	return &AutoStop{
		sessions: sessions,
		source:   source,
		detector: audio.NewVAD(),
		interval: autoStopInterval,
	}
}

// Run polls until the context is canceled. The detector resets whenever no
// session is recording, so each capture window starts fresh.
func (a *AutoStop) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.tick(ctx, time.Now())
		}
	}
}

func (a *AutoStop) tick(ctx context.Context, now time.Time) {
	if a.sessions.State() != StateRecording {
		a.detector.Reset()
		return
	}

	enabled, threshold := a.source.VADSettings()
	if !enabled {
		return
	}

	// The user knob is 0-1; map it onto the normalized level scale so the
	// 0.5 default lands on the detector's default of 0.08.
	cfg := audio.DefaultVADConfig
	cfg.Threshold = threshold * 2 * audio.DefaultVADConfig.Threshold

	evt := a.detector.Update(a.source.Level(), cfg, now)
	if !evt.SpeechEnded {
		return
	}

	slog.Info("silence detected, stopping recording", "silence_ms", evt.SilenceMs)
	if err := a.sessions.Stop(ctx); err != nil {
		slog.Debug("auto-stop raced with manual stop", "error", err)
	}
}
