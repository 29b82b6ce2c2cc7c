// Package recording coordinates the record/transcribe session: it marks the
// capture window, hands the drained audio to the transcriber, and publishes
// the lifecycle events the rest of the daemon reacts to.
package recording

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/voxtype/voxtype/internal/events"
	"github.com/voxtype/voxtype/internal/transcribe"
)

// Session states.
const (
	StateIdle         = "idle"
	StateRecording    = "recording"
	StateTranscribing = "transcribing"
)

// ErrNotRecording is returned by Stop and Cancel outside a recording session.
var ErrNotRecording = errors.New("no recording in progress")

// ErrBusy is returned by Start while a session is still being processed.
var ErrBusy = errors.New("a session is already in progress")

// Capturer buffers recorded samples during the capture window.
type Capturer interface {
	Drain() []int16
}

// Transcriber turns captured PCM into text.
type Transcriber interface {
	Transcribe(ctx context.Context, samples []int16, sampleRate int) (*transcribe.Result, error)
}

// Manager owns the session state. It does not start or stop the capture
// device itself; the recording-started and recording-stopped events it
// publishes drive the interaction state machine, which does.
type Manager struct {
	capturer    Capturer
	transcriber Transcriber
	bus         *events.Bus
	sampleRate  int

	mu      sync.Mutex
	state   string
	started time.Time
}

// NewManager returns an idle session manager.
func NewManager(capturer Capturer, transcriber Transcriber, bus *events.Bus, sampleRate int) *Manager {
	return &Manager{
		capturer:    capturer,
		transcriber: transcriber,
		bus:         bus,
		sampleRate:  sampleRate,
		state:       StateIdle,
	}
}

// State returns the current session state.
func (m *Manager) State() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Start opens a capture window. The published recording-started event makes
// the state machine bring up the microphone.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateIdle {
		return fmt.Errorf("%w (state %s)", ErrBusy, m.state)
	}
	m.state = StateRecording
	m.started = time.Now()

	m.bus.Publish(events.RecordingStarted, nil)
	slog.Info("recording started")
	return nil
}

// Stop closes the capture window and transcribes what was captured. The
// transcription runs in the background; its outcome arrives as a
// transcription-completed or transcription-error event.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateRecording {
		m.mu.Unlock()
		return ErrNotRecording
	}
	m.state = StateTranscribing
	duration := time.Since(m.started)
	m.mu.Unlock()

	samples := m.capturer.Drain()
	m.bus.Publish(events.RecordingStopped, map[string]any{
		"duration_ms": duration.Milliseconds(),
	})
	slog.Info("recording stopped", "duration", duration, "samples", len(samples))

	go m.transcribeAsync(ctx, samples)
	return nil
}

// Cancel discards the capture window without transcribing.
func (m *Manager) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateRecording {
		return ErrNotRecording
	}
	m.state = StateIdle
	m.capturer.Drain()

	m.bus.Publish(events.RecordingCanceled, nil)
	slog.Info("recording canceled")
	return nil
}

func (m *Manager) transcribeAsync(ctx context.Context, samples []int16) {
	defer func() {
		m.mu.Lock()
		m.state = StateIdle
		m.mu.Unlock()
	}()

	if len(samples) == 0 {
		slog.Warn("recording produced no audio")
		m.bus.Publish(events.TranscriptionError, map[string]string{"error": "no audio captured"})
		return
	}

	m.bus.Publish(events.TranscriptionStarted, nil)

	result, err := m.transcriber.Transcribe(ctx, samples, m.sampleRate)
	if err != nil {
		slog.Error("transcription failed", "error", err)
		m.bus.Publish(events.TranscriptionError, map[string]string{"error": err.Error()})
		return
	}

	slog.Info("transcription completed", "duration", result.Duration, "chars", len(result.Text))
	m.bus.Publish(events.TranscriptionCompleted, map[string]any{
		"text":        result.Text,
		"duration_ms": result.Duration.Milliseconds(),
	})
}
