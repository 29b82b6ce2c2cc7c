// Package state owns the tri-state interaction mode and arbitrates which
// signal source feeds the renderers.
package state

import (
	"context"
	"log/slog"

	"github.com/voxtype/voxtype/internal/audio"
	"github.com/voxtype/voxtype/internal/events"
	"github.com/voxtype/voxtype/internal/waveform"
)

// Mode is the interaction state. Exactly one mode is active at a time.
type Mode int

// Interaction modes.
const (
	Idle Mode = iota
	Listening
	Speaking
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case Listening:
		return "listening"
	case Speaking:
		return "speaking"
	default:
		return "idle"
	}
}

// ParseMode resolves a mode name; unknown names resolve to Idle.
func ParseMode(s string) Mode {
	switch s {
	case "listening":
		return Listening
	case "speaking":
		return Speaking
	default:
		return Idle
	}
}

// overlayState maps a mode to the overlay-state-change wire value.
func (m Mode) overlayState() string {
	switch m {
	case Listening:
		return "recording"
	case Speaking:
		return "transcribing"
	default:
		return "hidden"
	}
}

// Source is a level signal source with exclusive start/stop lifecycle.
type Source interface {
	Start(ctx context.Context) error
	Stop()
	Level() float64
}

// CuePlayer plays transition cue sounds.
type CuePlayer interface {
	Play(cue audio.Cue)
}

// Machine drives mode transitions from backend lifecycle events or direct
// commands. On every transition it stops the old source, starts the one the
// new mode requires, points the renderer at it, and publishes the overlay
// state. At most one source is running at any instant.
type Machine struct {
	monitor   Source
	simulator Source
	renderer  *waveform.Renderer
	player    CuePlayer
	bus       *events.Bus

	// mode doubles as the transition lock: holding the value serializes
	// SetMode so rapid toggles never overlap two running sources.
	mode chan Mode

	// eventCh is subscribed at construction so lifecycle events published
	// before Run is scheduled are buffered, not lost.
	eventCh chan events.Event
}

// New returns a machine in Idle with both sources stopped, already
// subscribed to the bus.
func New(monitor, simulator Source, renderer *waveform.Renderer, player CuePlayer, bus *events.Bus) *Machine {
	m := &Machine{
		monitor:   monitor,
		simulator: simulator,
		renderer:  renderer,
		player:    player,
		bus:       bus,
		mode:      make(chan Mode, 1),
		eventCh:   make(chan events.Event, 32),
	}
	bus.Subscribe(m.eventCh)
	m.mode <- Idle
	return m
}

// Mode returns the current interaction mode.
func (m *Machine) Mode() Mode {
	mode := <-m.mode
	m.mode <- mode
	return mode
}

// SetMode transitions to the requested mode, synchronously stopping the old
// source before starting the new one so rapid toggling never overlaps two
// sources.
func (m *Machine) SetMode(ctx context.Context, mode Mode) {
	current := <-m.mode
	if mode == current {
		m.mode <- current
		return
	}

	// Stop whichever source served the old mode before anything else;
	// Stop is synchronous and idempotent.
	switch current {
	case Listening:
		m.monitor.Stop()
	case Speaking:
		m.simulator.Stop()
	}

	// A transition hands the renderer back to the managed pipeline; any
	// external level feed from a standalone overlay ends here.
	m.renderer.ClearExternalLevel()

	switch mode {
	case Listening:
		if err := m.monitor.Start(ctx); err != nil {
			// Degrade to a flat level instead of refusing the mode:
			// the overlay stays functional, the level reads zero.
			slog.Error("microphone unavailable", "error", err)
			m.bus.Publish(events.MicError, map[string]string{"error": err.Error()})
		}
		m.renderer.SetSource(m.monitor.Level)
		m.renderer.SetMode(waveform.ModeActive)
	case Speaking:
		if err := m.simulator.Start(ctx); err != nil {
			slog.Error("failed to start speech simulator", "error", err)
		}
		m.renderer.SetSource(m.simulator.Level)
		m.renderer.SetMode(waveform.ModeProcessing)
	default:
		m.renderer.SetSource(nil)
		m.renderer.SetMode(waveform.ModeIdle)
	}

	// Audible cue on entering or leaving Listening. Fire and forget;
	// playback failure never blocks the transition.
	if m.player != nil {
		if mode == Listening {
			m.player.Play(audio.CueStart)
		} else if current == Listening {
			m.player.Play(audio.CueStop)
		}
	}

	m.mode <- mode
	m.bus.Publish(events.OverlayStateChange, map[string]string{"state": mode.overlayState()})

	slog.Info("interaction mode changed", "from", current.String(), "to", mode.String())
}

// Level returns the level of the active source, or zero in Idle.
func (m *Machine) Level() float64 {
	switch m.Mode() {
	case Listening:
		return m.monitor.Level()
	case Speaking:
		return m.simulator.Level()
	default:
		return 0
	}
}

// Run consumes backend lifecycle events until the context is canceled.
// Recording and transcription events drive the mode; audio-level events
// feed the renderer directly (the standalone overlay variant). The
// subscription was opened in New, so events published before Run starts
// are waiting in the buffer.
func (m *Machine) Run(ctx context.Context) {
	defer m.bus.Unsubscribe(m.eventCh)

	for {
		select {
		case <-ctx.Done():
			m.SetMode(context.Background(), Idle)
			return
		case evt := <-m.eventCh:
			m.handleEvent(ctx, evt)
		}
	}
}

func (m *Machine) handleEvent(ctx context.Context, evt events.Event) {
	switch evt.Name {
	case events.RecordingStarted:
		m.SetMode(ctx, Listening)
	case events.RecordingStopped:
		m.SetMode(ctx, Speaking)
	case events.RecordingCanceled, events.TranscriptionCompleted, events.TranscriptionError:
		m.SetMode(ctx, Idle)
	case events.AudioLevel:
		if v, ok := evt.Payload.(float64); ok {
			m.renderer.SetExternalLevel(v)
		}
	}
}
