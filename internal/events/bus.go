// Package events provides the publish/subscribe bus that carries backend
// lifecycle events to the state machine and connected WebSocket clients.
package events

import (
	"log/slog"
	"sync"
	"time"
)

// Event names are the wire contract between the daemon and its clients.
const (
	RecordingStarted       = "recording-started"
	RecordingStopped       = "recording-stopped"
	RecordingCanceled      = "recording-canceled"
	TranscriptionStarted   = "transcription-started"
	TranscriptionCompleted = "transcription-completed"
	TranscriptionError     = "transcription-error"
	OverlayStateChange     = "overlay-state-change"
	AudioLevel             = "audio-level"
	MicError               = "mic-error"

	ModelDownloadStarted  = "model-download-started"
	ModelDownloadProgress = "model-download-progress"
	ModelDownloadComplete = "model-download-complete"
	ModelDownloadError    = "model-download-error"
)

// Event is a named notification with an optional JSON-able payload.
type Event struct {
	Name      string    `json:"event"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Bus fans events out to subscribed channels. It is safe for concurrent use.
// Delivery is non-blocking: a subscriber that cannot keep up loses events
// rather than stalling the publisher.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

// NewBus returns an empty event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[chan Event]struct{})}
}

// Subscribe registers ch to receive all published events.
func (b *Bus) Subscribe(ch chan Event) {
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
}

// Unsubscribe removes ch from the subscriber set.
func (b *Bus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
}

// Publish delivers an event to every subscriber.
func (b *Bus) Publish(name string, payload any) {
	evt := Event{Name: name, Payload: payload, Timestamp: time.Now()}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs {
		select {
		case ch <- evt:
		default:
			slog.Warn("event subscriber is full, dropping event", "event", name)
		}
	}
}
