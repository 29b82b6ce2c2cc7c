// Package eventlog keeps a persistent history of dictation activity.
// Session outcomes (completed, failed, canceled) and model library changes
// are appended to a single JSON lines file so users can review what was
// transcribed and when, across daemon restarts.
package eventlog

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/voxtype/voxtype/internal/events"
)

// EventType represents the type of history entry.
type EventType string

// Session event types.
const (
	SessionCompleted EventType = "session_completed"
	SessionError     EventType = "session_error"
	SessionCanceled  EventType = "session_canceled"
)

// Model library event types.
const (
	ModelDownloaded     EventType = "model_downloaded"
	ModelDownloadFailed EventType = "model_download_failed"
)

// Event represents a single history entry with type-specific details.
type Event struct {
	Timestamp time.Time `json:"ts"`
	Type      EventType `json:"type"`
	Details   any       `json:"details,omitempty"`
}

// SessionDetails describes a finished dictation session.
type SessionDetails struct {
	Text       string `json:"text,omitempty"`
	Chars      int    `json:"chars,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	Error      string `json:"error,omitempty"`
}

// ModelDetails describes a model library change.
type ModelDetails struct {
	ModelID string `json:"model_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Logger writes history entries to a JSON lines file.
type Logger struct {
	mu       sync.Mutex
	filePath string
	file     *os.File
	encoder  *json.Encoder
}

// NewLogger creates a history logger at the specified path.
func NewLogger(filePath string) (*Logger, error) {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open history file: %w", err)
	}

	return &Logger{
		filePath: filePath,
		file:     file,
		encoder:  json.NewEncoder(file),
	}, nil
}

// Log appends an entry to the history file.
func (l *Logger) Log(event *Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	return l.encoder.Encode(event)
}

// Run subscribes to the bus and records session and model outcomes until the
// context is canceled. Write errors are dropped; history is best-effort.
func (l *Logger) Run(ctx context.Context, bus *events.Bus) {
	ch := make(chan events.Event, 32)
	bus.Subscribe(ch)
	defer bus.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-ch:
			if entry := translate(evt); entry != nil {
				_ = l.Log(entry)
			}
		}
	}
}

// translate maps a bus event onto a history entry, or nil for events that do
// not belong in the history.
func translate(evt events.Event) *Event {
	switch evt.Name {
	case events.TranscriptionCompleted:
		details := SessionDetails{}
		if m, ok := evt.Payload.(map[string]any); ok {
			if text, ok := m["text"].(string); ok {
				details.Text = text
				details.Chars = len(text)
			}
			if ms, ok := m["duration_ms"].(int64); ok {
				details.DurationMs = ms
			}
		}
		return &Event{Type: SessionCompleted, Details: details}
	case events.TranscriptionError:
		details := SessionDetails{}
		if m, ok := evt.Payload.(map[string]string); ok {
			details.Error = m["error"]
		}
		return &Event{Type: SessionError, Details: details}
	case events.RecordingCanceled:
		return &Event{Type: SessionCanceled}
	case events.ModelDownloadComplete:
		return &Event{Type: ModelDownloaded, Details: modelDetails(evt.Payload)}
	case events.ModelDownloadError:
		details := ModelDetails{}
		if m, ok := evt.Payload.(map[string]string); ok {
			details.ModelID = m["model"]
			details.Error = m["error"]
		}
		return &Event{Type: ModelDownloadFailed, Details: details}
	default:
		return nil
	}
}

// modelDetails pulls the model ID out of a download payload via its JSON
// form, so this package does not depend on the models package's types.
func modelDetails(payload any) ModelDetails {
	data, err := json.Marshal(payload)
	if err != nil {
		return ModelDetails{}
	}
	var m struct {
		ModelID string `json:"model"`
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return ModelDetails{}
	}
	return ModelDetails{ModelID: m.ModelID}
}

// Close closes the history file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Path returns the path to the history file.
func (l *Logger) Path() string {
	return l.filePath
}

// TypeFilter specifies which entry types to include when reading.
type TypeFilter string

// Filter constants for ReadLast.
const (
	FilterAll     TypeFilter = ""
	FilterSession TypeFilter = "session"
	FilterModel   TypeFilter = "model"
)

// MaxReadLimit caps how many entries a single read returns.
const MaxReadLimit = 500

// ReadLast reads history entries with pagination support. Returns up to n
// entries starting from offset, newest first, filtered by type. The second
// return value reports whether more entries are available past the page.
func ReadLast(filePath string, n, offset int, filter TypeFilter) ([]Event, bool, error) {
	if n > MaxReadLimit {
		n = MaxReadLimit
	}
	if n <= 0 {
		return []Event{}, false, nil
	}

	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []Event{}, false, nil
		}
		return nil, false, err
	}
	defer func() { _ = file.Close() }()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, false, err
	}

	matches := func(t EventType) bool {
		switch filter {
		case FilterSession:
			return IsSessionEvent(t)
		case FilterModel:
			return IsModelEvent(t)
		default:
			return true
		}
	}

	out := make([]Event, 0, n)
	skipped := 0
	hasMore := false
	for i := len(lines) - 1; i >= 0; i-- {
		var event Event
		if err := json.Unmarshal([]byte(lines[i]), &event); err != nil {
			continue // skip malformed lines
		}
		if !matches(event.Type) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		if len(out) == n {
			hasMore = true
			break
		}
		out = append(out, event)
	}

	return out, hasMore, nil
}

// IsSessionEvent returns true if the entry type is a session outcome.
func IsSessionEvent(t EventType) bool {
	return t == SessionCompleted || t == SessionError || t == SessionCanceled
}

// IsModelEvent returns true if the entry type is a model library change.
func IsModelEvent(t EventType) bool {
	return t == ModelDownloaded || t == ModelDownloadFailed
}
