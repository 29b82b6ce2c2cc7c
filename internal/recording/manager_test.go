package recording

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxtype/voxtype/internal/events"
	"github.com/voxtype/voxtype/internal/transcribe"
)

type fakeCapturer struct {
	samples []int16
	drains  int
}

func (f *fakeCapturer) Drain() []int16 {
	f.drains++
	out := f.samples
	f.samples = nil
	return out
}

type fakeTranscriber struct {
	text string
	err  error
	got  []int16
}

func (f *fakeTranscriber) Transcribe(_ context.Context, samples []int16, _ int) (*transcribe.Result, error) {
	f.got = samples
	if f.err != nil {
		return nil, f.err
	}
	return &transcribe.Result{Text: f.text}, nil
}

func collect(t *testing.T, ch chan events.Event, names ...string) []events.Event {
	t.Helper()
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}

	var out []events.Event
	deadline := time.After(2 * time.Second)
	for len(out) < len(names) {
		select {
		case evt := <-ch:
			if want[evt.Name] {
				out = append(out, evt)
			}
		case <-deadline:
			t.Fatalf("timed out; got %d of %d events", len(out), len(names))
		}
	}
	return out
}

func newTestManager(capturer *fakeCapturer, transcriber *fakeTranscriber) (*Manager, chan events.Event) {
	bus := events.NewBus()
	ch := make(chan events.Event, 64)
	bus.Subscribe(ch)
	return NewManager(capturer, transcriber, bus, 16000), ch
}

func TestSessionLifecycleEvents(t *testing.T) {
	capturer := &fakeCapturer{samples: []int16{1, 2, 3}}
	transcriber := &fakeTranscriber{text: "hello"}
	m, ch := newTestManager(capturer, transcriber)

	require.NoError(t, m.Start())
	assert.Equal(t, StateRecording, m.State())

	require.NoError(t, m.Stop(context.Background()))

	got := collect(t, ch,
		events.RecordingStarted,
		events.RecordingStopped,
		events.TranscriptionStarted,
		events.TranscriptionCompleted,
	)

	payload, ok := got[3].Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "hello", payload["text"])
	assert.Equal(t, []int16{1, 2, 3}, transcriber.got)
	assert.Eventually(t, func() bool { return m.State() == StateIdle }, time.Second, 5*time.Millisecond)
}

func TestStopWithoutStartFails(t *testing.T) {
	m, _ := newTestManager(&fakeCapturer{}, &fakeTranscriber{})
	assert.ErrorIs(t, m.Stop(context.Background()), ErrNotRecording)
}

func TestStartWhileBusyFails(t *testing.T) {
	m, _ := newTestManager(&fakeCapturer{}, &fakeTranscriber{})
	require.NoError(t, m.Start())
	assert.ErrorIs(t, m.Start(), ErrBusy)
}

func TestEmptyCaptureReportsError(t *testing.T) {
	m, ch := newTestManager(&fakeCapturer{}, &fakeTranscriber{text: "never"})

	require.NoError(t, m.Start())
	require.NoError(t, m.Stop(context.Background()))

	got := collect(t, ch, events.TranscriptionError)
	payload, ok := got[0].Payload.(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "no audio captured", payload["error"])
}

func TestTranscriptionFailureReportsError(t *testing.T) {
	capturer := &fakeCapturer{samples: []int16{1}}
	transcriber := &fakeTranscriber{err: errors.New("endpoint down")}
	m, ch := newTestManager(capturer, transcriber)

	require.NoError(t, m.Start())
	require.NoError(t, m.Stop(context.Background()))

	got := collect(t, ch, events.TranscriptionError)
	payload, ok := got[0].Payload.(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "endpoint down", payload["error"])
	assert.Eventually(t, func() bool { return m.State() == StateIdle }, time.Second, 5*time.Millisecond)
}

func TestCancelDiscardsCapture(t *testing.T) {
	capturer := &fakeCapturer{samples: []int16{9, 9}}
	m, ch := newTestManager(capturer, &fakeTranscriber{})

	require.NoError(t, m.Start())
	require.NoError(t, m.Cancel())

	collect(t, ch, events.RecordingCanceled)
	assert.Equal(t, StateIdle, m.State())
	assert.Equal(t, 1, capturer.drains)

	// Canceling twice is an error.
	assert.ErrorIs(t, m.Cancel(), ErrNotRecording)
}
