package state

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxtype/voxtype/internal/audio"
	"github.com/voxtype/voxtype/internal/events"
	"github.com/voxtype/voxtype/internal/waveform"
)

type fakeSource struct {
	mu      sync.Mutex
	running bool
	starts  int
	stops   int
	level   float64
	failure error
}

func (f *fakeSource) Start(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.failure != nil {
		return f.failure
	}
	f.running = true
	return nil
}

func (f *fakeSource) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.running = false
}

func (f *fakeSource) Level() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running {
		return 0
	}
	return f.level
}

func (f *fakeSource) isRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

type fakePlayer struct {
	mu   sync.Mutex
	cues []audio.Cue
}

func (p *fakePlayer) Play(cue audio.Cue) {
	p.mu.Lock()
	p.cues = append(p.cues, cue)
	p.mu.Unlock()
}

func (p *fakePlayer) played() []audio.Cue {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]audio.Cue, len(p.cues))
	copy(out, p.cues)
	return out
}

func newTestMachine() (*Machine, *fakeSource, *fakeSource, *fakePlayer, *events.Bus) {
	monitor := &fakeSource{level: 0.8}
	simulator := &fakeSource{level: 0.4}
	player := &fakePlayer{}
	bus := events.NewBus()
	m := New(monitor, simulator, waveform.NewRenderer(300, 50), player, bus)
	return m, monitor, simulator, player, bus
}

func TestMachineStartsInIdle(t *testing.T) {
	m, monitor, simulator, _, _ := newTestMachine()

	assert.Equal(t, Idle, m.Mode())
	assert.False(t, monitor.isRunning())
	assert.False(t, simulator.isRunning())
	assert.Equal(t, 0.0, m.Level())
}

func TestMachineRunsAtMostOneSource(t *testing.T) {
	m, monitor, simulator, _, _ := newTestMachine()
	ctx := context.Background()

	m.SetMode(ctx, Listening)
	assert.True(t, monitor.isRunning())
	assert.False(t, simulator.isRunning())

	m.SetMode(ctx, Speaking)
	assert.False(t, monitor.isRunning())
	assert.True(t, simulator.isRunning())

	m.SetMode(ctx, Idle)
	assert.False(t, monitor.isRunning())
	assert.False(t, simulator.isRunning())
}

func TestMachineSetModeIsIdempotent(t *testing.T) {
	m, monitor, _, _, _ := newTestMachine()
	ctx := context.Background()

	m.SetMode(ctx, Listening)
	m.SetMode(ctx, Listening)

	assert.Equal(t, 1, monitor.starts)
	assert.Equal(t, 0, monitor.stops)
}

func TestMachineLevelTracksActiveSource(t *testing.T) {
	m, _, _, _, _ := newTestMachine()
	ctx := context.Background()

	m.SetMode(ctx, Listening)
	assert.Equal(t, 0.8, m.Level())

	m.SetMode(ctx, Speaking)
	assert.Equal(t, 0.4, m.Level())

	m.SetMode(ctx, Idle)
	assert.Equal(t, 0.0, m.Level())
}

func TestMachinePublishesOverlayState(t *testing.T) {
	m, _, _, _, bus := newTestMachine()
	ctx := context.Background()

	ch := make(chan events.Event, 16)
	bus.Subscribe(ch)
	defer bus.Unsubscribe(ch)

	m.SetMode(ctx, Listening)
	m.SetMode(ctx, Speaking)
	m.SetMode(ctx, Idle)

	states := make([]string, 0, 3)
	for len(states) < 3 {
		select {
		case evt := <-ch:
			if evt.Name != events.OverlayStateChange {
				continue
			}
			payload, ok := evt.Payload.(map[string]string)
			require.True(t, ok)
			states = append(states, payload["state"])
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for overlay state events")
		}
	}
	assert.Equal(t, []string{"recording", "transcribing", "hidden"}, states)
}

func TestMachinePlaysCuesOnListeningTransitions(t *testing.T) {
	m, _, _, player, _ := newTestMachine()
	ctx := context.Background()

	m.SetMode(ctx, Listening)
	m.SetMode(ctx, Speaking)

	assert.Equal(t, []audio.Cue{audio.CueStart, audio.CueStop}, player.played())
}

func TestMachineToleratesMicrophoneFailure(t *testing.T) {
	m, monitor, _, _, bus := newTestMachine()
	monitor.failure = errors.New("no capture device")
	ctx := context.Background()

	ch := make(chan events.Event, 16)
	bus.Subscribe(ch)
	defer bus.Unsubscribe(ch)

	m.SetMode(ctx, Listening)

	// The mode sticks even though the source failed, and the level reads
	// flat zero instead of panicking or refusing the transition.
	assert.Equal(t, Listening, m.Mode())
	assert.Equal(t, 0.0, m.Level())

	sawError := false
	for !sawError {
		select {
		case evt := <-ch:
			if evt.Name == events.MicError {
				sawError = true
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for mic error event")
		}
	}
}

func TestMachineFollowsLifecycleEvents(t *testing.T) {
	m, monitor, simulator, _, bus := newTestMachine()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	waitForMode := func(want Mode) {
		deadline := time.Now().Add(time.Second)
		for m.Mode() != want {
			if time.Now().After(deadline) {
				t.Fatalf("mode never reached %s", want)
			}
			time.Sleep(time.Millisecond)
		}
	}

	bus.Publish(events.RecordingStarted, nil)
	waitForMode(Listening)
	assert.True(t, monitor.isRunning())

	bus.Publish(events.RecordingStopped, nil)
	waitForMode(Speaking)
	assert.True(t, simulator.isRunning())
	assert.False(t, monitor.isRunning())

	bus.Publish(events.TranscriptionCompleted, map[string]string{"text": "hello"})
	waitForMode(Idle)
	assert.False(t, simulator.isRunning())

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run loop did not exit on cancel")
	}
}

func TestMachineDeliversEventsPublishedBeforeRun(t *testing.T) {
	m, monitor, _, _, bus := newTestMachine()

	// Published before the run loop is scheduled; the construction-time
	// subscription must buffer it.
	bus.Publish(events.RecordingStarted, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	deadline := time.Now().Add(time.Second)
	for m.Mode() != Listening {
		if time.Now().After(deadline) {
			t.Fatal("mode never reached listening")
		}
		time.Sleep(time.Millisecond)
	}
	assert.True(t, monitor.isRunning())
}

func TestMachineTransitionEndsExternalLevelFeed(t *testing.T) {
	monitor := &fakeSource{level: 1.0}
	simulator := &fakeSource{}
	renderer := waveform.NewRenderer(300, 50)
	m := New(monitor, simulator, renderer, nil, events.NewBus())

	// A standalone overlay feed pins the displayed level to zero.
	renderer.SetExternalLevel(0)

	m.SetMode(context.Background(), Listening)
	for i := 0; i < 100; i++ {
		renderer.Tick(time.Now())
	}
	assert.Greater(t, renderer.Frame().Level, 0.5,
		"a transition should hand the renderer back to the live source")
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, Listening, ParseMode("listening"))
	assert.Equal(t, Speaking, ParseMode("speaking"))
	assert.Equal(t, Idle, ParseMode("idle"))
	assert.Equal(t, Idle, ParseMode("garbage"))
}
