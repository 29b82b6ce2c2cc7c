package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/voxtype/voxtype/internal/level"
)

// ErrDeviceUnavailable is returned when the microphone cannot be acquired,
// either because permission was denied or no capture device exists.
var ErrDeviceUnavailable = errors.New("audio input device unavailable")

// Capture parameters. Transcription backends expect 16kHz mono PCM16, and
// the level analysis runs on the same stream.
const (
	SampleRate = 16000
	Channels   = 1

	noiseFloor   = 20.0
	dynamicRange = 80.0
	levelRate    = 0.06

	// Recording is bounded so a forgotten session cannot grow unchecked.
	maxRecordingSeconds = 10 * 60
	maxRecordingSamples = SampleRate * maxRecordingSeconds
)

// Monitor owns the exclusive microphone stream and exposes a smoothed
// normalized loudness level, updated once per frame. It also accumulates the
// raw capture for the recording manager to drain.
type Monitor struct {
	mu sync.Mutex

	ctx    *malgo.AllocatedContext
	device *malgo.Device

	deviceName string

	window [FFTSize]float64
	wpos   int

	recording []int16

	started bool
	level   float64
}

// NewMonitor returns a stopped monitor capturing from the default device.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// SetDevice selects the capture device by display name for the next Start.
// An empty name selects the system default.
func (m *Monitor) SetDevice(name string) {
	m.mu.Lock()
	m.deviceName = name
	m.mu.Unlock()
}

// Start acquires the microphone and begins capturing. Any prior session is
// stopped first, so at most one stream is ever open. On failure all internal
// state is released and ErrDeviceUnavailable is returned.
func (m *Monitor) Start(ctx context.Context) error {
	m.Stop()

	allocated, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("%w: init context: %v", ErrDeviceUnavailable, err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.PeriodSizeInMilliseconds = 20
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = Channels
	deviceConfig.SampleRate = SampleRate
	deviceConfig.Alsa.NoMMap = 1

	m.mu.Lock()
	name := m.deviceName
	m.mu.Unlock()

	if name != "" {
		if id, ok := findCaptureDevice(allocated, name); ok {
			deviceConfig.Capture.DeviceID = id.Pointer()
		}
	}

	device, err := malgo.InitDevice(allocated.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			m.ingest(input)
		},
	})
	if err != nil {
		_ = allocated.Uninit()
		allocated.Free()
		return fmt.Errorf("%w: init device: %v", ErrDeviceUnavailable, err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = allocated.Uninit()
		allocated.Free()
		return fmt.Errorf("%w: start device: %v", ErrDeviceUnavailable, err)
	}

	select {
	case <-ctx.Done():
		device.Uninit()
		_ = allocated.Uninit()
		allocated.Free()
		return ctx.Err()
	default:
	}

	m.mu.Lock()
	m.ctx = allocated
	m.device = device
	m.started = true
	m.recording = m.recording[:0]
	m.wpos = 0
	clear(m.window[:])
	m.mu.Unlock()

	return nil
}

// Stop releases the capture device and resets the exposed level to zero.
// It is idempotent and returns only after the stream is fully released, so
// an immediate Start never races a leaked session.
func (m *Monitor) Stop() {
	m.mu.Lock()
	device, ctx := m.device, m.ctx
	m.device, m.ctx = nil, nil
	m.started = false
	m.level = 0
	m.mu.Unlock()

	if device != nil {
		device.Uninit()
	}
	if ctx != nil {
		_ = ctx.Uninit()
		ctx.Free()
	}
}

// Level returns the current smoothed level without blocking.
func (m *Monitor) Level() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level
}

// Drain returns the accumulated recording and clears the buffer.
func (m *Monitor) Drain() []int16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int16, len(m.recording))
	copy(out, m.recording)
	m.recording = m.recording[:0]
	return out
}

// Tick recomputes the level from the most recent sample window. The raw
// input is noisy enough that a single slow rate suffices; no separate
// attack rate is used here.
func (m *Monitor) Tick(_ time.Time) {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	var window [FFTSize]float64
	// Unroll the ring so the window is in chronological order.
	n := copy(window[:], m.window[m.wpos:])
	copy(window[n:], m.window[:m.wpos])
	m.mu.Unlock()

	mean := MeanMagnitude(ByteFrequencyData(window[:]))
	target := level.Clamp((mean-noiseFloor)/dynamicRange, 0, 1)

	m.mu.Lock()
	if m.started {
		m.level = level.Next(m.level, target, levelRate, levelRate)
	}
	m.mu.Unlock()
}

// ingest appends S16LE mono PCM from the capture callback.
func (m *Monitor) ingest(input []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return
	}

	for i := 0; i+1 < len(input); i += 2 {
		sample := int16(input[i]) | int16(input[i+1])<<8
		m.window[m.wpos] = float64(sample) / 32768.0
		m.wpos = (m.wpos + 1) % FFTSize

		if len(m.recording) < maxRecordingSamples {
			m.recording = append(m.recording, sample)
		}
	}
}

// findCaptureDevice resolves a device display name to its malgo ID.
func findCaptureDevice(ctx *malgo.AllocatedContext, name string) (malgo.DeviceID, bool) {
	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return malgo.DeviceID{}, false
	}
	for _, info := range infos {
		if info.Name() == name {
			return info.ID, true
		}
	}
	return malgo.DeviceID{}, false
}
