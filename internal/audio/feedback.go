package audio

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
)

// Cue identifies a feedback sound.
type Cue int

// Cue kinds for recording transitions.
const (
	CueStart Cue = iota
	CueStop
)

// Cue tone parameters. Short sine bursts are synthesized instead of shipping
// sound files; the rising tone marks recording start, the falling tone stop.
const (
	cueStartFreq = 880.0
	cueStopFreq  = 440.0
	cueDuration  = 120 * time.Millisecond

	playbackSampleRate = 48000
)

// Player plays short cue tones through the default output device. Playback
// is fire and forget: failures are logged and never reach the caller, so a
// broken output device cannot block a mode transition.
type Player struct {
	mu      sync.Mutex
	enabled bool
	volume  float64
}

// NewPlayer returns a player with feedback enabled at the given volume.
func NewPlayer(enabled bool, volume float64) *Player {
	return &Player{enabled: enabled, volume: volume}
}

// Configure updates the enabled flag and volume.
func (p *Player) Configure(enabled bool, volume float64) {
	p.mu.Lock()
	p.enabled = enabled
	p.volume = volume
	p.mu.Unlock()
}

// Play asynchronously plays the cue if feedback is enabled.
func (p *Player) Play(cue Cue) {
	p.mu.Lock()
	enabled, volume := p.enabled, p.volume
	p.mu.Unlock()

	if !enabled {
		return
	}

	go func() {
		if err := playTone(cue, volume); err != nil {
			slog.Warn("cue playback failed", "error", err)
		}
	}()
}

// playTone synthesizes the cue and blocks until playback completes.
func playTone(cue Cue, volume float64) error {
	freq := cueStartFreq
	if cue == CueStop {
		freq = cueStopFreq
	}

	samples := synthesizeTone(freq, volume)

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = 1
	deviceConfig.SampleRate = playbackSampleRate
	deviceConfig.Alsa.NoMMap = 1

	done := make(chan struct{})
	pos := 0

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: func(output, _ []byte, frameCount uint32) {
			for i := uint32(0); i < frameCount; i++ {
				var s int16
				if pos < len(samples) {
					s = samples[pos]
					pos++
				}
				output[2*i] = byte(s)
				output[2*i+1] = byte(s >> 8)
			}
			if pos >= len(samples) {
				select {
				case done <- struct{}{}:
				default:
				}
			}
		},
	})
	if err != nil {
		return err
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return err
	}

	select {
	case <-done:
	case <-time.After(cueDuration + time.Second):
	}
	return nil
}

// synthesizeTone renders a sine burst with a short fade to avoid clicks.
func synthesizeTone(freq, volume float64) []int16 {
	n := int(float64(playbackSampleRate) * cueDuration.Seconds())
	fade := n / 8
	samples := make([]int16, n)

	for i := range samples {
		v := math.Sin(2*math.Pi*freq*float64(i)/playbackSampleRate) * volume

		switch {
		case i < fade:
			v *= float64(i) / float64(fade)
		case i > n-fade:
			v *= float64(n-i) / float64(fade)
		}

		samples[i] = int16(v * 32767)
	}
	return samples
}
