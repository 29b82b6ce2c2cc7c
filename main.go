// Package main provides voxtype, a local voice-typing daemon. It captures
// microphone audio, transcribes it, and serves a real-time visualizer
// overlay over WebSocket.
//
// Usage:
//
//	voxtype [-config path/to/config.json]
//
// If -config is not specified, the daemon uses config.json under the
// per-user voxtype configuration directory.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/voxtype/voxtype/internal/audio"
	"github.com/voxtype/voxtype/internal/config"
	"github.com/voxtype/voxtype/internal/eventlog"
	"github.com/voxtype/voxtype/internal/events"
	"github.com/voxtype/voxtype/internal/frames"
	"github.com/voxtype/voxtype/internal/models"
	"github.com/voxtype/voxtype/internal/recording"
	"github.com/voxtype/voxtype/internal/sim"
	"github.com/voxtype/voxtype/internal/state"
	"github.com/voxtype/voxtype/internal/transcribe"
	"github.com/voxtype/voxtype/internal/util"
	"github.com/voxtype/voxtype/internal/waveform"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: config.json in the user config directory)")
	showVersion := flag.Bool("version", false, "Print version information and exit")
	flag.Parse()

	if *showVersion {
		slog.Info("version info", "version", Version, "commit", Commit, "build_time", BuildTime)
		return
	}

	if *configPath == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			slog.Error("failed to resolve user config directory", "error", err)
			os.Exit(1)
		}
		*configPath = filepath.Join(base, "voxtype", "config.json")
	}

	slog.Info("using config file", "path", *configPath)

	cfg := config.New(*configPath)
	if err := cfg.Load(); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	snap := cfg.Snapshot()

	if err := util.CheckPathWritable(cfg.DataDir()); err != nil {
		slog.Error("data directory is not usable", "path", cfg.DataDir(), "error", err)
		os.Exit(1)
	}

	bus := events.NewBus()

	monitor := audio.NewMonitor()
	monitor.SetDevice(snap.InputDevice)

	simulator := sim.NewSimulator(nil, nil)

	renderer := waveform.NewRenderer(snap.OverlayWidth, snap.OverlayHeight)
	renderer.SetSensitivity(snap.Sensitivity)

	player := audio.NewPlayer(snap.FeedbackEnabled, snap.FeedbackVolume)

	machine := state.New(monitor, simulator, renderer, player, bus)

	library := models.NewManager(snap, filepath.Join(cfg.DataDir(), "models"), bus)

	sessions := recording.NewManager(monitor, newTranscriber(snap), bus, audio.SampleRate)
	autoStop := recording.NewAutoStop(sessions, vadSource{monitor: monitor, cfg: cfg})

	// One frame loop drives capture analysis, the synthetic envelope, and
	// the bar renderer, in that order.
	scheduler := frames.NewScheduler(nil, frames.DefaultInterval)
	scheduler.Register(monitor)
	scheduler.Register(simulator)
	scheduler.Register(renderer)
	scheduler.Start()

	checker := NewVersionChecker()

	runCtx, cancelRun := context.WithCancel(context.Background())
	go machine.Run(runCtx)
	go autoStop.Run(runCtx)
	go checker.Run(runCtx)

	history, err := eventlog.NewLogger(historyPath(cfg))
	if err != nil {
		slog.Warn("dictation history disabled", "error", err)
	} else {
		go history.Run(runCtx, bus)
	}

	srv := NewServer(cfg, machine, sessions, library, renderer, bus, monitor, player, checker)
	httpServer := srv.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, util.ShutdownSignals()...)
	<-sigChan

	slog.Info("shutting down")

	cancelRun()
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	monitor.Stop()
	simulator.Stop()
	if history != nil {
		if err := history.Close(); err != nil {
			slog.Debug("history close error", "error", err)
		}
	}

	slog.Info("shutdown complete")
}

// newTranscriber picks the configured transcription backend. Without a cloud
// endpoint every session fails with a clear error instead of hanging.
func newTranscriber(snap config.Snapshot) recording.Transcriber {
	client, err := transcribe.NewClient(snap)
	if err != nil {
		slog.Warn("cloud transcription not configured; sessions will fail until an endpoint is set")
		return unconfiguredTranscriber{}
	}
	return client
}

// vadSource feeds the auto-stop supervisor the live capture level and the
// current detection settings.
type vadSource struct {
	monitor *audio.Monitor
	cfg     *config.Config
}

func (s vadSource) Level() float64 { return s.monitor.Level() }

func (s vadSource) VADSettings() (bool, float64) { return s.cfg.VADSettings() }

// unconfiguredTranscriber fails every request with ErrNoEndpoint.
type unconfiguredTranscriber struct{}

func (unconfiguredTranscriber) Transcribe(context.Context, []int16, int) (*transcribe.Result, error) {
	return nil, transcribe.ErrNoEndpoint
}
