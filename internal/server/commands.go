package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/voxtype/voxtype/internal/audio"
	"github.com/voxtype/voxtype/internal/config"
	"github.com/voxtype/voxtype/internal/models"
	"github.com/voxtype/voxtype/internal/recording"
	"github.com/voxtype/voxtype/internal/state"
	"github.com/voxtype/voxtype/internal/waveform"
)

// WSCommand is a command received from a WebSocket client.
type WSCommand struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// DeviceSelector switches the capture device used for later recordings.
type DeviceSelector interface {
	SetDevice(name string)
}

// FeedbackConfigurer applies cue playback settings.
type FeedbackConfigurer interface {
	Configure(enabled bool, volume float64)
}

// CommandHandler processes WebSocket commands.
type CommandHandler struct {
	cfg      *config.Config
	machine  *state.Machine
	sessions *recording.Manager
	library  *models.Manager
	renderer *waveform.Renderer
	capture  DeviceSelector
	feedback FeedbackConfigurer

	// listDevices is injectable so tests run without audio hardware.
	listDevices func() []audio.Device
}

// NewCommandHandler creates a new command handler.
func NewCommandHandler(cfg *config.Config, machine *state.Machine, sessions *recording.Manager, library *models.Manager, renderer *waveform.Renderer, capture DeviceSelector, feedback FeedbackConfigurer) *CommandHandler {
	return &CommandHandler{
		cfg:         cfg,
		machine:     machine,
		sessions:    sessions,
		library:     library,
		renderer:    renderer,
		capture:     capture,
		feedback:    feedback,
		listDevices: audio.ListDevices,
	}
}

// Handle processes a WebSocket command and performs the requested action.
// Commands use slash-style format: namespace/action (e.g., "recording/start")
func (h *CommandHandler) Handle(ctx context.Context, cmd WSCommand, send chan<- any) {
	parts := strings.SplitN(cmd.Type, "/", 2)
	namespace := parts[0]
	action := ""
	if len(parts) > 1 {
		action = parts[1]
	}

	switch namespace {
	case "recording":
		h.handleRecording(ctx, action, cmd, send)
	case "mode":
		h.handleMode(ctx, action, cmd, send)
	case "surface":
		h.handleSurface(action, cmd, send)
	case "overlay":
		h.handleOverlay(action, cmd, send)
	case "models":
		h.handleModels(ctx, action, cmd, send)
	case "vad":
		h.handleVAD(ctx, action, cmd, send)
	case "settings":
		h.handleSettings(action, cmd, send)
	case "devices":
		h.handleDevices(action, cmd, send)
	case "status":
		h.handleStatus(action, send)
	default:
		slog.Warn("unknown WebSocket command", "type", cmd.Type)
	}
}

// --- Namespace handlers ---

// handleRecording routes recording/* commands.
func (h *CommandHandler) handleRecording(ctx context.Context, action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "start":
		if err := h.sessions.Start(); err != nil {
			SendError(send, cmd.Type, err)
			return
		}
		SendSuccess(send, cmd.Type, nil)
	case "stop":
		if err := h.sessions.Stop(ctx); err != nil {
			SendError(send, cmd.Type, err)
			return
		}
		SendSuccess(send, cmd.Type, nil)
	case "cancel":
		if err := h.sessions.Cancel(); err != nil {
			SendError(send, cmd.Type, err)
			return
		}
		SendSuccess(send, cmd.Type, nil)
	default:
		slog.Warn("unknown recording action", "action", action)
	}
}

// handleMode routes mode/* commands. Direct mode control is meant for the
// overlay's preview and for clients that drive the visualizer without a
// recording session.
func (h *CommandHandler) handleMode(ctx context.Context, action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "set":
		HandleCommand(cmd, send, func(req *ModeSetRequest) error {
			h.machine.SetMode(ctx, state.ParseMode(req.Mode))
			return nil
		})
	default:
		slog.Warn("unknown mode action", "action", action)
	}
}

// handleSurface routes surface/* commands.
func (h *CommandHandler) handleSurface(action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "resize":
		HandleCommand(cmd, send, func(req *SurfaceResizeRequest) error {
			h.renderer.Resize(req.Width, req.Height)
			return h.cfg.SetOverlaySize(req.Width, req.Height)
		})
	default:
		slog.Warn("unknown surface action", "action", action)
	}
}

// handleOverlay routes overlay/* commands.
func (h *CommandHandler) handleOverlay(action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "level":
		// External level feeds arrive every frame; skip the success
		// response to keep the channel quiet.
		var req OverlayLevelRequest
		if !DecodeAndValidate(cmd, send, &req) {
			return
		}
		h.renderer.SetExternalLevel(req.Level)
	case "position":
		HandleCommand(cmd, send, func(req *OverlayPositionRequest) error {
			return h.cfg.SetOverlayPosition(req.Position)
		})
	default:
		slog.Warn("unknown overlay action", "action", action)
	}
}

// handleModels routes models/* commands.
func (h *CommandHandler) handleModels(ctx context.Context, action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "list":
		SendSuccess(send, cmd.Type, h.library.List())
	case "download":
		HandleCommand(cmd, send, func(req *ModelRequest) error {
			return h.library.Download(ctx, req.ID)
		})
	case "cancel":
		HandleCommand(cmd, send, func(req *ModelRequest) error {
			h.library.CancelDownload(req.ID)
			return nil
		})
	case "delete":
		HandleCommand(cmd, send, func(req *ModelRequest) error {
			return h.library.Delete(req.ID)
		})
	case "select":
		HandleCommand(cmd, send, func(req *ModelRequest) error {
			if _, err := h.library.Lookup(req.ID); err != nil {
				return err
			}
			return h.cfg.SetSelectedModel(req.ID)
		})
	default:
		slog.Warn("unknown models action", "action", action)
	}
}

// handleVAD routes vad/* commands.
func (h *CommandHandler) handleVAD(ctx context.Context, action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "ensure-model":
		model, err := h.library.Lookup(models.VADModelID)
		if err != nil {
			SendError(send, cmd.Type, err)
			return
		}
		if model.Status == models.StatusAvailable {
			SendSuccess(send, cmd.Type, map[string]string{"status": "present"})
			return
		}
		if err := h.library.Download(ctx, models.VADModelID); err != nil && !errors.Is(err, models.ErrDownloadInProgress) {
			SendError(send, cmd.Type, err)
			return
		}
		SendSuccess(send, cmd.Type, map[string]string{"status": "downloading"})
	case "update":
		HandleCommand(cmd, send, func(req *VADUpdateRequest) error {
			if req.Enabled != nil {
				if err := h.cfg.SetVADEnabled(*req.Enabled); err != nil {
					return err
				}
			}
			if req.Threshold != nil {
				if err := h.cfg.SetVADThreshold(*req.Threshold); err != nil {
					return err
				}
			}
			return nil
		})
	case "get":
		snap := h.cfg.Snapshot()
		SendSuccess(send, cmd.Type, map[string]any{
			"enabled":   snap.VADEnabled,
			"threshold": snap.VADThreshold,
		})
	default:
		slog.Warn("unknown vad action", "action", action)
	}
}

// handleSettings routes settings/* commands.
func (h *CommandHandler) handleSettings(action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "update":
		HandleCommand(cmd, send, func(req *SettingsUpdateRequest) error {
			return h.applySettings(req)
		})
	case "get":
		SendSuccess(send, cmd.Type, h.settingsView())
	default:
		slog.Warn("unknown settings action", "action", action)
	}
}

// applySettings applies each field the client sent, stopping at the first
// failure. Settings that have a live counterpart (device, sensitivity,
// feedback) reach the running component as well as the config file.
func (h *CommandHandler) applySettings(req *SettingsUpdateRequest) error {
	if req.InputDevice != nil {
		if err := h.cfg.SetInputDevice(*req.InputDevice); err != nil {
			return err
		}
		if h.capture != nil {
			h.capture.SetDevice(*req.InputDevice)
		}
	}
	if req.Language != nil {
		if err := h.cfg.SetLanguage(*req.Language); err != nil {
			return err
		}
	}
	if req.Sensitivity != nil {
		if err := h.cfg.SetSensitivity(*req.Sensitivity); err != nil {
			return err
		}
		h.renderer.SetSensitivity(*req.Sensitivity)
	}
	if req.FeedbackEnabled != nil || req.FeedbackVolume != nil {
		snap := h.cfg.Snapshot()
		enabled := snap.FeedbackEnabled
		volume := snap.FeedbackVolume
		if req.FeedbackEnabled != nil {
			enabled = *req.FeedbackEnabled
		}
		if req.FeedbackVolume != nil {
			volume = *req.FeedbackVolume
		}
		if err := h.cfg.SetAudioFeedback(enabled, volume); err != nil {
			return err
		}
		if h.feedback != nil {
			h.feedback.Configure(enabled, volume)
		}
	}
	return nil
}

// settingsView is the client-facing settings projection; credentials stay
// server-side.
func (h *CommandHandler) settingsView() map[string]any {
	snap := h.cfg.Snapshot()
	return map[string]any{
		"input_device":     snap.InputDevice,
		"model":            snap.Model,
		"language":         snap.Language,
		"feedback_enabled": snap.FeedbackEnabled,
		"feedback_volume":  snap.FeedbackVolume,
		"overlay_position": snap.OverlayPosition,
		"overlay_width":    snap.OverlayWidth,
		"overlay_height":   snap.OverlayHeight,
		"sensitivity":      snap.Sensitivity,
		"vad_enabled":      snap.VADEnabled,
		"cloud_configured": snap.HasCloud(),
	}
}

// handleDevices routes devices/* commands.
func (h *CommandHandler) handleDevices(action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "list":
		SendSuccess(send, cmd.Type, h.listDevices())
	default:
		slog.Warn("unknown devices action", "action", action)
	}
}

// handleStatus routes status/* commands.
func (h *CommandHandler) handleStatus(action string, send chan<- any) {
	switch action {
	case "get":
		SendSuccess(send, "status/get", map[string]any{
			"mode":    h.machine.Mode().String(),
			"session": h.sessions.State(),
			"model":   h.cfg.SelectedModel(),
		})
	default:
		slog.Warn("unknown status action", "action", action)
	}
}
