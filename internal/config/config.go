// Package config provides application configuration management.
package config

import (
	"cmp"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/voxtype/voxtype/internal/util"
)

// Configuration defaults are used when values are not specified.
const (
	DefaultPort            = 4817
	DefaultModel           = "parakeet-tdt-0.6b"
	DefaultLanguage        = "en"
	DefaultOverlayPosition = "bottom-center"
	DefaultOverlayWidth    = 300
	DefaultOverlayHeight   = 50
	DefaultSensitivity     = 1.0
	DefaultFeedbackVolume  = 0.5
	DefaultVADThreshold    = 0.5
	DefaultRegistryBucket  = "voxtype-models"
	DefaultRegistryRegion  = "us-east-1"
)

// Overlay positions accepted by validate.
var overlayPositions = map[string]bool{
	"top-left": true, "top-center": true, "top-right": true,
	"bottom-left": true, "bottom-center": true, "bottom-right": true,
}

// SystemConfig holds daemon-level settings that require restart.
type SystemConfig struct {
	Port    int    `json:"port"`     // HTTP/WebSocket server port
	DataDir string `json:"data_dir"` // Root directory for models and recordings (empty = platform default)
}

// AudioConfig holds capture device and feedback cue settings.
type AudioConfig struct {
	InputDevice     string  `json:"input_device"`     // Capture device name (empty = system default)
	FeedbackEnabled bool    `json:"feedback_enabled"` // Play start/stop cue tones
	FeedbackVolume  float64 `json:"feedback_volume"`  // Cue volume 0-1
}

// TranscriptionConfig holds model selection and cloud fallback settings.
type TranscriptionConfig struct {
	Model    string `json:"model"`    // Selected model ID
	Language string `json:"language"` // BCP-47 language hint

	CloudEndpoint string `json:"cloud_endpoint"` // OpenAI-compatible transcription URL
	CloudAPIKey   string `json:"cloud_api_key"`  // Bearer key for the cloud endpoint

	// Client-credentials grant, used instead of the API key when all three
	// are set.
	OAuthTokenURL     string `json:"oauth_token_url"`
	OAuthClientID     string `json:"oauth_client_id"`
	OAuthClientSecret string `json:"oauth_client_secret"`
}

// OverlayConfig holds visualizer surface settings.
type OverlayConfig struct {
	Position    string  `json:"position"`    // Screen anchor (e.g. "bottom-center")
	Width       int     `json:"width"`       // Surface width in pixels
	Height      int     `json:"height"`      // Surface height in pixels
	Sensitivity float64 `json:"sensitivity"` // Waveform gain multiplier
}

// VADConfig holds voice activity detection settings.
type VADConfig struct {
	Enabled   bool    `json:"enabled"`   // Auto-stop recording on trailing silence
	Threshold float64 `json:"threshold"` // Speech probability threshold 0-1
}

// RegistryConfig holds the S3-compatible model registry settings.
type RegistryConfig struct {
	Endpoint  string `json:"endpoint"`   // S3-compatible endpoint URL (empty = AWS)
	Bucket    string `json:"bucket"`     // Bucket holding model archives
	Region    string `json:"region"`     // Bucket region
	AccessKey string `json:"access_key"` // Static access key (empty = anonymous)
	SecretKey string `json:"secret_key"` // Static secret key
}

// Config holds all application configuration. It is safe for concurrent use.
type Config struct {
	System        SystemConfig        `json:"system"`
	Audio         AudioConfig         `json:"audio"`
	Transcription TranscriptionConfig `json:"transcription"`
	Overlay       OverlayConfig       `json:"overlay"`
	VAD           VADConfig           `json:"vad"`
	Registry      RegistryConfig      `json:"registry"`

	mu       sync.RWMutex
	filePath string
}

// New creates a new Config with default values.
func New(filePath string) *Config {
	return &Config{
		System: SystemConfig{
			Port: DefaultPort,
		},
		Audio: AudioConfig{
			FeedbackEnabled: true,
			FeedbackVolume:  DefaultFeedbackVolume,
		},
		Transcription: TranscriptionConfig{
			Model:    DefaultModel,
			Language: DefaultLanguage,
		},
		Overlay: OverlayConfig{
			Position:    DefaultOverlayPosition,
			Width:       DefaultOverlayWidth,
			Height:      DefaultOverlayHeight,
			Sensitivity: DefaultSensitivity,
		},
		VAD: VADConfig{
			Threshold: DefaultVADThreshold,
		},
		Registry: RegistryConfig{
			Bucket: DefaultRegistryBucket,
			Region: DefaultRegistryRegion,
		},
		filePath: filePath,
	}
}

// Load reads config from file, creating a default if none exists.
func (c *Config) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.filePath)
	if os.IsNotExist(err) {
		return c.saveLocked()
	}
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	if err := json.Unmarshal(data, c); err != nil {
		return util.WrapError("parse config", err)
	}

	c.applyDefaults()

	return c.validate()
}

// validate checks all configuration fields for correctness.
func (c *Config) validate() error {
	if c.System.Port < 1 || c.System.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 1-65535", c.System.Port)
	}
	if !overlayPositions[c.Overlay.Position] {
		return fmt.Errorf("invalid overlay position %q", c.Overlay.Position)
	}
	if c.Overlay.Sensitivity <= 0 {
		return fmt.Errorf("invalid sensitivity %v: must be positive", c.Overlay.Sensitivity)
	}
	if c.Audio.FeedbackVolume < 0 || c.Audio.FeedbackVolume > 1 {
		return fmt.Errorf("invalid feedback volume %v: must be 0-1", c.Audio.FeedbackVolume)
	}
	if c.VAD.Threshold < 0 || c.VAD.Threshold > 1 {
		return fmt.Errorf("invalid vad threshold %v: must be 0-1", c.VAD.Threshold)
	}
	return nil
}

// applyDefaults sets default values for zero-value fields.
func (c *Config) applyDefaults() {
	if c.System.Port == 0 {
		c.System.Port = DefaultPort
	}
	if c.Transcription.Model == "" {
		c.Transcription.Model = DefaultModel
	}
	if c.Transcription.Language == "" {
		c.Transcription.Language = DefaultLanguage
	}
	if c.Overlay.Position == "" {
		c.Overlay.Position = DefaultOverlayPosition
	}
	if c.Overlay.Width == 0 {
		c.Overlay.Width = DefaultOverlayWidth
	}
	if c.Overlay.Height == 0 {
		c.Overlay.Height = DefaultOverlayHeight
	}
	if c.Overlay.Sensitivity == 0 {
		c.Overlay.Sensitivity = DefaultSensitivity
	}
	if c.Audio.FeedbackVolume == 0 {
		c.Audio.FeedbackVolume = DefaultFeedbackVolume
	}
	if c.VAD.Threshold == 0 {
		c.VAD.Threshold = DefaultVADThreshold
	}
	if c.Registry.Bucket == "" {
		c.Registry.Bucket = DefaultRegistryBucket
	}
	if c.Registry.Region == "" {
		c.Registry.Region = DefaultRegistryRegion
	}
}

// saveLocked persists configuration. Caller must hold c.mu.
func (c *Config) saveLocked() error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return util.WrapError("marshal config", err)
	}

	dir := filepath.Dir(c.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return util.WrapError("create config directory", err)
	}

	if err := os.WriteFile(c.filePath, data, 0o600); err != nil {
		return util.WrapError("write config", err)
	}

	return nil
}

// --- Getters for individual settings ---

// Port returns the configured server port.
func (c *Config) Port() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.System.Port
}

// DataDir returns the root data directory, falling back to a per-user
// default under the OS config location.
func (c *Config) DataDir() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.System.DataDir != "" {
		return c.System.DataDir
	}
	base, err := os.UserConfigDir()
	if err != nil {
		base = "."
	}
	return filepath.Join(base, "voxtype")
}

// InputDevice returns the configured capture device name.
func (c *Config) InputDevice() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Audio.InputDevice
}

// SelectedModel returns the configured transcription model ID.
func (c *Config) SelectedModel() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Transcription.Model
}

// VADSettings returns the current voice activity detection settings.
func (c *Config) VADSettings() (enabled bool, threshold float64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.VAD.Enabled, c.VAD.Threshold
}

// --- Setters for individual settings ---

// SetInputDevice updates the capture device and saves the configuration.
func (c *Config) SetInputDevice(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Audio.InputDevice = name
	return c.saveLocked()
}

// SetSelectedModel updates the transcription model and saves the configuration.
func (c *Config) SetSelectedModel(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Transcription.Model = id
	return c.saveLocked()
}

// SetLanguage updates the language hint and saves the configuration.
func (c *Config) SetLanguage(lang string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Transcription.Language = lang
	return c.saveLocked()
}

// SetVADEnabled toggles voice activity detection and saves the configuration.
func (c *Config) SetVADEnabled(enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.VAD.Enabled = enabled
	return c.saveLocked()
}

// SetVADThreshold updates the speech probability threshold and saves the
// configuration.
func (c *Config) SetVADThreshold(threshold float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if threshold < 0 || threshold > 1 {
		return fmt.Errorf("invalid vad threshold %v: must be 0-1", threshold)
	}
	c.VAD.Threshold = threshold
	return c.saveLocked()
}

// SetAudioFeedback updates cue playback settings and saves the configuration.
func (c *Config) SetAudioFeedback(enabled bool, volume float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if volume < 0 || volume > 1 {
		return fmt.Errorf("invalid feedback volume %v: must be 0-1", volume)
	}
	c.Audio.FeedbackEnabled = enabled
	c.Audio.FeedbackVolume = volume
	return c.saveLocked()
}

// SetOverlayPosition updates the overlay anchor and saves the configuration.
func (c *Config) SetOverlayPosition(position string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !overlayPositions[position] {
		return fmt.Errorf("invalid overlay position %q", position)
	}
	c.Overlay.Position = position
	return c.saveLocked()
}

// SetOverlaySize updates the overlay surface size and saves the configuration.
func (c *Config) SetOverlaySize(width, height int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if width < 1 || height < 1 {
		return fmt.Errorf("invalid overlay size %dx%d", width, height)
	}
	c.Overlay.Width = width
	c.Overlay.Height = height
	return c.saveLocked()
}

// SetSensitivity updates the waveform gain and saves the configuration.
func (c *Config) SetSensitivity(s float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s <= 0 {
		return fmt.Errorf("invalid sensitivity %v: must be positive", s)
	}
	c.Overlay.Sensitivity = s
	return c.saveLocked()
}

// SetCloudCredentials updates the cloud transcription settings and saves.
func (c *Config) SetCloudCredentials(endpoint, apiKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Transcription.CloudEndpoint = endpoint
	c.Transcription.CloudAPIKey = apiKey
	return c.saveLocked()
}

// --- Snapshot for atomic reads ---

// Snapshot is a point-in-time copy of configuration values.
type Snapshot struct {
	// System
	Port    int
	DataDir string

	// Audio
	InputDevice     string
	FeedbackEnabled bool
	FeedbackVolume  float64

	// Transcription
	Model             string
	Language          string
	CloudEndpoint     string
	CloudAPIKey       string
	OAuthTokenURL     string
	OAuthClientID     string
	OAuthClientSecret string

	// Overlay
	OverlayPosition string
	OverlayWidth    int
	OverlayHeight   int
	Sensitivity     float64

	// VAD
	VADEnabled   bool
	VADThreshold float64

	// Registry
	RegistryEndpoint  string
	RegistryBucket    string
	RegistryRegion    string
	RegistryAccessKey string
	RegistrySecretKey string
}

// Snapshot returns a point-in-time copy of all configuration values.
func (c *Config) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		Port:    cmp.Or(c.System.Port, DefaultPort),
		DataDir: c.System.DataDir,

		InputDevice:     c.Audio.InputDevice,
		FeedbackEnabled: c.Audio.FeedbackEnabled,
		FeedbackVolume:  cmp.Or(c.Audio.FeedbackVolume, DefaultFeedbackVolume),

		Model:             cmp.Or(c.Transcription.Model, DefaultModel),
		Language:          cmp.Or(c.Transcription.Language, DefaultLanguage),
		CloudEndpoint:     c.Transcription.CloudEndpoint,
		CloudAPIKey:       c.Transcription.CloudAPIKey,
		OAuthTokenURL:     c.Transcription.OAuthTokenURL,
		OAuthClientID:     c.Transcription.OAuthClientID,
		OAuthClientSecret: c.Transcription.OAuthClientSecret,

		OverlayPosition: cmp.Or(c.Overlay.Position, DefaultOverlayPosition),
		OverlayWidth:    cmp.Or(c.Overlay.Width, DefaultOverlayWidth),
		OverlayHeight:   cmp.Or(c.Overlay.Height, DefaultOverlayHeight),
		Sensitivity:     cmp.Or(c.Overlay.Sensitivity, DefaultSensitivity),

		VADEnabled:   c.VAD.Enabled,
		VADThreshold: cmp.Or(c.VAD.Threshold, DefaultVADThreshold),

		RegistryEndpoint:  c.Registry.Endpoint,
		RegistryBucket:    cmp.Or(c.Registry.Bucket, DefaultRegistryBucket),
		RegistryRegion:    cmp.Or(c.Registry.Region, DefaultRegistryRegion),
		RegistryAccessKey: c.Registry.AccessKey,
		RegistrySecretKey: c.Registry.SecretKey,
	}
}

// HasCloud reports whether a cloud transcription endpoint is configured.
func (s *Snapshot) HasCloud() bool {
	return s.CloudEndpoint != ""
}

// HasOAuth reports whether client-credentials auth is fully configured.
func (s *Snapshot) HasOAuth() bool {
	return util.IsConfigured(s.OAuthTokenURL, s.OAuthClientID, s.OAuthClientSecret)
}
