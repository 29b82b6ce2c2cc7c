package server

// Request types for WebSocket commands with validation tags.
// These types define the expected input for each command and use
// go-playground/validator struct tags for automatic validation.

// ModeSetRequest is the request body for mode/set.
type ModeSetRequest struct {
	Mode string `json:"mode" validate:"required,oneof=idle listening speaking"`
}

// SurfaceResizeRequest is the request body for surface/resize.
type SurfaceResizeRequest struct {
	Width  int `json:"width" validate:"required,gte=16,lte=4096"`
	Height int `json:"height" validate:"required,gte=16,lte=1024"`
}

// OverlayLevelRequest is the request body for overlay/level.
type OverlayLevelRequest struct {
	Level float64 `json:"level" validate:"gte=0,lte=1"`
}

// OverlayPositionRequest is the request body for overlay/position.
type OverlayPositionRequest struct {
	Position string `json:"position" validate:"required,oneof=top-left top-center top-right bottom-left bottom-center bottom-right"`
}

// ModelRequest is the request body for models/download, models/cancel,
// models/delete, and models/select.
type ModelRequest struct {
	ID string `json:"id" validate:"required,max=100"`
}

// VADUpdateRequest is the request body for vad/update.
type VADUpdateRequest struct {
	Enabled   *bool    `json:"enabled"`
	Threshold *float64 `json:"threshold" validate:"omitempty,gte=0,lte=1"`
}

// SettingsUpdateRequest is the request body for settings/update. All fields
// are optional; only the ones present are applied.
type SettingsUpdateRequest struct {
	InputDevice     *string  `json:"input_device" validate:"omitempty,max=256"`
	Language        *string  `json:"language" validate:"omitempty,max=16"`
	Sensitivity     *float64 `json:"sensitivity" validate:"omitempty,gt=0,lte=10"`
	FeedbackEnabled *bool    `json:"feedback_enabled"`
	FeedbackVolume  *float64 `json:"feedback_volume" validate:"omitempty,gte=0,lte=1"`
}
