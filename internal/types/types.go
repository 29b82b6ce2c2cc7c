// Package types provides shared type definitions used across the daemon.
package types

// VersionInfo contains version comparison data.
type VersionInfo struct {
	Current     string `json:"current"`      // Running version
	Latest      string `json:"latest"`       // Latest released version, if known
	Commit      string `json:"commit"`       // Git commit of the build
	BuildTime   string `json:"build_time"`   // Human-readable build timestamp
	UpdateAvail bool   `json:"update_avail"` // Whether a newer release exists
}

// StatusResponse is the daemon status reported over REST and WebSocket.
type StatusResponse struct {
	Type     string      `json:"type"` // "status"
	Mode     string      `json:"mode"`
	Session  string      `json:"session"`
	Model    string      `json:"model"`
	Platform string      `json:"platform"`
	Version  VersionInfo `json:"version"`
}
