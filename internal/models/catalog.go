// Package models manages the local speech model library: a catalog of known
// models, downloads from the S3-compatible registry, and on-disk lifecycle.
package models

import (
	"os"
	"path/filepath"
)

// Status describes a model's local availability.
type Status string

// Model statuses reported to clients.
const (
	StatusAvailable   Status = "available"
	StatusDownloading Status = "downloading"
	StatusNotPresent  Status = "not-present"
	StatusCloud       Status = "cloud"
)

// Kind distinguishes transcription models from auxiliary ones.
type Kind string

// Model kinds.
const (
	KindTranscription Kind = "transcription"
	KindVAD           Kind = "vad"
)

// Model is a catalog entry. Archive models unpack into their own directory
// under the models root; single-file models download in place.
type Model struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Kind        Kind   `json:"kind"`
	SizeBytes   int64  `json:"size_bytes"`
	RegistryKey string `json:"registry_key,omitempty"` // Object key in the registry bucket
	Archive     bool   `json:"archive"`                // Gzipped tarball that needs extraction
	Status      Status `json:"status"`
}

// VADModelID is the catalog ID of the voice activity detection model.
const VADModelID = "silero-vad"

// Catalog returns the known model set. The cloud pseudo-model has no local
// footprint and is always available when an endpoint is configured.
func Catalog() []Model {
	return []Model{
		{
			ID:          "parakeet-tdt-0.6b",
			Name:        "Parakeet TDT 0.6B",
			Kind:        KindTranscription,
			SizeBytes:   2_464_000_000,
			RegistryKey: "parakeet-tdt-0.6b/model.tar.gz",
			Archive:     true,
		},
		{
			ID:          "whisper-small",
			Name:        "Whisper Small",
			Kind:        KindTranscription,
			SizeBytes:   488_000_000,
			RegistryKey: "whisper-small/model.tar.gz",
			Archive:     true,
		},
		{
			ID:          VADModelID,
			Name:        "Silero VAD",
			Kind:        KindVAD,
			SizeBytes:   2_300_000,
			RegistryKey: "silero-vad/silero_vad.onnx",
		},
		{
			ID:   "cloud",
			Name: "Cloud Transcription",
			Kind: KindTranscription,
		},
	}
}

// localPath returns where a model lives under the models root. Archive
// models own a directory; single files keep the base name of their key.
func (m *Model) localPath(root string) string {
	if m.Archive {
		return filepath.Join(root, m.ID)
	}
	return filepath.Join(root, m.ID, filepath.Base(m.RegistryKey))
}

// isCloud reports whether the model has no local footprint.
func (m *Model) isCloud() bool {
	return m.RegistryKey == ""
}

// present reports whether the model is fully installed under root. Partial
// downloads and unfinished extractions do not count.
func (m *Model) present(root string) bool {
	if m.isCloud() {
		return false
	}
	info, err := os.Stat(m.localPath(root))
	if err != nil {
		return false
	}
	if m.Archive && !info.IsDir() {
		return false
	}
	// An extraction that was interrupted leaves its marker behind.
	if _, err := os.Stat(m.localPath(root) + extractingSuffix); err == nil {
		return false
	}
	return true
}
