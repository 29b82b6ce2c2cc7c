package models

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/voxtype/voxtype/internal/config"
	"github.com/voxtype/voxtype/internal/events"
	"github.com/voxtype/voxtype/internal/util"
)

// ErrUnknownModel is returned for IDs not in the catalog.
var ErrUnknownModel = errors.New("unknown model")

// ErrDownloadInProgress is returned when a second download of the same model
// is requested before the first finishes.
var ErrDownloadInProgress = errors.New("download already in progress")

// Manager owns the on-disk model library and runs downloads. It is safe for
// concurrent use; at most one download per model runs at a time.
type Manager struct {
	root   string
	bus    *events.Bus
	client objectGetter
	bucket string

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// NewManager builds a manager for the registry described by the snapshot.
// Models live under <root>/models.
func NewManager(snap config.Snapshot, root string, bus *events.Bus) *Manager {
	return &Manager{
		root:   root,
		bus:    bus,
		client: newRegistryClient(snap),
		bucket: snap.RegistryBucket,
		active: make(map[string]context.CancelFunc),
	}
}

// newRegistryClient creates an S3 client for the model registry. A custom
// endpoint switches to path-style addressing for S3-compatible stores.
func newRegistryClient(snap config.Snapshot) *s3.Client {
	options := []func(*s3.Options){
		func(o *s3.Options) {
			o.Region = snap.RegistryRegion
		},
	}

	if snap.RegistryAccessKey != "" {
		creds := credentials.NewStaticCredentialsProvider(
			snap.RegistryAccessKey,
			snap.RegistrySecretKey,
			"",
		)
		options = append(options, func(o *s3.Options) {
			o.Credentials = creds
		})
	}

	if snap.RegistryEndpoint != "" {
		options = append(options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(snap.RegistryEndpoint)
			o.UsePathStyle = true
		})
	}

	return s3.New(s3.Options{}, options...)
}

// List returns the catalog with per-model local status filled in.
func (m *Manager) List() []Model {
	m.mu.Lock()
	defer m.mu.Unlock()

	catalog := Catalog()
	for i := range catalog {
		catalog[i].Status = m.statusLocked(&catalog[i])
	}
	return catalog
}

// Lookup returns the catalog entry with status for one model ID.
func (m *Manager) Lookup(id string) (*Model, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, model := range Catalog() {
		if model.ID == id {
			model.Status = m.statusLocked(&model)
			return &model, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownModel, id)
}

// statusLocked computes local status. Caller must hold m.mu.
func (m *Manager) statusLocked(model *Model) Status {
	if model.isCloud() {
		return StatusCloud
	}
	if _, downloading := m.active[model.ID]; downloading {
		return StatusDownloading
	}
	if model.present(m.root) {
		return StatusAvailable
	}
	return StatusNotPresent
}

// Download fetches a model from the registry in the background. Progress,
// completion, and failure are reported as events; the call returns as soon
// as the download is admitted.
func (m *Manager) Download(ctx context.Context, id string) error {
	model, err := m.Lookup(id)
	if err != nil {
		return err
	}
	if model.isCloud() {
		return fmt.Errorf("model %s has nothing to download", id)
	}
	if model.Status == StatusAvailable {
		return nil
	}

	m.mu.Lock()
	if _, running := m.active[id]; running {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDownloadInProgress, id)
	}
	// The download outlives the request that started it; only an explicit
	// cancel stops it.
	dlCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.active[id] = cancel
	m.mu.Unlock()

	m.bus.Publish(events.ModelDownloadStarted, ProgressPayload{ModelID: id, TotalBytes: model.SizeBytes})

	go func() {
		defer func() {
			cancel()
			m.mu.Lock()
			delete(m.active, id)
			m.mu.Unlock()
		}()

		if err := m.fetch(dlCtx, model); err != nil {
			slog.Error("model download failed", "model", id, "error", err)
			m.bus.Publish(events.ModelDownloadError, map[string]string{
				"model": id,
				"error": err.Error(),
			})
			return
		}

		slog.Info("model downloaded", "model", id)
		m.bus.Publish(events.ModelDownloadComplete, ProgressPayload{ModelID: id, TotalBytes: model.SizeBytes})
	}()

	return nil
}

// CancelDownload aborts a running download. Partial data stays on disk so a
// later download can resume it.
func (m *Manager) CancelDownload(id string) {
	m.mu.Lock()
	cancel, ok := m.active[id]
	m.mu.Unlock()
	if ok {
		cancel()
	}
}

// Delete removes a model from disk, including any partial download.
func (m *Manager) Delete(id string) error {
	model, err := m.Lookup(id)
	if err != nil {
		return err
	}
	if model.isCloud() {
		return fmt.Errorf("model %s has no local data", id)
	}
	if model.Status == StatusDownloading {
		return fmt.Errorf("model %s is downloading; cancel first", id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Every model owns a directory under the root, single-file ones
	// included, so removal is uniform.
	if err := os.RemoveAll(filepath.Join(m.root, model.ID)); err != nil {
		return util.WrapError("delete model", err)
	}
	return nil
}
