package models

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/voxtype/voxtype/internal/events"
	"github.com/voxtype/voxtype/internal/util"
)

const (
	partialSuffix    = ".partial"
	extractingSuffix = ".extracting"

	// Progress events fire roughly this often, measured in bytes.
	progressInterval = 100 << 10
)

// objectGetter is the slice of the S3 API the downloader needs.
type objectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// ProgressPayload is the payload of model download events.
type ProgressPayload struct {
	ModelID         string `json:"model"`
	DownloadedBytes int64  `json:"downloaded_bytes,omitempty"`
	TotalBytes      int64  `json:"total_bytes,omitempty"`
}

// fetch downloads one model into place, resuming a previous partial download
// when the registry honors range requests. Archives are extracted after the
// download completes.
func (m *Manager) fetch(ctx context.Context, model *Model) error {
	dir := filepath.Join(m.root, model.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return util.WrapError("create model directory", err)
	}

	partial := filepath.Join(dir, filepath.Base(model.RegistryKey)+partialSuffix)

	var offset int64
	if info, err := os.Stat(partial); err == nil {
		offset = info.Size()
	}

	input := &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(model.RegistryKey),
	}
	if offset > 0 {
		input.Range = aws.String(fmt.Sprintf("bytes=%d-", offset))
	}

	out, err := m.client.GetObject(ctx, input)
	if err != nil {
		if offset == 0 {
			return util.WrapError("fetch model", err)
		}
		// The registry may reject the range (object replaced, or offset
		// past the end). Start over from zero.
		offset = 0
		input.Range = nil
		if out, err = m.client.GetObject(ctx, input); err != nil {
			return util.WrapError("fetch model", err)
		}
		if removeErr := os.Remove(partial); removeErr != nil && !os.IsNotExist(removeErr) {
			return util.WrapError("discard partial download", removeErr)
		}
	}
	defer func() { _ = out.Body.Close() }()

	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if offset == 0 {
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	}
	f, err := os.OpenFile(partial, flags, 0o644)
	if err != nil {
		return util.WrapError("open partial file", err)
	}

	total := model.SizeBytes
	if out.ContentLength != nil && *out.ContentLength > 0 {
		total = offset + *out.ContentLength
	}

	if err := m.copyWithProgress(ctx, f, out.Body, model.ID, offset, total); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return util.WrapError("finish partial file", err)
	}

	final := filepath.Join(dir, filepath.Base(model.RegistryKey))
	if err := os.Rename(partial, final); err != nil {
		return util.WrapError("finalize download", err)
	}

	if model.Archive {
		if err := extractArchive(final, dir); err != nil {
			return err
		}
		if err := os.Remove(final); err != nil {
			return util.WrapError("remove archive", err)
		}
	}

	return nil
}

// copyWithProgress streams body into f, publishing a progress event roughly
// every progressInterval bytes and honoring context cancellation.
func (m *Manager) copyWithProgress(ctx context.Context, f *os.File, body io.Reader, modelID string, offset, total int64) error {
	buf := make([]byte, 32<<10)
	written := offset
	lastReport := offset

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, readErr := body.Read(buf)
		if n > 0 {
			if _, err := f.Write(buf[:n]); err != nil {
				return util.WrapError("write model data", err)
			}
			written += int64(n)

			if written-lastReport >= progressInterval {
				lastReport = written
				m.bus.Publish(events.ModelDownloadProgress, ProgressPayload{
					ModelID:         modelID,
					DownloadedBytes: written,
					TotalBytes:      total,
				})
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return util.WrapError("read model data", readErr)
		}
	}
}
