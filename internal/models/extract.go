package models

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/voxtype/voxtype/internal/util"
)

// extractArchive unpacks a gzipped tarball into dir. A marker file guards
// against a crash mid-extraction being mistaken for a complete model; it is
// removed only after every entry landed.
func extractArchive(archivePath, dir string) error {
	marker := dir + extractingSuffix
	if err := os.WriteFile(marker, nil, 0o644); err != nil {
		return util.WrapError("create extraction marker", err)
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return util.WrapError("open archive", err)
	}
	defer func() { _ = f.Close() }()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return util.WrapError("open archive", err)
	}
	defer func() { _ = gz.Close() }()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return util.WrapError("read archive", err)
		}

		target, err := safeJoin(dir, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return util.WrapError("create archive directory", err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return util.WrapError("create archive directory", err)
			}
			if err := writeEntry(target, tr); err != nil {
				return err
			}
		default:
			// Symlinks and special files have no business in a model
			// archive.
			return fmt.Errorf("unsupported archive entry %q (type %d)", hdr.Name, hdr.Typeflag)
		}
	}

	if err := os.Remove(marker); err != nil {
		return util.WrapError("remove extraction marker", err)
	}
	return nil
}

// safeJoin resolves an archive entry name under dir, rejecting traversal.
func safeJoin(dir, name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", fmt.Errorf("archive entry %q escapes model directory", name)
	}
	target := filepath.Join(dir, filepath.Clean(name))
	if !strings.HasPrefix(target, filepath.Clean(dir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry %q escapes model directory", name)
	}
	return target, nil
}

func writeEntry(target string, r io.Reader) error {
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return util.WrapError("create archive file", err)
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		return util.WrapError("write archive file", err)
	}
	return out.Close()
}
