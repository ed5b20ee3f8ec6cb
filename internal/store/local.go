// Package store persists finished captures to the local filesystem.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Local is the local persistence collaborator: it saves a finished
// raster under a suggested filename in the output directory.
type Local struct {
	dir    string
	logger *slog.Logger
}

// NewLocal creates the output directory if needed.
func NewLocal(dir string) (*Local, error) {
	if dir == "" {
		return nil, fmt.Errorf("output directory not set")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", dir, err)
	}
	return &Local{dir: dir, logger: slog.Default()}, nil
}

// Dir returns the output directory.
func (l *Local) Dir() string { return l.dir }

// Save writes the image atomically (temp file + rename) and returns the
// final path.
func (l *Local) Save(ctx context.Context, data []byte, filename string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := filepath.Join(l.dir, filename)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("rename %s: %w", tmp, err)
	}

	l.logger.Info("capture.saved", "path", path, "bytes", len(data))
	return path, nil
}
