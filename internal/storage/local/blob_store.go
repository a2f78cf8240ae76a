// Package local implements a filesystem blob store.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/CarlaKobielski/projeto-antipirataria/internal/piracy"
)

const uriScheme = "file://"

// BlobStore writes artifacts below a base directory. Metadata is stored in a
// sidecar file named <key>.meta.json.
type BlobStore struct {
	baseDir string
}

// New creates the base directory when missing and checks it is writable.
func New(baseDir string) (*BlobStore, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve base directory: %w", err)
	}
	info, err := os.Stat(abs)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if mkErr := os.MkdirAll(abs, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create base directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("stat base directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	probe := filepath.Join(abs, ".writable_test")
	if err := os.WriteFile(probe, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(probe); err != nil {
		return nil, fmt.Errorf("clean up probe file: %w", err)
	}
	return &BlobStore{baseDir: abs}, nil
}

// PutObject writes data under key and returns a file:// URI.
func (s *BlobStore) PutObject(_ context.Context, key, _ string, data []byte, metadata map[string]string) (string, error) {
	full, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return "", fmt.Errorf("create parent directories: %w", err)
	}
	if err := os.WriteFile(full, data, 0o600); err != nil {
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return "", fmt.Errorf("encode metadata: %w", err)
		}
		if err := os.WriteFile(full+".meta.json", raw, 0o600); err != nil {
			return "", fmt.Errorf("write metadata: %w", err)
		}
	}
	return uriScheme + full, nil
}

// GetObject reads a blob previously written by this store.
func (s *BlobStore) GetObject(_ context.Context, uri string) ([]byte, error) {
	full, ok := strings.CutPrefix(uri, uriScheme)
	if !ok {
		return nil, fmt.Errorf("get %q: unsupported uri", uri)
	}
	if !s.within(filepath.Clean(full)) {
		return nil, fmt.Errorf("get %q: path outside base directory", uri)
	}
	data, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("get %q: %w", uri, piracy.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", uri, err)
	}
	return data, nil
}

func (s *BlobStore) resolve(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("key is required")
	}
	full := filepath.Clean(filepath.Join(s.baseDir, key))
	if !s.within(full) {
		return "", fmt.Errorf("path traversal detected")
	}
	return full, nil
}

func (s *BlobStore) within(path string) bool {
	return strings.HasPrefix(path, s.baseDir+string(filepath.Separator))
}
