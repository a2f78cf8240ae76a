// Package memory keeps blobs and records in process memory for local
// development and tests.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/CarlaKobielski/projeto-antipirataria/internal/piracy"
)

const uriScheme = "memory://"

type blob struct {
	data        []byte
	contentType string
	metadata    map[string]string
}

// BlobStore stores artifacts in memory and returns memory:// URIs.
type BlobStore struct {
	mu    sync.RWMutex
	blobs map[string]blob
}

// NewBlobStore creates an empty BlobStore.
func NewBlobStore() *BlobStore {
	return &BlobStore{blobs: make(map[string]blob)}
}

// PutObject implements piracy.BlobStore.
func (s *BlobStore) PutObject(_ context.Context, key, contentType string, data []byte, metadata map[string]string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("key is required")
	}
	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}
	s.mu.Lock()
	s.blobs[key] = blob{data: append([]byte(nil), data...), contentType: contentType, metadata: meta}
	s.mu.Unlock()
	return uriScheme + key, nil
}

// GetObject implements piracy.BlobStore.
func (s *BlobStore) GetObject(_ context.Context, uri string) ([]byte, error) {
	key, ok := strings.CutPrefix(uri, uriScheme)
	if !ok {
		return nil, fmt.Errorf("get %q: unsupported uri", uri)
	}
	s.mu.RLock()
	b, found := s.blobs[key]
	s.mu.RUnlock()
	if !found {
		return nil, fmt.Errorf("get %q: %w", uri, piracy.ErrNotFound)
	}
	return append([]byte(nil), b.data...), nil
}

// Metadata returns the metadata stored with key.
func (s *BlobStore) Metadata(key string) (map[string]string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[key]
	return b.metadata, ok
}

// Len reports how many blobs are stored.
func (s *BlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
