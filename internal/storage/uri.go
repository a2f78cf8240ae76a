// Package storage holds helpers shared by the evidence blob stores.
package storage

import (
	"errors"
	"fmt"
	"strings"
)

// ErrForeignURI reports a URI that belongs to another backend.
var ErrForeignURI = errors.New("uri not served by this store")

// SplitURI parses scheme://bucket/key. The key keeps any further slashes.
func SplitURI(uri, scheme string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, scheme+"://")
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrForeignURI, uri)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("malformed %s uri %q", scheme, uri)
	}
	return bucket, key, nil
}
