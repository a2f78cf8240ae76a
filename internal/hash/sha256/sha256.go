// Package sha256 provides the integrity digest recorded on evidence.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher implements piracy.Hasher using SHA-256.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the lowercase hex digest of data.
func (h *Hasher) Hash(data []byte) (string, error) {
	return Sum(data), nil
}

// Sum is the infallible form of Hash for callers without an injected Hasher.
func Sum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
