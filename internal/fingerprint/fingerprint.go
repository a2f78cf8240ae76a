// Package fingerprint computes exact and near-duplicate digests of page text.
package fingerprint

import (
	"crypto/md5" //nolint:gosec // feature hashing, not integrity
	"encoding/binary"
	"fmt"
	"math/bits"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/CarlaKobielski/projeto-antipirataria/internal/hash/sha256"
)

const (
	shingleSize = 3
	minWordLen  = 3
	hashBits    = 64
)

var nonWord = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)

// Fingerprint summarizes one text.
type Fingerprint struct {
	SHA256     string `json:"sha256"`
	Simhash    string `json:"simhash"`
	TextLength int    `json:"textLength"`
	WordCount  int    `json:"wordCount"`
}

// Generate fingerprints content. The simhash is 16 lowercase hex digits.
func Generate(content string) Fingerprint {
	return Fingerprint{
		SHA256:     sha256.Sum([]byte(content)),
		Simhash:    Format(Simhash(content)),
		TextLength: utf8.RuneCountInString(content),
		WordCount:  len(strings.Fields(content)),
	}
}

// Shingles returns overlapping 3-word sequences of the normalized text.
// Words of two characters or fewer are dropped before shingling.
func Shingles(content string) []string {
	normalized := nonWord.ReplaceAllString(strings.ToLower(content), "")
	var words []string
	for _, w := range strings.Fields(normalized) {
		if utf8.RuneCountInString(w) >= minWordLen {
			words = append(words, w)
		}
	}
	if len(words) < shingleSize {
		return nil
	}
	out := make([]string, 0, len(words)-shingleSize+1)
	for i := 0; i+shingleSize <= len(words); i++ {
		out = append(out, strings.Join(words[i:i+shingleSize], " "))
	}
	return out
}

// Simhash folds the shingle hashes into a 64-bit locality-sensitive digest.
// Text without shingles hashes to zero.
func Simhash(content string) uint64 {
	var acc [hashBits]int
	for _, shingle := range Shingles(content) {
		h := featureHash(shingle)
		for i := 0; i < hashBits; i++ {
			if h&(1<<uint(i)) != 0 {
				acc[i]++
			} else {
				acc[i]--
			}
		}
	}
	var out uint64
	for i, v := range acc {
		if v > 0 {
			out |= 1 << uint(i)
		}
	}
	return out
}

// featureHash is the big-endian first 8 bytes of the MD5 digest. Tokens keep
// Unicode letters, so accented text shingles differently than under an
// ASCII-only word filter; simhashes are only comparable with ones produced by
// this package.
func featureHash(s string) uint64 {
	sum := md5.Sum([]byte(s)) //nolint:gosec // see featureHash doc
	return binary.BigEndian.Uint64(sum[:8])
}

// Format renders h as 16 zero-padded hex digits.
func Format(h uint64) string {
	return fmt.Sprintf("%016x", h)
}

// Parse reads a hex simhash.
func Parse(s string) (uint64, error) {
	h, err := strconv.ParseUint(strings.TrimSpace(s), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse simhash %q: %w", s, err)
	}
	return h, nil
}

// Similarity is 1 - hamming(a, b)/64.
func Similarity(a, b uint64) float64 {
	return 1 - float64(bits.OnesCount64(a^b))/hashBits
}

// SimilarityHex compares two hex simhashes.
func SimilarityHex(a, b string) (float64, error) {
	ha, err := Parse(a)
	if err != nil {
		return 0, err
	}
	hb, err := Parse(b)
	if err != nil {
		return 0, err
	}
	return Similarity(ha, hb), nil
}
