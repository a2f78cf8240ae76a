package piracy

import (
	"math"
	"time"
)

// ExponentialBackoff doubles the delay on every failed attempt.
type ExponentialBackoff struct {
	Base time.Duration
	Max  time.Duration
}

// Delay returns the wait before retrying after the given 1-based attempt.
func (b ExponentialBackoff) Delay(attempt int) time.Duration {
	if b.Base <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(b.Base) * math.Pow(2, float64(attempt-1))
	if b.Max > 0 && delay > float64(b.Max) {
		return b.Max
	}
	if delay > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(delay)
}

// ShouldRetry decides whether a failed delivery gets another attempt.
func ShouldRetry(err error, attempt, maxAttempts int) bool {
	if err == nil || IsPermanent(err) {
		return false
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return attempt < maxAttempts
}
