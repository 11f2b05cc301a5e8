package pipeline

import (
	"errors"
	"math/rand/v2"
	"time"
)

// MaxRetries bounds source-acquisition attempts, the first try included.
const MaxRetries = 3

// IsRetryable reports whether err is a SourceError marked retryable.
func IsRetryable(err error) bool {
	var srcErr *SourceError
	return errors.As(err, &srcErr) && srcErr.Retryable
}

// Backoff returns a jittered exponential backoff duration for attempt n
// (0-indexed), capped at 30s.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base)/2 + 1))
	return base + jitter
}
