package domain

import (
	"errors"
	"fmt"
	"time"
)

// Fetch failure classes. Gated and NotFound short-circuit the strategy
// chain; AllStrategiesExhausted means every strategy was tried.
var (
	ErrGated                  = errors.New("fetch: content gated")
	ErrNotFound               = errors.New("fetch: content not found")
	ErrTranscodeFailed        = errors.New("fetch: audio transcode failed")
	ErrAllStrategiesExhausted = errors.New("fetch: all strategies exhausted")
)

// ErrNetwork marks a transient transport failure. Delivery retries it
// with a fixed delay; any transport error not wrapping ErrNetwork and not
// a RateLimitedError is terminal for the item.
var ErrNetwork = errors.New("transport: network failure")

// RateLimitedError is returned by a transport when the destination asks
// the sender to back off for RetryAfter.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("transport: rate limited, retry after %s", e.RetryAfter)
}
