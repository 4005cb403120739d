// Package deliver implements the bounded-retry send loop in front of the
// outbound transport.
package deliver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"tunedrop/internal/domain"
)

const (
	// DefaultMaxRetries bounds how many failed attempts may be retried.
	DefaultMaxRetries = 3
	// DefaultRetryDelay is the fixed pause after a transient failure.
	DefaultRetryDelay = 10 * time.Second

	// maxFilenameStem keeps the full name with extension under the
	// transport's limit.
	maxFilenameStem = 58
	audioExt        = ".mp3"
)

// Engine sends one audio payload at a time, retrying transient failures
// and honoring rate-limit hints. Rate-limit waits count against the retry
// budget, which keeps the loop bounded by a single counter.
type Engine struct {
	transport  domain.Transport
	maxRetries int
	retryDelay time.Duration

	// rateLimitMargin is added on top of the transport's wait hint.
	rateLimitMargin time.Duration
}

// New creates an engine. Non-positive maxRetries or retryDelay select the
// defaults.
func New(transport domain.Transport, maxRetries int, retryDelay time.Duration) *Engine {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}
	return &Engine{
		transport:       transport,
		maxRetries:      maxRetries,
		retryDelay:      retryDelay,
		rateLimitMargin: 2 * time.Second,
	}
}

// Deliver sends audio with the title as caption. It makes at most
// maxRetries+1 attempts; every attempt reads the payload from the start.
// A nil return means the destination accepted the message.
func (e *Engine) Deliver(ctx context.Context, audio []byte, title string) error {
	filename := SafeFilename(title)
	retries := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := e.transport.SendAudio(ctx, bytes.NewReader(audio), filename, title)
		if err == nil {
			return nil
		}

		var rl *domain.RateLimitedError
		switch {
		case errors.As(err, &rl):
			retries++
			if retries > e.maxRetries {
				return fmt.Errorf("giving up on %s after %d attempts: %w", filename, retries, err)
			}
			wait := rl.RetryAfter + e.rateLimitMargin
			log.Printf("deliver %s: rate limited, waiting %s (attempt %d/%d)", filename, wait, retries, e.maxRetries)
			if err := sleep(ctx, wait); err != nil {
				return err
			}
		case errors.Is(err, domain.ErrNetwork):
			retries++
			if retries > e.maxRetries {
				return fmt.Errorf("giving up on %s after %d attempts: %w", filename, retries, err)
			}
			log.Printf("deliver %s: %v, retrying in %s (attempt %d/%d)", filename, err, e.retryDelay, retries, e.maxRetries)
			if err := sleep(ctx, e.retryDelay); err != nil {
				return err
			}
		default:
			// Bad credentials, unknown chat, rejected payload: retrying
			// within this run cannot succeed.
			return fmt.Errorf("deliver %s: %w", filename, err)
		}
	}
}

// SafeFilename reduces a title to the transport-safe character subset,
// bounds its length, and appends the audio extension.
func SafeFilename(title string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		}
	}
	stem := b.String()
	if len(stem) > maxFilenameStem {
		stem = stem[:maxFilenameStem]
	}
	stem = strings.TrimSpace(stem)
	if stem == "" {
		stem = "audio"
	}
	return stem + audioExt
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
