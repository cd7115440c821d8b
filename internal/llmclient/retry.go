package llmclient

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"time"
)

// RetryConfig controls RetryDo's backoff. Mirrors the shape the teacher's
// provider clients construct via DefaultRetryConfig().
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    8 * time.Second,
	}
}

// RetryDo runs fn up to cfg.MaxAttempts times, retrying only on transient
// failures: network errors, 429, and 5xx. A 4xx other than 429 is returned
// immediately without consuming further attempts. Honors ctx cancellation
// between attempts and respects the Retry-After hint on 429.
func RetryDo[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == attempts-1 || !isRetryable(err) {
			return zero, err
		}

		delay := backoffDelay(cfg, attempt)
		if httpErr := asHTTPError(err); httpErr != nil && httpErr.RetryAfter > 0 {
			delay = httpErr.RetryAfter
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}
	return zero, lastErr
}

func isRetryable(err error) bool {
	httpErr := asHTTPError(err)
	if httpErr == nil {
		// Network-level error (connection refused, timeout, DNS) — retry.
		return true
	}
	if httpErr.Status == http.StatusTooManyRequests {
		return true
	}
	return httpErr.Status >= 500
}

func asHTTPError(err error) *HTTPError {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	return nil
}

func backoffDelay(cfg RetryConfig, attempt int) time.Duration {
	delay := cfg.BaseDelay << attempt
	if delay > cfg.MaxDelay || delay <= 0 {
		delay = cfg.MaxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(delay) / 2 + 1))
	return delay/2 + jitter
}
