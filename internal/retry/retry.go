package retry

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// Config holds retry configuration.
type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// DefaultConfig suits the outbound HTTP calls to Hacker News and the
// LLM providers.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
	}
}

// WithBackoff runs operation until it succeeds, retries are exhausted, or
// the context is cancelled. Delay grows exponentially per attempt with
// random jitter on top.
func WithBackoff(ctx context.Context, config Config, operation func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		lastErr = operation(ctx)
		if lastErr == nil {
			return nil
		}

		if !retryable(lastErr) {
			return fmt.Errorf("non-retryable error: %w", lastErr)
		}
		if attempt == config.MaxRetries {
			break
		}

		delay := config.BaseDelay*time.Duration(1<<attempt) +
			time.Duration(rand.Int63n(int64(config.BaseDelay)))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("operation failed after %d attempts: %w", config.MaxRetries+1, lastErr)
}

// retryable reports whether an error is worth another attempt. The HTTP
// clients embed status codes in their error strings, so this matches on
// text rather than typed errors.
func retryable(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "temporary failure") ||
		strings.Contains(errStr, "network") {
		return true
	}

	// 5xx and 429 deserve a retry; other 4xx responses will not
	// change on repeat.
	if strings.Contains(errStr, "status 5") || strings.Contains(errStr, "status 429") {
		return true
	}
	if strings.Contains(errStr, "status 4") {
		return false
	}

	// Unrecognized errors get the benefit of the doubt.
	return true
}
