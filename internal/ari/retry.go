package ari

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"net"
	"strings"
	"time"
)

// RetryConfig configures the backoff used while establishing the control
// connection at startup. It is not used once the connection is up — a
// TRANSPORT_ERROR afterward is fatal to the process (spec.md §7).
type RetryConfig struct {
	Attempts int           // max attempts (default 3, 1 = no retry)
	MinDelay time.Duration // initial delay (default 300ms)
	MaxDelay time.Duration // delay cap (default 30s)
	Jitter   float64       // jitter factor ±N (default 0.1 = ±10%)
}

// DefaultRetryConfig mirrors the retry posture this lineage's outbound
// provider clients use for transient connection failures.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts: 3,
		MinDelay: 300 * time.Millisecond,
		MaxDelay: 30 * time.Second,
		Jitter:   0.1,
	}
}

// IsRetryableDialError reports whether a failure to establish the control
// connection is worth retrying: connection refused, timeouts, and other
// transient network errors are; a permanent handshake rejection isn't.
func IsRetryableDialError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "EOF") ||
		strings.Contains(errStr, "timeout")
}

// RetryDial executes dial with exponential backoff and jitter, retrying
// only on IsRetryableDialError and stopping early on ctx cancellation.
func RetryDial[T any](ctx context.Context, cfg RetryConfig, dial func() (T, error)) (T, error) {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}
	var lastErr error
	var zero T

	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		result, err := dial()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !IsRetryableDialError(err) || attempt == cfg.Attempts {
			return zero, err
		}

		delay := computeDelay(cfg, attempt)
		slog.Warn("ari: dial failed, retrying", "attempt", attempt, "maxAttempts", cfg.Attempts, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}
	return zero, lastErr
}

func computeDelay(cfg RetryConfig, attempt int) time.Duration {
	delay := float64(cfg.MinDelay) * math.Pow(2, float64(attempt-1))
	if time.Duration(delay) > cfg.MaxDelay {
		delay = float64(cfg.MaxDelay)
	}
	if cfg.Jitter > 0 {
		jitterRange := delay * cfg.Jitter
		delay += (rand.Float64()*2 - 1) * jitterRange
	}
	if delay < 0 {
		delay = float64(cfg.MinDelay)
	}
	return time.Duration(delay)
}
