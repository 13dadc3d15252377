// Package retry runs an operation a bounded number of times with exponential
// backoff between attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Policy controls how an operation is retried
type Policy struct {
	// Attempts is the total number of tries, including the first one
	Attempts int
	// BaseDelay is the wait after the first failure; it doubles after each further failure
	BaseDelay time.Duration
	// Retryable decides whether an error is worth another attempt. Nil means IsRetryable.
	Retryable func(error) bool
}

// Delay returns the wait before the given attempt (1-based). The first attempt has no delay.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	return p.BaseDelay * time.Duration(1<<uint(attempt-2))
}

// Do calls fn until it succeeds, returns a non-retryable error, the attempts
// run out or ctx is done. The returned error wraps the last failure.
func Do(ctx context.Context, p Policy, logger *zap.Logger, op string, fn func(ctx context.Context) error) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if delay := p.Delay(attempt); delay > 0 {
			logger.Debug("retrying operation",
				zap.String("operation", op),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
			)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("%s cancelled after %d attempts: %w", op, attempt-1, ctx.Err())
			case <-timer.C:
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return fmt.Errorf("%s cancelled after %d attempts: %w", op, attempt, ctx.Err())
		}
		if !retryable(err) {
			logger.Warn("operation failed with non-retryable error",
				zap.String("operation", op),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return fmt.Errorf("%s failed: %w", op, err)
		}

		if attempt < attempts {
			logger.Warn("operation failed, will retry",
				zap.String("operation", op),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}
	}

	logger.Error("operation failed after retries",
		zap.String("operation", op),
		zap.Int("attempts", attempts),
		zap.Error(lastErr),
	)

	return fmt.Errorf("%s failed after %d attempts: %w", op, attempts, lastErr)
}

// IsRetryable treats authentication, invalid request and cancellation errors
// as permanent and everything else (rate limits, timeouts, network) as transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "authentication") || strings.Contains(errStr, "unauthorized") || strings.Contains(errStr, "401") {
		return false
	}
	if strings.Contains(errStr, "invalid") || strings.Contains(errStr, "bad request") || strings.Contains(errStr, "400") {
		return false
	}

	return true
}
