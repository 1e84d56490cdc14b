package repository

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	defaultMaxAttempts  = 5
	defaultBaseDelay    = 10 * time.Millisecond
	defaultJitterFactor = 0.3
)

// postgres SQLSTATEs worth replaying the whole unit of work for
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

type retryPolicy struct {
	maxAttempts  int
	baseDelay    time.Duration
	jitterFactor float64
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
		jitterFactor: defaultJitterFactor,
	}
}

// IsRetryable reports whether err is a serialization conflict or deadlock.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
	}
	return false
}

// retryWithBackoff replays fn on retryable errors: 0, base, 2*base, 4*base...
// plus jitter. Everything else fails fast.
func retryWithBackoff(ctx context.Context, p retryPolicy, logger *slog.Logger, op string, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := p.baseDelay * time.Duration(1<<(attempt-1))
			jitter := rand.Float64() * float64(delay) * p.jitterFactor //nolint:gosec
			select {
			case <-time.After(delay + time.Duration(jitter)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) {
			return lastErr
		}
		logger.Warn("tx_retry", "op", op, "attempt", attempt+1, "error", lastErr)
	}
	return lastErr
}
