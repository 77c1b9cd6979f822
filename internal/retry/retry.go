// internal/retry/retry.go
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Policy is the single retry configuration shared by the quote transport and
// the transaction manager. Exponential mode doubles the wait after each
// attempt (base * 2^attempt); linear mode waits base * attemptNumber.
type Policy struct {
	MaxRetries   uint64
	BaseInterval time.Duration
	MaxInterval  time.Duration
}

// DefaultPolicy matches the transport contract: up to 3 retries with
// 1s, 2s, 4s waits.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:   3,
		BaseInterval: time.Second,
		MaxInterval:  30 * time.Second,
	}
}

// Do runs op with exponential backoff until it succeeds, the retry budget is
// exhausted, or ctx is cancelled. Wrap an error in Permanent to stop early.
func (p Policy) Do(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.BaseInterval
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxInterval = p.MaxInterval
	bo.MaxElapsedTime = 0

	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, p.MaxRetries), ctx))
}

// Permanent marks err as non-retryable for Do.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Linear runs op up to attempts times, waiting base*1, base*2, ... between
// attempts. All attempts exhausted surfaces the last underlying error.
func Linear(ctx context.Context, attempts int, base time.Duration, logger *zap.Logger, op func() error) error {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt == attempts {
			break
		}
		if logger != nil {
			logger.Warn("retrying after failure",
				zap.Int("attempt", attempt),
				zap.Error(lastErr))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(base * time.Duration(attempt)):
		}
	}
	return fmt.Errorf("all %d attempts failed: %w", attempts, lastErr)
}
