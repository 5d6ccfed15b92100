package retry

import (
	"context"
	"math/rand"
	"time"
)

// BackoffConfig controls exponential backoff between retry attempts.
type BackoffConfig struct {
	InitialDelay time.Duration `json:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay"`
	Multiplier   float64       `json:"multiplier"`
	MaxAttempts  int           `json:"max_attempts"`
	Jitter       bool          `json:"jitter"`
}

// DefaultBackoffConfig returns the defaults used when callers do not
// configure retries explicitly.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		MaxAttempts:  5,
		Jitter:       true,
	}
}

// Backoff retries an operation with exponentially growing delays.
type Backoff struct {
	cfg BackoffConfig
}

func NewBackoff(cfg BackoffConfig) *Backoff {
	return &Backoff{cfg: cfg}
}

// Retry runs operation until it succeeds, attempts are exhausted or the
// context is done. Every error is treated as retryable.
func (b *Backoff) Retry(ctx context.Context, operation func() error) error {
	return b.RetryWithPredicate(ctx, operation, func(error) bool { return true })
}

// RetryWithPredicate stops immediately on errors the predicate reports
// as non-retryable.
func (b *Backoff) RetryWithPredicate(ctx context.Context, operation func() error, isRetryable func(error) bool) error {
	var lastErr error

	for attempt := 1; attempt <= b.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation()
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) {
			return lastErr
		}
		if attempt == b.cfg.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.delay(attempt)):
		}
	}

	return lastErr
}

// GetNextDelay reports the delay used after the given attempt.
func (b *Backoff) GetNextDelay(attempt int) time.Duration {
	return b.delay(attempt)
}

func (b *Backoff) delay(attempt int) time.Duration {
	d := float64(b.cfg.InitialDelay)
	for i := 1; i < attempt; i++ {
		d *= b.cfg.Multiplier
	}
	if limit := float64(b.cfg.MaxDelay); d > limit {
		d = limit
	}

	if b.cfg.Jitter {
		// Spread delays up to 25% around the base value so parallel
		// retriers do not wake in lockstep.
		d += d * 0.5 * (rand.Float64() - 0.5)
		if limit := float64(b.cfg.MaxDelay); d > limit {
			d = limit
		}
	}

	return time.Duration(d)
}
