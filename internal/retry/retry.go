// Package retry bounds transport calls to NLU vendors and chat services:
// exponential backoff between attempts and an optional per-attempt
// deadline layered onto the caller's context.
package retry

import (
	"context"
	"math/rand"
	"time"

	werrors "github.com/warblebot/warble/internal/errors"
)

// Config bounds a retried call. The zero value performs a single attempt
// with no per-attempt deadline.
type Config struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	AttemptTimeout time.Duration // 0 leaves the caller's context untouched
	Jitter         bool
}

// DefaultConfig is what vendor calls use: three attempts, half-second
// base, ten-second cap, jittered.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Jitter:      true,
	}
}

// Do runs fn until it succeeds, cfg.MaxAttempts is exhausted, or fn returns
// an error IsRetryable rejects. Auth and client-side failures surface
// immediately; rate limits and 5xx-class transport errors back off and try
// again.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	delay := cfg.BaseDelay
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = runAttempt(ctx, cfg.AttemptTimeout, fn)
		if lastErr == nil {
			return nil
		}
		if !werrors.IsRetryable(lastErr) || attempt == attempts {
			return lastErr
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff(delay, cfg.Jitter)):
		}

		delay *= 2
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return lastErr
}

// runAttempt invokes fn under the per-attempt deadline, if one is set.
func runAttempt(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(actx)
}

// backoff jitters the delay into [delay/2, delay] so synchronized callers
// spread out.
func backoff(delay time.Duration, jitter bool) time.Duration {
	if !jitter || delay <= 0 {
		return delay
	}
	half := delay / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}
