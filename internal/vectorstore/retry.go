package vectorstore

import (
	"context"
	"math/rand"
	"time"
)

// retryConfig is the exponential-backoff-plus-jitter policy applied to
// upsert and delete per spec §4.F/§5: 5 attempts, base 500ms, cap 10s.
type retryConfig struct {
	attempts int
	base     time.Duration
	cap      time.Duration
}

var defaultRetry = retryConfig{attempts: 5, base: 500 * time.Millisecond, cap: 10 * time.Second}

// withRetry calls fn up to cfg.attempts times, sleeping an exponentially
// growing, jittered delay between attempts. It returns the last error if
// every attempt fails, or nil on the first success.
func withRetry(ctx context.Context, cfg retryConfig, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < cfg.attempts; attempt++ {
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if attempt == cfg.attempts-1 {
			break
		}
		delay := cfg.base << attempt
		if delay > cfg.cap || delay <= 0 {
			delay = cfg.cap
		}
		jittered := time.Duration(float64(delay) * (0.5 + rand.Float64()*0.5))
		timer := time.NewTimer(jittered)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	return lastErr
}
