// Package health implements the consecutive-failure backoff supervisor: a
// small stateful counter that escalates delay exponentially and invokes a
// fatal callback once a configured threshold is reached.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Config tunes the supervisor. MaxRetries <= 0 means unbounded (the fatal
// callback is never invoked by count; failures just keep backing off).
type Config struct {
	MaxRetries    int
	BaseDelay     time.Duration
	MaxBackoff    time.Duration
	OnFatal       func(lastErr error)
}

func (c Config) normalized() Config {
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 60 * time.Second
	}
	return c
}

// Supervisor tracks consecutive failures for one watched resource (e.g. one
// filesystem watcher) and computes the backoff delay before the next retry.
type Supervisor struct {
	cfg Config

	mu      sync.Mutex
	failures int
}

// New returns a Supervisor with cfg's zero values filled with defaults.
func New(cfg Config) *Supervisor {
	return &Supervisor{cfg: cfg.normalized()}
}

// RecordSuccess resets the failure counter, logging a recovery message if it
// was previously non-zero.
func (s *Supervisor) RecordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		log.Info().Int("afterFailures", s.failures).Msg("health: recovered")
	}
	s.failures = 0
}

// RecordFailure increments the consecutive-failure counter and reports
// whether the caller should continue. If the threshold is reached and a
// fatal callback is configured, it is invoked and false is returned. If no
// callback is configured, RecordFailure panics, matching the spec's "raise
// (no return)" fallback.
func (s *Supervisor) RecordFailure(err error) bool {
	s.mu.Lock()
	s.failures++
	failures := s.failures
	maxRetries := s.cfg.MaxRetries
	onFatal := s.cfg.OnFatal
	s.mu.Unlock()

	log.Warn().Err(err).Int("consecutiveFailures", failures).Msg("health: failure recorded")

	if maxRetries > 0 && failures >= maxRetries {
		if onFatal != nil {
			onFatal(err)
			return false
		}
		panic(err)
	}
	return true
}

// CurrentBackoffMs returns the delay that the next Backoff call would
// sleep, without sleeping.
func (s *Supervisor) CurrentBackoffMs() int64 {
	s.mu.Lock()
	failures := s.failures
	cfg := s.cfg
	s.mu.Unlock()
	return currentBackoffMs(cfg, failures)
}

func currentBackoffMs(cfg Config, failures int) int64 {
	if failures <= 0 {
		return 0
	}
	base := cfg.BaseDelay.Milliseconds()
	max := cfg.MaxBackoff.Milliseconds()
	delay := base
	for i := 0; i < failures-1 && delay < max; i++ {
		delay *= 2
	}
	if delay > max {
		delay = max
	}
	return delay
}

// Backoff suspends for CurrentBackoffMs, returning early with ctx.Err() if
// ctx is cancelled first.
func (s *Supervisor) Backoff(ctx context.Context) error {
	ms := s.CurrentBackoffMs()
	if ms <= 0 {
		return nil
	}
	timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
