// Package retry drives a predicate until it holds, with exponential backoff.
package retry

import (
	"context"
	"errors"
	"math"
	"time"
)

// ErrTimeout is returned when Config.Timeout elapses before the predicate holds.
var ErrTimeout = errors.New("timed out waiting for condition")

// Config controls the delay between attempts.
type Config struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// Timeout bounds the whole wait; zero means only ctx bounds it.
	Timeout time.Duration
}

// DefaultConfig suits instance lifecycle transitions, which take tens of
// seconds on most clouds.
func DefaultConfig() Config {
	return Config{
		InitialDelay: 2 * time.Second,
		MaxDelay:     20 * time.Second,
		Multiplier:   1.5,
		Timeout:      10 * time.Minute,
	}
}

// Predicate reports whether the awaited condition holds.
type Predicate func(ctx context.Context) (bool, error)

// NextDelay returns the wait before attempt N (1-based) can be retried.
func NextDelay(cfg Config, attempt int) time.Duration {
	if attempt <= 1 || cfg.InitialDelay <= 0 {
		return max(cfg.InitialDelay, 0)
	}
	mult := cfg.Multiplier
	if mult < 1.0 {
		mult = 1.0
	}
	delay := float64(cfg.InitialDelay) * math.Pow(mult, float64(attempt-1))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	return time.Duration(delay)
}

// Until calls fn until it returns true. It stops early when fn fails, when
// ctx is done, or when cfg.Timeout elapses. Running out of cfg.Timeout is
// reported as ErrTimeout, even when fn observed it first; a deadline on
// ctx itself is returned as ctx.Err().
func Until(ctx context.Context, cfg Config, fn Predicate) error {
	runCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	for attempt := 1; ; attempt++ {
		ok, err := fn(runCtx)
		if err != nil {
			if timedOut(ctx, runCtx) {
				return ErrTimeout
			}
			return err
		}
		if ok {
			return nil
		}

		timer := time.NewTimer(NextDelay(cfg, attempt))
		select {
		case <-runCtx.Done():
			timer.Stop()
			if timedOut(ctx, runCtx) {
				return ErrTimeout
			}
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// timedOut reports whether runCtx hit its own deadline while the parent
// was still live.
func timedOut(parent, runCtx context.Context) bool {
	return parent.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded)
}
