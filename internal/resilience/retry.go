// Package resilience provides retry, backoff and circuit breaker primitives
// shared by the API client and the job aggregation sources.
package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls retry behavior with exponential backoff.
type RetryConfig struct {
	// Retries is the number of retries after the first attempt, so a request
	// makes at most Retries+1 attempts. Zero means a single attempt.
	Retries int

	// BaseDelay is the wait before the first retry. Default: 1s.
	BaseDelay time.Duration

	// MaxDelay caps a single wait. Zero means uncapped.
	MaxDelay time.Duration

	// Multiplier scales the delay after each attempt. Default: 2.0.
	Multiplier float64

	// JitterFraction adds ±fraction random jitter to each delay. Default: 0.
	JitterFraction float64

	// ShouldRetry decides whether an error is worth another attempt.
	// If nil, IsTransient is used.
	ShouldRetry func(err error) bool

	// OnRetry is called before each backoff wait with the number of the
	// attempt about to run, the wait, and the error that caused it.
	OnRetry func(attempt int, delay time.Duration, err error)

	// Sleep waits for d or until ctx is done. Tests swap it out; nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryConfig mirrors the API client defaults: 3 retries starting at 1s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Retries:    3,
		BaseDelay:  time.Second,
		Multiplier: 2.0,
	}
}

// Outcome is the result of a single attempt. Retry marks a failure the
// attempt itself judged transient; it is ignored when Err is nil.
type Outcome[T any] struct {
	Value T
	Err   error
	Retry bool
}

// Succeed wraps a successful value.
func Succeed[T any](v T) Outcome[T] {
	return Outcome[T]{Value: v}
}

// Fail wraps an error together with its retryability.
func Fail[T any](err error, retry bool) Outcome[T] {
	return Outcome[T]{Err: err, Retry: retry}
}

// FailWith keeps a partial value (for example a non-2xx response) alongside the error.
func FailWith[T any](v T, err error, retry bool) Outcome[T] {
	return Outcome[T]{Value: v, Err: err, Retry: retry}
}

// Run folds attempts until one succeeds, one fails permanently, the retry
// budget is spent, or ctx is done. The last outcome is returned as-is.
func Run[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context, attempt int) Outcome[T]) Outcome[T] {
	cfg = applyDefaults(cfg)

	var out Outcome[T]
	for attempt := 0; attempt <= cfg.Retries; attempt++ {
		out = fn(ctx, attempt)
		if out.Err == nil || !out.Retry {
			return out
		}
		if ctx.Err() != nil || attempt == cfg.Retries {
			return out
		}

		delay := Backoff(attempt, cfg)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, delay, out.Err)
		}
		if err := cfg.Sleep(ctx, delay); err != nil {
			return out
		}
	}
	return out
}

// DoVal runs fn under Run, retrying only errors accepted by ShouldRetry
// (IsTransient by default). The zero value is returned on failure.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	shouldRetry := cfg.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsTransient
	}

	out := Run(ctx, cfg, func(ctx context.Context, _ int) Outcome[T] {
		v, err := fn(ctx)
		if err != nil {
			return Fail[T](err, shouldRetry(err))
		}
		return Succeed(v)
	})
	if out.Err != nil {
		var zero T
		return zero, out.Err
	}
	return out.Value, nil
}

func applyDefaults(cfg RetryConfig) RetryConfig {
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2.0
	}
	if cfg.JitterFraction < 0 {
		cfg.JitterFraction = 0
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepCtx
	}
	return cfg
}

// Backoff returns the wait before retry number attempt+1:
// BaseDelay * Multiplier^attempt, capped and jittered per cfg.
func Backoff(attempt int, cfg RetryConfig) time.Duration {
	cfg = applyDefaults(cfg)

	delay := float64(cfg.BaseDelay) * math.Pow(cfg.Multiplier, float64(attempt))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}

	if cfg.JitterFraction > 0 {
		jitterRange := delay * cfg.JitterFraction
		delay += (rand.Float64()*2 - 1) * jitterRange // [-jitterRange, +jitterRange]
	}

	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryLogger returns an OnRetry callback that logs each retry attempt.
func RetryLogger(service, operation string) func(int, time.Duration, error) {
	return func(attempt int, delay time.Duration, err error) {
		zap.L().Warn("retrying operation",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
	}
}
