package resilience

import (
	"time"
)

// FromAPIConfig builds the API client retry policy from config values.
// Jitter stays off so the wait before retry n is exactly delay * 2^n.
func FromAPIConfig(retries, retryDelayMs int) RetryConfig {
	cfg := DefaultRetryConfig()
	if retries >= 0 {
		cfg.Retries = retries
	}
	if retryDelayMs > 0 {
		cfg.BaseDelay = time.Duration(retryDelayMs) * time.Millisecond
	}
	return cfg
}

// FromCircuitConfig converts config values to a CircuitBreakerConfig.
func FromCircuitConfig(failureThreshold, resetTimeoutSecs int) CircuitBreakerConfig {
	cfg := DefaultCircuitBreakerConfig()
	if failureThreshold > 0 {
		cfg.FailureThreshold = failureThreshold
	}
	if resetTimeoutSecs > 0 {
		cfg.ResetTimeout = time.Duration(resetTimeoutSecs) * time.Second
	}
	return cfg
}
