package errors

import (
	"time"
)

// RetryConfig holds exponential backoff settings.
type RetryConfig struct {
	MaxRetries    int           `json:"max_retries" yaml:"max_retries"`
	InitialDelay  time.Duration `json:"initial_delay" yaml:"initial_delay"`
	MaxDelay      time.Duration `json:"max_delay" yaml:"max_delay"`
	BackoffFactor float64       `json:"backoff_factor" yaml:"backoff_factor"`
}

// DefaultRetryConfig retries three times starting at 100ms, doubling up to 5s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
	}
}

// ShouldRetry reports whether a transient err on the given zero-based attempt
// leaves budget for another try.
func (rc RetryConfig) ShouldRetry(err error, attempt int) bool {
	return err != nil && attempt < rc.MaxRetries && IsTransient(err)
}

// BackoffDelay returns InitialDelay * BackoffFactor^attempt, capped at MaxDelay.
func (rc RetryConfig) BackoffDelay(attempt int) time.Duration {
	delay := rc.InitialDelay
	for i := 0; i < attempt && delay < rc.MaxDelay; i++ {
		delay = time.Duration(float64(delay) * rc.BackoffFactor)
	}
	return min(delay, rc.MaxDelay)
}
