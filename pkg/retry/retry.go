// Package retry runs operations with exponential backoff for transient failures
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/c360/stanagfeed/errors"
)

var (
	// Thread-safe random source for jitter
	randMu     sync.Mutex
	randSource = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// Do executes fn until it succeeds, fails with an error that does not classify as
// transient, or has been retried cfg.MaxRetries times. Backoff follows
// cfg.BackoffDelay with up to 25% jitter.
func Do(ctx context.Context, cfg errors.RetryConfig, fn func() error) error {
	if cfg.InitialDelay < 0 || cfg.MaxDelay < 0 || cfg.BackoffFactor < 0 {
		return errors.WrapFatal(errors.ErrInvalidConfig, "retry", "Do", "config check")
	}
	if cfg.MaxDelay > 0 && cfg.MaxDelay < cfg.InitialDelay {
		return errors.WrapFatal(fmt.Errorf("%w: max_delay below initial_delay", errors.ErrInvalidConfig),
			"retry", "Do", "config check")
	}

	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if errors.Classify(err) != errors.ErrorTransient {
			return err
		}
		if ctx.Err() != nil {
			return fmt.Errorf("retry cancelled before attempt %d: %w", attempt+2, ctx.Err())
		}
		if attempt >= cfg.MaxRetries {
			return fmt.Errorf("retry failed after %d attempts: %w: %w", attempt+1, errors.ErrMaxRetriesExceeded, err)
		}

		timer := time.NewTimer(withJitter(cfg.BackoffDelay(attempt)))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled during backoff for attempt %d: %w", attempt+2, ctx.Err())
		case <-timer.C:
		}
	}
}

// DoWithResult executes fn with retry and returns both result and error
func DoWithResult[T any](ctx context.Context, cfg errors.RetryConfig, fn func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func() error {
		var innerErr error
		result, innerErr = fn()
		return innerErr
	})
	return result, err
}

func withJitter(delay time.Duration) time.Duration {
	if delay < 4 {
		return delay
	}
	randMu.Lock()
	jitter := time.Duration(randSource.Int63n(int64(delay / 4)))
	randMu.Unlock()
	return delay + jitter
}
