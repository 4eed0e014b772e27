// Package errors provides standardized error handling patterns for stanagfeed.
//
// # Overview
//
// Errors fall into three classes: Transient (temporary, retryable), Invalid (bad input,
// do not retry) and Fatal (stop processing). The ingestion pipeline relies on the
// classification to decide whether a failure skips a single record, aborts an envelope,
// or should be retried by the transport.
//
// # Error Wrapping Pattern
//
// All wrapping follows the format:
//
//	"component.method: action failed: %w"
//
// Three wrappers attach a class while preserving errors.Is/errors.As chains:
//
//	errors.WrapTransient(err, "Client", "Get", "key request")
//	errors.WrapInvalid(err, "Decryptor", "Message", "tag verification")
//	errors.WrapFatal(err, "Config", "Load", "read file")
//
// # Domain Sentinels
//
// ErrEnvelope, ErrRecord, ErrSchemaConflict, ErrGeometry, ErrKeyFetch, ErrDecryption,
// ErrAuthentication and ErrSignature identify the pipeline failure points. Reason maps an
// error to a short label used by the metrics in package metric.
//
// # Retry
//
// RetryConfig carries the backoff settings used by package retry:
//
//	cfg := errors.DefaultRetryConfig()
//	if cfg.ShouldRetry(err, attempt) {
//	    time.Sleep(cfg.BackoffDelay(attempt))
//	}
package errors
