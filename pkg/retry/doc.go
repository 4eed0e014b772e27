// Package retry provides exponential backoff for transient failures.
//
// The backoff schedule comes from errors.RetryConfig, the same settings the transport
// client hands to go-retryablehttp, so that NATS connection setup and HTTP key
// downloads are tuned from one place. Errors are classified with errors.Classify:
// invalid and fatal errors return immediately, everything else is retried.
//
//	nc, err := retry.DoWithResult(ctx, errors.DefaultRetryConfig(), func() (*nats.Conn, error) {
//	    return dial(url)
//	})
//
// Operations stop as soon as ctx is cancelled, either between attempts or during a
// backoff delay.
package retry
