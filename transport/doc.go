// Package transport issues the key-server and PEM HTTP requests used by package jose.
//
// Every request is asynchronous: Get and Post return a single-use completion channel that
// receives exactly one Result and is then closed. Callers block on the channel (or on
// their context) which keeps network round trips as the only suspension points of the
// ingestion pipeline.
//
//	client, _ := transport.NewClient(transport.Config{Timeout: 10 * time.Second}, logger)
//	res := <-client.Get(ctx, "https://kms.example/keys/abc?key_verifier=x", "application/json")
//	if res.Code != transport.NoError {
//	    // res.Err describes the failure
//	}
//
// Retries with exponential backoff are delegated to go-retryablehttp and configured from
// errors.RetryConfig.
package transport
