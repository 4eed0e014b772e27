// Package config loads stanagfeed configuration.
//
// Configuration is built in layers: compiled defaults, then each file added with
// AddLayer (JSON or YAML, chosen by extension), then STANAGFEED_* environment
// overrides. Later layers only override the keys they set.
//
//	loader := config.NewLoader()
//	loader.AddLayer("stanagfeed.yaml")
//	loader.EnableValidation(true)
//	cfg, err := loader.Load()
//
// Recognized environment variables:
//
//	STANAGFEED_KMS_URL         key_server.kms_url
//	STANAGFEED_KEY_CHALLENGE   key_server.key_challenge
//	STANAGFEED_KEY_TIMEOUT     key_server.timeout (Go duration)
//	STANAGFEED_PEM_URL         signature.pem_url
//	STANAGFEED_NATS_URL        nats.url
//	STANAGFEED_NATS_SUBJECT    nats.subject
//	STANAGFEED_METRICS_ADDR    metrics.addr
//
// Durations are written as Go duration strings, plus a "1d" style day shorthand.
package config
