// Package stanagfeed ingests STANAG 4778 JSON envelopes into queryable, in-memory
// geospatial feature stores.
//
// # Overview
//
// An envelope carries a list of objects whose Data member is a compact JWE token. Each
// token decrypts to one GeoJSON-like record. The pipeline turns an envelope into a
// feature store:
//
//	┌──────────────────────────┐
//	│   Envelope (JSON or JWS) │  optional RS256 signature gate
//	└────────────┬─────────────┘
//	             ↓ schema validation
//	┌──────────────────────────┐
//	│  JWE decrypt per object  │  keys fetched once per kid,
//	│  (dir + AES-CBC-HMAC)    │  cached for the pipeline
//	└────────────┬─────────────┘
//	             ↓ record decode
//	┌──────────────────────────┐
//	│  Geometry → WKT, extent  │  POINT, MULTILINESTRING,
//	│  Properties → catalog    │  MULTIPOLYGON; widening types
//	└────────────┬─────────────┘
//	             ↓ finalize
//	┌──────────────────────────┐
//	│      Feature store       │  id, rectangle and attribute
//	│                          │  filtered iteration
//	└──────────────────────────┘
//
// A bad record is skipped and reported; it never aborts the run. A bad envelope
// invalidates the whole store.
//
// # Packages
//
// Core:
//   - jose: JWE decryption with key fetch and cache, JWS verification, sealing helpers
//   - schema: field catalog inference with widening
//   - geometry: GeoJSON-like geometry to WKT with extent tracking
//   - featurestore: the store and its filtered iterator
//   - ingest: the pipeline tying them together and its run report
//
// Supporting:
//   - transport: HTTP key and PEM downloads over go-retryablehttp
//   - spatialindex: geohash bins backing rectangle queries
//   - expression: attribute filter evaluation
//   - output/natspub: publishes stored features to NATS
//   - health, metric: run health and Prometheus metrics
//   - config, errors, pkg/cache, pkg/retry, pkg/tlsutil: ambient infrastructure
//
// The stanagfeed command (cmd/stanagfeed) exposes ingest, seal, verify and serve.
package stanagfeed
