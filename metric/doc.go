// Package metric provides Prometheus metrics for the ingestion pipeline.
//
// A MetricsRegistry owns a private prometheus.Registry (never the global default) so
// tests and multiple pipelines in one process do not collide. Core ingestion metrics are
// registered on construction; other packages register their own collectors through
// Register (or the RegisterCounter and RegisterGauge shorthands), keyed by
// "service.metric" to catch duplicate registrations.
//
//	reg := metric.NewMetricsRegistry()
//	reg.CoreMetrics().RecordRecord("ingest", "processed")
//	http.Handle("/metrics", reg.Handler())
package metric
