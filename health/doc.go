// Package health summarizes the outcome of ingestion runs as healthy, degraded or
// unhealthy statuses.
//
// A run whose envelope failed is unhealthy. A run that dropped any record is
// degraded. A run that kept every record is healthy. The Monitor
// keeps the latest status per source and serves the aggregate as JSON:
//
//	mon := health.NewMonitor()
//	mon.Update("ingest", health.FromRun("ingest", attempted, kept, valid, lastErr))
//	http.Handle("/healthz", mon.Handler("stanagfeed"))
package health
