package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "stanagfeed"

// Metrics contains the ingestion-level metrics shared by every pipeline.
type Metrics struct {
	EnvelopesTotal  *prometheus.CounterVec
	RecordsTotal    *prometheus.CounterVec
	RecordErrors    *prometheus.CounterVec
	KeyFetches      *prometheus.CounterVec
	SignatureChecks *prometheus.CounterVec
	ParseDuration   *prometheus.HistogramVec
	FeaturesStored  *prometheus.GaugeVec
	CatalogFields   *prometheus.GaugeVec
	FeaturesEmitted *prometheus.CounterVec
	HealthStatus    *prometheus.GaugeVec
}

// NewMetrics creates a new Metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		EnvelopesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "envelopes",
				Name:      "total",
				Help:      "Total number of envelopes parsed, by outcome",
			},
			[]string{"service", "status"},
		),

		RecordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "records",
				Name:      "total",
				Help:      "Total number of envelope records, by outcome",
			},
			[]string{"service", "status"},
		),

		RecordErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "records",
				Name:      "errors_total",
				Help:      "Total number of skipped records, by reason",
			},
			[]string{"service", "reason"},
		),

		KeyFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "keys",
				Name:      "fetches_total",
				Help:      "Total number of key server requests, by outcome",
			},
			[]string{"service", "status"},
		),

		SignatureChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "signatures",
				Name:      "checks_total",
				Help:      "Total number of envelope signature checks, by outcome",
			},
			[]string{"service", "status"},
		),

		ParseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "parse",
				Name:      "duration_seconds",
				Help:      "Envelope parse duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"service"},
		),

		FeaturesStored: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "features",
				Help:      "Number of features in the most recently finalized store",
			},
			[]string{"service"},
		),

		CatalogFields: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "fields",
				Help:      "Number of catalog fields in the most recently finalized store",
			},
			[]string{"service"},
		),

		FeaturesEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "output",
				Name:      "features_total",
				Help:      "Total number of features published downstream, by outcome",
			},
			[]string{"service", "status"},
		),

		HealthStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "health",
				Name:      "status",
				Help:      "Health of the last parse (0=unhealthy, 1=degraded, 2=healthy)",
			},
			[]string{"service"},
		),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.EnvelopesTotal,
		m.RecordsTotal,
		m.RecordErrors,
		m.KeyFetches,
		m.SignatureChecks,
		m.ParseDuration,
		m.FeaturesStored,
		m.CatalogFields,
		m.FeaturesEmitted,
		m.HealthStatus,
	}
}

// RecordEnvelope increments the envelope counter
func (m *Metrics) RecordEnvelope(service, status string) {
	m.EnvelopesTotal.WithLabelValues(service, status).Inc()
}

// RecordRecord increments the per-record outcome counter
func (m *Metrics) RecordRecord(service, status string) {
	m.RecordsTotal.WithLabelValues(service, status).Inc()
}

// RecordError increments the skipped record counter
func (m *Metrics) RecordError(service, reason string) {
	m.RecordErrors.WithLabelValues(service, reason).Inc()
}

// RecordKeyFetch increments the key fetch counter
func (m *Metrics) RecordKeyFetch(service, status string) {
	m.KeyFetches.WithLabelValues(service, status).Inc()
}

// RecordSignatureCheck increments the signature check counter
func (m *Metrics) RecordSignatureCheck(service string, valid bool) {
	status := "invalid"
	if valid {
		status = "valid"
	}
	m.SignatureChecks.WithLabelValues(service, status).Inc()
}

// RecordParseDuration observes the duration of one envelope parse
func (m *Metrics) RecordParseDuration(service string, duration time.Duration) {
	m.ParseDuration.WithLabelValues(service).Observe(duration.Seconds())
}

// RecordStoreSize sets the feature and field gauges for a finalized store
func (m *Metrics) RecordStoreSize(service string, features, fields int) {
	m.FeaturesStored.WithLabelValues(service).Set(float64(features))
	m.CatalogFields.WithLabelValues(service).Set(float64(fields))
}

// RecordEmitted increments the downstream publish counter
func (m *Metrics) RecordEmitted(service, status string, n int) {
	m.FeaturesEmitted.WithLabelValues(service, status).Add(float64(n))
}

// RecordHealth sets the health gauge (0=unhealthy, 1=degraded, 2=healthy)
func (m *Metrics) RecordHealth(service string, level int) {
	m.HealthStatus.WithLabelValues(service).Set(float64(level))
}
