package metric

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/c360/stanagfeed/errors"
)

// collectorKey names a collector owned by one component.
type collectorKey struct {
	component string
	name      string
}

func (k collectorKey) String() string {
	return k.component + "." + k.name
}

// MetricsRegistry wraps a private Prometheus registry holding the core ingestion
// metrics plus collectors that components register by name.
type MetricsRegistry struct {
	prom  *prometheus.Registry
	core  *Metrics
	mu    sync.Mutex
	owned map[collectorKey]prometheus.Collector
}

// NewMetricsRegistry builds a registry with the core ingestion metrics and the
// Go runtime and process collectors already registered.
func NewMetricsRegistry() *MetricsRegistry {
	r := &MetricsRegistry{
		prom:  prometheus.NewRegistry(),
		core:  NewMetrics(),
		owned: map[collectorKey]prometheus.Collector{},
	}
	r.prom.MustRegister(r.core.collectors()...)
	r.prom.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// PrometheusRegistry exposes the underlying registry, e.g. for gathering in tests.
func (r *MetricsRegistry) PrometheusRegistry() *prometheus.Registry { return r.prom }

// CoreMetrics returns the ingestion metrics shared by every pipeline.
func (r *MetricsRegistry) CoreMetrics() *Metrics { return r.core }

// Handler serves the registry in the Prometheus exposition format.
func (r *MetricsRegistry) Handler() http.Handler {
	return promhttp.HandlerFor(r.prom, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// RegisterCounter registers counter as component.name.
func (r *MetricsRegistry) RegisterCounter(component, name string, counter prometheus.Counter) error {
	return r.Register(component, name, counter)
}

// RegisterGauge registers gauge as component.name.
func (r *MetricsRegistry) RegisterGauge(component, name string, gauge prometheus.Gauge) error {
	return r.Register(component, name, gauge)
}

// Register adds c under component.name. Reusing a name, or registering a
// collector whose descriptors clash with an existing one, is an invalid error.
func (r *MetricsRegistry) Register(component, name string, c prometheus.Collector) error {
	key := collectorKey{component, name}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.owned[key]; taken {
		return errors.WrapInvalid(fmt.Errorf("metric %s already registered", key),
			"MetricsRegistry", "Register", "name check")
	}

	err := r.prom.Register(c)
	var clash prometheus.AlreadyRegisteredError
	switch {
	case stderrors.As(err, &clash):
		return errors.WrapInvalid(err, "MetricsRegistry", "Register", "descriptor check for "+key.String())
	case err != nil:
		return errors.WrapFatal(err, "MetricsRegistry", "Register", "prometheus registration")
	}
	r.owned[key] = c
	return nil
}

// Unregister drops component.name, reporting whether it was registered.
func (r *MetricsRegistry) Unregister(component, name string) bool {
	key := collectorKey{component, name}

	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.owned[key]
	if !ok {
		return false
	}
	delete(r.owned, key)
	return r.prom.Unregister(c)
}
