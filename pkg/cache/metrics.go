package cache

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/stanagfeed/metric"
)

type cacheMetrics struct {
	registry  *metric.MetricsRegistry
	component string
	hits      prometheus.Counter
	misses    prometheus.Counter
	evictions prometheus.Counter
	size      prometheus.Gauge
}

func cacheOpts(component, name, help string) prometheus.Opts {
	return prometheus.Opts{
		Namespace:   "stanagfeed",
		Subsystem:   "cache",
		Name:        name,
		Help:        help,
		ConstLabels: prometheus.Labels{"component": component},
	}
}

// newCacheMetrics registers the four cache collectors under component, e.g.
// stanagfeed_cache_hits_total{component="ingest_keys"}.
func newCacheMetrics(registry *metric.MetricsRegistry, component string) (*cacheMetrics, error) {
	m := &cacheMetrics{
		registry:  registry,
		component: component,
		hits:      prometheus.NewCounter(prometheus.CounterOpts(cacheOpts(component, "hits_total", "Cache lookups that found an entry"))),
		misses:    prometheus.NewCounter(prometheus.CounterOpts(cacheOpts(component, "misses_total", "Cache lookups that found nothing"))),
		evictions: prometheus.NewCounter(prometheus.CounterOpts(cacheOpts(component, "evictions_total", "Entries dropped to respect the capacity"))),
		size:      prometheus.NewGauge(prometheus.GaugeOpts(cacheOpts(component, "size", "Entries currently cached"))),
	}

	var done []string
	for name, c := range m.collectors() {
		if err := registry.Register(component, name, c); err != nil {
			for _, n := range done {
				registry.Unregister(component, n)
			}
			return nil, err
		}
		done = append(done, name)
	}
	return m, nil
}

func (m *cacheMetrics) collectors() map[string]prometheus.Collector {
	return map[string]prometheus.Collector{
		"cache_hits":      m.hits,
		"cache_misses":    m.misses,
		"cache_evictions": m.evictions,
		"cache_size":      m.size,
	}
}

// unregister frees the metric names so another cache can reuse the component.
func (m *cacheMetrics) unregister() {
	for name := range m.collectors() {
		m.registry.Unregister(m.component, name)
	}
}

// observer fans statistics out to the always-on Statistics and the optional metrics.
type observer struct {
	stats   *Statistics
	metrics *cacheMetrics
}

func newObserver[V any](opts *cacheOptions[V]) (observer, error) {
	o := observer{stats: NewStatistics()}
	if opts.registry != nil {
		m, err := newCacheMetrics(opts.registry, opts.component)
		if err != nil {
			return o, err
		}
		o.metrics = m
	}
	return o, nil
}

func (o observer) close() {
	if o.metrics != nil {
		o.metrics.unregister()
	}
}

func (o observer) hit() {
	o.stats.Hit()
	if o.metrics != nil {
		o.metrics.hits.Inc()
	}
}

func (o observer) miss() {
	o.stats.Miss()
	if o.metrics != nil {
		o.metrics.misses.Inc()
	}
}

func (o observer) evicted() {
	o.stats.Eviction()
	if o.metrics != nil {
		o.metrics.evictions.Inc()
	}
}

func (o observer) resized(size int) {
	o.stats.UpdateSize(int64(size))
	if o.metrics != nil {
		o.metrics.size.Set(float64(size))
	}
}
