package cache

import (
	"github.com/c360/stanagfeed/metric"
)

// Option configures a cache.
type Option[V any] func(*cacheOptions[V])

type cacheOptions[V any] struct {
	registry  *metric.MetricsRegistry
	component string
	onEvict   EvictCallback[V]
}

// WithMetrics exports hit, miss, eviction and size metrics under the component
// label. Both a registry and a component are required; otherwise the option is a
// no-op.
func WithMetrics[V any](registry *metric.MetricsRegistry, component string) Option[V] {
	return func(o *cacheOptions[V]) {
		if registry == nil || component == "" {
			return
		}
		o.registry, o.component = registry, component
	}
}

// WithEvictionCallback runs fn for every entry that leaves the cache.
func WithEvictionCallback[V any](fn EvictCallback[V]) Option[V] {
	return func(o *cacheOptions[V]) { o.onEvict = fn }
}

func collectOptions[V any](options []Option[V]) *cacheOptions[V] {
	o := new(cacheOptions[V])
	for _, apply := range options {
		if apply != nil {
			apply(o)
		}
	}
	return o
}
