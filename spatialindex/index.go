// Package spatialindex bins feature bounds into a fixed lat/lon grid so that
// rectangle queries only look at nearby features.
package spatialindex

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/paulmach/orb"

	"github.com/c360/stanagfeed/errors"
	"github.com/c360/stanagfeed/metric"
	"github.com/c360/stanagfeed/pkg/cache"
)

// DefaultPrecision gives ~600m bins.
const DefaultPrecision = 5

// maxCells bounds the number of bins a single bound or query may touch. Larger bounds
// are kept on an overflow list that every query scans.
const maxCells = 4096

// Config configures an Index.
type Config struct {
	Precision int `json:"precision" yaml:"precision"`
}

// Index maps grid bins to the ids of features whose bound overlaps them.
// Inserts and queries may run concurrently.
type Index struct {
	mu         sync.RWMutex
	bins       cache.Cache[[]int64]
	bounds     map[int64]orb.Bound
	overflow   map[int64]struct{}
	precision  int
	multiplier float64
	logger     *slog.Logger
}

// New creates an empty index. A nil registry disables cache metrics.
func New(cfg Config, registry *metric.MetricsRegistry, logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = slog.Default()
	}
	precision := cfg.Precision
	if precision == 0 {
		precision = DefaultPrecision
	}

	var opts []cache.Option[[]int64]
	if registry != nil {
		opts = append(opts, cache.WithMetrics[[]int64](registry, "spatial_index"))
	}
	bins, err := cache.NewSimple[[]int64](opts...)
	if err != nil {
		return nil, errors.WrapFatal(err, "SpatialIndex", "New", "bin cache creation")
	}

	return &Index{
		bins:       bins,
		bounds:     make(map[int64]orb.Bound),
		overflow:   make(map[int64]struct{}),
		precision:  precision,
		multiplier: binMultiplier(precision),
		logger:     logger,
	}, nil
}

// binMultiplier returns bins per degree for a precision:
// 4: ~2.5km, 5: ~600m, 6: ~120m, 7: ~30m, 8: ~5m.
func binMultiplier(precision int) float64 {
	switch precision {
	case 4:
		return 10.0
	case 5:
		return 50.0
	case 6:
		return 100.0
	case 7:
		return 300.0
	case 8:
		return 1000.0
	default:
		return 50.0
	}
}

func (ix *Index) binKey(latInt, lonInt int) string {
	return fmt.Sprintf("geo_%d_%d_%d", ix.precision, latInt, lonInt)
}

// cellRange returns the bin coordinates covering b and whether the count stays
// under maxCells.
func (ix *Index) cellRange(b orb.Bound) (lat0, lat1, lon0, lon1 int, ok bool) {
	lat0 = int(math.Floor((b.Min.Lat() + 90.0) * ix.multiplier))
	lat1 = int(math.Floor((b.Max.Lat() + 90.0) * ix.multiplier))
	lon0 = int(math.Floor((b.Min.Lon() + 180.0) * ix.multiplier))
	lon1 = int(math.Floor((b.Max.Lon() + 180.0) * ix.multiplier))
	cells := float64(lat1-lat0+1) * float64(lon1-lon0+1)
	return lat0, lat1, lon0, lon1, cells <= maxCells
}

// Insert adds or replaces the bound of id.
func (ix *Index) Insert(id int64, b orb.Bound) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, exists := ix.bounds[id]; exists {
		ix.removeLocked(id)
	}
	ix.bounds[id] = b

	lat0, lat1, lon0, lon1, ok := ix.cellRange(b)
	if !ok {
		ix.overflow[id] = struct{}{}
		ix.logger.Debug("Bound spans too many bins, kept on overflow list", "id", id)
		return nil
	}
	for lat := lat0; lat <= lat1; lat++ {
		for lon := lon0; lon <= lon1; lon++ {
			key := ix.binKey(lat, lon)
			ids, _ := ix.bins.Get(key)
			if _, err := ix.bins.Set(key, append(ids, id)); err != nil {
				return errors.WrapTransient(err, "SpatialIndex", "Insert", "bin update")
			}
		}
	}
	return nil
}

// Remove drops id from the index.
func (ix *Index) Remove(id int64) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeLocked(id)
}

func (ix *Index) removeLocked(id int64) {
	b, ok := ix.bounds[id]
	if !ok {
		return
	}
	delete(ix.bounds, id)
	if _, ok := ix.overflow[id]; ok {
		delete(ix.overflow, id)
		return
	}

	lat0, lat1, lon0, lon1, _ := ix.cellRange(b)
	for lat := lat0; lat <= lat1; lat++ {
		for lon := lon0; lon <= lon1; lon++ {
			key := ix.binKey(lat, lon)
			ids, found := ix.bins.Get(key)
			if !found {
				continue
			}
			kept := ids[:0:0]
			for _, other := range ids {
				if other != id {
					kept = append(kept, other)
				}
			}
			if len(kept) == 0 {
				_, _ = ix.bins.Delete(key)
			} else {
				_, _ = ix.bins.Set(key, kept)
			}
		}
	}
}

// Intersects returns the ids whose bound intersects rect, in ascending order.
func (ix *Index) Intersects(rect orb.Bound) []int64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	seen := make(map[int64]struct{})
	lat0, lat1, lon0, lon1, ok := ix.cellRange(rect)
	if ok {
		for lat := lat0; lat <= lat1; lat++ {
			for lon := lon0; lon <= lon1; lon++ {
				ids, _ := ix.bins.Get(ix.binKey(lat, lon))
				for _, id := range ids {
					seen[id] = struct{}{}
				}
			}
		}
		for id := range ix.overflow {
			seen[id] = struct{}{}
		}
	} else {
		for id := range ix.bounds {
			seen[id] = struct{}{}
		}
	}

	out := make([]int64, 0, len(seen))
	for id := range seen {
		if ix.bounds[id].Intersects(rect) {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len returns the number of indexed ids.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.bounds)
}

// Bins returns the number of populated bins.
func (ix *Index) Bins() int {
	return ix.bins.Size()
}

// Close releases the bin cache.
func (ix *Index) Close() error {
	return ix.bins.Close()
}
