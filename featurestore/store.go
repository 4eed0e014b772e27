package featurestore

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/c360/stanagfeed/errors"
	"github.com/c360/stanagfeed/expression"
	"github.com/c360/stanagfeed/geometry"
	"github.com/c360/stanagfeed/metric"
	"github.com/c360/stanagfeed/schema"
	"github.com/c360/stanagfeed/spatialindex"
)

// Store metadata.
const (
	Name        = "s4778j"
	Description = "STANAG 4778 JSON data provider"
	StorageType = "STANAG 4778 JSON Features"
	CRS         = "EPSG:4326"
)

// Config configures a Store.
type Config struct {
	SpatialIndex spatialindex.Config `json:"spatial_index" yaml:"spatial_index"`
}

// Contents is everything the pipeline hands over when it finishes.
type Contents struct {
	Catalog  *schema.Catalog
	Features []Feature
	Extent   geometry.Extent
	WKBType  geometry.Type
	Count    int
}

// Store holds finalized features keyed by id.
type Store struct {
	mu        sync.RWMutex
	catalog   *schema.Catalog
	features  map[int64]*Feature
	ids       []int64
	extent    geometry.Extent
	wkbType   geometry.Type
	count     int
	valid     bool
	errs      []string
	index     *spatialindex.Index
	evaluator *expression.Evaluator
	logger    *slog.Logger
}

// New creates an empty, valid store.
func New(cfg Config, registry *metric.MetricsRegistry, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	index, err := spatialindex.New(cfg.SpatialIndex, registry, logger)
	if err != nil {
		return nil, errors.WrapFatal(err, "Store", "New", "spatial index creation")
	}
	return &Store{
		catalog:   schema.NewCatalog(),
		features:  make(map[int64]*Feature),
		valid:     true,
		index:     index,
		evaluator: expression.NewExpressionEvaluator(),
		logger:    logger,
	}, nil
}

// Load installs the finalized contents. Features are keyed by id; a later feature with
// the same id replaces an earlier one.
func (s *Store) Load(c Contents) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.Catalog != nil {
		s.catalog = c.Catalog
	}
	for i := range c.Features {
		f := c.Features[i]
		if _, dup := s.features[f.ID]; dup {
			s.logger.Warn("Duplicate feature id replaced", "id", f.ID)
		}
		s.features[f.ID] = &f
		if f.Geometry != nil {
			if err := s.index.Insert(f.ID, f.Bound); err != nil {
				return errors.WrapTransient(err, "Store", "Load", "spatial index insert")
			}
		}
	}

	s.ids = make([]int64, 0, len(s.features))
	for id := range s.features {
		s.ids = append(s.ids, id)
	}
	sort.Slice(s.ids, func(i, j int) bool { return s.ids[i] < s.ids[j] })

	s.extent = c.Extent
	s.wkbType = c.WKBType
	s.count = c.Count
	return nil
}

// PushError records a diagnostic without affecting validity.
func (s *Store) PushError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, msg)
}

// Invalidate records an envelope-level failure.
func (s *Store) Invalidate(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.valid = false
	s.errs = append(s.errs, msg)
}

// Name returns the provider key.
func (s *Store) Name() string { return Name }

// Description returns the provider description.
func (s *Store) Description() string { return Description }

// StorageType returns the storage type label.
func (s *Store) StorageType() string { return StorageType }

// CRS returns the coordinate reference system of all geometries.
func (s *Store) CRS() string { return CRS }

// Fields returns the final field catalog.
func (s *Store) Fields() []schema.Field {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalog.Fields()
}

// Extent returns the bounding extent of all stored geometries.
func (s *Store) Extent() geometry.Extent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.extent
}

// FeatureCount returns the number of successfully processed records.
func (s *Store) FeatureCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// WKBType returns the layer geometry type.
func (s *Store) WKBType() geometry.Type {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.wkbType
}

// IsValid reports envelope-level success.
func (s *Store) IsValid() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.valid
}

// Errors returns the recorded diagnostics in order.
func (s *Store) Errors() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.errs))
	copy(out, s.errs)
	return out
}

// HasErrors reports whether any diagnostic was recorded.
func (s *Store) HasErrors() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.errs) > 0
}

// Feature returns the feature with id.
func (s *Store) Feature(id int64) (Feature, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.features[id]
	if !ok {
		return Feature{}, false
	}
	return *f, true
}

// Len returns the number of stored features, which is lower than FeatureCount when ids
// collided.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.features)
}

// Close releases the spatial index.
func (s *Store) Close() error {
	return s.index.Close()
}
