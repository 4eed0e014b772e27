package featurestore

import (
	"sync"

	"github.com/paulmach/orb"

	"github.com/c360/stanagfeed/expression"
)

// Request selects features. All set members apply together.
type Request struct {
	// FeatureIDs fetches these ids in list order. Missing ids are skipped.
	FeatureIDs []int64 `json:"feature_ids,omitempty"`
	// FilterRect keeps features whose bound intersects the rectangle.
	FilterRect *orb.Bound `json:"filter_rect,omitempty"`
	// Filter keeps features matching the attribute expression.
	Filter *expression.LogicalExpression `json:"filter,omitempty"`
	// Limit caps the number of features returned. Zero means no limit.
	Limit int `json:"limit,omitempty"`
}

// Iterator walks the features selected by a Request. It is restartable through Rewind
// and yields nothing after Close.
type Iterator struct {
	mu        sync.Mutex
	features  []*Feature
	filter    *expression.LogicalExpression
	evaluator *expression.Evaluator
	limit     int
	pos       int
	yielded   int
	closed    bool
	invalid   error
	err       error
}

// GetFeatures returns an iterator over the features selected by req.
func (s *Store) GetFeatures(req Request) *Iterator {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it := &Iterator{
		filter:    req.Filter,
		evaluator: s.evaluator,
		limit:     req.Limit,
	}
	if req.Filter != nil {
		if err := s.evaluator.Validate(*req.Filter); err != nil {
			it.invalid = err
			return it
		}
	}

	var ids []int64
	switch {
	case req.FeatureIDs != nil:
		ids = dedupe(req.FeatureIDs)
	case req.FilterRect != nil:
		ids = s.index.Intersects(*req.FilterRect)
	default:
		ids = s.ids
	}

	for _, id := range ids {
		f, ok := s.features[id]
		if !ok {
			continue
		}
		if req.FilterRect != nil && (f.Geometry == nil || !f.Bound.Intersects(*req.FilterRect)) {
			continue
		}
		it.features = append(it.features, f)
	}
	return it
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Next returns the next matching feature. It returns false when the sequence is
// exhausted, the iterator is closed, or a filter failed (see Err).
func (it *Iterator) Next() (Feature, bool) {
	it.mu.Lock()
	defer it.mu.Unlock()

	if it.closed || (it.limit > 0 && it.yielded >= it.limit) {
		return Feature{}, false
	}
	for it.pos < len(it.features) {
		f := it.features[it.pos]
		it.pos++
		if it.filter != nil {
			match, err := it.evaluator.Evaluate(f, *it.filter)
			if err != nil {
				it.err = err
				return Feature{}, false
			}
			if !match {
				continue
			}
		}
		it.yielded++
		return *f, true
	}
	return Feature{}, false
}

// Rewind restarts the sequence. It returns false once the iterator is closed.
func (it *Iterator) Rewind() bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.closed {
		return false
	}
	it.pos = 0
	it.yielded = 0
	it.err = nil
	return true
}

// Close releases the snapshot. It returns false if the iterator was already closed.
func (it *Iterator) Close() bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.closed {
		return false
	}
	it.closed = true
	it.features = nil
	return true
}

// Err returns the filter error that stopped iteration, if any.
func (it *Iterator) Err() error {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.invalid != nil {
		return it.invalid
	}
	return it.err
}

// Collect drains the iterator into a slice.
func (it *Iterator) Collect() []Feature {
	var out []Feature
	for f, ok := it.Next(); ok; f, ok = it.Next() {
		out = append(out, f)
	}
	return out
}
