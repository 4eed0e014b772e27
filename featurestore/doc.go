// Package featurestore holds finalized features keyed by id and serves filtered,
// restartable iteration over them.
//
// A Store is written once by the ingestion pipeline through Load and is read-only
// afterwards. Any number of iterators may run concurrently; each one works on its own
// snapshot of candidate ids.
//
// Requests compose:
//
//	it := store.GetFeatures(featurestore.Request{
//	    FilterRect: &orb.Bound{Min: orb.Point{-5, 0}, Max: orb.Point{5, 10}},
//	    Filter: &expression.LogicalExpression{
//	        Conditions: []expression.ConditionExpression{{Field: "count", Operator: "gt", Value: 2}},
//	    },
//	})
//	defer it.Close()
//	for f, ok := it.Next(); ok; f, ok = it.Next() {
//	    ...
//	}
package featurestore
