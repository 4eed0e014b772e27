// Package schema infers an ordered field catalog from a stream of JSON property bags.
//
// Each record passes through Engine.Infer, which types its properties and widens the
// shared Catalog:
//
//   - booleans create a bool field; a bool field never changes type
//   - numbers create an int field when they have no fractional digits and a double
//     field otherwise; precision only grows and int promotes to double, never back
//   - strings create a string field whose length is bucketed to the next multiple
//     of 100; length only grows
//
// Any other value, or a value whose type conflicts with the existing field, fails the
// record. Field order is the order of first appearance.
//
// Inference and materialization are separate passes. The pipeline keeps the typed
// attributes of every record, and after the last record calls Catalog.Materialize to
// produce one row per feature against the final catalog. Fields introduced by later
// records appear as typed nulls on earlier features.
package schema
