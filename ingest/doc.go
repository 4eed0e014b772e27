// Package ingest turns STANAG 4778 envelopes into feature stores.
//
// An envelope is a JSON object of the form
//
//	{"type": "STANAG4778", "objects": [{"Data": "<compact JWE>"}, ...]}
//
// Parse validates the envelope, then opens each object in order with one reused
// jose.Decryptor, decodes the record, widens the schema, decodes the geometry and
// assigns an id. A failing record is reported and skipped. A failing envelope aborts
// the run and yields an invalid, empty store. After the loop every kept record is
// materialized against the final catalog and loaded into a featurestore.Store.
//
// Optionally the envelope arrives as an RS256 JWS (Config.PEMURL), and kept features
// are published to NATS (WithPublisher).
package ingest
