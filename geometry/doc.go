// Package geometry converts GeoJSON-like geometry objects into WKT and tracks the
// bounding extent of everything decoded.
//
// Supported types are Point, MultiLineString and MultiPolygon, two dimensional only.
// The type name is upper-cased and a trailing Z, M or ZM becomes a space separated
// dimension suffix, so "PointZ" resolves to "POINT Z" and is rejected.
//
// Decode never touches the running extent. It returns the record's own bound, and the
// caller commits it once the whole record has succeeded:
//
//	res, err := dec.Decode(geom)
//	if err != nil {
//	    return err
//	}
//	dec.Commit(res)
//
// The WKT built for every record is parsed back with orb's WKT reader. A parse failure
// is reported as ErrWKTParse, separately from coordinate errors.
package geometry
