package featurestore

import (
	"encoding/json"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/c360/stanagfeed/geometry"
	"github.com/c360/stanagfeed/schema"
)

// Feature is one finalized record. Attributes hold one value per catalog field in
// catalog order.
type Feature struct {
	ID         int64
	Attributes []schema.Value
	Geometry   orb.Geometry
	WKT        string
	Type       geometry.Type
	Bound      orb.Bound

	catalog *schema.Catalog
}

// NewFeature materializes attrs against the final catalog.
func NewFeature(id int64, catalog *schema.Catalog, attrs map[string]schema.Value, geom geometry.Result) Feature {
	return Feature{
		ID:         id,
		Attributes: catalog.Materialize(attrs),
		Geometry:   geom.Geometry,
		WKT:        geom.WKT,
		Type:       geom.Type,
		Bound:      geom.Bound,
		catalog:    catalog,
	}
}

// Attribute returns the value of the named field.
func (f Feature) Attribute(name string) (schema.Value, bool) {
	if f.catalog == nil {
		return schema.Value{}, false
	}
	i := f.catalog.Index(name)
	if i < 0 || i >= len(f.Attributes) {
		return schema.Value{}, false
	}
	return f.Attributes[i], true
}

// FieldValue exposes attributes to expression filters. Nulls exist with a nil value.
func (f Feature) FieldValue(name string) (interface{}, bool) {
	v, ok := f.Attribute(name)
	if !ok {
		return nil, false
	}
	return v.Interface(), true
}

// Properties returns the attributes keyed by field name.
func (f Feature) Properties() map[string]interface{} {
	props := make(map[string]interface{}, len(f.Attributes))
	if f.catalog == nil {
		return props
	}
	for i, name := range f.catalog.Names() {
		if i < len(f.Attributes) {
			props[name] = f.Attributes[i].Interface()
		}
	}
	return props
}

// GeoJSON converts the feature to a GeoJSON feature.
func (f Feature) GeoJSON() *geojson.Feature {
	gf := geojson.NewFeature(f.Geometry)
	gf.ID = f.ID
	gf.Properties = f.Properties()
	return gf
}

// MarshalJSON encodes the feature as GeoJSON.
func (f Feature) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.GeoJSON())
}
