package geometry

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"

	"github.com/c360/stanagfeed/errors"
)

var (
	// ErrUnsupportedGeometry is returned for types other than Point, MultiLineString
	// and MultiPolygon.
	ErrUnsupportedGeometry = stderrors.New("unsupported geometry type")

	// ErrWKTParse is returned when built WKT does not read back as the expected type.
	ErrWKTParse = stderrors.New("wkt parse failed")
)

// Coordinate nesting levels reported by CoordinateError.
const (
	LevelCoordinates = "coordinates"
	LevelPoint       = "point"
	LevelLine        = "line"
	LevelPolygon     = "polygon"
	LevelRing        = "ring"
	LevelRingPoint   = "ring point"
)

// CoordinateError reports a malformed coordinate structure.
type CoordinateError struct {
	Level string
	Index int
}

func (e *CoordinateError) Error() string {
	return fmt.Sprintf("invalid %s at index %d", e.Level, e.Index)
}

// Unwrap ties coordinate errors to the geometry sentinel.
func (e *CoordinateError) Unwrap() error {
	return errors.ErrGeometry
}

// Result is one decoded geometry.
type Result struct {
	Type     Type
	WKT      string
	Geometry orb.Geometry
	Bound    orb.Bound
}

// Decoder builds WKT from geometry objects and owns the running extent.
// It is not safe for concurrent use.
type Decoder struct {
	extent Extent
}

// NewDecoder returns a decoder with an empty extent.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Extent returns the committed extent.
func (d *Decoder) Extent() Extent {
	return d.extent
}

// Commit widens the running extent by the bound of a decoded record.
func (d *Decoder) Commit(res Result) {
	if res.Geometry == nil {
		return
	}
	d.extent.Union(Extent{bound: res.Bound, set: true})
}

// Decode converts a geometry object with "type" and "coordinates" members.
func (d *Decoder) Decode(geom map[string]any) (Result, error) {
	name, ok := geom["type"].(string)
	if !ok {
		return Result{}, errors.WrapInvalid(
			fmt.Errorf("%w: missing geometry type", errors.ErrGeometry), "Decoder", "Decode", "type lookup")
	}
	typ := ResolveType(name)
	if !typ.Supported() {
		return Result{Type: typ}, errors.WrapInvalid(
			fmt.Errorf("%w: %w: %s", errors.ErrGeometry, ErrUnsupportedGeometry, typ), "Decoder", "Decode", "type resolution")
	}

	b := &builder{}
	var err error
	switch typ {
	case Point:
		err = b.point(geom["coordinates"])
	case MultiLineString:
		err = b.multiLineString(geom["coordinates"])
	case MultiPolygon:
		err = b.multiPolygon(geom["coordinates"])
	}
	if err != nil {
		return Result{Type: typ}, errors.WrapInvalid(err, "Decoder", "Decode", "coordinates")
	}

	text := b.String()
	parsed, err := reparse(typ, text)
	if err != nil {
		return Result{Type: typ, WKT: text}, errors.WrapInvalid(
			fmt.Errorf("%w: %w: %v", errors.ErrGeometry, ErrWKTParse, err), "Decoder", "Decode", "wkt reparse")
	}

	return Result{Type: typ, WKT: text, Geometry: parsed, Bound: b.bound.Bound()}, nil
}

func reparse(typ Type, text string) (orb.Geometry, error) {
	g, err := wkt.Unmarshal(text)
	if err != nil {
		return nil, err
	}
	var match bool
	switch typ {
	case Point:
		_, match = g.(orb.Point)
	case MultiLineString:
		_, match = g.(orb.MultiLineString)
	case MultiPolygon:
		_, match = g.(orb.MultiPolygon)
	}
	if !match {
		return nil, fmt.Errorf("read back %s, want %s", g.GeoJSONType(), typ)
	}
	return g, nil
}

type builder struct {
	strings.Builder
	bound Extent
}

func (b *builder) point(raw any) error {
	coords, ok := raw.([]any)
	if !ok {
		return &CoordinateError{Level: LevelCoordinates}
	}
	b.WriteString("POINT (")
	if err := b.pair(coords, LevelPoint, 0); err != nil {
		return err
	}
	b.WriteString(")")
	return nil
}

func (b *builder) multiLineString(raw any) error {
	lines, ok := raw.([]any)
	if !ok || len(lines) == 0 {
		return &CoordinateError{Level: LevelCoordinates}
	}
	b.WriteString("MULTILINESTRING (")
	for i, l := range lines {
		if i > 0 {
			b.WriteString(", ")
		}
		if err := b.sequence(l, LevelLine, LevelPoint, i); err != nil {
			return err
		}
	}
	b.WriteString(")")
	return nil
}

func (b *builder) multiPolygon(raw any) error {
	polygons, ok := raw.([]any)
	if !ok || len(polygons) == 0 {
		return &CoordinateError{Level: LevelCoordinates}
	}
	b.WriteString("MULTIPOLYGON (")
	for i, p := range polygons {
		rings, ok := p.([]any)
		if !ok || len(rings) == 0 {
			return &CoordinateError{Level: LevelPolygon, Index: i}
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j, r := range rings {
			if j > 0 {
				b.WriteString(", ")
			}
			if err := b.sequence(r, LevelRing, LevelRingPoint, j); err != nil {
				return err
			}
		}
		b.WriteString(")")
	}
	b.WriteString(")")
	return nil
}

// sequence writes "(x y, x y, ...)" for a line or ring.
func (b *builder) sequence(raw any, level, pointLevel string, index int) error {
	points, ok := raw.([]any)
	if !ok || len(points) == 0 {
		return &CoordinateError{Level: level, Index: index}
	}
	b.WriteString("(")
	for i, p := range points {
		if i > 0 {
			b.WriteString(", ")
		}
		coords, ok := p.([]any)
		if !ok {
			return &CoordinateError{Level: pointLevel, Index: i}
		}
		if err := b.pair(coords, pointLevel, i); err != nil {
			return err
		}
	}
	b.WriteString(")")
	return nil
}

// pair writes "x y" from the first two elements of coords. Every element, including
// any beyond the second, must be a number.
func (b *builder) pair(coords []any, level string, index int) error {
	if len(coords) < 2 {
		return &CoordinateError{Level: level, Index: index}
	}
	values := make([]float64, len(coords))
	for i, c := range coords {
		v, ok := number(c)
		if !ok {
			return &CoordinateError{Level: level, Index: index}
		}
		values[i] = v
	}
	x, y := values[0], values[1]
	b.bound.Add(x, y)
	b.WriteString(formatNumber(x))
	b.WriteString(" ")
	b.WriteString(formatNumber(y))
	return nil
}

func number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case json.Number:
		var err error
		if f, err = n.Float64(); err != nil {
			return 0, false
		}
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
