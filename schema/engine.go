package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/c360/stanagfeed/errors"
)

// IDField is the reserved attribute that keeps string record ids.
const IDField = "id"

const (
	stringBucket = 100
	idBucket     = 10
)

// Engine types property bags and widens its catalog. It is not safe for concurrent use.
type Engine struct {
	catalog *Catalog
}

// NewEngine returns an engine with an empty catalog.
func NewEngine() *Engine {
	return &Engine{catalog: NewCatalog()}
}

// Catalog returns the catalog built so far.
func (e *Engine) Catalog() *Catalog {
	return e.catalog
}

// Infer types every property of one record, widening the catalog as it goes.
// Properties are visited in sorted key order. On error the record should be dropped;
// widening already applied for earlier properties is kept.
func (e *Engine) Infer(properties map[string]any) (map[string]Value, error) {
	keys := make([]string, 0, len(properties))
	for k := range properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]Value, len(properties))
	for _, key := range keys {
		v, err := e.inferValue(key, properties[key])
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}

func (e *Engine) inferValue(key string, raw any) (Value, error) {
	switch v := raw.(type) {
	case bool:
		return e.inferBool(key, v)
	case string:
		return e.inferString(key, v, stringBucket)
	case json.Number:
		return e.inferNumber(key, v.String())
	case float64:
		return e.inferNumber(key, strconv.FormatFloat(v, 'f', -1, 64))
	case int:
		return e.inferNumber(key, strconv.Itoa(v))
	case int64:
		return e.inferNumber(key, strconv.FormatInt(v, 10))
	default:
		return Value{}, errors.WrapInvalid(
			fmt.Errorf("%w: property %q: unsupported property value %T", errors.ErrRecord, key, raw),
			"Engine", "Infer", "property typing")
	}
}

func (e *Engine) inferBool(key string, b bool) (Value, error) {
	f, ok := e.catalog.Field(key)
	if !ok {
		e.catalog.add(Field{Name: key, Type: TypeBool})
		return Bool(b), nil
	}
	if f.Type != TypeBool {
		return Value{}, conflict(key, f.Type, TypeBool)
	}
	return Bool(b), nil
}

func (e *Engine) inferString(key, s string, bucket int) (Value, error) {
	size := Bucket(textLength(s), bucket)
	f, ok := e.catalog.Field(key)
	if !ok {
		e.catalog.add(Field{Name: key, Type: TypeString, Length: size})
		return String(s), nil
	}
	if f.Type != TypeString {
		return Value{}, conflict(key, f.Type, TypeString)
	}
	if size > f.Length {
		f.Length = size
		e.catalog.set(f)
	}
	return String(s), nil
}

func (e *Engine) inferNumber(key, text string) (Value, error) {
	n, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsInf(n, 0) || math.IsNaN(n) {
		return Value{}, errors.WrapInvalid(
			fmt.Errorf("%w: property %q: bad number %q", errors.ErrRecord, key, text),
			"Engine", "Infer", "number parse")
	}
	precision := Precision(n)
	exact, rangeErr := strconv.ParseInt(text, 10, 64)
	typ := TypeInt
	if precision > 0 || (rangeErr != nil && !fitsInt64(n)) {
		typ = TypeDouble
	}

	f, ok := e.catalog.Field(key)
	if !ok {
		f = Field{Name: key, Type: typ, Precision: precision}
		e.catalog.add(f)
	} else {
		if !f.Type.Numeric() {
			return Value{}, conflict(key, f.Type, typ)
		}
		if precision > f.Precision || (typ == TypeDouble && f.Type == TypeInt) {
			f.Precision = max(f.Precision, precision)
			f.Type = TypeDouble
			e.catalog.set(f)
		}
	}

	if f.Type == TypeInt {
		if rangeErr == nil {
			return Int(exact), nil
		}
		return Int(int64(n)), nil
	}
	return Double(n), nil
}

// AssignID resolves a record's feature id. A numeric id is used directly. A string id
// yields seq as the feature id and a value for the reserved IDField, widening that field
// with a 10-character bucket.
func (e *Engine) AssignID(raw any, seq int64) (int64, *Value, error) {
	switch v := raw.(type) {
	case string:
		val, err := e.inferString(IDField, v, idBucket)
		if err != nil {
			return 0, nil, err
		}
		return seq, &val, nil
	case json.Number:
		if id, err := v.Int64(); err == nil {
			return id, nil, nil
		}
		f, err := v.Float64()
		if err == nil && f == math.Trunc(f) && math.Abs(f) < 1<<63 {
			return int64(f), nil, nil
		}
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1<<63 {
			return int64(v), nil, nil
		}
	case int64:
		return v, nil, nil
	case int:
		return int64(v), nil, nil
	}
	return 0, nil, errors.WrapInvalid(
		fmt.Errorf("%w: unsupported id %v", errors.ErrRecord, raw),
		"Engine", "AssignID", "id typing")
}

// fitsInt64 reports whether the integral value n converts to int64 without
// wrapping.
func fitsInt64(n float64) bool {
	return n >= math.MinInt64 && n < math.MaxInt64
}

// textLength counts UTF-16 code units, so characters outside the BMP count twice.
func textLength(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// Bucket rounds n up to the next multiple of size, always leaving headroom:
// Bucket(0, 100) == 100 and Bucket(100, 100) == 200.
func Bucket(n, size int) int {
	return (n/size + 1) * size
}

// Precision returns the number of fractional digits in the shortest decimal rendering
// of n.
func Precision(n float64) int {
	s := strconv.FormatFloat(n, 'f', -1, 64)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return len(s) - i - 1
	}
	return 0
}

func conflict(key string, have, got Type) error {
	return errors.WrapInvalid(
		fmt.Errorf("%w: property %q is %s, got %s", errors.ErrSchemaConflict, key, have, got),
		"Engine", "Infer", "type widening")
}
