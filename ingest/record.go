package ingest

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/c360/stanagfeed/errors"
	"github.com/c360/stanagfeed/geometry"
)

// Record diagnostics.
const (
	msgFeature      = "Invalid STANAG JSON message received (Feature)."
	msgProperties   = "Invalid STANAG JSON message received (Properties)."
	msgProperty     = "Invalid STANAG JSON message received (Property)."
	msgGeometry     = "Invalid STANAG JSON message received (Geometry Value)."
	msgGeometryType = "Invalid STANAG JSON message received (Geometry Type)."
	msgCoordinates  = "Invalid STANAG JSON message received (Coordinates)."
	msgWKT          = "Invalid STANAG JSON message received (WKT)."
	msgCreate       = "Invalid STANAG JSON message received (Create Feature)."
	msgWKBType      = "Application Error (WKB Type)."
)

// record is a decrypted record before typing.
type record struct {
	id         any
	geometry   map[string]any
	properties map[string]any
}

// decodeRecord parses plaintext keeping numbers as json.Number so that integer and
// fractional literals stay distinguishable.
func decodeRecord(plaintext string) (record, string, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(plaintext)))
	dec.UseNumber()

	var root map[string]any
	if err := dec.Decode(&root); err != nil || root == nil {
		return record{}, msgFeature, invalidRecord("record parse", err)
	}

	props, ok := root["properties"].(map[string]any)
	if !ok {
		return record{}, msgProperties, invalidRecord("properties lookup", nil)
	}
	geom, ok := root["geometry"].(map[string]any)
	if !ok {
		return record{}, msgGeometry, invalidRecord("geometry lookup", nil)
	}
	if _, ok := geom["type"].(string); !ok {
		return record{}, msgGeometryType, invalidRecord("geometry type lookup", nil)
	}
	id, ok := root["id"]
	if !ok {
		return record{}, msgCreate, invalidRecord("id lookup", nil)
	}
	return record{id: id, geometry: geom, properties: props}, "", nil
}

func invalidRecord(action string, cause error) error {
	err := errors.ErrRecord
	if cause != nil {
		err = fmt.Errorf("%w: %v", errors.ErrRecord, cause)
	}
	return errors.WrapInvalid(err, "Pipeline", "decodeRecord", action)
}

// geometryMessage picks the diagnostic for a geometry decode failure.
func geometryMessage(err error) string {
	var coordErr *geometry.CoordinateError
	switch {
	case stderrors.Is(err, geometry.ErrUnsupportedGeometry):
		return msgWKBType
	case stderrors.Is(err, geometry.ErrWKTParse):
		return msgWKT
	case stderrors.As(err, &coordErr):
		return msgCoordinates
	default:
		return msgGeometry
	}
}
