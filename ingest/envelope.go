package ingest

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/c360/stanagfeed/errors"
)

// EnvelopeType is the required value of the envelope "type" member.
const EnvelopeType = "STANAG4778"

// Envelope diagnostics, in the order they are checked.
const (
	DiagMessage   = "MESSAGE"
	DiagSignature = "SIGNATURE"
	DiagType      = "TYPE"
	DiagObjects   = "OBJECTS"
	DiagItem      = "ITEM"
	DiagData      = "DATA"
)

const envelopeSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["type", "objects"],
  "properties": {
    "type": {"type": "string", "enum": ["STANAG4778"]},
    "objects": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["Data"],
        "properties": {"Data": {"type": "string"}}
      }
    }
  }
}`

// EnvelopeMessage formats an envelope diagnostic.
func EnvelopeMessage(diag string) string {
	return fmt.Sprintf("Invalid STANAG JSON message received (%s).", diag)
}

// EnvelopeError reports why an envelope was rejected.
type EnvelopeError struct {
	Diag    string
	Index   int // object index for ITEM and DATA, else -1
	Details []string
}

func (e *EnvelopeError) Error() string {
	return EnvelopeMessage(e.Diag)
}

func (e *EnvelopeError) Unwrap() error {
	return errors.ErrEnvelope
}

// envelopeValidator checks envelopes against the compiled schema.
type envelopeValidator struct {
	schema *gojsonschema.Schema
}

func newEnvelopeValidator() (*envelopeValidator, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(envelopeSchema))
	if err != nil {
		return nil, errors.WrapFatal(err, "Envelope", "compile", "schema compilation")
	}
	return &envelopeValidator{schema: s}, nil
}

// Tokens returns the Data member of every object in order.
func (v *envelopeValidator) Tokens(message []byte) ([]string, error) {
	var doc map[string]any
	if err := json.Unmarshal(message, &doc); err != nil || doc == nil {
		return nil, &EnvelopeError{Diag: DiagMessage, Index: -1}
	}

	result, err := v.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, &EnvelopeError{Diag: DiagMessage, Index: -1, Details: []string{err.Error()}}
	}
	if !result.Valid() {
		return nil, classify(result.Errors())
	}

	objects, _ := doc["objects"].([]any)
	tokens := make([]string, 0, len(objects))
	for i, item := range objects {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, &EnvelopeError{Diag: DiagItem, Index: i}
		}
		data, ok := obj["Data"].(string)
		if !ok {
			return nil, &EnvelopeError{Diag: DiagData, Index: i}
		}
		tokens = append(tokens, data)
	}
	return tokens, nil
}

type violation struct {
	diag  string
	index int
	rank  int
}

// classify maps schema violations to the diagnostic of the first check that would
// have failed: type, then objects, then each item in order.
func classify(errs []gojsonschema.ResultError) *EnvelopeError {
	details := make([]string, 0, len(errs))
	found := make([]violation, 0, len(errs))
	for _, re := range errs {
		details = append(details, re.String())
		found = append(found, locate(errorPath(re)))
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].rank < found[j].rank })
	first := found[0]
	return &EnvelopeError{Diag: first.diag, Index: first.index, Details: details}
}

func errorPath(re gojsonschema.ResultError) []string {
	field := re.Field()
	var parts []string
	if field != "" && field != "(root)" {
		parts = strings.Split(strings.TrimPrefix(field, "(root)."), ".")
	}
	if re.Type() == "required" {
		if p, ok := re.Details()["property"].(string); ok && (len(parts) == 0 || parts[len(parts)-1] != p) {
			parts = append(parts, p)
		}
	}
	return parts
}

func locate(path []string) violation {
	switch {
	case len(path) == 1 && path[0] == "type":
		return violation{DiagType, -1, 0}
	case len(path) == 1 && path[0] == "objects":
		return violation{DiagObjects, -1, 1}
	case len(path) >= 2 && path[0] == "objects":
		i, err := strconv.Atoi(path[1])
		if err != nil {
			break
		}
		if len(path) == 2 {
			return violation{DiagItem, i, 2 + 2*i}
		}
		return violation{DiagData, i, 3 + 2*i}
	}
	return violation{DiagMessage, -1, math.MaxInt}
}
