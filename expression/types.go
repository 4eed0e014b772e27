// Package expression evaluates attribute filters against features.
//
// A filter is a LogicalExpression: a list of field/operator/value conditions
// joined by "and" or "or". Nulls only ever satisfy is_null and not_null.
package expression

import (
	"fmt"
)

// ConditionExpression tests one attribute.
type ConditionExpression struct {
	Field    string `json:"field" yaml:"field"`
	Operator string `json:"operator" yaml:"operator"`
	Value    any    `json:"value" yaml:"value"`
	// Required turns a missing field into an evaluation error instead of a
	// non-match.
	Required bool `json:"required" yaml:"required"`
}

// LogicalExpression joins conditions. An empty Logic means "or".
type LogicalExpression struct {
	Conditions []ConditionExpression `json:"conditions" yaml:"conditions"`
	Logic      string                `json:"logic" yaml:"logic"`
}

// FieldSource exposes attribute values by name. A field that exists but holds a
// null returns (nil, true).
type FieldSource interface {
	FieldValue(field string) (value any, exists bool)
}

// MapSource adapts a plain map to FieldSource.
type MapSource map[string]any

// FieldValue implements FieldSource.
func (m MapSource) FieldValue(field string) (any, bool) {
	v, ok := m[field]
	return v, ok
}

// OperatorFunc compares a non-null attribute value with a condition value.
type OperatorFunc func(fieldValue, compareValue any) (bool, error)

// EvaluationError reports a condition that could not be evaluated.
type EvaluationError struct {
	Field    string
	Operator string
	Message  string
	Err      error
}

func (e *EvaluationError) Error() string {
	msg := e.Message
	if e.Field != "" || e.Operator != "" {
		msg = fmt.Sprintf("filter %q %s: %s", e.Field, e.Operator, e.Message)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// Operators.
const (
	OpEqual            = "eq"
	OpNotEqual         = "ne"
	OpLessThan         = "lt"
	OpLessThanEqual    = "lte"
	OpGreaterThan      = "gt"
	OpGreaterThanEqual = "gte"
	OpBetween          = "between"

	OpContains   = "contains"
	OpStartsWith = "starts_with"
	OpEndsWith   = "ends_with"
	OpRegexMatch = "regex"

	OpIsNull  = "is_null"
	OpNotNull = "not_null"

	OpIn    = "in"
	OpNotIn = "not_in"
)

// Logic keywords.
const (
	LogicAnd = "and"
	LogicOr  = "or"
)
