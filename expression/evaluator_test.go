package expression

import (
	stderrors "errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSource() MapSource {
	return MapSource{
		"name":   "Alpha Station",
		"count":  int64(3),
		"ratio":  0.25,
		"active": true,
		"note":   nil,
	}
}

func TestEvaluator_Operators(t *testing.T) {
	evaluator := NewExpressionEvaluator()
	src := testSource()

	tests := []struct {
		name     string
		cond     ConditionExpression
		expected bool
	}{
		{"equal_int", ConditionExpression{Field: "count", Operator: OpEqual, Value: 3.0}, true},
		{"not_equal", ConditionExpression{Field: "count", Operator: OpNotEqual, Value: 4}, true},
		{"less_than", ConditionExpression{Field: "ratio", Operator: OpLessThan, Value: 0.5}, true},
		{"less_than_equal", ConditionExpression{Field: "ratio", Operator: OpLessThanEqual, Value: 0.25}, true},
		{"greater_than", ConditionExpression{Field: "count", Operator: OpGreaterThan, Value: 3}, false},
		{"greater_than_equal", ConditionExpression{Field: "count", Operator: OpGreaterThanEqual, Value: 3}, true},
		{"between", ConditionExpression{Field: "count", Operator: OpBetween, Value: []any{1, 5}}, true},
		{"between_outside", ConditionExpression{Field: "ratio", Operator: OpBetween, Value: []any{1, 5}}, false},
		{"contains", ConditionExpression{Field: "name", Operator: OpContains, Value: "Station"}, true},
		{"starts_with", ConditionExpression{Field: "name", Operator: OpStartsWith, Value: "Alpha"}, true},
		{"ends_with", ConditionExpression{Field: "name", Operator: OpEndsWith, Value: "Alpha"}, false},
		{"regex", ConditionExpression{Field: "name", Operator: OpRegexMatch, Value: `^A\w+ S`}, true},
		{"bool_eq", ConditionExpression{Field: "active", Operator: OpEqual, Value: true}, true},
		{"in", ConditionExpression{Field: "count", Operator: OpIn, Value: []any{1, 2, 3}}, true},
		{"not_in", ConditionExpression{Field: "name", Operator: OpNotIn, Value: []any{"Beta"}}, true},
		{"is_null", ConditionExpression{Field: "note", Operator: OpIsNull}, true},
		{"not_null", ConditionExpression{Field: "name", Operator: OpNotNull}, true},
		{"null_never_compares", ConditionExpression{Field: "note", Operator: OpEqual, Value: ""}, false},
		{"missing_optional", ConditionExpression{Field: "absent", Operator: OpEqual, Value: 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := evaluator.Evaluate(src, LogicalExpression{
				Conditions: []ConditionExpression{tt.cond},
				Logic:      LogicAnd,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestEvaluator_Logic(t *testing.T) {
	evaluator := NewExpressionEvaluator()
	src := testSource()
	conds := []ConditionExpression{
		{Field: "count", Operator: OpEqual, Value: 3},
		{Field: "name", Operator: OpEqual, Value: "nope"},
	}

	result, err := evaluator.Evaluate(src, LogicalExpression{Conditions: conds, Logic: LogicAnd})
	require.NoError(t, err)
	assert.False(t, result)

	result, err = evaluator.Evaluate(src, LogicalExpression{Conditions: conds, Logic: LogicOr})
	require.NoError(t, err)
	assert.True(t, result)

	result, err = evaluator.Evaluate(src, LogicalExpression{Conditions: conds})
	require.NoError(t, err)
	assert.True(t, result, "empty logic defaults to or")

	result, err = evaluator.Evaluate(src, LogicalExpression{})
	require.NoError(t, err)
	assert.True(t, result, "empty expression passes")

	_, err = evaluator.Evaluate(src, LogicalExpression{Conditions: conds, Logic: "xor"})
	assert.Error(t, err)
}

func TestEvaluator_Errors(t *testing.T) {
	evaluator := NewExpressionEvaluator()
	src := testSource()

	_, err := evaluator.Evaluate(src, LogicalExpression{Conditions: []ConditionExpression{
		{Field: "absent", Operator: OpEqual, Value: 1, Required: true},
	}})
	var evalErr *EvaluationError
	require.True(t, stderrors.As(err, &evalErr))
	assert.Equal(t, "absent", evalErr.Field)

	_, err = evaluator.Evaluate(src, LogicalExpression{Conditions: []ConditionExpression{
		{Field: "name", Operator: "sounds_like", Value: "x"},
	}})
	assert.Error(t, err)

	_, err = evaluator.Evaluate(src, LogicalExpression{Conditions: []ConditionExpression{
		{Field: "name", Operator: OpRegexMatch, Value: 5},
	}})
	assert.Error(t, err)

	_, err = evaluator.Evaluate(src, LogicalExpression{Conditions: []ConditionExpression{
		{Field: "count", Operator: OpBetween, Value: 5},
	}})
	assert.Error(t, err)
}

func TestEvaluator_Validate(t *testing.T) {
	evaluator := NewExpressionEvaluator()

	assert.NoError(t, evaluator.Validate(LogicalExpression{Conditions: []ConditionExpression{
		{Field: "a", Operator: OpIsNull},
		{Field: "b", Operator: OpRegexMatch, Value: "^x"},
	}, Logic: LogicAnd}))

	assert.Error(t, evaluator.Validate(LogicalExpression{Logic: "nand"}))
	assert.Error(t, evaluator.Validate(LogicalExpression{Conditions: []ConditionExpression{{Field: "a", Operator: "bogus"}}}))
	assert.Error(t, evaluator.Validate(LogicalExpression{Conditions: []ConditionExpression{{Field: "a", Operator: OpRegexMatch, Value: "("}}}))
}

func TestPatternCache(t *testing.T) {
	before := PatternCacheStats().Hits()
	_, err := compilePattern(`^cache-test-[0-9]+$`)
	require.NoError(t, err)
	_, err = compilePattern(`^cache-test-[0-9]+$`)
	require.NoError(t, err)
	assert.Greater(t, PatternCacheStats().Hits(), before)

	_, err = compilePattern(string(make([]byte, 501)))
	assert.Error(t, err)
	_, err = compilePattern("((((((a))))))")
	assert.Error(t, err)
}

func TestEvaluator_ShortCircuit(t *testing.T) {
	evaluator := NewExpressionEvaluator()
	src := testSource()

	// The failing second condition is never reached once the outcome is known.
	bad := ConditionExpression{Field: "absent", Operator: OpEqual, Value: 1, Required: true}

	ok, err := evaluator.Evaluate(src, LogicalExpression{Logic: LogicOr, Conditions: []ConditionExpression{
		{Field: "active", Operator: OpEqual, Value: true}, bad,
	}})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = evaluator.Evaluate(src, LogicalExpression{Logic: LogicAnd, Conditions: []ConditionExpression{
		{Field: "active", Operator: OpEqual, Value: false}, bad,
	}})
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = evaluator.Evaluate(src, LogicalExpression{Logic: LogicAnd, Conditions: []ConditionExpression{
		{Field: "active", Operator: OpEqual, Value: true}, bad,
	}})
	assert.Error(t, err)
}

func TestEvaluator_Operators_List(t *testing.T) {
	ops := NewExpressionEvaluator().Operators()
	assert.Contains(t, ops, OpIsNull)
	assert.Contains(t, ops, OpBetween)
	assert.True(t, sort.StringsAreSorted(ops))
	assert.Len(t, ops, 15)
}
