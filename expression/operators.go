package expression

import (
	"cmp"
	"fmt"
	"strings"
)

// builtinOperators lists every operator except the null checks, which the
// evaluator answers itself.
func builtinOperators() map[string]OperatorFunc {
	return map[string]OperatorFunc{
		OpEqual:            ordered(func(c int) bool { return c == 0 }),
		OpNotEqual:         ordered(func(c int) bool { return c != 0 }),
		OpLessThan:         ordered(func(c int) bool { return c < 0 }),
		OpLessThanEqual:    ordered(func(c int) bool { return c <= 0 }),
		OpGreaterThan:      ordered(func(c int) bool { return c > 0 }),
		OpGreaterThanEqual: ordered(func(c int) bool { return c >= 0 }),
		OpBetween:          between,
		OpContains:         textual(strings.Contains),
		OpStartsWith:       textual(strings.HasPrefix),
		OpEndsWith:         textual(strings.HasSuffix),
		OpRegexMatch:       matches,
		OpIn:               memberOf,
		OpNotIn: func(v, set any) (bool, error) {
			in, err := memberOf(v, set)
			return !in, err
		},
	}
}

func ordered(accept func(int) bool) OperatorFunc {
	return func(v, want any) (bool, error) {
		return accept(compareValues(v, want)), nil
	}
}

func textual(test func(s, sub string) bool) OperatorFunc {
	return func(v, want any) (bool, error) {
		return test(asString(v), asString(want)), nil
	}
}

func between(v, bounds any) (bool, error) {
	pair, ok := bounds.([]any)
	if !ok || len(pair) != 2 {
		return false, fmt.Errorf("between needs [low, high], got %v", bounds)
	}
	return compareValues(v, pair[0]) >= 0 && compareValues(v, pair[1]) <= 0, nil
}

func memberOf(v, set any) (bool, error) {
	items, ok := set.([]any)
	if !ok {
		return false, fmt.Errorf("in needs a list, got %T", set)
	}
	for _, item := range items {
		if compareValues(v, item) == 0 {
			return true, nil
		}
	}
	return false, nil
}

func matches(v, pattern any) (bool, error) {
	expr, ok := pattern.(string)
	if !ok {
		return false, fmt.Errorf("regex pattern must be a string")
	}
	re, err := compilePattern(expr)
	if err != nil {
		return false, err
	}
	return re.MatchString(asString(v)), nil
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// compareValues orders numerically when both sides are numbers and by text
// otherwise.
func compareValues(a, b any) int {
	x, xok := toFloat64(a)
	y, yok := toFloat64(b)
	if xok && yok {
		return cmp.Compare(x, y)
	}
	return strings.Compare(asString(a), asString(b))
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case interface{ Float64() (float64, error) }:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
