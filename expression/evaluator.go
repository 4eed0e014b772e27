package expression

import (
	"fmt"
	"slices"
)

// Evaluator applies LogicalExpressions to attribute sources. It is safe for
// concurrent use.
type Evaluator struct {
	operators map[string]OperatorFunc
}

// NewExpressionEvaluator returns an evaluator knowing every built-in operator.
func NewExpressionEvaluator() *Evaluator {
	return &Evaluator{operators: builtinOperators()}
}

func isNullCheck(op string) bool {
	return op == OpIsNull || op == OpNotNull
}

func checkLogic(logic string) error {
	if logic != "" && logic != LogicAnd && logic != LogicOr {
		return &EvaluationError{Message: fmt.Sprintf("unsupported logic operator: %s", logic)}
	}
	return nil
}

// Validate rejects unknown operators and logic keywords, and regex conditions
// whose pattern does not compile, before any feature is visited.
func (e *Evaluator) Validate(expr LogicalExpression) error {
	if err := checkLogic(expr.Logic); err != nil {
		return err
	}
	for _, c := range expr.Conditions {
		if isNullCheck(c.Operator) {
			continue
		}
		if _, ok := e.operators[c.Operator]; !ok {
			return &EvaluationError{Field: c.Field, Operator: c.Operator, Message: "unsupported operator"}
		}
		if c.Operator != OpRegexMatch {
			continue
		}
		pattern, ok := c.Value.(string)
		if !ok {
			return &EvaluationError{Field: c.Field, Operator: c.Operator, Message: "regex pattern must be a string"}
		}
		if _, err := compilePattern(pattern); err != nil {
			return &EvaluationError{Field: c.Field, Operator: c.Operator, Message: "invalid pattern", Err: err}
		}
	}
	return nil
}

// Evaluate reports whether src satisfies expr. An expression without conditions
// matches everything. Conditions are evaluated in order and evaluation stops as
// soon as the outcome is known.
func (e *Evaluator) Evaluate(src FieldSource, expr LogicalExpression) (bool, error) {
	if err := checkLogic(expr.Logic); err != nil {
		return false, err
	}
	if len(expr.Conditions) == 0 {
		return true, nil
	}

	// "and" stops on the first false, "or" on the first true.
	decisive := expr.Logic != LogicAnd
	for _, c := range expr.Conditions {
		ok, err := e.condition(src, c)
		if err != nil {
			return false, err
		}
		if ok == decisive {
			return decisive, nil
		}
	}
	return !decisive, nil
}

func (e *Evaluator) condition(src FieldSource, c ConditionExpression) (bool, error) {
	value, exists := src.FieldValue(c.Field)
	if !exists {
		if c.Required {
			return false, &EvaluationError{Field: c.Field, Message: "required field not found"}
		}
		return false, nil
	}

	if isNullCheck(c.Operator) {
		return (value == nil) == (c.Operator == OpIsNull), nil
	}
	op, ok := e.operators[c.Operator]
	if !ok {
		return false, &EvaluationError{Field: c.Field, Operator: c.Operator, Message: "unsupported operator"}
	}
	if value == nil {
		return false, nil
	}

	matched, err := op(value, c.Value)
	if err != nil {
		return false, &EvaluationError{Field: c.Field, Operator: c.Operator, Message: "operator failed", Err: err}
	}
	return matched, nil
}

// Operators lists the supported operator names in sorted order.
func (e *Evaluator) Operators() []string {
	names := []string{OpIsNull, OpNotNull}
	for name := range e.operators {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
