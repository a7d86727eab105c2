package filter

import "fmt"

// Condition operators used by form field conditionals
const (
	CondEquals      = "equals"
	CondNotEquals   = "notEquals"
	CondContains    = "contains"
	CondGreaterThan = "greaterThan"
	CondLessThan    = "lessThan"
)

var conditionOperators = map[string]Operator{
	CondEquals:      OpEqual,
	CondNotEquals:   OpNotEqual,
	CondContains:    OpContains,
	CondGreaterThan: OpGreaterThan,
	CondLessThan:    OpLessThan,
}

// IsConditionOperator reports whether op is a known conditional operator
func IsConditionOperator(op string) bool {
	_, ok := conditionOperators[op]
	return ok
}

// FromCondition builds the expression "<field> <op> <value>" evaluated
// against a context keyed by field name
func FromCondition(field, operator string, value interface{}) (Expression, error) {
	op, ok := conditionOperators[operator]
	if !ok {
		return nil, fmt.Errorf("unknown condition operator: %s", operator)
	}

	switch value.(type) {
	case nil, string, bool, float64, float32, int, int32, int64:
	default:
		return nil, fmt.Errorf("condition value must be a scalar, got %T", value)
	}

	return &BinaryExpression{
		Left:     &Field{Path: []string{field}},
		Operator: op,
		Right:    &Literal{Value: normalizeNumber(value)},
	}, nil
}

// normalizeNumber widens integer values so literals render like parsed ones
func normalizeNumber(v interface{}) interface{} {
	if f, ok := toNumber(v); ok {
		if _, isString := v.(string); !isString {
			return f
		}
	}
	return v
}
