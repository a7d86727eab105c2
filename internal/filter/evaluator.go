package filter

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Evaluate applies the operator. && and || stop at the left operand
// when it decides the result.
func (e *BinaryExpression) Evaluate(ctx Context) (interface{}, error) {
	left, err := e.Left.Evaluate(ctx)
	if err != nil {
		return nil, err
	}

	switch e.Operator {
	case OpAnd:
		if !toBool(left) {
			return false, nil
		}
	case OpOr:
		if toBool(left) {
			return true, nil
		}
	}

	right, err := e.Right.Evaluate(ctx)
	if err != nil {
		return nil, err
	}

	switch e.Operator {
	case OpEqual:
		return isEqual(left, right), nil
	case OpNotEqual:
		return !isEqual(left, right), nil
	case OpGreaterThan:
		return compare(left, right) > 0, nil
	case OpLessThan:
		return compare(left, right) < 0, nil
	case OpGreaterOrEqual:
		return compare(left, right) >= 0, nil
	case OpLessOrEqual:
		return compare(left, right) <= 0, nil
	case OpContains:
		return contains(left, right), nil
	case OpIn:
		return contains(right, left), nil
	case OpAnd, OpOr:
		return toBool(right), nil
	default:
		return nil, fmt.Errorf("unknown operator: %s", e.Operator)
	}
}

// Match evaluates expr against ctx and reports whether it holds.
// A nil expression matches everything.
func Match(expr Expression, ctx Context) (bool, error) {
	if expr == nil {
		return true, nil
	}
	res, err := expr.Evaluate(ctx)
	if err != nil {
		return false, err
	}
	return toBool(res), nil
}

func isEqual(a, b interface{}) bool {
	if fa, ok := toNumber(a); ok {
		if fb, ok := toNumber(b); ok {
			return fa == fb
		}
	}
	return toString(a) == toString(b)
}

// compare orders numerically when both sides are numbers, lexically otherwise
func compare(a, b interface{}) int {
	if fa, ok := toNumber(a); ok {
		if fb, ok := toNumber(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(toString(a), toString(b))
}

func contains(container, item interface{}) bool {
	switch c := container.(type) {
	case []interface{}:
		for _, v := range c {
			if isEqual(v, item) {
				return true
			}
		}
		return false
	case []string:
		for _, v := range c {
			if v == toString(item) {
				return true
			}
		}
		return false
	case nil:
		return false
	}
	return strings.Contains(toString(container), toString(item))
}

func toBool(v interface{}) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	s := toString(v)
	return s != "" && s != "false" && s != "0"
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	}
	return fmt.Sprintf("%v", v)
}

// toNumber converts numbers and numeric strings, never booleans
func toNumber(v interface{}) (float64, bool) {
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
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		if strings.TrimSpace(n) == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
