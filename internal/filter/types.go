package filter

import (
	"fmt"
	"strconv"
	"strings"
)

// Operator is a comparison or logical operator
type Operator string

const (
	OpEqual          Operator = "=="
	OpNotEqual       Operator = "!="
	OpGreaterThan    Operator = ">"
	OpLessThan       Operator = "<"
	OpGreaterOrEqual Operator = ">="
	OpLessOrEqual    Operator = "<="
	OpContains       Operator = "contains"
	OpIn             Operator = "in"
	OpAnd            Operator = "&&"
	OpOr             Operator = "||"
	OpNot            Operator = "!"
)

// Context holds the values an expression is evaluated against. Nested
// maps are reached with dotted paths.
type Context map[string]interface{}

// Expression is a node of a parsed filter
type Expression interface {
	Evaluate(ctx Context) (interface{}, error)
	// String renders the node in canonical filter syntax
	String() string
}

// SyntaxError reports where a filter expression stopped parsing
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s at offset %d", e.Msg, e.Offset)
}

// BinaryExpression applies Operator to two operands
type BinaryExpression struct {
	Left     Expression
	Operator Operator
	Right    Expression
}

func (e *BinaryExpression) String() string {
	return "(" + e.Left.String() + " " + string(e.Operator) + " " + e.Right.String() + ")"
}

// UnaryExpression negates its operand
type UnaryExpression struct {
	Operator Operator
	Operand  Expression
}

func (e *UnaryExpression) Evaluate(ctx Context) (interface{}, error) {
	v, err := e.Operand.Evaluate(ctx)
	if err != nil {
		return nil, err
	}
	return !toBool(v), nil
}

func (e *UnaryExpression) String() string {
	return string(e.Operator) + e.Operand.String()
}

// Literal is a constant: string, float64, bool or nil
type Literal struct {
	Value interface{}
}

func (l *Literal) Evaluate(Context) (interface{}, error) {
	return l.Value, nil
}

func (l *Literal) String() string {
	switch v := l.Value.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(v)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	return fmt.Sprintf("%v", l.Value)
}

// List is the right-hand side of an in test
type List struct {
	Items []Expression
}

func (l *List) Evaluate(ctx Context) (interface{}, error) {
	out := make([]interface{}, 0, len(l.Items))
	for _, item := range l.Items {
		v, err := item.Evaluate(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (l *List) String() string {
	parts := make([]string, len(l.Items))
	for i, item := range l.Items {
		parts[i] = item.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Field looks a value up by dotted path. Missing keys evaluate to null.
type Field struct {
	Path []string
}

// NewField builds a field reference from "a.b.c"
func NewField(path string) *Field {
	return &Field{Path: strings.Split(path, ".")}
}

func (f *Field) Evaluate(ctx Context) (interface{}, error) {
	var cur interface{} = map[string]interface{}(ctx)
	for _, key := range f.Path {
		switch m := cur.(type) {
		case map[string]interface{}:
			cur = m[key]
		case map[string]string:
			v, ok := m[key]
			if !ok {
				return nil, nil
			}
			cur = v
		default:
			return nil, nil
		}
	}
	return cur, nil
}

func (f *Field) String() string {
	return strings.Join(f.Path, ".")
}

// Fields lists the distinct field paths expr reads, in order of appearance
func Fields(expr Expression) []string {
	var out []string
	seen := make(map[string]bool)
	var walk func(Expression)
	walk = func(e Expression) {
		switch n := e.(type) {
		case *Field:
			if p := n.String(); !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		case *BinaryExpression:
			walk(n.Left)
			walk(n.Right)
		case *UnaryExpression:
			walk(n.Operand)
		case *List:
			for _, item := range n.Items {
				walk(item)
			}
		}
	}
	if expr != nil {
		walk(expr)
	}
	return out
}
