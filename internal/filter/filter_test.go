package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name     string
		expr     string
		ctx      Context
		expected bool
	}{
		{
			name:     "simple equality",
			expr:     `status == "approved"`,
			ctx:      Context{"status": "approved"},
			expected: true,
		},
		{
			name:     "simple inequality",
			expr:     `status != "rejected"`,
			ctx:      Context{"status": "approved"},
			expected: true,
		},
		{
			name:     "numeric comparison is not lexical",
			expr:     "data.age > 9",
			ctx:      Context{"data": map[string]interface{}{"age": float64(10)}},
			expected: true,
		},
		{
			name:     "numeric string compared as number",
			expr:     "data.age < 100",
			ctx:      Context{"data": map[string]interface{}{"age": "25"}},
			expected: true,
		},
		{
			name:     "negative literal",
			expr:     "delta > -5",
			ctx:      Context{"delta": -2},
			expected: true,
		},
		{
			name:     "property access",
			expr:     `data.country == "FR"`,
			ctx:      Context{"data": map[string]interface{}{"country": "FR"}},
			expected: true,
		},
		{
			name:     "missing property is null",
			expr:     `data.country == null`,
			ctx:      Context{"data": map[string]interface{}{}},
			expected: true,
		},
		{
			name:     "boolean literal",
			expr:     "is_test == false",
			ctx:      Context{"is_test": false},
			expected: true,
		},
		{
			name:     "logical and",
			expr:     `status == "submitted" && data.age > 18`,
			ctx:      Context{"status": "submitted", "data": map[string]interface{}{"age": 20}},
			expected: true,
		},
		{
			name:     "logical or",
			expr:     `status == "approved" || data.age > 18`,
			ctx:      Context{"status": "submitted", "data": map[string]interface{}{"age": 12}},
			expected: false,
		},
		{
			name:     "contains substring",
			expr:     `data.comment contains "urgent"`,
			ctx:      Context{"data": map[string]interface{}{"comment": "very urgent request"}},
			expected: true,
		},
		{
			name:     "contains list member",
			expr:     `data.tags contains "b"`,
			ctx:      Context{"data": map[string]interface{}{"tags": []interface{}{"a", "b"}}},
			expected: true,
		},
		{
			name:     "keyword operators",
			expr:     `status == "approved" or not is_test and source == 'web'`,
			ctx:      Context{"status": "submitted", "is_test": false, "source": "web"},
			expected: true,
		},
		{
			name:     "negation",
			expr:     `!(status == "rejected")`,
			ctx:      Context{"status": "rejected"},
			expected: false,
		},
		{
			name:     "in list",
			expr:     `status in ["approved", "reviewed"]`,
			ctx:      Context{"status": "reviewed"},
			expected: true,
		},
		{
			name:     "number in list",
			expr:     `form_version in [1, 2]`,
			ctx:      Context{"form_version": 3},
			expected: false,
		},
		{
			name:     "nested path",
			expr:     `data.address.city == "Lyon"`,
			ctx:      Context{"data": map[string]interface{}{"address": map[string]interface{}{"city": "Lyon"}}},
			expected: true,
		},
		{
			name:     "accented field names",
			expr:     `data.prénom == "Chloé"`,
			ctx:      Context{"data": map[string]interface{}{"prénom": "Chloé"}},
			expected: true,
		},
		{
			name:     "parenthesized",
			expr:     `(status == "approved" || status == "reviewed") && is_test == false`,
			ctx:      Context{"status": "reviewed", "is_test": false},
			expected: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			expr, err := Parse(tc.expr)
			require.NoError(t, err)

			result, err := Match(expr, tc.ctx)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, result)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	for _, expr := range []string{
		`status ==`,
		`(status == "a"`,
		`data.`,
		`status == "a" extra`,
		`status in "a"`,
		`status in ["a"`,
		`name == "open`,
		`age > 1.2.3`,
		`status # 1`,
	} {
		t.Run(expr, func(t *testing.T) {
			_, err := Parse(expr)
			var syntaxErr *SyntaxError
			assert.ErrorAs(t, err, &syntaxErr)
		})
	}
}

func TestParse_ErrorOffset(t *testing.T) {
	_, err := Parse(`status == "a" extra`)
	var syntaxErr *SyntaxError
	require.ErrorAs(t, err, &syntaxErr)
	assert.Equal(t, 14, syntaxErr.Offset)

	_, err = Parse(`status ==`)
	require.ErrorAs(t, err, &syntaxErr)
	assert.Equal(t, "unexpected end of expression", syntaxErr.Msg)
}

func TestParse_Blank(t *testing.T) {
	expr, err := Parse("   ")
	require.NoError(t, err)
	assert.Nil(t, expr)
}

func TestExpression_String(t *testing.T) {
	expr, err := Parse(`not is_test and (data.age >= 18 or status in ['approved', "reviewed"])`)
	require.NoError(t, err)
	assert.Equal(t, `(!is_test && ((data.age >= 18) || (status in ["approved", "reviewed"])))`, expr.String())

	again, err := Parse(expr.String())
	require.NoError(t, err)
	assert.Equal(t, expr.String(), again.String())
}

func TestFields(t *testing.T) {
	expr, err := Parse(`data.age > 18 && (data.country == "FR" || data.age < 10) && status != null`)
	require.NoError(t, err)
	assert.Equal(t, []string{"data.age", "data.country", "status"}, Fields(expr))
	assert.Nil(t, Fields(nil))
}

func TestEvaluate_ShortCircuit(t *testing.T) {
	failing := &BinaryExpression{Left: NewField("x"), Operator: Operator("??"), Right: &Literal{Value: 1.0}}

	ok, err := Match(&BinaryExpression{Left: &Literal{Value: false}, Operator: OpAnd, Right: failing}, Context{})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = Match(&BinaryExpression{Left: &Literal{Value: true}, Operator: OpOr, Right: failing}, Context{})
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = Match(failing, Context{})
	assert.Error(t, err)
}

func TestMatch_NilExpression(t *testing.T) {
	ok, err := Match(nil, Context{})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFromCondition(t *testing.T) {
	tests := []struct {
		name     string
		operator string
		value    interface{}
		ctx      Context
		expected bool
	}{
		{"equals", CondEquals, "yes", Context{"has_car": "yes"}, true},
		{"notEquals", CondNotEquals, "yes", Context{"has_car": "no"}, true},
		{"contains", CondContains, "pro", Context{"plan": "enterprise pro"}, true},
		{"greaterThan", CondGreaterThan, float64(18), Context{"age": "21"}, true},
		{"lessThan", CondLessThan, float64(18), Context{"age": float64(21)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var field string
			for k := range tt.ctx {
				field = k
			}
			expr, err := FromCondition(field, tt.operator, tt.value)
			require.NoError(t, err)

			ok, err := Match(expr, tt.ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ok)
		})
	}
}

func TestFromCondition_Invalid(t *testing.T) {
	_, err := FromCondition("age", "between", 3)
	assert.Error(t, err)

	_, err = FromCondition("age", CondEquals, map[string]interface{}{"a": 1})
	assert.Error(t, err)

	assert.True(t, IsConditionOperator(CondLessThan))
	assert.False(t, IsConditionOperator("=="))
}
