package schema

import "fmt"

// Rule identifies which structural rule a schema violated
type Rule string

const (
	RuleShape           Rule = "shape"
	RuleFieldType       Rule = "field_type"
	RuleFieldName       Rule = "field_name"
	RuleFieldConstraint Rule = "field_constraint"
	RuleStepReference   Rule = "step_reference"
)

// InvalidError indicates a schema violated a structural rule
type InvalidError struct {
	Rule   Rule
	Path   string
	Reason string
}

func (e *InvalidError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("invalid form schema (%s) at %s: %s", e.Rule, e.Path, e.Reason)
	}
	return fmt.Sprintf("invalid form schema (%s): %s", e.Rule, e.Reason)
}

func invalid(rule Rule, path, format string, args ...any) *InvalidError {
	return &InvalidError{Rule: rule, Path: path, Reason: fmt.Sprintf(format, args...)}
}
