package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/formai/engine/internal/filter"
	"github.com/go-playground/validator/v10"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed definition.schema.json
var definitionDocument []byte

const definitionResource = "definition.schema.json"

// NamePattern is the machine key format every field name must follow
var NamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Validator checks candidate form schemas against the structural rules, in
// order: top-level shape, field types, field names, field constraints, step
// references. It never coerces or drops input.
type Validator struct {
	definition *jsonschema.Schema
	formSchema *jsonschema.Schema
	structs    *validator.Validate
}

// NewValidator creates a new schema validator
func NewValidator() *Validator {
	compiler := NewCompiler()

	structs := validator.New()
	structs.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{
		definition: compiler.MustCompile(definitionResource, definitionDocument, ""),
		formSchema: compiler.MustCompile(definitionResource, definitionDocument, "#/$defs/formSchema"),
		structs:    structs,
	}
}

// Validate parses and validates a raw definition payload
func (v *Validator) Validate(payload []byte) (*Definition, error) {
	if location, err := ValidateJSON(v.definition, payload); err != nil {
		return nil, &InvalidError{Rule: RuleShape, Path: location, Reason: err.Error()}
	}

	var def Definition
	if err := json.Unmarshal(payload, &def); err != nil {
		return nil, &InvalidError{Rule: RuleShape, Reason: err.Error()}
	}

	if err := v.checkFields(&def.Schema); err != nil {
		return nil, err
	}

	return &def, nil
}

// ValidateDefinition validates an already decoded definition
func (v *Validator) ValidateDefinition(def *Definition) error {
	if def == nil {
		return &InvalidError{Rule: RuleShape, Reason: "definition is required"}
	}
	payload, err := json.Marshal(def)
	if err != nil {
		return &InvalidError{Rule: RuleShape, Reason: err.Error()}
	}
	if location, err := ValidateJSON(v.definition, payload); err != nil {
		return &InvalidError{Rule: RuleShape, Path: location, Reason: err.Error()}
	}
	return v.checkFields(&def.Schema)
}

// ValidateSchema validates a schema without name and description
func (v *Validator) ValidateSchema(s *Schema) error {
	if s == nil {
		return &InvalidError{Rule: RuleShape, Reason: "schema is required"}
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return &InvalidError{Rule: RuleShape, Reason: err.Error()}
	}
	if location, err := ValidateJSON(v.formSchema, payload); err != nil {
		return &InvalidError{Rule: RuleShape, Path: location, Reason: err.Error()}
	}
	return v.checkFields(s)
}

// checkFields applies the field-level rules, one full pass per rule
func (v *Validator) checkFields(s *Schema) error {
	for i, f := range s.Fields {
		if !f.Type.Valid() {
			return invalid(RuleFieldType, fieldPath(i), "unknown field type %q", f.Type)
		}
	}

	names := make(map[string]bool, len(s.Fields))
	ids := make(map[string]bool, len(s.Fields))
	for i, f := range s.Fields {
		if !NamePattern.MatchString(f.Name) {
			return invalid(RuleFieldName, fieldPath(i), "name %q must match %s", f.Name, NamePattern)
		}
		if names[f.Name] {
			return invalid(RuleFieldName, fieldPath(i), "duplicate field name %q", f.Name)
		}
		if ids[f.ID] {
			return invalid(RuleFieldName, fieldPath(i), "duplicate field id %q", f.ID)
		}
		names[f.Name] = true
		ids[f.ID] = true
	}

	for i, f := range s.Fields {
		if err := v.checkConstraints(i, f, names); err != nil {
			return err
		}
	}

	for i, step := range s.Layout.Steps {
		for _, name := range step.Fields {
			if !names[name] {
				return invalid(RuleStepReference, fmt.Sprintf("layout.steps[%d]", i),
					"step %q references unknown field %q", step.Title, name)
			}
		}
	}

	return nil
}

func (v *Validator) checkConstraints(i int, f Field, names map[string]bool) error {
	path := fieldPath(i)

	if err := v.structs.Struct(f); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			fe := errs[0]
			return invalid(RuleFieldConstraint, path+"."+trimRoot(fe.Namespace()), "must satisfy %s", tagDescription(fe))
		}
		return invalid(RuleFieldConstraint, path, "%v", err)
	}

	if val := f.Validation; val != nil {
		if val.Min != nil && val.Max != nil && *val.Min > *val.Max {
			return invalid(RuleFieldConstraint, path+".validation", "min %v is greater than max %v", *val.Min, *val.Max)
		}
		if val.MinLength != nil && val.MaxLength != nil && *val.MinLength > *val.MaxLength {
			return invalid(RuleFieldConstraint, path+".validation", "minLength %d is greater than maxLength %d", *val.MinLength, *val.MaxLength)
		}
	}

	if f.Type.IsChoice() && len(f.Options) == 0 {
		return invalid(RuleFieldConstraint, path+".options", "%s field requires at least one option", f.Type)
	}

	if c := f.Conditional; c != nil {
		if c.Field == f.Name {
			return invalid(RuleFieldConstraint, path+".conditional", "field cannot depend on itself")
		}
		if !names[c.Field] {
			return invalid(RuleFieldConstraint, path+".conditional", "references unknown field %q", c.Field)
		}
		if !filter.IsConditionOperator(c.Operator) {
			return invalid(RuleFieldConstraint, path+".conditional.operator", "unknown operator %q", c.Operator)
		}
		if _, err := filter.FromCondition(c.Field, c.Operator, c.Value); err != nil {
			return invalid(RuleFieldConstraint, path+".conditional", "%v", err)
		}
	}

	return nil
}

func fieldPath(i int) string {
	return fmt.Sprintf("fields[%d]", i)
}

// trimRoot drops the struct name validator prefixes namespaces with
func trimRoot(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func tagDescription(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}
