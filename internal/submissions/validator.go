package submissions

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/formai/engine/internal/schema"
	"github.com/go-playground/validator/v10"
)

// Validator checks submitted values against the current fields of a form.
// It stops at the first violation, in schema order.
type Validator struct {
	values *validator.Validate
}

// NewValidator creates a submission validator
func NewValidator() *Validator {
	return &Validator{values: validator.New()}
}

// Validate checks data against fields, skipping layout-only types
func (v *Validator) Validate(fields []schema.Field, data map[string]any) error {
	for _, f := range fields {
		if f.IsLayoutOnly() {
			continue
		}

		value, present := data[f.Name]
		if !present || isEmpty(value) {
			if f.Required {
				return failed(f, fmt.Sprintf("Le champ %q est obligatoire", f.Label))
			}
			continue
		}

		if reason := v.checkType(f, value); reason != "" {
			if f.Validation != nil && f.Validation.CustomMessage != "" {
				reason = fmt.Sprintf("Le champ %q : %s", f.Label, f.Validation.CustomMessage)
			}
			return failed(f, reason)
		}
	}
	return nil
}

// checkType returns the violation message of value, or "" when it is acceptable
func (v *Validator) checkType(f schema.Field, value any) string {
	rules := f.Validation
	if rules == nil {
		rules = &schema.FieldValidation{}
	}

	switch f.Type {
	case schema.TypeEmail:
		s, ok := value.(string)
		if !ok || v.values.Var(s, "email") != nil {
			return fmt.Sprintf("Le champ %q doit être un email valide", f.Label)
		}

	case schema.TypeNumber:
		n, ok := toNumber(value)
		if !ok {
			return fmt.Sprintf("Le champ %q doit être un nombre", f.Label)
		}
		if rules.Min != nil && n < *rules.Min {
			return fmt.Sprintf("Le champ %q doit être supérieur ou égal à %s", f.Label, formatNumber(*rules.Min))
		}
		if rules.Max != nil && n > *rules.Max {
			return fmt.Sprintf("Le champ %q doit être inférieur ou égal à %s", f.Label, formatNumber(*rules.Max))
		}

	case schema.TypeText, schema.TypeTextarea:
		s, ok := value.(string)
		if !ok {
			return ""
		}
		length := utf8.RuneCountInString(s)
		// zero bounds are unset
		if rules.MinLength != nil && *rules.MinLength > 0 && length < *rules.MinLength {
			return fmt.Sprintf("Le champ %q doit contenir au moins %d caractères", f.Label, *rules.MinLength)
		}
		if rules.MaxLength != nil && *rules.MaxLength > 0 && length > *rules.MaxLength {
			return fmt.Sprintf("Le champ %q doit contenir au maximum %d caractères", f.Label, *rules.MaxLength)
		}
	}

	return ""
}

func failed(f schema.Field, reason string) *ValidationFailedError {
	return &ValidationFailedError{Field: f.Name, Label: f.Label, Reason: reason}
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	}
	return false
}

// toNumber accepts finite numbers and numeric strings, never booleans
func toNumber(value any) (float64, bool) {
	var n float64
	switch v := value.(type) {
	case float64:
		n = v
	case float32:
		n = float64(v)
	case int:
		n = float64(v)
	case int32:
		n = float64(v)
	case int64:
		n = float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		n = f
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			// an all-blank string coerces to 0
			return 0, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		n = f
	default:
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
