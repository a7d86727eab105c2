package submissions

import (
	"encoding/json"
	"testing"

	"github.com/formai/engine/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }

func TestValidate_FirstViolationWins(t *testing.T) {
	fields := []schema.Field{
		{Name: "a", Label: "Champ A", Type: schema.TypeText, Required: true},
		{Name: "b", Label: "Champ B", Type: schema.TypeEmail},
	}

	err := NewValidator().Validate(fields, map[string]any{"b": "not-an-email"})

	var vf *ValidationFailedError
	require.ErrorAs(t, err, &vf)
	assert.Equal(t, "a", vf.Field)
	assert.Equal(t, "Champ A", vf.Label)
	assert.Equal(t, `Le champ "Champ A" est obligatoire`, vf.Error())
}

func TestValidate_NumberBounds(t *testing.T) {
	fields := []schema.Field{
		{Name: "hours", Label: "Heures", Type: schema.TypeNumber,
			Validation: &schema.FieldValidation{Min: floatPtr(0.5), Max: floatPtr(30)}},
	}
	v := NewValidator()

	assert.NoError(t, v.Validate(fields, map[string]any{"hours": float64(5)}))
	assert.NoError(t, v.Validate(fields, map[string]any{"hours": "5"}))
	assert.NoError(t, v.Validate(fields, map[string]any{"hours": json.Number("0.5")}))

	err := v.Validate(fields, map[string]any{"hours": float64(31)})
	require.Error(t, err)
	assert.Equal(t, `Le champ "Heures" doit être inférieur ou égal à 30`, err.Error())

	err = v.Validate(fields, map[string]any{"hours": 0.25})
	require.Error(t, err)
	assert.Equal(t, `Le champ "Heures" doit être supérieur ou égal à 0.5`, err.Error())

	err = v.Validate(fields, map[string]any{"hours": "abc"})
	require.Error(t, err)
	assert.Equal(t, `Le champ "Heures" doit être un nombre`, err.Error())
}

func TestValidate_Rules(t *testing.T) {
	tests := []struct {
		name    string
		field   schema.Field
		value   any
		wantErr string
	}{
		{
			name:  "optional absent",
			field: schema.Field{Name: "x", Label: "X", Type: schema.TypeEmail},
		},
		{
			name:  "optional empty string",
			field: schema.Field{Name: "x", Label: "X", Type: schema.TypeNumber},
			value: "",
		},
		{
			name:    "required null",
			field:   schema.Field{Name: "x", Label: "X", Type: schema.TypeDate, Required: true},
			value:   nil,
			wantErr: `Le champ "X" est obligatoire`,
		},
		{
			name:  "valid email",
			field: schema.Field{Name: "x", Label: "Email", Type: schema.TypeEmail},
			value: "jeanne@example.com",
		},
		{
			name:    "invalid email",
			field:   schema.Field{Name: "x", Label: "Email", Type: schema.TypeEmail},
			value:   "jeanne@",
			wantErr: `Le champ "Email" doit être un email valide`,
		},
		{
			name:    "email must be a string",
			field:   schema.Field{Name: "x", Label: "Email", Type: schema.TypeEmail},
			value:   float64(3),
			wantErr: `Le champ "Email" doit être un email valide`,
		},
		{
			name:    "boolean is not a number",
			field:   schema.Field{Name: "x", Label: "N", Type: schema.TypeNumber},
			value:   true,
			wantErr: `Le champ "N" doit être un nombre`,
		},
		{
			name:    "infinity is not a number",
			field:   schema.Field{Name: "x", Label: "N", Type: schema.TypeNumber},
			value:   "Infinity",
			wantErr: `Le champ "N" doit être un nombre`,
		},
		{
			name:  "text length counts characters",
			field: schema.Field{Name: "x", Label: "Nom", Type: schema.TypeText, Validation: &schema.FieldValidation{MaxLength: intPtr(5)}},
			value: "Éloïs",
		},
		{
			name:    "text too short",
			field:   schema.Field{Name: "x", Label: "Nom", Type: schema.TypeText, Validation: &schema.FieldValidation{MinLength: intPtr(3)}},
			value:   "ab",
			wantErr: `Le champ "Nom" doit contenir au moins 3 caractères`,
		},
		{
			name:    "textarea too long",
			field:   schema.Field{Name: "x", Label: "Message", Type: schema.TypeTextarea, Validation: &schema.FieldValidation{MaxLength: intPtr(4)}},
			value:   "bonjour",
			wantErr: `Le champ "Message" doit contenir au maximum 4 caractères`,
		},
		{
			name:  "zero max length is unset",
			field: schema.Field{Name: "x", Label: "Message", Type: schema.TypeTextarea, Validation: &schema.FieldValidation{MaxLength: intPtr(0)}},
			value: "bonjour",
		},
		{
			name:  "non string text is presence only",
			field: schema.Field{Name: "x", Label: "Nom", Type: schema.TypeText, Validation: &schema.FieldValidation{MinLength: intPtr(3)}},
			value: float64(1),
		},
		{
			name:  "other types are presence only",
			field: schema.Field{Name: "x", Label: "Tel", Type: schema.TypePhone, Required: true},
			value: "not a phone",
		},
		{
			name: "custom message replaces the rule message",
			field: schema.Field{Name: "x", Label: "Email", Type: schema.TypeEmail,
				Validation: &schema.FieldValidation{CustomMessage: "Adresse invalide"}},
			value:   "nope",
			wantErr: `Le champ "Email" : Adresse invalide`,
		},
	}

	v := NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := map[string]any{}
			if tt.value != nil || tt.wantErr != "" {
				data[tt.field.Name] = tt.value
			}
			err := v.Validate([]schema.Field{tt.field}, data)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestValidate_CustomMessageKeepsLabel(t *testing.T) {
	fields := []schema.Field{{
		Name: "email", Label: "Adresse email", Type: schema.TypeEmail,
		Validation: &schema.FieldValidation{CustomMessage: "Format invalide"},
	}}

	err := NewValidator().Validate(fields, map[string]any{"email": "pas-un-email"})

	var failed *ValidationFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, "email", failed.Field)
	assert.Contains(t, failed.Error(), "Adresse email")
	assert.Contains(t, failed.Error(), "Format invalide")
}

func TestValidate_SkipsLayoutFields(t *testing.T) {
	fields := []schema.Field{
		{Name: "intro", Label: "Intro", Type: schema.TypeHeading, Required: true},
		{Name: "part", Label: "Partie", Type: schema.TypeSection, Required: true},
		{Name: "note", Label: "Note", Type: schema.TypeParagraph, Required: true},
	}
	assert.NoError(t, NewValidator().Validate(fields, nil))
}
