package schema

import "encoding/json"

// FieldType is the closed set of field kinds a form may contain
type FieldType string

const (
	TypeText        FieldType = "text"
	TypeTextarea    FieldType = "textarea"
	TypeNumber      FieldType = "number"
	TypeEmail       FieldType = "email"
	TypePhone       FieldType = "phone"
	TypeDate        FieldType = "date"
	TypeDatetime    FieldType = "datetime"
	TypeSelect      FieldType = "select"
	TypeMultiselect FieldType = "multiselect"
	TypeCheckbox    FieldType = "checkbox"
	TypeRadio       FieldType = "radio"
	TypeFile        FieldType = "file"
	TypeImage       FieldType = "image"
	TypeSignature   FieldType = "signature"
	TypeSection     FieldType = "section"
	TypeHeading     FieldType = "heading"
	TypeParagraph   FieldType = "paragraph"
	TypeHidden      FieldType = "hidden"
	TypeCalculated  FieldType = "calculated"
	TypeLookup      FieldType = "lookup"
	TypeTable       FieldType = "table"
)

// FieldTypes lists every valid field type in declaration order
var FieldTypes = []FieldType{
	TypeText, TypeTextarea, TypeNumber, TypeEmail, TypePhone, TypeDate, TypeDatetime,
	TypeSelect, TypeMultiselect, TypeCheckbox, TypeRadio, TypeFile, TypeImage, TypeSignature,
	TypeSection, TypeHeading, TypeParagraph, TypeHidden, TypeCalculated, TypeLookup, TypeTable,
}

var validFieldTypes = func() map[FieldType]bool {
	m := make(map[FieldType]bool, len(FieldTypes))
	for _, t := range FieldTypes {
		m[t] = true
	}
	return m
}()

// Valid reports whether t belongs to the closed type set
func (t FieldType) Valid() bool {
	return validFieldTypes[t]
}

// IsLayoutOnly reports whether fields of this type carry no submission data
func (t FieldType) IsLayoutOnly() bool {
	return t == TypeSection || t == TypeHeading || t == TypeParagraph
}

// IsChoice reports whether fields of this type need an option list
func (t FieldType) IsChoice() bool {
	return t == TypeSelect || t == TypeMultiselect || t == TypeRadio
}

// LayoutType selects how fields are arranged
type LayoutType string

const (
	LayoutSingle    LayoutType = "single"
	LayoutMultiStep LayoutType = "multi-step"
	LayoutTabs      LayoutType = "tabs"
)

// Field is one form field definition
type Field struct {
	ID           string           `json:"id"`
	Type         FieldType        `json:"type"`
	Label        string           `json:"label"`
	Name         string           `json:"name"`
	Placeholder  string           `json:"placeholder,omitempty"`
	HelpText     string           `json:"helpText,omitempty"`
	Required     bool             `json:"required"`
	Validation   *FieldValidation `json:"validation,omitempty" validate:"omitempty"`
	Options      []Option         `json:"options,omitempty"`
	Conditional  *Conditional     `json:"conditional,omitempty" validate:"omitempty"`
	Layout       *FieldLayout     `json:"layout,omitempty" validate:"omitempty"`
	DefaultValue any              `json:"defaultValue,omitempty"`
	ReadOnly     bool             `json:"readOnly,omitempty"`
	Computed     any              `json:"computed,omitempty"`
}

// IsLayoutOnly reports whether the field carries no submission data
func (f Field) IsLayoutOnly() bool {
	return f.Type.IsLayoutOnly()
}

// FieldValidation holds optional per-field constraints
type FieldValidation struct {
	Min           *float64 `json:"min,omitempty"`
	Max           *float64 `json:"max,omitempty"`
	MinLength     *int     `json:"minLength,omitempty" validate:"omitempty,min=0"`
	MaxLength     *int     `json:"maxLength,omitempty" validate:"omitempty,min=0"`
	Pattern       string   `json:"pattern,omitempty"`
	CustomMessage string   `json:"customMessage,omitempty"`
}

// Option is one choice of a select, multiselect or radio field
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Conditional makes a field meaningful only when another field matches
type Conditional struct {
	Field    string `json:"field" validate:"required"`
	Operator string `json:"operator" validate:"oneof=equals notEquals contains greaterThan lessThan"`
	Value    any    `json:"value"`
}

// FieldLayout is the presentational grid placement of a field
type FieldLayout struct {
	Column int `json:"column" validate:"min=1,max=12"`
	Row    int `json:"row" validate:"min=1"`
	Width  int `json:"width" validate:"min=1,max=12"`
}

// Layout describes how fields are grouped
type Layout struct {
	Type  LayoutType `json:"type"`
	Steps []Step     `json:"steps,omitempty"`
}

// Step is an ordered group of field names in a multi-step or tabbed layout
type Step struct {
	Title  string   `json:"title"`
	Fields []string `json:"fields"`
}

// MarshalJSON always emits the field list as an array
func (s Step) MarshalJSON() ([]byte, error) {
	type plain Step
	if s.Fields == nil {
		s.Fields = []string{}
	}
	return json.Marshal(plain(s))
}

// Theme holds optional visual settings
type Theme struct {
	PrimaryColor string `json:"primaryColor"`
	FontFamily   string `json:"fontFamily"`
	BorderRadius string `json:"borderRadius"`
}

// Settings holds form-wide behavior settings
type Settings struct {
	SubmitButtonText         string   `json:"submitButtonText"`
	SuccessMessage           string   `json:"successMessage"`
	RedirectURL              string   `json:"redirectUrl,omitempty"`
	AllowMultipleSubmissions bool     `json:"allowMultipleSubmissions"`
	RequireAuth              bool     `json:"requireAuth"`
	NotifyOnSubmission       []string `json:"notifyOnSubmission"`
	AutoSave                 bool     `json:"autoSave"`
	Theme                    *Theme   `json:"theme,omitempty"`
}

// MarshalJSON always emits the notification list as an array
func (s Settings) MarshalJSON() ([]byte, error) {
	type plain Settings
	if s.NotifyOnSubmission == nil {
		s.NotifyOnSubmission = []string{}
	}
	return json.Marshal(plain(s))
}

// Schema is the versioned field, layout and settings contract of a form
type Schema struct {
	Fields   []Field  `json:"fields"`
	Layout   Layout   `json:"layout"`
	Settings Settings `json:"settings"`
}

// Definition is a named schema, the shape produced by generation and
// accepted when a form is authored
type Definition struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Schema
}

// DataFields returns the fields that carry submission data, in schema order
func DataFields(fields []Field) []Field {
	out := make([]Field, 0, len(fields))
	for _, f := range fields {
		if !f.IsLayoutOnly() {
			out = append(out, f)
		}
	}
	return out
}

// Clone returns a deep copy of the schema
func (s *Schema) Clone() (*Schema, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var out Schema
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
