package metastore

import "time"

// FieldShape is the stored snapshot of one data field
type FieldShape struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Label    string `json:"label,omitempty"`
	Required bool   `json:"required,omitempty"`
}

// IndexDirective declares an ordering the namespace maintains
type IndexDirective struct {
	Field      string `json:"field"`
	Descending bool   `json:"descending,omitempty"`
}

// RecordShape describes the records a namespace accepts
type RecordShape struct {
	// FormVersion is the schema version the shape tracks
	FormVersion int `json:"form_version"`
	// Envelope names the record envelope document records are checked against
	Envelope string `json:"envelope"`
	// Fields is the data field snapshot, in schema order
	Fields []FieldShape `json:"fields"`
	// Indexes lists the maintained orderings
	Indexes []IndexDirective `json:"indexes,omitempty"`
}

// Entry registers one submission namespace and the form that owns it
type Entry struct {
	Name      string       `json:"name"`
	FormID    string       `json:"form_id"`
	Shape     *RecordShape `json:"shape,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Validate checks the entry before it is stored
func (e *Entry) Validate() error {
	switch {
	case e.Name == "":
		return InvalidEntryError{Field: "name", Reason: "cannot be empty"}
	case e.FormID == "":
		return InvalidEntryError{Field: "form_id", Reason: "cannot be empty"}
	case e.Shape == nil:
		return nil
	case e.Shape.FormVersion < 1:
		return InvalidEntryError{Field: "shape.form_version", Reason: "must be at least 1"}
	}

	seen := make(map[string]bool, len(e.Shape.Fields))
	for _, f := range e.Shape.Fields {
		if f.Name == "" {
			return InvalidEntryError{Field: "shape.fields", Reason: "field name cannot be empty"}
		}
		if seen[f.Name] {
			return InvalidEntryError{Field: "shape.fields", Reason: "duplicate field " + f.Name}
		}
		seen[f.Name] = true
	}
	return nil
}

func (e *Entry) clone() *Entry {
	c := *e
	if e.Shape != nil {
		shape := *e.Shape
		shape.Fields = append([]FieldShape(nil), e.Shape.Fields...)
		shape.Indexes = append([]IndexDirective(nil), e.Shape.Indexes...)
		c.Shape = &shape
	}
	return &c
}
