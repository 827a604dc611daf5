package models

import "strings"

// FieldType is the input type of a form field
type FieldType string

const (
	FieldTypeText     FieldType = "text"
	FieldTypeNumber   FieldType = "number"
	FieldTypeTextarea FieldType = "textarea"
	FieldTypeBoolean  FieldType = "boolean"
	FieldTypeCheckbox FieldType = "checkbox"
	FieldTypeDropdown FieldType = "dropdown"
	FieldTypeImage    FieldType = "image"
)

// Renderer-only field types. The form renderer supports these but the
// spreadsheet importer never infers them.
const (
	FieldTypeDate      FieldType = "date"
	FieldTypeEmail     FieldType = "email"
	FieldTypeSelect    FieldType = "select"
	FieldTypeRadio     FieldType = "radio"
	FieldTypeSignature FieldType = "signature"
	FieldTypeFile      FieldType = "file"
)

// InferableFieldTypes lists the field types an import can produce or be retyped to.
var InferableFieldTypes = []FieldType{
	FieldTypeText,
	FieldTypeNumber,
	FieldTypeTextarea,
	FieldTypeBoolean,
	FieldTypeCheckbox,
	FieldTypeDropdown,
	FieldTypeImage,
}

// RendererFieldTypes lists every field type a template section may carry.
var RendererFieldTypes = append(append([]FieldType{}, InferableFieldTypes...),
	FieldTypeDate,
	FieldTypeEmail,
	FieldTypeSelect,
	FieldTypeRadio,
	FieldTypeSignature,
	FieldTypeFile,
)

// IsInferable reports whether t belongs to the import field type set
func (t FieldType) IsInferable() bool {
	for _, ft := range InferableFieldTypes {
		if ft == t {
			return true
		}
	}
	return false
}

// IsRenderable reports whether t is understood by the form renderer
func (t FieldType) IsRenderable() bool {
	for _, ft := range RendererFieldTypes {
		if ft == t {
			return true
		}
	}
	return false
}

// CandidateField is a field inferred from a spreadsheet, still editable by the reviewer
type CandidateField struct {
	ID           string    `json:"id"`
	Type         FieldType `json:"type"`
	Label        string    `json:"label"`
	Required     bool      `json:"required"`
	Placeholder  string    `json:"placeholder"`
	Options      []string  `json:"options,omitempty"`
	Order        int       `json:"order"`
	SheetName    string    `json:"sheet_name"`
	CategoryID   string    `json:"category_id"`
	Included     bool      `json:"included"`
	OriginalType FieldType `json:"original_type"`
}

// Modified reports whether the reviewer changed the inferred type
func (f *CandidateField) Modified() bool {
	return f.Type != f.OriginalType
}

// FormField returns the public subset of the candidate field
func (f *CandidateField) FormField() FormField {
	var options []string
	if len(f.Options) > 0 {
		options = append([]string(nil), f.Options...)
	}
	return FormField{
		ID:          f.ID,
		Type:        f.Type,
		Label:       f.Label,
		Required:    f.Required,
		Placeholder: f.Placeholder,
		Options:     options,
		Order:       f.Order,
		CategoryID:  f.CategoryID,
	}
}

// PlaceholderFor derives the input placeholder shown for a label
func PlaceholderFor(label string) string {
	return "Enter " + strings.ToLower(label)
}
