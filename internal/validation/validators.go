package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/benvon/report-templates/internal/models"
	"github.com/go-playground/validator/v10"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	// Register custom validators for enums
	if err := Validate.RegisterValidation("field_type", validateFieldType); err != nil {
		panic(fmt.Sprintf("failed to register field_type validator: %v", err))
	}
	if err := Validate.RegisterValidation("form_field_type", validateFormFieldType); err != nil {
		panic(fmt.Sprintf("failed to register form_field_type validator: %v", err))
	}
}

// validateFieldType accepts the types a reviewer may pick for an imported field
func validateFieldType(fl validator.FieldLevel) bool {
	return models.FieldType(fl.Field().String()).IsInferable()
}

// validateFormFieldType accepts every type the report form renderer supports
func validateFormFieldType(fl validator.FieldLevel) bool {
	return models.FieldType(fl.Field().String()).IsRenderable()
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	// Trim whitespace
	text = strings.TrimSpace(text)

	// Remove control characters except newline and tab
	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// ValidateFieldType validates a reviewer-selected FieldType string value
func ValidateFieldType(value string) error {
	if models.FieldType(value).IsInferable() {
		return nil
	}
	return fmt.Errorf("invalid field type: %s (must be one of %s)", value, joinTypes(models.InferableFieldTypes))
}

// ValidateSections checks template sections written directly through the API.
// Category and field ids must be unique and every field type renderable.
func ValidateSections(sections []models.FormCategory) error {
	categoryIDs := make(map[string]bool, len(sections))
	fieldIDs := make(map[string]bool)
	for i, c := range sections {
		if strings.TrimSpace(c.ID) == "" || strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("section %d: id and name are required", i)
		}
		if categoryIDs[c.ID] {
			return fmt.Errorf("section %d: duplicate id %q", i, c.ID)
		}
		categoryIDs[c.ID] = true

		for j, f := range c.Fields {
			if strings.TrimSpace(f.ID) == "" || strings.TrimSpace(f.Label) == "" {
				return fmt.Errorf("section %q field %d: id and label are required", c.ID, j)
			}
			if fieldIDs[f.ID] {
				return fmt.Errorf("section %q field %d: duplicate id %q", c.ID, j, f.ID)
			}
			fieldIDs[f.ID] = true
			if err := Validate.Var(string(f.Type), "form_field_type"); err != nil {
				return fmt.Errorf("section %q field %q: unsupported type %q", c.ID, f.ID, f.Type)
			}
			if f.CategoryID != "" && f.CategoryID != c.ID {
				return fmt.Errorf("section %q field %q: category id %q does not match its section", c.ID, f.ID, f.CategoryID)
			}
		}
	}
	return nil
}

func joinTypes(types []models.FieldType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}
