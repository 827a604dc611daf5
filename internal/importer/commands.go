package importer

import (
	"fmt"

	"github.com/benvon/report-templates/internal/models"
	"github.com/benvon/report-templates/internal/review"
)

// Command is one reviewer edit applied to a session's candidate fields.
type Command interface {
	Apply(store *review.Store) error
	// Name identifies the command in logs.
	Name() string
}

// ToggleInclude flips whether a field is part of the template.
type ToggleInclude struct {
	FieldID string
}

func (c ToggleInclude) Apply(store *review.Store) error {
	_, err := store.ToggleInclude(c.FieldID)
	return err
}

func (ToggleInclude) Name() string { return "toggle_include" }

// SetIncludeAll selects or deselects every field.
type SetIncludeAll struct {
	Included bool
}

func (c SetIncludeAll) Apply(store *review.Store) error {
	store.SetIncludeAll(c.Included)
	return nil
}

func (SetIncludeAll) Name() string { return "set_include_all" }

// SetFieldType overrides the inferred type of a field.
type SetFieldType struct {
	FieldID string
	Type    models.FieldType
}

func (c SetFieldType) Apply(store *review.Store) error {
	return store.SetFieldType(c.FieldID, c.Type)
}

func (SetFieldType) Name() string { return "set_field_type" }

// DeleteField removes a field from the review.
type DeleteField struct {
	FieldID string
}

func (c DeleteField) Apply(store *review.Store) error {
	return store.DeleteField(c.FieldID)
}

func (DeleteField) Name() string { return "delete_field" }

// DeleteSheet removes every field of a sheet. Callers must have obtained the
// reviewer's confirmation first.
type DeleteSheet struct {
	SheetName string
}

func (c DeleteSheet) Apply(store *review.Store) error {
	if _, err := store.DeleteSheet(c.SheetName); err != nil {
		return err
	}
	return nil
}

func (DeleteSheet) Name() string { return "delete_sheet" }

// MoveField moves a field to a new position within its sheet.
type MoveField struct {
	FieldID string
	Index   int
}

func (c MoveField) Apply(store *review.Store) error {
	if err := store.MoveField(c.FieldID, c.Index); err != nil {
		return fmt.Errorf("move %s: %w", c.FieldID, err)
	}
	return nil
}

func (MoveField) Name() string { return "move_field" }
