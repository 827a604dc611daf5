package models

import (
	"time"

	"github.com/google/uuid"
)

// Template is a report template whose sections drive the agent-facing report form
type Template struct {
	ID          uuid.UUID      `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Sections    []FormCategory `json:"sections"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ImportRecord is the history entry written once an import has been applied to a template
type ImportRecord struct {
	ID            uuid.UUID `json:"id"`
	SessionID     uuid.UUID `json:"session_id"`
	TemplateID    uuid.UUID `json:"template_id"`
	FileName      string    `json:"file_name"`
	SheetCount    int       `json:"sheet_count"`
	CategoryCount int       `json:"category_count"`
	FieldCount    int       `json:"field_count"`
	ImportedAt    time.Time `json:"imported_at"`
}
