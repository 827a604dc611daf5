package models

import (
	"time"

	"github.com/google/uuid"
)

// ImportSession is the server-side state of one spreadsheet import under review
type ImportSession struct {
	ID         uuid.UUID        `json:"id"`
	FileName   string           `json:"file_name"`
	TemplateID *uuid.UUID       `json:"template_id,omitempty"`
	SheetCount int              `json:"sheet_count"`
	Fields     []CandidateField `json:"fields"`
	CreatedAt  time.Time        `json:"created_at"`
	ExpiresAt  time.Time        `json:"expires_at"`
}

// Expired reports whether the session is past its expiry at now
func (s *ImportSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}
