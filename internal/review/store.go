// Package review holds the editable candidate fields of one import and
// assembles the reviewer's selection into form categories.
package review

import (
	"errors"
	"fmt"

	"github.com/benvon/report-templates/internal/models"
)

var (
	// ErrFieldNotFound indicates no candidate field has the given id.
	ErrFieldNotFound = errors.New("field not found")
	// ErrSheetNotFound indicates no candidate field belongs to the given sheet.
	ErrSheetNotFound = errors.New("sheet not found")
	// ErrInvalidFieldType indicates a type outside the importable field types.
	ErrInvalidFieldType = errors.New("invalid field type")
	// ErrInvalidPosition indicates a move target outside the sheet's field list.
	ErrInvalidPosition = errors.New("invalid field position")
)

// Store is the in-memory collection of candidate fields for one import run.
// Fields are kept in an arena keyed by id; ids preserves collection order.
// A Store is owned by a single review session and is not safe for concurrent use.
type Store struct {
	fields map[string]*models.CandidateField
	ids    []string
}

// NewStore creates a store from extracted fields, keeping their order.
func NewStore(fields []models.CandidateField) *Store {
	s := &Store{
		fields: make(map[string]*models.CandidateField, len(fields)),
		ids:    make([]string, 0, len(fields)),
	}
	for i := range fields {
		f := fields[i]
		if _, dup := s.fields[f.ID]; dup {
			continue
		}
		s.fields[f.ID] = &f
		s.ids = append(s.ids, f.ID)
	}
	return s
}

// Len returns the number of fields in the store.
func (s *Store) Len() int {
	return len(s.ids)
}

// Field returns a copy of the field with the given id.
func (s *Store) Field(id string) (models.CandidateField, bool) {
	f, ok := s.fields[id]
	if !ok {
		return models.CandidateField{}, false
	}
	return *f, true
}

// Fields returns copies of all fields in collection order.
func (s *Store) Fields() []models.CandidateField {
	out := make([]models.CandidateField, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, *s.fields[id])
	}
	return out
}

// Snapshot returns the store's state for persistence between requests.
func (s *Store) Snapshot() []models.CandidateField {
	return s.Fields()
}

// Restore rebuilds a store from a snapshot.
func Restore(snapshot []models.CandidateField) *Store {
	return NewStore(snapshot)
}

// IncludedCount returns how many fields are selected for the template.
func (s *Store) IncludedCount() int {
	n := 0
	for _, id := range s.ids {
		if s.fields[id].Included {
			n++
		}
	}
	return n
}

// ToggleInclude flips whether the field is included and returns the new state.
func (s *Store) ToggleInclude(id string) (bool, error) {
	f, ok := s.fields[id]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrFieldNotFound, id)
	}
	f.Included = !f.Included
	return f.Included, nil
}

// SetIncludeAll includes or excludes every field.
func (s *Store) SetIncludeAll(included bool) {
	for _, id := range s.ids {
		s.fields[id].Included = included
	}
}

// SetFieldType overrides the field's type. The originally inferred type is
// kept so the override can be shown as a modification.
func (s *Store) SetFieldType(id string, t models.FieldType) error {
	if !t.IsInferable() {
		return fmt.Errorf("%w: %q", ErrInvalidFieldType, t)
	}
	f, ok := s.fields[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrFieldNotFound, id)
	}
	f.Type = t
	return nil
}

// DeleteField removes the field permanently and renumbers the remaining
// fields of its sheet.
func (s *Store) DeleteField(id string) error {
	f, ok := s.fields[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrFieldNotFound, id)
	}
	sheet := f.SheetName

	delete(s.fields, id)
	for i, existing := range s.ids {
		if existing == id {
			s.ids = append(s.ids[:i], s.ids[i+1:]...)
			break
		}
	}
	s.renumber(sheet)
	return nil
}

// DeleteSheet removes every field of the named sheet and returns how many
// were removed. Fields of other sheets keep their ids and order.
func (s *Store) DeleteSheet(name string) (int, error) {
	kept := s.ids[:0]
	removed := 0
	for _, id := range s.ids {
		if s.fields[id].SheetName == name {
			delete(s.fields, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	s.ids = kept
	if removed == 0 {
		return 0, fmt.Errorf("%w: %s", ErrSheetNotFound, name)
	}
	return removed, nil
}

// MoveField moves a field to position index among the fields of its sheet.
func (s *Store) MoveField(id string, index int) error {
	f, ok := s.fields[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrFieldNotFound, id)
	}

	var slots []int
	var sheetIDs []string
	for i, existing := range s.ids {
		if s.fields[existing].SheetName == f.SheetName {
			slots = append(slots, i)
			sheetIDs = append(sheetIDs, existing)
		}
	}
	if index < 0 || index >= len(sheetIDs) {
		return fmt.Errorf("%w: %d (sheet has %d fields)", ErrInvalidPosition, index, len(sheetIDs))
	}

	from := 0
	for i, existing := range sheetIDs {
		if existing == id {
			from = i
			break
		}
	}
	sheetIDs = append(sheetIDs[:from], sheetIDs[from+1:]...)
	sheetIDs = append(sheetIDs[:index], append([]string{id}, sheetIDs[index:]...)...)

	for i, slot := range slots {
		s.ids[slot] = sheetIDs[i]
	}
	s.renumber(f.SheetName)
	return nil
}

// renumber assigns dense orders to the fields of a sheet in collection order.
func (s *Store) renumber(sheet string) {
	n := 0
	for _, id := range s.ids {
		if f := s.fields[id]; f.SheetName == sheet {
			f.Order = n
			n++
		}
	}
}

// SheetSummary describes the fields a sheet contributes to the review.
type SheetSummary struct {
	Name     string `json:"name"`
	Total    int    `json:"total"`
	Included int    `json:"included"`
	Modified int    `json:"modified"`
}

// Sheets summarises the store per sheet, in first-seen order.
func (s *Store) Sheets() []SheetSummary {
	index := make(map[string]int)
	var out []SheetSummary
	for _, id := range s.ids {
		f := s.fields[id]
		i, ok := index[f.SheetName]
		if !ok {
			i = len(out)
			index[f.SheetName] = i
			out = append(out, SheetSummary{Name: f.SheetName})
		}
		out[i].Total++
		if f.Included {
			out[i].Included++
		}
		if f.Modified() {
			out[i].Modified++
		}
	}
	return out
}
