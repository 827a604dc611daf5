package review

import (
	"testing"

	"github.com/benvon/report-templates/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidate(id, sheet string, order int, included bool) models.CandidateField {
	return models.CandidateField{
		ID:           id,
		Type:         models.FieldTypeText,
		Label:        "Label " + id,
		Placeholder:  models.PlaceholderFor("Label " + id),
		Order:        order,
		SheetName:    sheet,
		CategoryID:   "category-" + sheet,
		Included:     included,
		OriginalType: models.FieldTypeText,
	}
}

func ids(fields []models.CandidateField) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.ID
	}
	return out
}

func twoSheetStore() *Store {
	return NewStore([]models.CandidateField{
		candidate("a", "Sheet1", 0, true),
		candidate("b", "Sheet1", 1, true),
		candidate("c", "Sheet2", 0, true),
		candidate("d", "Sheet1", 2, true),
		candidate("e", "Sheet2", 1, true),
	})
}

func TestAssemble_ExcludesUnselectedFields(t *testing.T) {
	t.Parallel()

	s := NewStore([]models.CandidateField{
		candidate("a", "Sheet1", 0, true),
		candidate("b", "Sheet1", 1, false),
		candidate("c", "Sheet1", 2, true),
	})

	categories := s.Assemble()

	require.Len(t, categories, 1)
	fields := categories[0].Fields
	require.Len(t, fields, 2)
	assert.Equal(t, "a", fields[0].ID)
	assert.Equal(t, 0, fields[0].Order)
	assert.Equal(t, "c", fields[1].ID)
	assert.Equal(t, 1, fields[1].Order)
}

func TestAssemble_GroupsBySheetInFirstSeenOrder(t *testing.T) {
	t.Parallel()

	categories := twoSheetStore().Assemble()

	require.Len(t, categories, 2)
	assert.Equal(t, "Sheet1", categories[0].Name)
	assert.Equal(t, "category-Sheet1", categories[0].ID)
	assert.Equal(t, 0, categories[0].Order)
	assert.Equal(t, "Sheet2", categories[1].Name)
	assert.Equal(t, 1, categories[1].Order)
	assert.NotEmpty(t, categories[0].Description)

	var got []string
	for _, f := range categories[0].Fields {
		got = append(got, f.ID)
		assert.Equal(t, "category-Sheet1", f.CategoryID)
	}
	assert.Equal(t, []string{"a", "b", "d"}, got)
	assert.Equal(t, 5, models.FieldCount(categories))
}

func TestAssemble_NothingIncluded(t *testing.T) {
	t.Parallel()

	s := twoSheetStore()
	s.SetIncludeAll(false)

	assert.Empty(t, s.Assemble())
	assert.Equal(t, 0, s.IncludedCount())

	s.SetIncludeAll(true)
	assert.Equal(t, 5, s.IncludedCount())
}

func TestDeleteSheet_LeavesOtherSheetsUntouched(t *testing.T) {
	t.Parallel()

	s := twoSheetStore()
	before := s.Fields()

	removed, err := s.DeleteSheet("Sheet1")
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	after := s.Fields()
	assert.Equal(t, []string{"c", "e"}, ids(after))
	assert.Equal(t, before[2], after[0])
	assert.Equal(t, before[4], after[1])

	_, ok := s.Field("a")
	assert.False(t, ok)
}

func TestDeleteSheet_Unknown(t *testing.T) {
	t.Parallel()

	s := twoSheetStore()

	_, err := s.DeleteSheet("Missing")
	assert.ErrorIs(t, err, ErrSheetNotFound)
	assert.Equal(t, 5, s.Len())
}

func TestToggleInclude(t *testing.T) {
	t.Parallel()

	s := twoSheetStore()

	included, err := s.ToggleInclude("b")
	require.NoError(t, err)
	assert.False(t, included)

	included, err = s.ToggleInclude("b")
	require.NoError(t, err)
	assert.True(t, included)

	_, err = s.ToggleInclude("zzz")
	assert.ErrorIs(t, err, ErrFieldNotFound)
}

func TestSetFieldType(t *testing.T) {
	t.Parallel()

	s := twoSheetStore()

	require.NoError(t, s.SetFieldType("a", models.FieldTypeDropdown))
	f, ok := s.Field("a")
	require.True(t, ok)
	assert.Equal(t, models.FieldTypeDropdown, f.Type)
	assert.Equal(t, models.FieldTypeText, f.OriginalType)
	assert.True(t, f.Modified())

	assert.ErrorIs(t, s.SetFieldType("a", models.FieldTypeSignature), ErrInvalidFieldType)
	assert.ErrorIs(t, s.SetFieldType("a", "nonsense"), ErrInvalidFieldType)
	assert.ErrorIs(t, s.SetFieldType("zzz", models.FieldTypeNumber), ErrFieldNotFound)

	require.NoError(t, s.SetFieldType("a", models.FieldTypeText))
	f, _ = s.Field("a")
	assert.False(t, f.Modified())
}

func TestDeleteField_RenumbersSheet(t *testing.T) {
	t.Parallel()

	s := twoSheetStore()

	require.NoError(t, s.DeleteField("b"))
	assert.ErrorIs(t, s.DeleteField("b"), ErrFieldNotFound)

	a, _ := s.Field("a")
	d, _ := s.Field("d")
	c, _ := s.Field("c")
	assert.Equal(t, 0, a.Order)
	assert.Equal(t, 1, d.Order)
	assert.Equal(t, 0, c.Order)
	assert.Equal(t, []string{"a", "c", "d", "e"}, ids(s.Fields()))
}

func TestMoveField(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		id      string
		index   int
		wantIDs []string
		wantErr error
	}{
		{name: "to front", id: "d", index: 0, wantIDs: []string{"d", "a", "c", "b", "e"}},
		{name: "to back", id: "a", index: 2, wantIDs: []string{"b", "d", "c", "a", "e"}},
		{name: "same place", id: "b", index: 1, wantIDs: []string{"a", "b", "c", "d", "e"}},
		{name: "other sheet", id: "e", index: 0, wantIDs: []string{"a", "b", "e", "d", "c"}},
		{name: "out of range", id: "a", index: 3, wantErr: ErrInvalidPosition},
		{name: "negative", id: "a", index: -1, wantErr: ErrInvalidPosition},
		{name: "unknown", id: "zzz", index: 0, wantErr: ErrFieldNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := twoSheetStore()
			err := s.MoveField(tt.id, tt.index)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantIDs, ids(s.Fields()))

			moved, _ := s.Field(tt.id)
			assert.Equal(t, tt.index, moved.Order)
		})
	}
}

func TestSheets(t *testing.T) {
	t.Parallel()

	s := twoSheetStore()
	_, _ = s.ToggleInclude("a")
	require.NoError(t, s.SetFieldType("c", models.FieldTypeNumber))

	assert.Equal(t, []SheetSummary{
		{Name: "Sheet1", Total: 3, Included: 2, Modified: 0},
		{Name: "Sheet2", Total: 2, Included: 2, Modified: 1},
	}, s.Sheets())
}

func TestSnapshotRestore(t *testing.T) {
	t.Parallel()

	s := twoSheetStore()
	_, _ = s.ToggleInclude("c")

	restored := Restore(s.Snapshot())

	assert.Equal(t, s.Fields(), restored.Fields())
	assert.Equal(t, s.Assemble(), restored.Assemble())

	// mutating the restored store leaves the original alone
	require.NoError(t, restored.DeleteField("a"))
	assert.Equal(t, 5, s.Len())
}

func TestNewStore_DropsDuplicateIDs(t *testing.T) {
	t.Parallel()

	s := NewStore([]models.CandidateField{
		candidate("a", "Sheet1", 0, true),
		candidate("a", "Sheet1", 1, true),
	})

	assert.Equal(t, 1, s.Len())
}
