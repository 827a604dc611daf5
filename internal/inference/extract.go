package inference

import (
	"fmt"
	"strings"
	"sync/atomic"
	"unicode"

	"github.com/benvon/report-templates/internal/models"
	"github.com/benvon/report-templates/internal/sheets"
	"github.com/google/uuid"
)

// IDGenerator mints candidate field ids, unique within one import run.
type IDGenerator func() string

// UUIDs returns an IDGenerator backed by random UUIDs.
func UUIDs() IDGenerator {
	return uuid.NewString
}

// Sequential returns an IDGenerator producing prefix-1, prefix-2, ... It is
// safe for concurrent use.
func Sequential(prefix string) IDGenerator {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("%s-%d", prefix, n.Add(1))
	}
}

// SheetInfo identifies the sheet fields are extracted from.
type SheetInfo struct {
	Name  string
	Index int
}

// CategoryID derives the category id shared by every field of the sheet.
func (s SheetInfo) CategoryID() string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s.Name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		slug = "sheet"
	}
	return fmt.Sprintf("category-%d-%s", s.Index, slug)
}

// Extract runs label/value pairing then table header detection over the cells
// of one sheet and returns the candidate fields in that order.
func Extract(cells []sheets.PositionedCell, sheet SheetInfo, nextID IDGenerator) []models.CandidateField {
	detections := DetectLabelValuePairs(cells)
	detections = append(detections, DetectTableHeaders(cells)...)
	return FieldsFrom(detections, sheet, nextID)
}

// FieldsFrom turns detections into candidate fields of the given sheet. Each
// field's order is its index in detections.
func FieldsFrom(detections []Detection, sheet SheetInfo, nextID IDGenerator) []models.CandidateField {
	if len(detections) == 0 {
		return nil
	}

	categoryID := sheet.CategoryID()
	fields := make([]models.CandidateField, 0, len(detections))
	for i, d := range detections {
		f := models.CandidateField{
			ID:           nextID(),
			Type:         d.Type,
			Label:        d.Label,
			Required:     false,
			Placeholder:  models.PlaceholderFor(d.Label),
			Order:        i,
			SheetName:    sheet.Name,
			CategoryID:   categoryID,
			Included:     true,
			OriginalType: d.Type,
		}
		if d.Type == models.FieldTypeDropdown && d.HasValue {
			f.Options = []string{d.Value}
		}
		fields = append(fields, f)
	}
	return fields
}

// SheetResult summarises extraction for one sheet.
type SheetResult struct {
	Name       string `json:"name"`
	CellCount  int    `json:"cell_count"`
	FieldCount int    `json:"field_count"`
}

// Result is the outcome of extracting a whole workbook.
type Result struct {
	Fields []models.CandidateField `json:"fields"`
	// Sheets lists every sheet of the workbook, including skipped empty ones.
	Sheets []SheetResult `json:"sheets"`
}

// ExtractWorkbook processes the sheets of wb one after another. Sheets that
// flatten to no cells are skipped and contribute no fields.
func ExtractWorkbook(wb *sheets.Workbook, nextID IDGenerator) *Result {
	res := &Result{}
	for i, sheet := range wb.Sheets {
		info := SheetInfo{Name: sheet.DisplayName(i), Index: i}
		cells := sheet.Flatten()

		sr := SheetResult{Name: info.Name, CellCount: len(cells)}
		if len(cells) > 0 {
			fields := Extract(cells, info, nextID)
			sr.FieldCount = len(fields)
			res.Fields = append(res.Fields, fields...)
		}
		res.Sheets = append(res.Sheets, sr)
	}
	return res
}
