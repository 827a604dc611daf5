package inference

import (
	"sort"

	"github.com/benvon/report-templates/internal/models"
	"github.com/benvon/report-templates/internal/sheets"
)

// minHeaderCells is the number of non-empty cells a row needs to be taken as a table header.
const minHeaderCells = 3

// DetectTableHeaders finds the first row with at least three non-empty cells
// that is followed by another row, and returns one text field per header cell.
// Only the first table of a sheet is extracted.
func DetectTableHeaders(cells []sheets.PositionedCell) []Detection {
	byRow := make(map[int][]sheets.PositionedCell)
	for _, c := range cells {
		byRow[c.Row] = append(byRow[c.Row], c)
	}

	rows := make([]int, 0, len(byRow))
	for r := range byRow {
		rows = append(rows, r)
	}
	sort.Ints(rows)

	for _, r := range rows {
		header := byRow[r]
		if len(header) < minHeaderCells {
			continue
		}
		if _, hasNext := byRow[r+1]; !hasNext {
			continue
		}

		detections := make([]Detection, 0, len(header))
		for _, c := range header {
			label := c.Text()
			if label == "" {
				continue
			}
			detections = append(detections, Detection{
				Label:  label,
				Type:   models.FieldTypeText,
				Source: c,
			})
		}
		return detections
	}
	return nil
}
