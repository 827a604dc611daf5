package sheets

import "strings"

// Flatten returns every cell of the grid whose trimmed text is non-empty, in
// row-major order. Row and column indices are the original zero-based grid
// positions; gaps are preserved.
func Flatten(rows [][]any) []PositionedCell {
	var cells []PositionedCell
	for r, row := range rows {
		for c, v := range row {
			if strings.TrimSpace(CellText(v)) == "" {
				continue
			}
			cells = append(cells, PositionedCell{Row: r, Col: c, Value: v})
		}
	}
	return cells
}

// Flatten returns the sheet's non-empty positioned cells
func (s Sheet) Flatten() []PositionedCell {
	return Flatten(s.Rows)
}
