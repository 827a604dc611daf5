package inference

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/benvon/report-templates/internal/models"
	"github.com/benvon/report-templates/internal/sheets"
)

var pureNumber = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// Detection is a field found by one of the extraction strategies, before it
// is given an id, a sheet and an order.
type Detection struct {
	Label string
	Type  models.FieldType
	// Value is the text of the paired value cell; empty when HasValue is false.
	Value    string
	HasValue bool
	// Source is the label cell; ValueSource the paired value cell when HasValue is set.
	Source      sheets.PositionedCell
	ValueSource sheets.PositionedCell
}

type cellKey struct {
	row, col int
}

// cellGrid indexes flattened cells by position and tracks which were consumed as values.
type cellGrid struct {
	cells    map[cellKey]sheets.PositionedCell
	consumed map[cellKey]bool
}

func newCellGrid(cells []sheets.PositionedCell) *cellGrid {
	g := &cellGrid{
		cells:    make(map[cellKey]sheets.PositionedCell, len(cells)),
		consumed: make(map[cellKey]bool),
	}
	for _, c := range cells {
		g.cells[cellKey{c.Row, c.Col}] = c
	}
	return g
}

// available returns the unconsumed cell at (row, col), if any.
func (g *cellGrid) available(row, col int) (sheets.PositionedCell, bool) {
	k := cellKey{row, col}
	if g.consumed[k] {
		return sheets.PositionedCell{}, false
	}
	c, ok := g.cells[k]
	return c, ok
}

// valueFor returns the value cell paired with a label: the right neighbour
// first, the cell below when there is no right neighbour.
func (g *cellGrid) valueFor(label sheets.PositionedCell) (sheets.PositionedCell, bool) {
	if c, ok := g.available(label.Row, label.Col+1); ok {
		return c, true
	}
	return g.available(label.Row+1, label.Col)
}

func (g *cellGrid) consume(c sheets.PositionedCell) {
	g.consumed[cellKey{c.Row, c.Col}] = true
}

// DetectLabelValuePairs walks cells in flattening order and pairs label cells
// with an adjacent value cell. A cell consumed as a value never becomes a
// field of its own.
func DetectLabelValuePairs(cells []sheets.PositionedCell) []Detection {
	grid := newCellGrid(cells)

	var detections []Detection
	for _, cell := range cells {
		if grid.consumed[cellKey{cell.Row, cell.Col}] {
			continue
		}

		text := cell.Text()
		if isPureNumber(text) && utf8.RuneCountInString(text) < 3 {
			continue
		}

		var label string
		if i := strings.Index(text, ":"); i >= 0 {
			label = strings.TrimSpace(text[:i])
			if label == "" {
				continue
			}
		} else if LooksLikeLabel(text) {
			label = text
		} else {
			continue
		}

		grid.consume(cell)
		d := Detection{Label: label, Source: cell}
		if value, ok := grid.valueFor(cell); ok {
			grid.consume(value)
			d.Value = value.Text()
			d.HasValue = true
			d.ValueSource = value
			d.Type = TypeFromValue(d.Value)
		} else {
			d.Type = TypeFromLabel(label)
		}
		detections = append(detections, d)
	}
	return detections
}

// LooksLikeLabel reports whether trimmed cell text can name a field. The test
// is permissive: it only rules out very short text and bare numbers.
func LooksLikeLabel(text string) bool {
	text = strings.TrimSpace(text)
	n := utf8.RuneCountInString(text)
	if n < 2 || isPureNumber(text) {
		return false
	}
	return n >= 3 || strings.HasSuffix(text, ":")
}

func isPureNumber(text string) bool {
	return pureNumber.MatchString(text)
}
