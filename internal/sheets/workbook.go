// Package sheets loads uploaded spreadsheets and flattens their sheets into positioned cells.
package sheets

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var numericCell = regexp.MustCompile(`^-?(0|[1-9]\d*)(\.\d+)?$`)

// Workbook is a parsed spreadsheet: an ordered list of sheets
type Workbook struct {
	// Name is the uploaded file name (no path).
	Name   string  `json:"name"`
	Sheets []Sheet `json:"sheets"`
}

// Sheet is one tab of a workbook. Rows may have different widths and
// hold string, int64, float64, bool or nil values.
type Sheet struct {
	Name string  `json:"name"`
	Rows [][]any `json:"rows"`
}

// PositionedCell is a non-empty cell with its zero-based grid position
type PositionedCell struct {
	Row   int `json:"row"`
	Col   int `json:"col"`
	Value any `json:"value"`
}

// Text returns the trimmed string form of the cell value
func (c PositionedCell) Text() string {
	return strings.TrimSpace(CellText(c.Value))
}

// DefaultSheetName is the name given to an unnamed sheet at zero-based index i
func DefaultSheetName(i int) string {
	return fmt.Sprintf("Sheet %d", i+1)
}

// DisplayName returns the sheet name, falling back to DefaultSheetName
func (s Sheet) DisplayName(index int) string {
	if name := strings.TrimSpace(s.Name); name != "" {
		return name
	}
	return DefaultSheetName(index)
}

// CellText converts a primitive cell value into its string form
func CellText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// parseValue types a raw cell string the way spreadsheet values are held in a Sheet:
// int64 for integers, float64 for decimals, the original string otherwise.
// Values with leading zeros or exponents stay strings so no digits are lost.
func parseValue(s string) any {
	if s == "" {
		return nil
	}
	if !numericCell.MatchString(s) {
		return s
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
