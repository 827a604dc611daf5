package sheets

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

const (
	// maxXLSRows bounds how many rows are read from a legacy .xls sheet.
	maxXLSRows = 100000
	// xlsMaxCols is the BIFF8 column limit.
	xlsMaxCols = 256
)

// Load parses an uploaded spreadsheet in the given format into a Workbook.
// Sheets are returned in workbook order; a sheet that cannot be read fails the
// whole load with a *SheetError.
func Load(filename string, format Format, data []byte) (*Workbook, error) {
	var (
		sheets []Sheet
		err    error
	)
	switch format {
	case FormatXLSX:
		sheets, err = loadXLSX(data)
	case FormatXLS:
		sheets, err = loadXLS(data)
	case FormatCSV:
		sheets, err = loadCSV(filename, data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, format)
	}
	if err != nil {
		return nil, err
	}

	for i := range sheets {
		sheets[i].Name = sheets[i].DisplayName(i)
	}

	return &Workbook{
		Name:   filepath.Base(filename),
		Sheets: sheets,
	}, nil
}

func loadXLSX(data []byte) ([]Sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	defer func() { _ = f.Close() }()

	var sheets []Sheet
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, NewSheetError(name, err)
		}
		sheets = append(sheets, Sheet{Name: name, Rows: typedRows(rows)})
	}
	return sheets, nil
}

func loadXLS(data []byte) (sheets []Sheet, err error) {
	defer func() {
		if r := recover(); r != nil {
			sheets, err = nil, fmt.Errorf("%w: %v", ErrInvalidFormat, r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if wb == nil {
		return nil, fmt.Errorf("%w: no workbook stream", ErrInvalidFormat)
	}

	for i := 0; i < wb.NumSheets(); i++ {
		ws := wb.GetSheet(i)
		if ws == nil {
			continue
		}
		sheets = append(sheets, Sheet{Name: ws.Name, Rows: typedRows(xlsRows(ws))})
	}
	return sheets, nil
}

// xlsRows reads a legacy sheet row by row. MaxRow is the last row index, so
// a sheet whose only data is in row 0 still has one row to read.
func xlsRows(ws *xls.WorkSheet) [][]string {
	last := int(ws.MaxRow)
	if last >= maxXLSRows {
		last = maxXLSRows - 1
	}

	rows := make([][]string, 0, last+1)
	for r := 0; r <= last; r++ {
		row := xlsRow(ws, r)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		rows = append(rows, xlsValues(row))
	}

	for len(rows) > 0 && len(rows[len(rows)-1]) == 0 {
		rows = rows[:len(rows)-1]
	}
	return rows
}

// xlsRow returns nil for an index with no row record. WorkSheet.Row
// dereferences the missing entry instead of returning nil.
func xlsRow(ws *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return ws.Row(i)
}

// xlsValues reads the cells of one row. LastCol comes from the ROW record and
// is exclusive; rows written without one report zero, so the full BIFF8
// column range is scanned and trailing blanks dropped.
func xlsValues(row *xls.Row) []string {
	width := row.LastCol()
	if width <= 0 {
		width = xlsMaxCols
	}

	values := make([]string, width)
	for c := max(row.FirstCol(), 0); c < width; c++ {
		values[c] = row.Col(c)
	}

	n := len(values)
	for n > 0 && values[n-1] == "" {
		n--
	}
	if n == 0 {
		return nil
	}
	return values[:n]
}

func loadCSV(filename string, data []byte) ([]Sheet, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]string
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		}
		rows = append(rows, record)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	return []Sheet{{Name: name, Rows: typedRows(rows)}}, nil
}

func typedRows(rows [][]string) [][]any {
	out := make([][]any, len(rows))
	for i, row := range rows {
		typed := make([]any, len(row))
		for j, v := range row {
			typed[j] = parseValue(v)
		}
		out[i] = typed
	}
	return out
}
