package sheets

import (
	"errors"
	"fmt"
)

// ErrUnsupportedFile indicates the upload is not a spreadsheet (.xlsx, .xls or .csv).
var ErrUnsupportedFile = errors.New("unsupported file type")

// ErrInvalidFormat indicates the file claims a spreadsheet format but could not be parsed.
var ErrInvalidFormat = errors.New("invalid spreadsheet format")

// SheetError represents a failure reading one sheet of a workbook.
type SheetError struct {
	SheetName string
	Err       error
}

func (e *SheetError) Error() string {
	return fmt.Sprintf("sheet %q: %v", e.SheetName, e.Err)
}

func (e *SheetError) Unwrap() error {
	return e.Err
}

// NewSheetError creates a new SheetError.
func NewSheetError(sheetName string, err error) *SheetError {
	return &SheetError{
		SheetName: sheetName,
		Err:       err,
	}
}
