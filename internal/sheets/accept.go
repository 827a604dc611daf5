package sheets

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Format is a supported spreadsheet container format
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
	FormatCSV  Format = "csv"
)

const (
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimeXLS  = "application/vnd.ms-excel"
	mimeCSV  = "text/csv"
)

var formatsByExtension = map[string]Format{
	".xlsx": FormatXLSX,
	".xlsm": FormatXLSX,
	".xls":  FormatXLS,
	".csv":  FormatCSV,
}

var formatsByMIME = map[string]Format{
	mimeXLSX:                      FormatXLSX,
	mimeXLS:                       FormatXLS,
	mimeCSV:                       FormatCSV,
	"application/csv":             FormatCSV,
	"application/x-csv":           FormatCSV,
	"text/comma-separated-values": FormatCSV,
}

// sniffedContainers are detected content types compatible with a spreadsheet.
// mimetype reports xlsx under application/zip and xls under application/x-ole-storage
// when the workbook parts are not where it expects them.
var sniffedContainers = []string{
	mimeXLSX,
	mimeXLS,
	mimeCSV,
	"text/plain",
	"application/zip",
	"application/x-ole-storage",
}

// Accept checks an upload before any parsing. The file is accepted when its
// extension or its declared content type names a spreadsheet format and its
// content does not sniff as something else entirely (a PDF renamed to .xlsx).
func Accept(filename, contentType string, data []byte) (Format, error) {
	format, ok := formatFromName(filename)
	if !ok {
		format, ok = formatFromContentType(contentType)
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFile, filepath.Base(filename))
	}

	if len(data) == 0 {
		return format, nil
	}

	detected := mimetype.Detect(data)
	if packagedDocument(detected) {
		return "", fmt.Errorf("%w: content detected as %s", ErrUnsupportedFile, detected.String())
	}
	for m := detected; m != nil; m = m.Parent() {
		for _, allowed := range sniffedContainers {
			if m.Is(allowed) {
				return refineFormat(format, detected), nil
			}
		}
	}
	return "", fmt.Errorf("%w: content detected as %s", ErrUnsupportedFile, detected.String())
}

// packagedDocument reports a sniffed type that shares a zip or OLE container
// with spreadsheets but is some other document, such as a .docx or .pptx.
func packagedDocument(detected *mimetype.MIME) bool {
	if detected.Is(mimeXLSX) || detected.Is(mimeXLS) {
		return false
	}
	for m := detected.Parent(); m != nil; m = m.Parent() {
		if m.Is("application/zip") || m.Is("application/x-ole-storage") {
			return true
		}
	}
	return false
}

func formatFromName(filename string) (Format, bool) {
	f, ok := formatsByExtension[strings.ToLower(filepath.Ext(filename))]
	return f, ok
}

func formatFromContentType(contentType string) (Format, bool) {
	if contentType == "" {
		return "", false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", false
	}
	f, ok := formatsByMIME[strings.ToLower(mediaType)]
	return f, ok
}

// refineFormat prefers the sniffed container over the declared one when they
// disagree, so an .xls that is really an OOXML package is opened with excelize.
func refineFormat(declared Format, detected *mimetype.MIME) Format {
	switch {
	case detected.Is(mimeXLSX), detected.Is("application/zip"):
		return FormatXLSX
	case detected.Is(mimeXLS), detected.Is("application/x-ole-storage"):
		return FormatXLS
	default:
		return declared
	}
}
