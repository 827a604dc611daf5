package sheets

import (
	"bytes"
	"encoding/binary"
	"errors"
	"slices"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// buildXLSX writes a workbook with the given sheets (cell name -> value) and returns its bytes.
func buildXLSX(t *testing.T, sheets map[string]map[string]any, order []string) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, name := range order {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", name))
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for cell, value := range sheets[name] {
			require.NoError(t, f.SetCellValue(name, cell, value))
		}
	}

	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)
	return buf.Bytes()
}

// xlsSheet is one worksheet for buildXLS: row index -> cell values starting at column A.
type xlsSheet struct {
	name string
	rows map[int][]any
}

// buildXLS writes a BIFF8 workbook inside a single-FAT OLE compound file.
// Each row gets a ROW record; strings become LABEL cells and ints RK cells.
func buildXLS(t *testing.T, sheets ...xlsSheet) []byte {
	t.Helper()

	const (
		sectorSize = 512
		endOfChain = 0xfffffffe
		freeSect   = 0xffffffff
	)
	le := func(values ...any) []byte {
		var b bytes.Buffer
		for _, v := range values {
			require.NoError(t, binary.Write(&b, binary.LittleEndian, v))
		}
		return b.Bytes()
	}
	record := func(buf *bytes.Buffer, id uint16, body []byte) {
		buf.Write(le(id, uint16(len(body))))
		buf.Write(body)
	}
	bof := func(kind uint16) []byte {
		return le(uint16(0x0600), kind, uint16(0), uint16(0), uint32(0), uint32(0))
	}

	substreams := make([][]byte, len(sheets))
	for i, sh := range sheets {
		var buf bytes.Buffer
		record(&buf, 0x0809, bof(0x0010))
		indexes := make([]int, 0, len(sh.rows))
		for r := range sh.rows {
			indexes = append(indexes, r)
		}
		slices.Sort(indexes)
		for _, r := range indexes {
			record(&buf, 0x0208, le(uint16(r), uint16(0), uint16(len(sh.rows[r])), uint16(0x012c), uint16(0), uint16(0), uint32(0x000f0100)))
		}
		for _, r := range indexes {
			for c, v := range sh.rows[r] {
				switch v := v.(type) {
				case int:
					record(&buf, 0x027e, le(uint16(r), uint16(c), uint16(0), uint32(v<<2|2)))
				case string:
					record(&buf, 0x0204, append(le(uint16(r), uint16(c), uint16(0), uint16(len(v)), uint8(0)), v...))
				}
			}
		}
		record(&buf, 0x000a, nil)
		substreams[i] = buf.Bytes()
	}

	pos := 4 + 16 + 4
	for _, sh := range sheets {
		pos += 4 + 8 + len(sh.name)
	}
	var stream bytes.Buffer
	record(&stream, 0x0809, bof(0x0005))
	for i, sh := range sheets {
		record(&stream, 0x0085, append(le(uint32(pos), uint8(0), uint8(0), uint8(len(sh.name)), uint8(0)), sh.name...))
		pos += len(substreams[i])
	}
	record(&stream, 0x000a, nil)
	for _, sub := range substreams {
		stream.Write(sub)
	}

	// Streams under 4096 bytes live in the mini stream; pad past the cutoff.
	size := max(4096, (stream.Len()+sectorSize-1)/sectorSize*sectorSize)
	stream.Write(make([]byte, size-stream.Len()))
	sectors := size / sectorSize
	require.LessOrEqual(t, sectors, sectorSize/4-2)

	put16 := binary.LittleEndian.PutUint16
	put32 := binary.LittleEndian.PutUint32

	header := make([]byte, sectorSize)
	copy(header, []byte{0xd0, 0xcf, 0x11, 0xe0, 0xa1, 0xb1, 0x1a, 0xe1})
	put16(header[24:], 0x003e)
	put16(header[26:], 3)
	put16(header[28:], 0xfffe)
	put16(header[30:], 9)
	put16(header[32:], 6)
	put32(header[44:], 1) // FAT sectors
	put32(header[48:], 1) // directory start
	put32(header[56:], 4096)
	put32(header[60:], endOfChain)
	put32(header[68:], endOfChain)
	for i := 0; i < 109; i++ {
		put32(header[76+4*i:], freeSect)
	}
	put32(header[76:], 0)

	fat := make([]byte, sectorSize)
	for i := 0; i < sectorSize/4; i++ {
		put32(fat[4*i:], freeSect)
	}
	put32(fat[0:], 0xfffffffd)
	put32(fat[4:], endOfChain)
	for i := 0; i < sectors; i++ {
		next := uint32(i + 3)
		if i == sectors-1 {
			next = endOfChain
		}
		put32(fat[4*(i+2):], next)
	}

	dir := make([]byte, sectorSize)
	entry := func(slot int, name string, kind byte, start, length uint32) {
		e := dir[slot*128 : (slot+1)*128]
		units := utf16.Encode([]rune(name))
		for i, u := range units {
			put16(e[2*i:], u)
		}
		put16(e[64:], uint16(2*len(units)+2))
		e[66] = kind
		put32(e[68:], freeSect)
		put32(e[72:], freeSect)
		put32(e[76:], freeSect)
		put32(e[116:], start)
		put32(e[120:], length)
	}
	entry(0, "Root Entry", 5, endOfChain, 0)
	entry(1, "Workbook", 2, 2, uint32(size))
	put32(dir[76:], 1)
	// Excel.Sheet.8 class id on the root storage.
	copy(dir[80:], []byte{0x20, 0x08, 0x02, 0x00, 0x00, 0x00, 0x00, 0x00, 0xc0, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x46})

	out := make([]byte, 0, 3*sectorSize+size)
	out = append(out, header...)
	out = append(out, fat...)
	out = append(out, dir...)
	return append(out, stream.Bytes()...)
}

func TestLoadXLSX(t *testing.T) {
	t.Parallel()

	data := buildXLSX(t, map[string]map[string]any{
		"Inspection": {
			"A1": "Inspector:",
			"B1": "Jane Doe",
			"A2": "Units",
			"B2": 12,
			"C3": 2.5,
		},
		"Parts": {
			"A1": "Part",
			"B1": "Qty",
		},
	}, []string{"Inspection", "Parts"})

	wb, err := Load("report.xlsx", FormatXLSX, data)
	require.NoError(t, err)

	assert.Equal(t, "report.xlsx", wb.Name)
	require.Len(t, wb.Sheets, 2)
	assert.Equal(t, "Inspection", wb.Sheets[0].Name)
	assert.Equal(t, "Parts", wb.Sheets[1].Name)

	cells := wb.Sheets[0].Flatten()
	require.Len(t, cells, 5)
	assert.Equal(t, PositionedCell{Row: 0, Col: 0, Value: "Inspector:"}, cells[0])
	assert.Equal(t, PositionedCell{Row: 1, Col: 1, Value: int64(12)}, cells[3])
	assert.Equal(t, PositionedCell{Row: 2, Col: 2, Value: 2.5}, cells[4])
}

func TestLoadXLSXInvalid(t *testing.T) {
	t.Parallel()

	_, err := Load("broken.xlsx", FormatXLSX, []byte("not a zip archive"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidFormat), "expected ErrInvalidFormat, got %v", err)
}

func TestLoadXLS(t *testing.T) {
	t.Parallel()

	data := buildXLS(t,
		xlsSheet{name: "Inspection", rows: map[int][]any{
			0: {"Inspector:", "Jane Doe"},
			3: {"Units", 12},
		}},
		xlsSheet{name: "Parts", rows: map[int][]any{
			0: {"Part", "Qty"},
		}},
	)

	wb, err := Load("legacy.xls", FormatXLS, data)
	require.NoError(t, err)

	assert.Equal(t, "legacy.xls", wb.Name)
	require.Len(t, wb.Sheets, 2)

	inspection := wb.Sheets[0]
	assert.Equal(t, "Inspection", inspection.Name)
	require.Len(t, inspection.Rows, 4)
	assert.Equal(t, []any{"Inspector:", "Jane Doe"}, inspection.Rows[0])
	assert.Empty(t, inspection.Rows[1])
	assert.Empty(t, inspection.Rows[2])
	assert.Equal(t, []any{"Units", int64(12)}, inspection.Rows[3])

	cells := inspection.Flatten()
	require.Len(t, cells, 4)
	assert.Equal(t, PositionedCell{Row: 3, Col: 1, Value: int64(12)}, cells[3])

	parts := wb.Sheets[1]
	assert.Equal(t, "Parts", parts.Name)
	assert.Equal(t, [][]any{{"Part", "Qty"}}, parts.Rows)
}

func TestLoadXLSUnnamedSheet(t *testing.T) {
	t.Parallel()

	data := buildXLS(t,
		xlsSheet{name: "Summary", rows: map[int][]any{0: {"Total:", 3}}},
		xlsSheet{rows: map[int][]any{0: {"Site:", "North"}}},
	)

	wb, err := Load("legacy.xls", FormatXLS, data)
	require.NoError(t, err)

	require.Len(t, wb.Sheets, 2)
	assert.Equal(t, "Summary", wb.Sheets[0].Name)
	assert.Equal(t, "Sheet 2", wb.Sheets[1].Name)
	assert.Equal(t, [][]any{{"Site:", "North"}}, wb.Sheets[1].Rows)
}

func TestLoadXLSEmptySheet(t *testing.T) {
	t.Parallel()

	data := buildXLS(t, xlsSheet{name: "Blank", rows: map[int][]any{}})

	wb, err := Load("blank.xls", FormatXLS, data)
	require.NoError(t, err)

	require.Len(t, wb.Sheets, 1)
	assert.Equal(t, "Blank", wb.Sheets[0].Name)
	assert.Empty(t, wb.Sheets[0].Rows)
}

func TestLoadXLSInvalid(t *testing.T) {
	t.Parallel()

	valid := buildXLS(t, xlsSheet{name: "Sheet1", rows: map[int][]any{0: {"Name:"}}})

	// A directory entry with a zero name length makes the OLE reader slice out of range.
	badDirectory := bytes.Clone(valid)
	badDirectory[1024+64] = 0
	badDirectory[1024+65] = 0

	tests := []struct {
		name string
		data []byte
	}{
		{name: "not an OLE file", data: []byte("definitely not a workbook")},
		{name: "header only", data: valid[:512]},
		{name: "corrupt directory", data: badDirectory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var err error
			require.NotPanics(t, func() {
				_, err = Load("broken.xls", FormatXLS, tt.data)
			})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidFormat)
		})
	}
}

func TestLoadCSV(t *testing.T) {
	t.Parallel()

	data := []byte("\xef\xbb\xbfName,Age,City\nAlice,30,\"New York, NY\"\n\nBob,41\n")

	wb, err := Load("people.csv", FormatCSV, data)
	require.NoError(t, err)

	require.Len(t, wb.Sheets, 1)
	sheet := wb.Sheets[0]
	assert.Equal(t, "people", sheet.Name)
	assert.Equal(t, []any{"Name", "Age", "City"}, sheet.Rows[0])
	assert.Equal(t, []any{"Alice", int64(30), "New York, NY"}, sheet.Rows[1])
	assert.Equal(t, []any{"Bob", int64(41)}, sheet.Rows[2])
}

func TestLoadCSVEmpty(t *testing.T) {
	t.Parallel()

	wb, err := Load("empty.csv", FormatCSV, nil)
	require.NoError(t, err)
	assert.Empty(t, wb.Sheets)
}

func TestLoadUnknownFormat(t *testing.T) {
	t.Parallel()

	_, err := Load("notes.txt", Format("txt"), []byte("hello"))
	assert.ErrorIs(t, err, ErrUnsupportedFile)
}
