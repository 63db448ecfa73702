// Package sheet decodes uploaded spreadsheet files into a header row plus
// data rows, and writes seeded template workbooks for download.
//
// The decoder accepts .xlsx/.xls workbooks (via excelize) and .csv files.
// The first row is always treated as the header; there is no header-row
// auto-detection beyond row 0. All failures are reported as recoverable
// errors so the caller can keep its pre-upload state.
package sheet

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// Table is one decoded sheet: a trimmed header row and all rows below it.
// Rows keep their original order and positional alignment with Header.
type Table struct {
	Header []string
	Rows   [][]string
}

// HeaderIndex maps lower-cased header names to their column position.
// Duplicate headers keep the first occurrence.
type HeaderIndex map[string]int

// Index builds the HeaderIndex for the table's header row.
func (t *Table) Index() HeaderIndex {
	idx := make(HeaderIndex, len(t.Header))
	for i, h := range t.Header {
		key := strings.ToLower(strings.TrimSpace(h))
		if key == "" {
			continue
		}
		if _, seen := idx[key]; !seen {
			idx[key] = i
		}
	}
	return idx
}

// Cell returns the value at column pos of row, or "" when the row is
// shorter than the header. Missing cells are never reported as errors.
func (t *Table) Cell(row []string, pos int) string {
	if pos < 0 || pos >= len(row) {
		return ""
	}
	return CleanCell(row[pos])
}

// CleanCell trims whitespace and strips a UTF-8 BOM, which Excel likes to
// prepend to the first cell of CSV exports.
func CleanCell(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	return strings.TrimSpace(s)
}

// Decode parses raw spreadsheet bytes into a Table. The format is chosen
// from the file name extension, falling back to content sniffing for
// renamed files. An empty file or a file with no header row yields
// ErrEmptyFile; an undecodable file yields ErrBadFormat.
func Decode(data []byte, fileName string) (*Table, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}

	if isWorkbook(data, fileName) {
		return decodeWorkbook(data)
	}
	return decodeCSV(data)
}

// isWorkbook reports whether the payload should be parsed with excelize.
// xlsx files are zip archives ("PK"), legacy xls files are OLE compound
// documents (0xD0 0xCF).
func isWorkbook(data []byte, fileName string) bool {
	switch strings.ToLower(ext(fileName)) {
	case ".xlsx", ".xls", ".xlsm":
		return true
	case ".csv", ".txt":
		return false
	}
	if len(data) >= 2 && data[0] == 'P' && data[1] == 'K' {
		return true
	}
	if len(data) >= 2 && data[0] == 0xD0 && data[1] == 0xCF {
		return true
	}
	return false
}

func ext(fileName string) string {
	if i := strings.LastIndex(fileName, "."); i >= 0 {
		return fileName[i:]
	}
	return ""
}

func decodeWorkbook(data []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFormat, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFormat, err)
	}

	return tableFromRows(rows)
}

func decodeCSV(data []byte) (*Table, error) {
	r := csv.NewReader(bytes.NewReader(sanitizeUTF8(data)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: %v", ErrBadFormat, err)
	}

	return tableFromRows(records)
}

func tableFromRows(rows [][]string) (*Table, error) {
	// Drop trailing all-blank rows so a file padded by Excel does not
	// produce phantom records.
	for len(rows) > 0 && isEmptyRow(rows[len(rows)-1]) {
		rows = rows[:len(rows)-1]
	}
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = CleanCell(h)
	}

	var data [][]string
	for _, row := range rows[1:] {
		if isEmptyRow(row) {
			continue
		}
		data = append(data, row)
	}

	return &Table{Header: header, Rows: data}, nil
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// RequireHeaders verifies that every name in required appears in the
// table's header, case-insensitively. Missing names are reported together
// in a single MissingHeadersError.
func RequireHeaders(t *Table, required []string) error {
	idx := t.Index()
	var missing []string
	for _, name := range required {
		if _, ok := idx[strings.ToLower(name)]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &MissingHeadersError{Missing: missing}
	}
	return nil
}

// sanitizeUTF8 replaces invalid byte sequences with the replacement rune
// so the csv reader never chokes on latin-1 exports.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('�')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}
	return buf.Bytes()
}
