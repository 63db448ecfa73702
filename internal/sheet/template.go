package sheet

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// templateSheet is the sheet name used in downloadable templates.
const templateSheet = "Sheet1"

// WriteTemplate builds an xlsx workbook seeded with the given header and
// sample rows and returns it as bytes ready for download. A template
// produced here round-trips through Decode unchanged.
func WriteTemplate(header []string, samples [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := writeRow(f, 1, header); err != nil {
		return nil, err
	}
	for i, row := range samples {
		if err := writeRow(f, i+2, row); err != nil {
			return nil, err
		}
	}

	// Bold header row. Cosmetic only; ignored by the decoder.
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		end, _ := excelize.CoordinatesToCellName(len(header), 1)
		_ = f.SetCellStyle(templateSheet, "A1", end, style)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write template: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, rowNum int, values []string) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, rowNum)
		if err != nil {
			return fmt.Errorf("template cell %d,%d: %w", col+1, rowNum, err)
		}
		if err := f.SetCellValue(templateSheet, cell, v); err != nil {
			return fmt.Errorf("template cell %s: %w", cell, err)
		}
	}
	return nil
}
