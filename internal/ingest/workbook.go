package ingest

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

var ErrEmptyWorkbook = errors.New("workbook has no data")

// ReadWorkbook reads the first sheet of an xlsx file into rows keyed by the
// header row. Cells are read raw, so date cells arrive as serial numbers.
func ReadWorkbook(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyWorkbook
	}

	cells, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	if len(cells) < 1 {
		return nil, ErrEmptyWorkbook
	}

	headers := cells[0]
	rows := make([]Row, 0, len(cells)-1)
	for _, line := range cells[1:] {
		row := make(Row, len(headers))
		for i, value := range line {
			if i >= len(headers) || strings.TrimSpace(headers[i]) == "" {
				continue
			}
			if strings.TrimSpace(value) == "" {
				continue
			}
			row[strings.TrimSpace(headers[i])] = value
		}
		// keep blank lines so row numbers in errors match the sheet
		rows = append(rows, row)
	}

	return trimTrailingBlank(rows), nil
}

func trimTrailingBlank(rows []Row) []Row {
	for len(rows) > 0 && len(rows[len(rows)-1]) == 0 {
		rows = rows[:len(rows)-1]
	}
	return rows
}
