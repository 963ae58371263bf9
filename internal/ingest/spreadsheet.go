package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// CellSeparator joins spreadsheet cells on a line of text.
const CellSeparator = " | "

func readCSV(r io.Reader) (string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	var rows [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse csv: %w", err)
		}
		rows = append(rows, rec)
	}
	return formatRows(rows), nil
}

func readXLSX(r io.Reader) (string, int, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return "", 0, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	var parts []string
	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", 0, fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		body := formatRows(rows)
		if body == "" {
			continue
		}
		parts = append(parts, "Sheet: "+sheet+"\n"+body)
	}
	return strings.Join(parts, "\n\n"), len(sheets), nil
}

// formatRows renders the first non-empty row as a header, a dashed rule
// of the same width, and the remaining rows beneath it.
func formatRows(rows [][]string) string {
	var lines []string
	for _, row := range rows {
		cells := make([]string, len(row))
		empty := true
		for i, c := range row {
			cells[i] = strings.TrimSpace(c)
			if cells[i] != "" {
				empty = false
			}
		}
		if empty {
			continue
		}
		line := strings.Join(trimTrailingEmpty(cells), CellSeparator)
		lines = append(lines, line)
		if len(lines) == 1 {
			lines = append(lines, strings.Repeat("-", utf8.RuneCountInString(line)))
		}
	}
	return strings.Join(lines, "\n")
}

func trimTrailingEmpty(cells []string) []string {
	for len(cells) > 0 && cells[len(cells)-1] == "" {
		cells = cells[:len(cells)-1]
	}
	return cells
}
