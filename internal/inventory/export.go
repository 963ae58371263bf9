package inventory

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

// Format is an export file format.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// Formats lists the supported export formats.
var Formats = []Format{FormatJSON, FormatYAML, FormatCSV, FormatXLSX}

// ParseFormat parses a format name or file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "csv":
		return FormatCSV, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported export format %q (want json, yaml, csv, or xlsx)", s)
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatYAML:
		return "application/yaml"
	case FormatCSV:
		return "text/csv"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/octet-stream"
}

var columns = []string{
	"Item Name",
	"Part Number",
	"SKU",
	"Quantity",
	"Unit",
	"Unit Price",
	"Total Price",
	"Vendor Name",
	"Description",
	"Category",
	"Status",
	"Source Document",
	"Extraction Confidence",
}

func row(it Item) []any {
	return []any{
		it.Name,
		it.PartNumber,
		it.SKU,
		optional(it.Quantity),
		it.Unit,
		optional(it.UnitPrice),
		optional(it.TotalPrice),
		it.Vendor,
		it.Description,
		it.Category,
		string(it.Status),
		it.Source,
		it.Confidence,
	}
}

func optional(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

// Export writes res to w in the given format.
func Export(w io.Writer, res *Result, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(res); err != nil {
			return err
		}
		return enc.Close()
	case FormatCSV:
		return writeCSV(w, res)
	case FormatXLSX:
		return writeXLSX(w, res)
	}
	return fmt.Errorf("unsupported export format %q", format)
}

// ExportFile writes res to path. An empty format is taken from the file
// extension.
func ExportFile(path string, res *Result, format Format) error {
	if format == "" {
		f, err := ParseFormat(filepath.Ext(path))
		if err != nil {
			return err
		}
		format = f
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Export(f, res, format); err != nil {
		f.Close()
		return fmt.Errorf("export %s: %w", path, err)
	}
	return f.Close()
}

func writeCSV(w io.Writer, res *Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return err
	}
	for _, it := range res.Items {
		cells := row(it)
		rec := make([]string, len(cells))
		for i, c := range cells {
			switch v := c.(type) {
			case string:
				rec[i] = v
			case float64:
				rec[i] = strconv.FormatFloat(v, 'f', -1, 64)
			}
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

const (
	itemsSheet   = "Items"
	summarySheet = "Summary"
)

func writeXLSX(w io.Writer, res *Result) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", itemsSheet); err != nil {
		return err
	}
	for i, h := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(itemsSheet, cell, h); err != nil {
			return err
		}
	}
	for r, it := range res.Items {
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		cells := row(it)
		if err := f.SetSheetRow(itemsSheet, cell, &cells); err != nil {
			return fmt.Errorf("write row %d: %w", r+2, err)
		}
	}
	_ = f.SetColWidth(itemsSheet, "A", "A", 32) // name
	_ = f.SetColWidth(itemsSheet, "B", "C", 16) // part number, sku
	_ = f.SetColWidth(itemsSheet, "H", "I", 28) // vendor, description
	_ = f.SetColWidth(itemsSheet, "L", "L", 28) // source

	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}
	s := res.Summary
	summary := [][]any{
		{"Result ID", res.ID},
		{"Source", res.Source},
		{"Total Items", s.TotalItems},
		{"Complete Items", s.CompleteItems},
		{"Incomplete Items", s.IncompleteItems},
		{"Low Confidence Items", s.LowConfidence},
		{"Completion Rate", s.CompletionRate},
		{"Extraction Confidence", s.Confidence},
		{"Processing Time (s)", s.ProcessingTime},
		{"Errors", strings.Join(res.Errors, "; ")},
		{"Warnings", strings.Join(res.Warnings, "; ")},
	}
	for i, pair := range summary {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &pair); err != nil {
			return err
		}
	}
	_ = f.SetColWidth(summarySheet, "A", "A", 24)
	_ = f.SetColWidth(summarySheet, "B", "B", 40)

	idx, _ := f.GetSheetIndex(itemsSheet)
	f.SetActiveSheet(idx)

	_, err := f.WriteTo(w)
	return err
}
