package inventory

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/quotient-labs/quotient/internal/extraction"
)

func num(v float64) *float64 { return &v }

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"resistor 10kΩ 1/4w", "Resistor 10kΩ 1/4w"},
		{"  Item:   hex   bolt ", "Hex Bolt"},
		{"PRODUCT: widget", "Widget"},
		{"", UnknownName},
		{"Item:", UnknownName},
	}
	for _, tt := range tests {
		if got := NormalizeName(tt.in); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"electronics", "Electronics"},
		{"Electrical", "Electronics"},
		{"office", "Office Supplies"},
		{"mechanical parts", "Mechanical"},
		{"tool", "Tools"},
		{"", "Unknown"},
		{"garden", "Garden"},
	}
	for _, tt := range tests {
		if got := NormalizeCategory(tt.in); got != tt.want {
			t.Errorf("NormalizeCategory(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeManufacturer(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"acme inc", "Acme Inc."},
		{"Widget Corporation", "Widget Corp."},
		{"globex llc", "Globex LLC"},
		{"Initech Ltd.", "Initech Ltd."},
		{"Acme Technologies", "Acme Technologies"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeManufacturer(tt.in); got != tt.want {
			t.Errorf("NormalizeManufacturer(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizePartNumber(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"part# abc-123", "ABC-123"},
		{"SKU: wsh-8", "WSH-8"},
		{"P/N: 10-ab", "10-AB"},
		{"res-10k", "RES-10K"},
	}
	for _, tt := range tests {
		if got := NormalizePartNumber(tt.in); got != tt.want {
			t.Errorf("NormalizePartNumber(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeUnit(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"pieces", "pcs"},
		{"Pounds", "lbs"},
		{"ml", "mL"},
		{"", "pcs"},
		{"pallet", "pallet"},
	}
	for _, tt := range tests {
		if got := NormalizeUnit(tt.in); got != tt.want {
			t.Errorf("NormalizeUnit(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFromExtracted(t *testing.T) {
	t.Run("model item", func(t *testing.T) {
		it := FromExtracted(extraction.Item{
			Name:         "resistor",
			Quantity:     num(100),
			UnitPrice:    num(0.05),
			PartNumber:   "res-10k",
			Manufacturer: "acme inc",
			Category:     "electronics",
			Tier:         extraction.TierLLM,
		}, "quote.pdf")

		if it.Name != "Resistor" || it.PartNumber != "RES-10K" || it.SKU != "RES-10K" {
			t.Errorf("item = %+v", it)
		}
		if it.TotalPrice == nil || *it.TotalPrice != 5 {
			t.Errorf("TotalPrice = %v, want 5", it.TotalPrice)
		}
		if it.Unit != "pcs" || it.Vendor != "Acme Inc." || it.Category != "Electronics" {
			t.Errorf("item = %+v", it)
		}
		if it.Confidence != ModelConfidence || it.Status != StatusComplete || it.Source != "quote.pdf" {
			t.Errorf("item = %+v", it)
		}
	})

	t.Run("rule item", func(t *testing.T) {
		it := FromExtracted(extraction.Item{
			Description:   "Hex bolt M8",
			Quantity:      num(4),
			TotalPrice:    num(1.2),
			Tier:          extraction.TierRules,
			LowConfidence: true,
		}, "")

		if it.Name != "Hex Bolt M8" || it.Description != "Hex bolt M8" {
			t.Errorf("item = %+v", it)
		}
		if it.UnitPrice == nil || *it.UnitPrice != 0.3 {
			t.Errorf("UnitPrice = %v, want 0.3", it.UnitPrice)
		}
		if it.Confidence != RuleConfidence || !it.LowConfidence {
			t.Errorf("item = %+v", it)
		}
		if it.Category != "Unknown" {
			t.Errorf("Category = %q", it.Category)
		}
	})

	t.Run("large totals", func(t *testing.T) {
		it := FromExtracted(extraction.Item{Name: "turbine", Quantity: num(1e6), UnitPrice: num(2.5e9)}, "")
		if it.TotalPrice == nil || *it.TotalPrice != 2.5e15 {
			t.Errorf("TotalPrice = %v, want 2.5e15", it.TotalPrice)
		}
	})

	t.Run("incomplete", func(t *testing.T) {
		it := FromExtracted(extraction.Item{Name: "gear", Quantity: num(2)}, "")
		if it.Status != StatusIncomplete {
			t.Errorf("Status = %s, want incomplete", it.Status)
		}
	})
}

func TestRound(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0.30000000000000004, 0.3},
		{-1.23456, -1.2346},
		{0, 0},
	}
	for _, tt := range tests {
		if got := round(tt.in); got != tt.want {
			t.Errorf("round(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDeduplicate(t *testing.T) {
	items := []Item{
		{Name: "Resistor", PartNumber: "RES-10K"},
		{Name: "Resistor 10k", PartNumber: "res-10k"},
		{Name: "Bolt", Vendor: "Acme"},
		{Name: "bolt", Vendor: "acme"},
		{Name: "Bolt", Vendor: "Globex"},
	}
	got := Deduplicate(items)
	if len(got) != 3 {
		t.Fatalf("Deduplicate() = %+v, want 3 items", got)
	}
	if got[2].Vendor != "Globex" {
		t.Errorf("order not kept: %+v", got)
	}
}

func testResult() *Result {
	res := NewResult("quote.pdf", "pdf")
	res.Items = []Item{
		FromExtracted(extraction.Item{Name: "resistor", Quantity: num(100), UnitPrice: num(0.05), Tier: extraction.TierLLM}, "quote.pdf"),
		FromExtracted(extraction.Item{Description: "washer", Quantity: num(200), Tier: extraction.TierRules, LowConfidence: true}, "quote.pdf"),
	}
	res.AddWarning("fell back to rules")
	res.Finish(1500 * time.Millisecond)
	return res
}

func TestResultFinish(t *testing.T) {
	res := testResult()
	if res.ID == "" {
		t.Error("ID not set")
	}
	if math.Abs(res.Confidence-0.7) > 1e-9 {
		t.Errorf("Confidence = %v, want 0.7", res.Confidence)
	}
	s := res.Summary
	if s.TotalItems != 2 || s.CompleteItems != 1 || s.IncompleteItems != 1 || s.LowConfidence != 1 {
		t.Errorf("Summary = %+v", s)
	}
	if s.CompletionRate != 0.5 || s.ProcessingTime != 1.5 || s.WarningCount != 1 {
		t.Errorf("Summary = %+v", s)
	}

	empty := NewResult("x", "")
	empty.Finish(0)
	if empty.Confidence != 0 || empty.Summary.CompletionRate != 0 {
		t.Errorf("empty result = %+v", empty)
	}
}

func TestExport(t *testing.T) {
	res := testResult()

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Export(&buf, res, FormatJSON); err != nil {
			t.Fatalf("Export() error = %v", err)
		}
		var got Result
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		if got.ID != res.ID || len(got.Items) != 2 || got.Summary.TotalItems != 2 {
			t.Errorf("decoded = %+v", got)
		}
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Export(&buf, res, FormatYAML); err != nil {
			t.Fatalf("Export() error = %v", err)
		}
		var got map[string]any
		if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		if got["source"] != "quote.pdf" {
			t.Errorf("decoded = %v", got)
		}
	})

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Export(&buf, res, FormatCSV); err != nil {
			t.Fatalf("Export() error = %v", err)
		}
		recs, err := csv.NewReader(&buf).ReadAll()
		if err != nil {
			t.Fatalf("ReadAll() error = %v", err)
		}
		if len(recs) != 3 || recs[0][0] != "Item Name" || recs[1][0] != "Resistor" {
			t.Fatalf("records = %v", recs)
		}
		if recs[1][3] != "100" || recs[1][6] != "5" || recs[2][5] != "" {
			t.Errorf("row values = %v / %v", recs[1], recs[2])
		}
	})

	t.Run("xlsx file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out", "items.xlsx")
		if err := ExportFile(path, res, ""); err != nil {
			t.Fatalf("ExportFile() error = %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		f, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("OpenReader() error = %v", err)
		}
		defer f.Close()

		rows, err := f.GetRows(itemsSheet)
		if err != nil {
			t.Fatalf("GetRows() error = %v", err)
		}
		if len(rows) != 3 || rows[0][0] != "Item Name" || rows[2][0] != "Washer" {
			t.Errorf("rows = %v", rows)
		}
		summary, err := f.GetRows(summarySheet)
		if err != nil {
			t.Fatalf("GetRows() error = %v", err)
		}
		if len(summary) < 3 || summary[2][0] != "Total Items" || summary[2][1] != "2" {
			t.Errorf("summary = %v", summary)
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		if err := ExportFile(filepath.Join(t.TempDir(), "items.txt"), res, ""); err == nil {
			t.Error("ExportFile() expected error for .txt")
		}
	})
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{".yml": FormatYAML, "XLSX": FormatXLSX, "json": FormatJSON, "csv": FormatCSV} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("docx"); err == nil {
		t.Error("ParseFormat(docx) expected error")
	}
}
