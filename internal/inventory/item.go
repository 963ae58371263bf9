// Package inventory normalizes extracted items into inventory records and
// exports processing results.
package inventory

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/quotient-labs/quotient/internal/extraction"
)

// Status is the completeness of an inventory item.
type Status string

const (
	StatusPending    Status = "pending"
	StatusComplete   Status = "complete"
	StatusIncomplete Status = "incomplete"
)

// UnknownName is used when an item has neither a name nor a description.
const UnknownName = "Unknown Item"

// Item is a normalized inventory record.
type Item struct {
	Name        string   `json:"item_name" yaml:"item_name"`
	PartNumber  string   `json:"part_number,omitempty" yaml:"part_number,omitempty"`
	SKU         string   `json:"sku,omitempty" yaml:"sku,omitempty"`
	Quantity    *float64 `json:"quantity,omitempty" yaml:"quantity,omitempty"`
	Unit        string   `json:"unit,omitempty" yaml:"unit,omitempty"`
	UnitPrice   *float64 `json:"unit_price,omitempty" yaml:"unit_price,omitempty"`
	TotalPrice  *float64 `json:"total_price,omitempty" yaml:"total_price,omitempty"`
	Vendor      string   `json:"vendor_name,omitempty" yaml:"vendor_name,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Category    string   `json:"category,omitempty" yaml:"category,omitempty"`

	Source        string          `json:"source_document,omitempty" yaml:"source_document,omitempty"`
	Confidence    float64         `json:"extraction_confidence" yaml:"extraction_confidence"`
	Tier          extraction.Tier `json:"tier" yaml:"tier"`
	LowConfidence bool            `json:"low_confidence" yaml:"low_confidence"`
	Status        Status          `json:"status" yaml:"status"`
}

// Confidence scores by extraction tier.
const (
	ModelConfidence = 0.9
	RuleConfidence  = 0.5
)

// FromExtracted normalizes an extracted item.
func FromExtracted(it extraction.Item, source string) Item {
	name := it.Name
	if name == "" {
		name = it.Description
	}

	out := Item{
		Name:          NormalizeName(name),
		PartNumber:    NormalizePartNumber(it.PartNumber),
		Quantity:      it.Quantity,
		UnitPrice:     it.UnitPrice,
		TotalPrice:    it.TotalPrice,
		Vendor:        NormalizeManufacturer(it.Manufacturer),
		Description:   NormalizeDescription(it.Description),
		Category:      NormalizeCategory(it.Category),
		Source:        source,
		Tier:          it.Tier,
		LowConfidence: it.LowConfidence,
	}
	out.SKU = out.PartNumber
	if it.Unit != "" || it.Quantity != nil {
		out.Unit = NormalizeUnit(it.Unit)
	}

	out.Confidence = ModelConfidence
	if it.LowConfidence {
		out.Confidence = RuleConfidence
	}

	out.derivePrices()
	out.Status = out.status()
	return out
}

// derivePrices fills a missing unit or total price from the other.
func (it *Item) derivePrices() {
	if it.Quantity == nil || *it.Quantity <= 0 {
		return
	}
	q := *it.Quantity
	switch {
	case it.UnitPrice != nil && it.TotalPrice == nil:
		v := round(*it.UnitPrice * q)
		it.TotalPrice = &v
	case it.TotalPrice != nil && it.UnitPrice == nil:
		v := round(*it.TotalPrice / q)
		it.UnitPrice = &v
	}
}

// round trims float noise to a hundredth of a cent.
func round(v float64) float64 {
	const scale = 10000
	return math.Round(v*scale) / scale
}

// IsComplete reports whether an item has a name and at least two of
// quantity, unit price and vendor.
func (it Item) IsComplete() bool {
	if it.Name == "" || it.Name == UnknownName {
		return false
	}
	important := 0
	if it.Quantity != nil {
		important++
	}
	if it.UnitPrice != nil {
		important++
	}
	if it.Vendor != "" {
		important++
	}
	return important >= 2
}

func (it Item) status() Status {
	if it.IsComplete() {
		return StatusComplete
	}
	return StatusIncomplete
}

var namePrefixes = []string{"item:", "product:", "part:", "sku:"}

// NormalizeName collapses whitespace, strips label prefixes and capitalizes
// each word. Letters after the first are left alone so part codes such as
// "10kΩ" keep their case.
func NormalizeName(name string) string {
	name = collapse(name)
	for _, p := range namePrefixes {
		if len(name) >= len(p) && strings.EqualFold(name[:len(p)], p) {
			name = strings.TrimSpace(name[len(p):])
		}
	}
	if name == "" {
		return UnknownName
	}

	words := strings.Fields(name)
	for i, w := range words {
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ")
}

// NormalizeDescription collapses whitespace and repeated ! and ? marks.
func NormalizeDescription(desc string) string {
	desc = collapse(desc)
	for _, mark := range []string{"!", "?"} {
		for strings.Contains(desc, mark+mark) {
			desc = strings.ReplaceAll(desc, mark+mark, mark)
		}
	}
	return desc
}

type categoryAlias struct {
	alias, canonical string
}

// categoryAliases are ordered; partial matches take the first hit.
var categoryAliases = []categoryAlias{
	{"electronics", "Electronics"},
	{"electronic", "Electronics"},
	{"electrical", "Electronics"},
	{"mechanical", "Mechanical"},
	{"mech", "Mechanical"},
	{"chemical", "Chemical"},
	{"chem", "Chemical"},
	{"office", "Office Supplies"},
	{"office supplies", "Office Supplies"},
	{"tools", "Tools"},
	{"tool", "Tools"},
	{"hardware", "Hardware"},
	{"software", "Software"},
	{"raw materials", "Raw Materials"},
	{"raw material", "Raw Materials"},
	{"finished goods", "Finished Goods"},
	{"finished good", "Finished Goods"},
	{"packaging", "Packaging"},
	{"misc", "Miscellaneous"},
	{"miscellaneous", "Miscellaneous"},
	{"other", "Miscellaneous"},
	{"unknown", "Unknown"},
}

// NormalizeCategory maps a category onto the canonical set. Unmatched
// categories are capitalized; an empty category is "Unknown".
func NormalizeCategory(category string) string {
	lower := strings.ToLower(collapse(category))
	if lower == "" {
		return "Unknown"
	}
	for _, a := range categoryAliases {
		if lower == a.alias {
			return a.canonical
		}
	}
	for _, a := range categoryAliases {
		if strings.Contains(lower, a.alias) || (len(lower) >= 3 && strings.Contains(a.alias, lower)) {
			return a.canonical
		}
	}
	return NormalizeName(category)
}

var companySuffixes = map[string]string{
	"inc":          "Inc.",
	"incorporated": "Inc.",
	"corp":         "Corp.",
	"corporation":  "Corp.",
	"llc":          "LLC",
	"ltd":          "Ltd.",
	"limited":      "Ltd.",
	"co":           "Co.",
	"company":      "Co.",
}

// NormalizeManufacturer capitalizes a company name and standardizes its
// legal suffix.
func NormalizeManufacturer(name string) string {
	words := strings.Fields(name)
	for i, w := range words {
		key := strings.ToLower(strings.TrimRight(w, ".,"))
		if s, ok := companySuffixes[key]; ok && i > 0 {
			words[i] = s
			continue
		}
		words[i] = capitalize(strings.TrimRight(w, ","))
	}
	return strings.Join(words, " ")
}

var partPrefixes = []string{"PART#", "PART #", "PART:", "P/N", "SKU:", "SKU#", "SKU #", "ITEM#", "ITEM:"}

// NormalizePartNumber upper-cases a part number and strips label prefixes.
func NormalizePartNumber(pn string) string {
	pn = strings.ToUpper(collapse(pn))
	for _, p := range partPrefixes {
		if strings.HasPrefix(pn, p) {
			pn = strings.TrimSpace(strings.TrimLeft(pn[len(p):], ":#"))
		}
	}
	return pn
}

var unitAliases = map[string]string{
	"pc": "pcs", "pcs": "pcs", "piece": "pcs", "pieces": "pcs",
	"unit": "pcs", "units": "pcs", "item": "pcs", "items": "pcs",
	"ea": "pcs", "each": "pcs",
	"kg": "kg", "kilogram": "kg", "kilograms": "kg",
	"lb": "lbs", "lbs": "lbs", "pound": "lbs", "pounds": "lbs",
	"g": "g", "gram": "g", "grams": "g",
	"m": "m", "meter": "m", "meters": "m",
	"cm": "cm", "centimeter": "cm", "centimeters": "cm",
	"mm": "mm", "millimeter": "mm", "millimeters": "mm",
	"l": "L", "liter": "L", "liters": "L",
	"ml": "mL", "milliliter": "mL", "milliliters": "mL",
	"box": "box", "boxes": "box",
	"pack": "pack", "packs": "pack",
	"bottle": "bottle", "bottles": "bottle",
	"can": "can", "cans": "can",
	"roll": "roll", "rolls": "roll",
	"sheet": "sheet", "sheets": "sheet",
}

// NormalizeUnit maps a unit of measure to its short form. An empty unit
// is pieces; unknown units are returned unchanged.
func NormalizeUnit(unit string) string {
	unit = strings.TrimSpace(unit)
	if unit == "" {
		return "pcs"
	}
	if u, ok := unitAliases[strings.ToLower(unit)]; ok {
		return u
	}
	return unit
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func capitalize(w string) string {
	r, size := utf8.DecodeRuneInString(w)
	if r == utf8.RuneError {
		return w
	}
	return string(unicode.ToUpper(r)) + w[size:]
}

// Deduplicate drops items that repeat an earlier part number, or an
// earlier name and vendor when there is no part number. Order is kept.
func Deduplicate(items []Item) []Item {
	seen := make(map[string]bool, len(items))
	out := make([]Item, 0, len(items))
	for _, it := range items {
		key := "pn:" + strings.ToLower(it.PartNumber)
		if it.PartNumber == "" {
			key = "nv:" + strings.ToLower(it.Name) + "|" + strings.ToLower(it.Vendor)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, it)
	}
	return out
}
