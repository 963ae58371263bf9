// Package extraction turns document text into inventory items.
//
// Extraction runs in two tiers. The primary tier prompts a language model
// for a JSON array of items and validates every entry against a strict
// schema. When the model is unavailable, times out, or returns unusable
// output, a rule-based extractor runs over the raw text instead. Items
// produced by the rules are flagged as low confidence.
package extraction

// Tier identifies which extractor produced an item.
type Tier string

const (
	TierLLM   Tier = "llm"
	TierRules Tier = "rules"
)

// Item is a single extracted inventory entry. Optional numeric fields are
// nil when the source did not state them.
type Item struct {
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	Quantity   *float64 `json:"quantity,omitempty" yaml:"quantity,omitempty"`
	Unit       string   `json:"unit,omitempty" yaml:"unit,omitempty"`
	UnitPrice  *float64 `json:"unit_price,omitempty" yaml:"unit_price,omitempty"`
	TotalPrice *float64 `json:"total_price,omitempty" yaml:"total_price,omitempty"`

	// PartNumber is the item identifier (part number, SKU, item code).
	PartNumber   string `json:"part_number,omitempty" yaml:"part_number,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty" yaml:"manufacturer,omitempty"`
	Category     string `json:"category,omitempty" yaml:"category,omitempty"`

	Tier          Tier `json:"tier" yaml:"tier"`
	LowConfidence bool `json:"low_confidence" yaml:"low_confidence"`
}

// Label returns the name, or the description when there is no name.
func (i Item) Label() string {
	if i.Name != "" {
		return i.Name
	}
	return i.Description
}

// fieldCount counts populated fields the way the rule extractor scores a
// candidate record.
func (i Item) fieldCount() int {
	n := 0
	for _, s := range []string{i.Name, i.Description, i.Unit, i.PartNumber, i.Manufacturer, i.Category} {
		if s != "" {
			n++
		}
	}
	for _, f := range []*float64{i.Quantity, i.UnitPrice, i.TotalPrice} {
		if f != nil {
			n++
		}
	}
	return n
}

// valid reports whether the item has a label and sane numbers.
func (i Item) valid() bool {
	if i.Name == "" && i.Description == "" {
		return false
	}
	if i.Quantity != nil && *i.Quantity <= 0 {
		return false
	}
	if i.UnitPrice != nil && *i.UnitPrice < 0 {
		return false
	}
	if i.TotalPrice != nil && *i.TotalPrice < 0 {
		return false
	}
	return true
}

func ptr(v float64) *float64 {
	return &v
}
