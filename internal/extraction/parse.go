package extraction

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/quotient-labs/quotient/internal/providers"
)

//go:embed item_schema.json
var itemSchemaJSON []byte

var (
	itemSchemaOnce sync.Once
	itemSchema     *jsonschema.Schema
	itemSchemaErr  error
)

func compiledItemSchema() (*jsonschema.Schema, error) {
	itemSchemaOnce.Do(func() {
		itemSchema, itemSchemaErr = providers.CompileSchema(itemSchemaJSON)
	})
	return itemSchema, itemSchemaErr
}

// ItemSchema returns the JSON schema each model entry must satisfy.
func ItemSchema() json.RawMessage {
	return json.RawMessage(itemSchemaJSON)
}

// wireItem is the shape the model is asked to return.
type wireItem struct {
	Name         *string  `json:"name"`
	Description  *string  `json:"description"`
	Quantity     *float64 `json:"quantity"`
	Unit         *string  `json:"unit"`
	UnitPrice    *float64 `json:"unit_price"`
	TotalPrice   *float64 `json:"total_price"`
	Category     *string  `json:"category"`
	Manufacturer *string  `json:"manufacturer"`
	PartNumber   *string  `json:"part_number"`
	ItemID       *string  `json:"item_id"`
	SKU          *string  `json:"sku"`
}

func (w wireItem) item() Item {
	it := Item{
		Name:         str(w.Name),
		Description:  str(w.Description),
		Quantity:     w.Quantity,
		Unit:         str(w.Unit),
		UnitPrice:    w.UnitPrice,
		TotalPrice:   w.TotalPrice,
		Category:     str(w.Category),
		Manufacturer: str(w.Manufacturer),
		PartNumber:   firstNonEmpty(str(w.PartNumber), str(w.ItemID), str(w.SKU)),
		Tier:         TierLLM,
	}
	return it
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// parseItems decodes a model response into items. Entries that fail the
// schema are dropped; a response whose entries are all invalid is an error.
// An empty array is a valid empty result. When the response as a whole does
// not decode, the span from the first '[' to its matching ']' is tried.
func parseItems(content string) ([]Item, int, error) {
	items, dropped, err := decodeItems(content)
	if err == nil {
		return items, dropped, nil
	}
	if arr := firstArray(content); arr != "" {
		if arrItems, arrDropped, arrErr := decodeItems(arr); arrErr == nil {
			return arrItems, arrDropped, nil
		}
	}
	return nil, dropped, err
}

func firstArray(content string) string {
	start := strings.IndexByte(content, '[')
	if start < 0 {
		return ""
	}
	return providers.MatchBracket(content[start:])
}

func decodeItems(content string) ([]Item, int, error) {
	raw, err := providers.ParseStructuredJSON(content)
	if err != nil {
		return nil, 0, &MalformedOutputError{Reason: "no JSON found", Output: snippet(content), Err: err}
	}

	entries, err := entriesOf(raw)
	if err != nil {
		return nil, 0, &MalformedOutputError{Reason: "not a JSON array", Output: snippet(content), Err: err}
	}
	items := make([]Item, 0, len(entries))
	if len(entries) == 0 {
		return items, 0, nil
	}

	schema, err := compiledItemSchema()
	if err != nil {
		return nil, 0, fmt.Errorf("item schema: %w", err)
	}

	dropped := 0
	for _, entry := range entries {
		var doc any
		if err := json.Unmarshal(entry, &doc); err != nil {
			dropped++
			continue
		}
		if err := schema.Validate(doc); err != nil {
			dropped++
			continue
		}
		var w wireItem
		if err := json.Unmarshal(entry, &w); err != nil {
			dropped++
			continue
		}
		it := w.item()
		if !it.valid() {
			dropped++
			continue
		}
		items = append(items, it)
	}

	if len(items) == 0 {
		return nil, dropped, &MalformedOutputError{
			Reason: fmt.Sprintf("all %d entries failed validation", len(entries)),
			Output: snippet(content),
		}
	}
	return items, dropped, nil
}

// entriesOf accepts a top-level array, an {"items": [...]} wrapper, or a
// single item object.
func entriesOf(raw json.RawMessage) ([]json.RawMessage, error) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var entries []json.RawMessage
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, err
		}
		return entries, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	if inner, ok := obj["items"]; ok {
		var entries []json.RawMessage
		if err := json.Unmarshal(inner, &entries); err != nil {
			return nil, err
		}
		return entries, nil
	}
	return []json.RawMessage{raw}, nil
}
