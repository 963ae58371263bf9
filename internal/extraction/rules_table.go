package extraction

import (
	"strings"
)

// TableSeparator joins cells of spreadsheet rows in ingested text.
const TableSeparator = " | "

type column int

const (
	colIgnore column = iota
	colName
	colDescription
	colQuantity
	colUnit
	colUnitPrice
	colTotalPrice
	colPartNumber
	colManufacturer
	colCategory
)

var headerAliases = map[string]column{
	"name":         colName,
	"item":         colName,
	"item name":    colName,
	"product":      colName,
	"product name": colName,
	"part name":    colName,

	"description": colDescription,
	"desc":        colDescription,
	"details":     colDescription,

	"quantity": colQuantity,
	"qty":      colQuantity,
	"count":    colQuantity,
	"units":    colQuantity,
	"pcs":      colQuantity,
	"pieces":   colQuantity,

	"unit": colUnit,
	"uom":  colUnit,

	"unit price": colUnitPrice,
	"price":      colUnitPrice,
	"unit cost":  colUnitPrice,
	"cost":       colUnitPrice,
	"price each": colUnitPrice,

	"total":          colTotalPrice,
	"total price":    colTotalPrice,
	"extended price": colTotalPrice,
	"line total":     colTotalPrice,
	"amount":         colTotalPrice,

	"part number":  colPartNumber,
	"part #":       colPartNumber,
	"part no":      colPartNumber,
	"part no.":     colPartNumber,
	"sku":          colPartNumber,
	"item_id":      colPartNumber,
	"item id":      colPartNumber,
	"item code":    colPartNumber,
	"product code": colPartNumber,
	"id":           colPartNumber,
	"code":         colPartNumber,

	"manufacturer": colManufacturer,
	"vendor":       colManufacturer,
	"supplier":     colManufacturer,
	"brand":        colManufacturer,
	"mfg":          colManufacturer,
	"mfr":          colManufacturer,

	"category": colCategory,
	"type":     colCategory,
	"class":    colCategory,
}

type tableHeader struct {
	columns []column
}

func isTableRow(line string) bool {
	return strings.Contains(line, TableSeparator)
}

func splitRow(line string) []string {
	cells := strings.Split(line, TableSeparator)
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}
	return cells
}

// parseTableHeader recognizes a header row. At least two cells must name
// known columns, one of them a label column.
func parseTableHeader(line string) *tableHeader {
	cells := splitRow(line)
	h := &tableHeader{columns: make([]column, len(cells))}
	known := 0
	hasLabel := false
	for i, c := range cells {
		col := headerAliases[strings.ToLower(strings.TrimSuffix(c, ":"))]
		h.columns[i] = col
		if col != colIgnore {
			known++
		}
		if col == colName || col == colDescription {
			hasLabel = true
		}
	}
	if known < 2 || !hasLabel {
		return nil
	}
	return h
}

// item maps a data row through the header.
func (h *tableHeader) item(line string) (Item, bool) {
	cells := splitRow(line)
	// Short rows had trailing empty cells trimmed.
	if len(cells) > len(h.columns) {
		return Item{}, false
	}

	it := Item{Tier: TierRules, LowConfidence: true}
	for i, cell := range cells {
		if cell == "" {
			continue
		}
		switch h.columns[i] {
		case colName:
			it.Name = cell
		case colDescription:
			it.Description = cell
		case colQuantity:
			it.Quantity = parseNumber(cell)
		case colUnit:
			it.Unit = strings.ToLower(cell)
		case colUnitPrice:
			it.UnitPrice = parseNumber(cell)
		case colTotalPrice:
			it.TotalPrice = parseNumber(cell)
		case colPartNumber:
			it.PartNumber = cell
		case colManufacturer:
			it.Manufacturer = cell
		case colCategory:
			it.Category = strings.ToLower(cell)
		}
	}
	if it.Category == "" {
		it.Category = Categorize(line)
	}

	if it.fieldCount() < 2 || !it.valid() {
		return Item{}, false
	}
	return it, true
}
