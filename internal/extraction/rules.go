package extraction

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/quotient-labs/quotient/internal/preprocess"
)

const minRecordLen = 5

var (
	unitPattern = `pcs?|pieces?|units?|items?|kg|lbs?|meters?|m|cm|mm`

	labeledQtyRe = regexp.MustCompile(`(?i)\b(?:qty|quantity)\b\.?\s*[:=#]?\s*(\d+(?:\.\d+)?)(?:\s*(` + unitPattern + `)\b)?`)
	// Go regexp has no lookbehind, so the prefix group stands in for \b
	// and rejects numbers that continue a price or decimal.
	suffixQtyRe = regexp.MustCompile(`(?i)(?:^|[^\w$.,])(\d+)\s*(` + unitPattern + `)\b`)

	priceRe       = regexp.MustCompile(`(?i)\$\s*(\d+(?:,\d{3})*(?:\.\d+)?)(\s*(?:each|ea\b\.?|per\s+(?:unit|piece|pc)\b|/\s*(?:ea|unit|pc)\b))?`)
	priceLabelRe  = regexp.MustCompile(`(?i)\b(total(?:\s+price)?|unit\s+price|price|cost)\s*[:=]?\s*$`)
	labeledPartRe = regexp.MustCompile(`(?i)\b(?:part\s*(?:number|no\.?|#)|item[_ ]?id|sku|p/n)\s*[:#=]?\s*([a-z0-9][a-z0-9\-_/.]*[a-z0-9])`)

	partShapes = []*regexp.Regexp{
		regexp.MustCompile(`\b[A-Z]{2,}\d+[A-Z0-9]*\b`),
		regexp.MustCompile(`\b\d+[A-Z]{2,}\d*\b`),
		regexp.MustCompile(`\b[A-Z]+-\d+\b`),
		regexp.MustCompile(`\b\d+-[A-Z]+\b`),
	}

	manufacturerShapes = []*regexp.Regexp{
		regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*\s+(?:Inc|Corp|LLC|Ltd|Company|Co)\b\.?`),
		regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*\s+(?:Technologies|Systems|Solutions|Group)\b`),
	}

	separatorRe = regexp.MustCompile(`^[\s\-=_*|+:~.#]+$`)
)

type categoryRule struct {
	name string
	re   *regexp.Regexp
}

// categoryRules are checked in order; the first match wins.
var categoryRules = []categoryRule{
	{"electronics", keywordRe("circuit", "board", "chip", "resistor", "capacitor", "diode")},
	{"mechanical", keywordRe("bolt", "nut", "screw", "bearing", "gear", "pump")},
	{"chemical", keywordRe("chemical", "acid", "base", "solvent", "reagent")},
	{"office", keywordRe("paper", "pen", "pencil", "folder", "binder")},
	{"tools", keywordRe("wrench", "screwdriver", "hammer", "drill", "saw")},
}

func keywordRe(words ...string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(words, "|") + `)(?:s|es)?\b`)
}

// Categorize maps text to a category by keyword, or "".
func Categorize(text string) string {
	for _, rule := range categoryRules {
		if rule.re.MatchString(text) {
			return rule.name
		}
	}
	return ""
}

// RuleExtractor pulls items out of text with fixed patterns. It never
// fails; text with no recognizable items yields an empty slice.
type RuleExtractor struct{}

// Extract returns the items found in text, in source order.
func (RuleExtractor) Extract(text string) []Item {
	items := []Item{}
	var table *tableHeader

	for _, rec := range records(text) {
		if rec.block {
			table = nil
		} else {
			if strings.HasPrefix(rec.text, "Sheet:") {
				table = nil
				continue
			}
			if skipLine(rec.text) {
				continue
			}
			if isTableRow(rec.text) {
				if table == nil {
					if h := parseTableHeader(rec.text); h != nil {
						table = h
						continue
					}
				} else if it, ok := table.item(rec.text); ok {
					items = append(items, it)
					continue
				}
			} else {
				table = nil
			}
		}

		if it, ok := extractRecord(rec.text); ok {
			items = append(items, it)
		}
	}
	return items
}

type record struct {
	text  string
	block bool
}

// records splits text into lines, or into blocks when item boundary
// markers are present.
func records(text string) []record {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	hasMarker := false
	for _, l := range lines {
		if strings.TrimSpace(l) == preprocess.ItemBoundary {
			hasMarker = true
			break
		}
	}

	var out []record
	if !hasMarker {
		for _, l := range lines {
			if l = strings.TrimSpace(l); l != "" {
				out = append(out, record{text: l})
			}
		}
		return out
	}

	var block []string
	flush := func() {
		if len(block) > 0 {
			out = append(out, record{text: strings.Join(block, " - "), block: true})
			block = nil
		}
	}
	for _, l := range lines {
		l = strings.TrimSpace(l)
		switch {
		case l == preprocess.ItemBoundary:
			flush()
		case l == "" || skipLine(l):
		default:
			block = append(block, l)
		}
	}
	flush()
	return out
}

func skipLine(l string) bool {
	return utf8.RuneCountInString(l) < minRecordLen ||
		strings.HasPrefix(l, "#") ||
		separatorRe.MatchString(l)
}

// extractRecord applies the patterns to one record. Matched spans are
// blanked out of a working copy so later patterns and the description
// only see unclaimed text.
func extractRecord(rec string) (Item, bool) {
	if skipLine(rec) {
		return Item{}, false
	}

	work := []byte(rec)
	blank := func(start, end int) {
		for i := start; i < end; i++ {
			work[i] = ' '
		}
	}

	it := Item{Tier: TierRules, LowConfidence: true}

	// Quantity.
	if m := labeledQtyRe.FindSubmatchIndex(work); m != nil {
		it.Quantity = parseNumber(rec[m[2]:m[3]])
		if m[4] >= 0 {
			it.Unit = strings.ToLower(rec[m[4]:m[5]])
		}
		blank(m[0], m[1])
	} else if m := suffixQtyRe.FindSubmatchIndex(work); m != nil {
		it.Quantity = parseNumber(rec[m[2]:m[3]])
		it.Unit = strings.ToLower(rec[m[4]:m[5]])
		blank(m[2], m[5])
	}

	// Prices. A "total" label marks the total; otherwise the first price
	// is the unit price.
	for _, m := range priceRe.FindAllSubmatchIndex(work, -1) {
		value := parseNumber(strings.ReplaceAll(rec[m[2]:m[3]], ",", ""))
		start := m[0]
		isTotal := false
		if lm := priceLabelRe.FindStringSubmatchIndex(string(work[:start])); lm != nil {
			isTotal = strings.HasPrefix(strings.ToLower(rec[lm[2]:lm[3]]), "total")
			start = lm[0]
		}
		switch {
		case isTotal && it.TotalPrice == nil:
			it.TotalPrice = value
		case !isTotal && it.UnitPrice == nil:
			it.UnitPrice = value
		default:
			continue
		}
		blank(start, m[1])
	}

	// Identifier: labeled first, then by shape.
	if m := labeledPartRe.FindSubmatchIndex(work); m != nil {
		it.PartNumber = strings.ToUpper(rec[m[2]:m[3]])
		blank(m[0], m[1])
	} else {
		for _, re := range partShapes {
			if m := re.FindIndex(work); m != nil {
				it.PartNumber = rec[m[0]:m[1]]
				blank(m[0], m[1])
				break
			}
		}
	}

	for _, re := range manufacturerShapes {
		if m := re.FindIndex(work); m != nil {
			it.Manufacturer = rec[m[0]:m[1]]
			blank(m[0], m[1])
			break
		}
	}

	it.Category = Categorize(rec)
	it.Description = describe(string(work))

	if it.Description == "" || it.fieldCount() < 2 || !it.valid() {
		return Item{}, false
	}
	return it, true
}

// describe collapses whitespace and trims separator tokens left behind by
// removed spans.
func describe(s string) string {
	fields := strings.Fields(s)
	cleaned := fields[:0]
	for _, f := range fields {
		if isPunct(f) && (len(cleaned) == 0 || isPunct(cleaned[len(cleaned)-1])) {
			continue
		}
		cleaned = append(cleaned, f)
	}
	for len(cleaned) > 0 && isPunct(cleaned[len(cleaned)-1]) {
		cleaned = cleaned[:len(cleaned)-1]
	}
	desc := strings.Join(cleaned, " ")
	desc = strings.TrimRight(desc, ",;:")
	if utf8.RuneCountInString(desc) <= 3 {
		return ""
	}
	return desc
}

func isPunct(s string) bool {
	for _, r := range s {
		if !unicode.IsPunct(r) && !unicode.IsSymbol(r) {
			return false
		}
	}
	return true
}

// parseNumber parses a plain or currency-formatted number.
func parseNumber(s string) *float64 {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return ptr(v)
}
