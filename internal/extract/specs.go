package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/medicalexcom/medx-ingest-api-sub000/internal/textutil"
)

// specKeySynonyms maps normalized key phrases to their canonical spec
// key. Lookup happens after lowercasing and punctuation stripping, so
// entries are written space-separated.
var specKeySynonyms = map[string]string{
	"weight capacity":         "weight_capacity",
	"max weight capacity":     "weight_capacity",
	"maximum weight capacity": "weight_capacity",
	"wt capacity":             "weight_capacity",
	"capacity":                "weight_capacity",
	"overall width":           "overall_width",
	"width":                   "overall_width",
	"overall height":          "overall_height",
	"height":                  "overall_height",
	"overall depth":           "overall_depth",
	"depth":                   "overall_depth",
	"overall length":          "overall_depth",
	"length":                  "overall_depth",
	"overall dimensions":      "dimensions",
	"product dimensions":      "dimensions",
	"dimensions":              "dimensions",
	"seat width":              "seat_width",
	"seat height":             "seat_height",
	"seat depth":              "seat_depth",
	"product weight":          "product_weight",
	"item weight":             "product_weight",
	"unit weight":             "product_weight",
	"shipping weight":         "shipping_weight",
	"ship weight":             "shipping_weight",
	"colour":                  "color",
	"color":                   "color",
	"material":                "material",
	"warranty":                "warranty",
	"limited warranty":        "warranty",
	"item number":             "sku",
	"item no":                 "sku",
	"model number":            "sku",
	"model no":                "sku",
	"part number":             "sku",
	"sku":                     "sku",
	"upc":                     "upc",
	"hcpcs":                   "hcpcs_code",
	"hcpcs code":              "hcpcs_code",
}

var nonKeyRunes = regexp.MustCompile(`[^a-z0-9]+`)

// CanonicalizeSpecKey normalizes a specification name: synonym-table
// lookup first, otherwise lowercase, strip punctuation, underscore-join.
// Idempotent: a canonical key maps to itself.
func CanonicalizeSpecKey(key string) string {
	normalized := strings.TrimSpace(nonKeyRunes.ReplaceAllString(strings.ToLower(key), " "))
	if normalized == "" {
		return ""
	}
	if canon, ok := specKeySynonyms[normalized]; ok {
		return canon
	}
	return strings.ReplaceAll(normalized, " ", "_")
}

// unitReplacements standardize pluralized and long-form unit words.
// Applied on word boundaries, longest phrases first.
var unitReplacements = []struct {
	pattern *regexp.Regexp
	abbrev  string
}{
	{regexp.MustCompile(`(?i)\b(pounds|pound|lbs\.|lb\.)\b`), "lbs"},
	{regexp.MustCompile(`(?i)\b(inches|inch|in\.)\b`), "in"},
	{regexp.MustCompile(`(?i)\b(centimeters|centimetres|cm\.)\b`), "cm"},
	{regexp.MustCompile(`(?i)\b(millimeters|millimetres|mm\.)\b`), "mm"},
	{regexp.MustCompile(`(?i)\b(kilograms|kilogram|kgs)\b`), "kg"},
	{regexp.MustCompile(`(?i)\b(ounces|ounce|oz\.)\b`), "oz"},
	{regexp.MustCompile(`(?i)\b(feet|foot|ft\.)\b`), "ft"},
	{regexp.MustCompile(`(?i)\b(grams|gram)\b`), "g"},
}

// NormalizeUnits rewrites unit words in a spec value to standard
// abbreviations and tidies whitespace.
func NormalizeUnits(value string) string {
	out := textutil.NormalizeWhitespace(value)
	for _, r := range unitReplacements {
		out = r.pattern.ReplaceAllString(out, r.abbrev)
	}
	return out
}

// partsTableHeaderWords flag order-form tables that numeric heuristics
// would otherwise misread as spec tables.
var partsTableHeaderWords = []string{"qty", "quantity", "part no", "part number", "order no", "order number", "item #", "price", "add to cart"}

// partsResidueKeys are order-form columns removed from merged specs
// when a parts table leaked through.
var partsResidueKeys = map[string]struct{}{
	"qty":        {},
	"quantity":   {},
	"order_no":   {},
	"price_each": {},
	"each":       {},
}

// minUsefulSpecs is the threshold for a strategy to win outright.
const minUsefulSpecs = 2

// HarvestSpecs extracts key/value specifications from the DOM. Four
// strategies run in order of trust; the first with non-trivial output
// wins, otherwise their union is returned with earlier strategies
// winning collisions. Script-JSON specs are collected separately by
// ScriptJSONSpecs and merged by the caller at lower precedence than
// structured data but above this harvest.
func HarvestSpecs(d *Document) map[string]string {
	labelled := specsFromLabelledTab(d)
	if len(labelled) >= minUsefulSpecs {
		return labelled
	}
	densest := specsFromDensestPanel(d)
	if len(densest) >= minUsefulSpecs {
		return densest
	}
	swept := specsFromGlobalSweep(d)
	if len(swept) >= minUsefulSpecs {
		return swept
	}
	fallback := specsFromProse(d)
	if len(fallback) >= minUsefulSpecs {
		return fallback
	}

	union := map[string]string{}
	for _, m := range []map[string]string{labelled, densest, swept, fallback} {
		for k, v := range m {
			if _, taken := union[k]; !taken {
				union[k] = v
			}
		}
	}
	return union
}

// specsFromLabelledTab resolves a tab pane labelled "specification(s)"
// by href fragment or aria-controls and parses it.
var specTabLabel = regexp.MustCompile(`(?i)^\s*(technical\s+)?specifications?\s*$`)

func specsFromLabelledTab(d *Document) map[string]string {
	specs := map[string]string{}
	d.Find(`a[href^='#'], [role='tab'], button, .tab, .tab-title, .accordion-title`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !specTabLabel.MatchString(s.Text()) {
			return true
		}
		var pane *goquery.Selection
		if href, ok := s.Attr("href"); ok && strings.HasPrefix(href, "#") && len(href) > 1 {
			pane = d.Find("#" + cssEscapeID(href[1:]))
		} else if target, ok := s.Attr("aria-controls"); ok && target != "" {
			pane = d.Find("#" + cssEscapeID(target))
		} else {
			pane = s.Parent().Next()
		}
		if pane == nil || pane.Length() == 0 {
			return true
		}
		collectSpecsFrom(d, pane, specs)
		return len(specs) < minUsefulSpecs
	})
	return specs
}

var idEscaper = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

func cssEscapeID(id string) string {
	return idEscaper.ReplaceAllString(id, "")
}

// specsFromDensestPanel scores tab/accordion/section panels by how many
// key/value-shaped rows they contain and parses the densest one.
func specsFromDensestPanel(d *Document) map[string]string {
	var best *goquery.Selection
	bestScore := 0
	d.Find(".tab-content > div, .tab-pane, .accordion-item, .accordion-content, section, .panel").Each(func(_ int, s *goquery.Selection) {
		if ScoreByContext(d, s, false) <= hardReject {
			return
		}
		score := keyValueDensity(s)
		if score > bestScore {
			bestScore = score
			best = s
		}
	})
	specs := map[string]string{}
	if best != nil && bestScore >= minUsefulSpecs {
		collectSpecsFrom(d, best, specs)
	}
	return specs
}

func keyValueDensity(s *goquery.Selection) int {
	count := 0
	s.Find("tr").Each(func(_ int, row *goquery.Selection) {
		if _, _, ok := rowKeyValue(row); ok {
			count++
		}
	})
	count += s.Find("dl dt").Length()
	s.Find("li").Each(func(_ int, li *goquery.Selection) {
		if _, _, ok := textutil.LooksLikeKeyValue(li.Text()); ok {
			count++
		}
	})
	return count
}

// specsFromGlobalSweep parses every table and definition list outside
// chrome, recommendation blocks, and parts/accessory order tables.
func specsFromGlobalSweep(d *Document) map[string]string {
	specs := map[string]string{}
	d.Find("table").Each(func(_ int, table *goquery.Selection) {
		if ScoreByContext(d, table, false) <= hardReject {
			return
		}
		if isPartsTable(table) {
			return
		}
		parseSpecTable(table, specs)
	})
	d.Find("dl").Each(func(_ int, dl *goquery.Selection) {
		if ScoreByContext(d, dl, false) <= hardReject {
			return
		}
		parseDefinitionList(dl, specs)
	})
	return specs
}

// specsFromProse is the last-ditch pass over paragraphs and list items
// matching a "Key: Value" shape.
func specsFromProse(d *Document) map[string]string {
	specs := map[string]string{}
	d.Find("li, p").Each(func(_ int, s *goquery.Selection) {
		if ScoreByContext(d, s, false) <= hardReject {
			return
		}
		key, value, ok := textutil.LooksLikeKeyValue(s.Text())
		if !ok {
			return
		}
		canon := CanonicalizeSpecKey(key)
		if canon == "" {
			return
		}
		if _, taken := specs[canon]; !taken {
			specs[canon] = NormalizeUnits(value)
		}
	})
	return specs
}

func collectSpecsFrom(d *Document, pane *goquery.Selection, specs map[string]string) {
	pane.Find("table").Each(func(_ int, table *goquery.Selection) {
		if !isPartsTable(table) {
			parseSpecTable(table, specs)
		}
	})
	pane.Find("dl").Each(func(_ int, dl *goquery.Selection) {
		parseDefinitionList(dl, specs)
	})
	pane.Find("li").Each(func(_ int, li *goquery.Selection) {
		if key, value, ok := textutil.LooksLikeKeyValue(li.Text()); ok {
			canon := CanonicalizeSpecKey(key)
			if _, taken := specs[canon]; canon != "" && !taken {
				specs[canon] = NormalizeUnits(value)
			}
		}
	})
}

func parseSpecTable(table *goquery.Selection, specs map[string]string) {
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		key, value, ok := rowKeyValue(row)
		if !ok {
			return
		}
		canon := CanonicalizeSpecKey(key)
		if canon == "" {
			return
		}
		if _, taken := specs[canon]; !taken {
			specs[canon] = NormalizeUnits(value)
		}
	})
}

// rowKeyValue reads a two-cell row as a key/value pair; th/td and td/td
// layouts both count. Rows with more cells are not spec rows.
func rowKeyValue(row *goquery.Selection) (key, value string, ok bool) {
	cells := row.Find("th, td")
	if cells.Length() != 2 {
		return "", "", false
	}
	key = textutil.NormalizeWhitespace(cells.First().Text())
	value = textutil.NormalizeWhitespace(cells.Last().Text())
	if key == "" || value == "" || len(key) > 60 {
		return "", "", false
	}
	return key, value, true
}

func parseDefinitionList(dl *goquery.Selection, specs map[string]string) {
	terms := dl.Find("dt")
	defs := dl.Find("dd")
	if terms.Length() == 0 || terms.Length() != defs.Length() {
		return
	}
	terms.Each(func(i int, dt *goquery.Selection) {
		key := textutil.NormalizeWhitespace(dt.Text())
		value := textutil.NormalizeWhitespace(defs.Eq(i).Text())
		canon := CanonicalizeSpecKey(key)
		if canon == "" || key == "" || value == "" {
			return
		}
		if _, taken := specs[canon]; !taken {
			specs[canon] = NormalizeUnits(value)
		}
	})
}

// isPartsTable flags accessory/order tables by header keywords and by a
// numeric-leaning first column.
func isPartsTable(table *goquery.Selection) bool {
	header := strings.ToLower(textutil.NormalizeWhitespace(table.Find("th").Text()))
	if header != "" {
		for _, word := range partsTableHeaderWords {
			if strings.Contains(header, word) {
				return true
			}
		}
	}
	rows := table.Find("tr")
	if rows.Length() < 3 {
		return false
	}
	numericFirst := 0
	rows.Each(func(_ int, row *goquery.Selection) {
		first := textutil.NormalizeWhitespace(row.Find("th, td").First().Text())
		if first != "" && looksNumeric(first) {
			numericFirst++
		}
	})
	return numericFirst*2 > rows.Length()
}

func looksNumeric(s string) bool {
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits*2 > len(s)
}

// FilterPartsResidue removes leaked order-form columns from a merged
// spec map.
func FilterPartsResidue(specs map[string]string) {
	for k := range specs {
		if _, residue := partsResidueKeys[k]; residue {
			delete(specs, k)
		}
	}
}

// dimensionTriple matches combined "W x D x H" strings like
// `30" W x 20" D x 45" H` or "30 x 20 x 45 in".
var dimensionTriple = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:"|in|cm|mm)?\s*w?(?:ide)?\s*[x×]\s*(\d+(?:\.\d+)?)\s*(?:"|in|cm|mm)?\s*d?(?:eep)?\s*[x×]\s*(\d+(?:\.\d+)?)\s*("|in|cm|mm)?\s*h?(?:igh)?`)

// DecomposeDimensions splits a combined dimension string into
// overall_width/overall_depth/overall_height entries when those keys
// are absent. The combined entry is kept.
func DecomposeDimensions(specs map[string]string) {
	combined, ok := specs["dimensions"]
	if !ok {
		combined, ok = specs["overall_dimensions"]
	}
	if !ok {
		return
	}
	m := dimensionTriple.FindStringSubmatch(combined)
	if m == nil {
		return
	}
	unit := m[4]
	if unit == `"` {
		unit = "in"
	}
	set := func(key, num string) {
		if _, taken := specs[key]; taken {
			return
		}
		if unit != "" {
			specs[key] = num + " " + unit
		} else {
			specs[key] = num
		}
	}
	set("overall_width", m[1])
	set("overall_depth", m[2])
	set("overall_height", m[3])
}
