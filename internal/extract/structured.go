package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/medicalexcom/medx-ingest-api-sub000/internal/textutil"
	"github.com/medicalexcom/medx-ingest-api-sub000/pkg/types"
)

// ParseStructuredData reads the three embedded product-metadata
// encodings (JSON-LD, microdata, RDFa) and merges them by precedence:
// first non-empty scalar across JSON-LD > microdata > RDFa, images
// unioned and deduped by URL, specs unioned with JSON-LD winning
// collisions, features deduped case-insensitively. Malformed JSON-LD
// is swallowed per block; bad blocks are reported as warnings.
func ParseStructuredData(d *Document) (types.StructuredFacts, []string) {
	var warnings []string

	ld, ldWarnings := parseJSONLD(d)
	warnings = append(warnings, ldWarnings...)
	micro := parseMicrodata(d)
	rdfa := parseRDFa(d)

	return mergeFacts(ld, micro, rdfa), warnings
}

func mergeFacts(sources ...types.StructuredFacts) types.StructuredFacts {
	var out types.StructuredFacts
	out.Specs = map[string]string{}
	seenImages := map[string]struct{}{}
	seenFeatures := map[string]struct{}{}

	for _, src := range sources {
		if out.Name == "" {
			out.Name = src.Name
		}
		if out.Description == "" {
			out.Description = src.Description
		}
		if out.Brand == "" {
			out.Brand = src.Brand
		}
		if out.SKU == "" {
			out.SKU = src.SKU
		}
		if out.Price == "" {
			out.Price = src.Price
		}
		if len(out.Categories) == 0 {
			out.Categories = src.Categories
		}
		for k, v := range src.Specs {
			if _, taken := out.Specs[k]; !taken {
				out.Specs[k] = v
			}
		}
		for _, img := range src.Images {
			if _, dup := seenImages[img]; dup || img == "" {
				continue
			}
			seenImages[img] = struct{}{}
			out.Images = append(out.Images, img)
		}
		for _, f := range src.Features {
			key := strings.ToLower(textutil.NormalizeWhitespace(f))
			if _, dup := seenFeatures[key]; dup || key == "" {
				continue
			}
			seenFeatures[key] = struct{}{}
			out.Features = append(out.Features, f)
		}
	}
	if len(out.Specs) == 0 {
		out.Specs = nil
	}
	return out
}

// parseJSONLD scans script[type=application/ld+json] blocks. Entity
// arrays and @graph containers are flattened; the first plausible
// Product entity wins.
func parseJSONLD(d *Document) (types.StructuredFacts, []string) {
	var facts types.StructuredFacts
	var warnings []string

	d.Find(`script[type="application/ld+json"]`).EachWithBreak(func(i int, s *goquery.Selection) bool {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return true
		}
		var decoded any
		if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
			warnings = append(warnings, fmt.Sprintf("json-ld block %d: %v", i, err))
			return true
		}
		for _, entity := range flattenEntities(decoded) {
			if !isProductEntity(entity) {
				continue
			}
			facts = factsFromEntity(entity)
			return false
		}
		return true
	})
	return facts, warnings
}

// flattenEntities unwraps top-level arrays and @graph containers into a
// flat entity list.
func flattenEntities(v any) []map[string]any {
	var out []map[string]any
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			out = append(out, flattenEntities(item)...)
		}
	case map[string]any:
		if graph, ok := t["@graph"].([]any); ok {
			for _, item := range graph {
				out = append(out, flattenEntities(item)...)
			}
			return out
		}
		out = append(out, t)
	}
	return out
}

// isProductEntity accepts entities whose declared type contains
// "Product", or that carry a name plus offers or sku.
func isProductEntity(m map[string]any) bool {
	switch t := m["@type"].(type) {
	case string:
		if strings.Contains(strings.ToLower(t), "product") {
			return true
		}
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && strings.Contains(strings.ToLower(s), "product") {
				return true
			}
		}
	}
	if asString(m["name"]) == "" {
		return false
	}
	_, hasOffers := m["offers"]
	return hasOffers || asString(m["sku"]) != ""
}

func factsFromEntity(m map[string]any) types.StructuredFacts {
	facts := types.StructuredFacts{
		Name:        textutil.NormalizeWhitespace(asString(m["name"])),
		Description: textutil.NormalizeWhitespace(asString(m["description"])),
		Brand:       entityName(m["brand"]),
		SKU:         asString(m["sku"]),
		Price:       offerPrice(m["offers"]),
		Categories:  stringList(m["category"]),
		Images:      imageURLs(m["image"]),
	}
	if props, ok := m["additionalProperty"].([]any); ok {
		specs := map[string]string{}
		for _, p := range props {
			obj, ok := p.(map[string]any)
			if !ok {
				continue
			}
			name := asString(obj["name"])
			value := asString(obj["value"])
			if name != "" && value != "" {
				specs[CanonicalizeSpecKey(name)] = NormalizeUnits(value)
			}
		}
		if len(specs) > 0 {
			facts.Specs = specs
		}
	}
	return facts
}

// entityName reads a name out of a string or a nested {name: ...}
// entity, the two shapes brand typically takes.
func entityName(v any) string {
	switch t := v.(type) {
	case string:
		return textutil.NormalizeWhitespace(t)
	case map[string]any:
		return textutil.NormalizeWhitespace(asString(t["name"]))
	}
	return ""
}

func offerPrice(v any) string {
	switch t := v.(type) {
	case map[string]any:
		if p := asString(t["price"]); p != "" {
			return p
		}
		if spec, ok := t["priceSpecification"].(map[string]any); ok {
			return asString(spec["price"])
		}
	case []any:
		for _, item := range t {
			if p := offerPrice(item); p != "" {
				return p
			}
		}
	}
	return ""
}

func imageURLs(v any) []string {
	switch t := v.(type) {
	case string:
		if t != "" {
			return []string{t}
		}
	case map[string]any:
		if u := asString(t["url"]); u != "" {
			return []string{u}
		}
	case []any:
		var out []string
		for _, item := range t {
			out = append(out, imageURLs(item)...)
		}
		return out
	}
	return nil
}

func stringList(v any) []string {
	switch t := v.(type) {
	case string:
		if t != "" {
			return []string{t}
		}
	case []any:
		var out []string
		for _, item := range t {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", t), "0"), ".")
	}
	return ""
}

// parseMicrodata reads itemprop attributes scoped to the first
// Product-typed itemtype element.
func parseMicrodata(d *Document) types.StructuredFacts {
	var facts types.StructuredFacts
	scope := d.Find(`[itemtype*="Product"]`).First()
	if scope.Length() == 0 {
		return facts
	}

	prop := func(name string) *goquery.Selection {
		return scope.Find(fmt.Sprintf(`[itemprop="%s"]`, name)).First()
	}
	facts.Name = microValue(prop("name"))
	facts.Description = microValue(prop("description"))
	facts.Brand = microValue(prop("brand"))
	facts.SKU = microValue(prop("sku"))

	scope.Find(`[itemprop="image"]`).Each(func(_ int, s *goquery.Selection) {
		if u := microURL(s); u != "" {
			facts.Images = append(facts.Images, u)
		}
	})

	specs := map[string]string{}
	scope.Find(`[itemprop="additionalProperty"]`).Each(func(_ int, s *goquery.Selection) {
		name := microValue(s.Find(`[itemprop="name"]`).First())
		value := microValue(s.Find(`[itemprop="value"]`).First())
		if name != "" && value != "" {
			specs[CanonicalizeSpecKey(name)] = NormalizeUnits(value)
		}
	})
	if len(specs) > 0 {
		facts.Specs = specs
	}
	return facts
}

func microValue(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	if content, ok := s.Attr("content"); ok && strings.TrimSpace(content) != "" {
		return textutil.NormalizeWhitespace(content)
	}
	return textutil.NormalizeWhitespace(s.Text())
}

func microURL(s *goquery.Selection) string {
	for _, attr := range []string{"src", "content", "href"} {
		if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// parseRDFa reads property attributes scoped to the first Product-typed
// typeof element. Prefixed property names (schema:name) match on their
// local part.
func parseRDFa(d *Document) types.StructuredFacts {
	var facts types.StructuredFacts
	scope := d.Find(`[typeof*="Product"]`).First()
	if scope.Length() == 0 {
		return facts
	}
	scope.Find(`[property]`).Each(func(_ int, s *goquery.Selection) {
		prop, _ := s.Attr("property")
		if idx := strings.LastIndex(prop, ":"); idx >= 0 {
			prop = prop[idx+1:]
		}
		switch strings.ToLower(prop) {
		case "name":
			if facts.Name == "" {
				facts.Name = microValue(s)
			}
		case "description":
			if facts.Description == "" {
				facts.Description = microValue(s)
			}
		case "brand":
			if facts.Brand == "" {
				facts.Brand = microValue(s)
			}
		case "sku":
			if facts.SKU == "" {
				facts.SKU = microValue(s)
			}
		case "image":
			if u := microURL(s); u != "" {
				facts.Images = append(facts.Images, u)
			}
		}
	})
	return facts
}
