package extract

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/PuerkitoBio/goquery"

	"github.com/medicalexcom/medx-ingest-api-sub000/internal/textutil"
	"github.com/medicalexcom/medx-ingest-api-sub000/pkg/types"
)

// ErrInsufficientContent signals that the page was understood but held
// no product name and no usable description. Handlers map it to 422,
// distinct from fetch and parse failures.
var ErrInsufficientContent = errors.New("no product name or usable description extracted")

const (
	maxMetaTitleLen = 70
	maxMetaDescLen  = 160

	// minUsableDescription keeps boilerplate fragments from counting
	// as a real description.
	minUsableDescription = 20
)

// Options tunes one extraction call; zero value means defaults with
// harvesting enabled.
type Options struct {
	MinImagePx int
	ExcludePNG bool
	Aggressive bool
	// SkipHarvest restricts the record to structured-data output.
	SkipHarvest bool
	Sanitize    bool
	Markdown    bool
	MainOnly    bool
	Debug       bool
	Logger      *slog.Logger
}

// Extract turns rendered page HTML into one normalized product record.
// Harvesters are independent and order-insensitive; the merge applies
// the fixed precedence structured data > script-JSON > table/DL sweep >
// paragraph fallback for specs, and per-field fallback chains for name
// and description.
func Extract(rawHTML, baseURL string, opts Options) (types.ProductRecord, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var record types.ProductRecord
	record.Source = baseURL

	if opts.Sanitize {
		cleaned, err := Sanitize(rawHTML)
		if err != nil {
			logger.Warn("sanitize pass failed, using original html", "error", err)
		} else {
			rawHTML = cleaned
		}
	}

	d, err := NewDocument(rawHTML, baseURL)
	if err != nil {
		return record, err
	}

	facts, warnings := ParseStructuredData(d)

	record.Name = resolveName(d, facts)
	description, descriptionHTML := resolveDescription(d, facts)

	specs := map[string]string{}
	if !opts.SkipHarvest {
		for k, v := range HarvestSpecs(d) {
			specs[k] = v
		}
		for k, v := range ScriptJSONSpecs(d) {
			specs[k] = v
		}
	}
	for k, v := range facts.Specs {
		specs[k] = v
	}
	FilterPartsResidue(specs)
	DecomposeDimensions(specs)
	record.Specs = specs

	if opts.SkipHarvest {
		for _, img := range facts.Images {
			if resolved := d.Resolve(img); resolved != "" {
				record.Images = append(record.Images, types.ImageRef{URL: resolved})
			}
			if len(record.Images) == MaxImages {
				break
			}
		}
		record.Features = facts.Features
		if len(record.Features) > MaxFeatures {
			record.Features = record.Features[:MaxFeatures]
		}
	} else {
		record.Images = HarvestImages(d, facts, baseURL, record.Name, ImageOptions{
			MinPx:      opts.MinImagePx,
			ExcludePNG: opts.ExcludePNG,
			Aggressive: opts.Aggressive,
			MainOnly:   opts.MainOnly,
		})
		record.Features = HarvestFeatures(d, facts)
		record.Manuals = HarvestManuals(d, baseURL, record.Name)
	}

	if opts.Markdown && descriptionHTML != "" {
		markdown, err := DescriptionMarkdown(descriptionHTML)
		if err != nil {
			logger.Warn("markdown conversion failed, keeping plain text", "error", err)
		} else if markdown != "" {
			description = markdown
		}
	}
	record.Description = description

	record.Brand = facts.Brand
	record.SKU = facts.SKU
	record.Price = facts.Price
	record.Categories = facts.Categories

	metaWarnings := applyMeta(d, &record)

	if opts.Debug {
		record.Warnings = append(record.Warnings, warnings...)
		record.Warnings = append(record.Warnings, metaWarnings...)
		if len(record.Images) == 0 {
			record.Warnings = append(record.Warnings, "no product images harvested")
		}
	}

	if record.Name == "" && len([]rune(record.Description)) < minUsableDescription {
		return record, ErrInsufficientContent
	}
	return record, nil
}

// resolveName applies the name fallback chain: structured data, social
// preview meta, first h1 inside the main scope, then the title tag.
func resolveName(d *Document, facts types.StructuredFacts) string {
	if facts.Name != "" {
		return facts.Name
	}
	for _, sel := range []string{`meta[property="og:title"]`, `meta[name="twitter:title"]`} {
		if content, ok := d.Find(sel).First().Attr("content"); ok {
			if name := textutil.NormalizeWhitespace(content); name != "" {
				return name
			}
		}
	}
	if h1 := d.mainScope.Find("h1").First(); h1.Length() > 0 {
		if name := textutil.NormalizeWhitespace(h1.Text()); name != "" {
			return name
		}
	}
	return textutil.NormalizeWhitespace(d.Find("title").First().Text())
}

// resolveDescription applies the description chain: structured data,
// og/meta description, then the first substantial main-scope paragraph.
// The HTML fragment of a DOM-sourced description is returned alongside
// for optional markdown rendering.
func resolveDescription(d *Document, facts types.StructuredFacts) (text, fragment string) {
	if facts.Description != "" {
		return facts.Description, ""
	}
	for _, sel := range []string{`meta[property="og:description"]`, `meta[name="description"]`} {
		if content, ok := d.Find(sel).First().Attr("content"); ok {
			if desc := textutil.NormalizeWhitespace(content); desc != "" {
				return desc, ""
			}
		}
	}
	var best *goquery.Selection
	bestLen := 0
	d.mainScope.Find("p").Each(func(_ int, p *goquery.Selection) {
		t := textutil.NormalizeWhitespace(p.Text())
		if len(t) > bestLen && textutil.MostlyLatin(t) {
			bestLen = len(t)
			best = p
		}
	})
	if best == nil || bestLen < minUsableDescription {
		return "", ""
	}
	text = textutil.NormalizeWhitespace(best.Text())
	if h, err := goquery.OuterHtml(best); err == nil {
		fragment = h
	}
	return text, fragment
}

// applyMeta fills the SEO supplement fields from the page head,
// bounding their lengths and reporting truncations.
func applyMeta(d *Document, record *types.ProductRecord) []string {
	var warnings []string
	if title := textutil.NormalizeWhitespace(d.Find("title").First().Text()); title != "" {
		if len([]rune(title)) > maxMetaTitleLen {
			warnings = append(warnings, fmt.Sprintf("meta title exceeds %d characters, truncated", maxMetaTitleLen))
			title = textutil.Truncate(title, maxMetaTitleLen)
		}
		record.MetaTitle = title
	}
	if content, ok := d.Find(`meta[name="description"]`).First().Attr("content"); ok {
		desc := textutil.NormalizeWhitespace(content)
		if len([]rune(desc)) > maxMetaDescLen {
			warnings = append(warnings, fmt.Sprintf("meta description exceeds %d characters, truncated", maxMetaDescLen))
			desc = textutil.Truncate(desc, maxMetaDescLen)
		}
		record.MetaDesc = desc
	}
	return warnings
}
