package types

import (
	"fmt"
	"time"
)

// StructuredFacts holds the product metadata parsed from embedded
// structured data (JSON-LD, microdata, RDFa). At most one is produced
// per document; empty fields mean the source carried no value.
type StructuredFacts struct {
	Name        string
	Description string
	Brand       string
	SKU         string
	Price       string
	Categories  []string
	Specs       map[string]string
	Features    []string
	Images      []string
}

// Empty reports whether no source contributed any value at all.
func (f StructuredFacts) Empty() bool {
	return f.Name == "" && f.Description == "" && f.Brand == "" &&
		len(f.Specs) == 0 && len(f.Features) == 0 && len(f.Images) == 0
}

// ImageRef is a single ranked product image in the final record.
type ImageRef struct {
	URL string `json:"url"`
}

// Candidate is a scored, provenance-tagged piece of evidence competing
// to populate one output field. Candidates only live for the duration
// of a single extraction call.
type Candidate[T any] struct {
	Value      T
	Score      float64
	Provenance string
}

// ProductRecord is the normalized output of one extraction.
// Spec keys are canonical: lower-case, underscore-separated,
// synonym-resolved.
type ProductRecord struct {
	Source      string            `json:"source"`
	Name        string            `json:"name_raw"`
	Description string            `json:"description_raw"`
	Specs       map[string]string `json:"specs"`
	Features    []string          `json:"features_raw"`
	Images      []ImageRef        `json:"images"`
	Manuals     []string          `json:"manuals"`
	Brand       string            `json:"brand"`
	SKU         string            `json:"sku,omitempty"`
	Price       string            `json:"price,omitempty"`
	Categories  []string          `json:"categories,omitempty"`
	MetaTitle   string            `json:"meta_title,omitempty"`
	MetaDesc    string            `json:"meta_description,omitempty"`
	Warnings    []string          `json:"warnings,omitempty"`
}

// RenderRequest identifies one rendered-fetch of a URL. It doubles as
// the cache key, so every field that changes the rendered output is
// part of it.
type RenderRequest struct {
	URL       string
	Selector  string
	WaitMS    int
	TimeoutMS int
	Mode      string
}

// CacheKey returns the canonical cache key for this request. Every
// field that changes the rendered output participates.
func (r RenderRequest) CacheKey() string {
	return fmt.Sprintf("%s|%s|%d|%d|%s", r.URL, r.Selector, r.WaitMS, r.TimeoutMS, r.Mode)
}

// FetchResult carries the rendered HTML plus fetch provenance.
type FetchResult struct {
	HTML      string
	FinalURL  string
	Fallback  bool
	Attempts  int
	FetchedAt time.Time
}
