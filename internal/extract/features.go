package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/medicalexcom/medx-ingest-api-sub000/internal/textutil"
	"github.com/medicalexcom/medx-ingest-api-sub000/pkg/types"
)

// MaxFeatures bounds the final feature list.
const MaxFeatures = 20

const (
	minFeatureLen = 8
	maxFeatureLen = 300
)

// HarvestFeatures collects bullet-point product features. Structured
// data features come first, then list items inside the main scope that
// are prose (not key/value rows), Latin-script, and length-bounded.
// Deduped case-insensitively and capped at MaxFeatures.
func HarvestFeatures(d *Document, facts types.StructuredFacts) []string {
	var out []string
	seen := map[string]struct{}{}

	accept := func(text string) {
		text = textutil.NormalizeWhitespace(text)
		if len(text) < minFeatureLen || len(text) > maxFeatureLen {
			return
		}
		if _, _, kv := textutil.LooksLikeKeyValue(text); kv {
			return
		}
		if !textutil.MostlyLatin(text) {
			return
		}
		key := strings.ToLower(text)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, text)
	}

	for _, f := range facts.Features {
		accept(f)
	}
	d.Find("ul li, ol li").Each(func(_ int, s *goquery.Selection) {
		if len(out) >= MaxFeatures {
			return
		}
		if ScoreByContext(d, s, true) <= hardReject {
			return
		}
		// Nested lists would double-count parent text.
		if s.Find("li").Length() > 0 {
			return
		}
		accept(s.Text())
	})

	if len(out) > MaxFeatures {
		out = out[:MaxFeatures]
	}
	return out
}
