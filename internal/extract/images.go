package extract

import (
	"net/url"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/medicalexcom/medx-ingest-api-sub000/internal/textutil"
	"github.com/medicalexcom/medx-ingest-api-sub000/internal/urlutil"
	"github.com/medicalexcom/medx-ingest-api-sub000/pkg/types"
)

// MaxImages bounds the final ranked image list.
const MaxImages = 12

// Origin base weights. Structured data is the page author's explicit
// claim; galleries are curated; anything else is circumstantial.
const (
	weightStructured = 10.0
	weightGallery    = 6.0
	weightScriptJSON = 4.0
	weightGeneric    = 3.0
	weightFallback   = 1.0
)

// ImageOptions tunes the harvester per request.
type ImageOptions struct {
	MinPx      int
	ExcludePNG bool
	Aggressive bool
	MainOnly   bool
}

// lazyLoadAttrs are the attribute variants sites use to defer image
// loading; checked in order after src.
var lazyLoadAttrs = []string{
	"data-src",
	"data-lazy",
	"data-lazy-src",
	"data-original",
	"data-zoom-image",
	"data-large-image",
	"data-image",
	"data-srcset",
}

var thumbnailPenaltyWords = []string{"thumb", "thumbnail", "icon", "swatch", "sprite", "logo", "placeholder", "spinner", "loading", "badge", "flag"}

var productPathWords = []string{"/product", "/products/", "/media/", "/catalog/", "/images/", "/gallery/"}

var backgroundImagePattern = regexp.MustCompile(`(?i)background(?:-image)?\s*:\s*url\(\s*['"]?([^'")]+)['"]?\s*\)`)

var galleryContainerSelector = ".product-gallery, .gallery, [class*='media-gallery'], [class*='image-gallery'], [class*='carousel'], [data-gallery]"

// HarvestImages collects, scores, and ranks product image candidates
// from every source on the page, bounded at MaxImages. A lower
// confidence fallback restricted to the main scope runs when the
// primary harvest is empty.
func HarvestImages(d *Document, facts types.StructuredFacts, baseURL, productName string, opts ImageOptions) []types.ImageRef {
	h := imageHarvest{
		d:      d,
		opts:   opts,
		code:   urlutil.ProductCode(baseURL),
		tokens: textutil.TitleTokens(productName),
		seen:   map[string]int{},
	}
	if u, err := url.Parse(baseURL); err == nil {
		h.pageHost = u.Hostname()
	}

	for _, img := range facts.Images {
		h.add(img, weightStructured, 0)
	}
	d.Find(galleryContainerSelector).Find("img, source").Each(func(_ int, s *goquery.Selection) {
		h.addElement(s, weightGallery)
	})
	d.Find("img").Each(func(_ int, s *goquery.Selection) {
		h.addElement(s, weightGeneric)
	})
	d.Find("[style*='background']").Each(func(_ int, s *goquery.Selection) {
		style, _ := s.Attr("style")
		if m := backgroundImagePattern.FindStringSubmatch(style); m != nil {
			ctx := ScoreByContext(d, s, opts.MainOnly)
			if ctx > hardReject {
				h.add(m[1], weightGeneric, float64(ctx))
			}
		}
	})
	for _, u := range scriptJSONImageURLs(d) {
		h.add(u, weightScriptJSON, 0)
	}

	out := h.ranked(true)
	if len(out) == 0 {
		h.fallback()
		out = h.ranked(false)
	}
	return out
}

type imageHarvest struct {
	d        *Document
	opts     ImageOptions
	pageHost string
	code     string
	tokens   []string

	candidates []types.Candidate[string]
	// seen maps dedupe key (basename + inferred size) to candidate
	// index, so the higher-scored duplicate wins.
	seen map[string]int
}

func (h *imageHarvest) addElement(s *goquery.Selection, base float64) {
	ctx := ScoreByContext(h.d, s, h.opts.MainOnly)
	if ctx <= hardReject {
		return
	}
	if src, ok := s.Attr("src"); ok {
		h.add(src, base, float64(ctx))
	}
	for _, attr := range lazyLoadAttrs {
		if v, ok := s.Attr(attr); ok && v != "" {
			if strings.Contains(attr, "srcset") {
				for _, u := range parseSrcset(v) {
					h.add(u, base, float64(ctx))
				}
				continue
			}
			h.add(v, base, float64(ctx))
		}
	}
	if srcset, ok := s.Attr("srcset"); ok {
		for _, u := range parseSrcset(srcset) {
			h.add(u, base, float64(ctx))
		}
	}
}

func (h *imageHarvest) add(raw string, base, ctx float64) {
	resolved := h.d.Resolve(raw)
	if resolved == "" || !strings.Contains(resolved, "://") {
		return
	}
	lower := strings.ToLower(resolved)
	if h.opts.ExcludePNG && strings.Contains(lower, ".png") {
		return
	}

	size := urlutil.InferPixelSize(resolved)
	if h.opts.MinPx > 0 && (size.W > 0 || size.H > 0) {
		if max(size.W, size.H) < h.opts.MinPx {
			return
		}
	}

	score := base + ctx
	u, err := url.Parse(resolved)
	if err != nil {
		return
	}
	if h.pageHost != "" && urlutil.SameSiteOrCDN(h.pageHost, u.Hostname()) {
		score += 2
	}
	if h.code != "" && strings.Contains(lower, h.code) {
		score += 2
	} else if textutil.ContainsAnyToken(lower, h.tokens) {
		score += 2
	}
	for _, word := range productPathWords {
		if strings.Contains(lower, word) {
			score++
			break
		}
	}
	if !h.opts.Aggressive {
		for _, word := range thumbnailPenaltyWords {
			if strings.Contains(path.Base(strings.ToLower(u.Path)), word) {
				score -= 6
				break
			}
		}
	}

	key := dedupeKey(u, size)
	if idx, dup := h.seen[key]; dup {
		if score > h.candidates[idx].Score {
			h.candidates[idx] = types.Candidate[string]{Value: resolved, Score: score, Provenance: provenance(base)}
		}
		return
	}
	h.seen[key] = len(h.candidates)
	h.candidates = append(h.candidates, types.Candidate[string]{
		Value:      resolved,
		Score:      score,
		Provenance: provenance(base),
	})
}

// fallback is the low-confidence second pass: any img inside the main
// scope, no source weighting.
func (h *imageHarvest) fallback() {
	h.d.Find("img").Each(func(_ int, s *goquery.Selection) {
		if !h.d.inMainScope(s) {
			return
		}
		if src, ok := s.Attr("src"); ok {
			h.add(src, weightFallback, 0)
		}
	})
}

// ranked sorts candidates by score and returns at most MaxImages URLs.
// positiveOnly drops non-positive scores; the fallback pass keeps them.
func (h *imageHarvest) ranked(positiveOnly bool) []types.ImageRef {
	sort.SliceStable(h.candidates, func(i, j int) bool {
		return h.candidates[i].Score > h.candidates[j].Score
	})
	out := make([]types.ImageRef, 0, min(len(h.candidates), MaxImages))
	for _, c := range h.candidates {
		if len(out) == MaxImages {
			break
		}
		if positiveOnly && c.Score <= 0 {
			continue
		}
		out = append(out, types.ImageRef{URL: c.Value})
	}
	return out
}

// dedupeKey collapses same-image-different-crop URLs: basename with its
// size hint stripped, plus the inferred size.
func dedupeKey(u *url.URL, size urlutil.InferredSize) string {
	base := strings.ToLower(path.Base(u.Path))
	return base + "|" + strconv.Itoa(size.W) + "x" + strconv.Itoa(size.H)
}

func provenance(base float64) string {
	switch base {
	case weightStructured:
		return "structured"
	case weightGallery:
		return "gallery"
	case weightScriptJSON:
		return "script-json"
	case weightFallback:
		return "fallback"
	default:
		return "dom"
	}
}

// parseSrcset returns the URL of each srcset entry.
func parseSrcset(srcset string) []string {
	var out []string
	for _, entry := range strings.Split(srcset, ",") {
		fields := strings.Fields(strings.TrimSpace(entry))
		if len(fields) > 0 {
			out = append(out, fields[0])
		}
	}
	return out
}
