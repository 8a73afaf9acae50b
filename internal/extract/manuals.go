package extract

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/medicalexcom/medx-ingest-api-sub000/internal/textutil"
	"github.com/medicalexcom/medx-ingest-api-sub000/internal/urlutil"
	"github.com/medicalexcom/medx-ingest-api-sub000/pkg/types"
)

// manualAllowWords identify user-facing documents by URL or link text.
var manualAllowWords = []string{
	"manual",
	"ifu",
	"instruction",
	"user-guide",
	"user_guide",
	"userguide",
	"owners-guide",
	"datasheet",
	"data-sheet",
	"spec-sheet",
	"specsheet",
	"guide",
	"brochure",
}

// manualDenyWords exclude regulatory and compliance documents that are
// not user-facing manuals.
var manualDenyWords = []string{
	"certificate",
	"certification",
	"iso",
	"mdsap",
	"audit",
	"regulatory",
	"warranty",
	"sds",
	"msds",
	"prop65",
	"proposition-65",
}

var onclickURLPattern = regexp.MustCompile(`['"]([^'"]+\.pdf[^'"]*)['"]`)

// HarvestManuals collects user-facing document links: anchors, embedded
// viewers, onclick handlers, and script-JSON payloads. Candidates are
// context-scored, keyword-filtered, ranked by product-code or title
// token presence, and deduped by path ignoring query and fragment. An
// unscoped same-hostname sweep runs when the scoped harvest is empty.
func HarvestManuals(d *Document, baseURL, productName string) []string {
	code := urlutil.ProductCode(baseURL)
	tokens := textutil.TitleTokens(productName)

	var candidates []types.Candidate[string]
	add := func(raw, linkText string, ctx int) {
		resolved := d.Resolve(raw)
		if resolved == "" || !strings.Contains(resolved, "://") {
			return
		}
		if !documentLike(resolved, linkText) {
			return
		}
		score := float64(ctx)
		lower := strings.ToLower(resolved)
		if code != "" && strings.Contains(lower, code) {
			score += 3
		} else if textutil.ContainsAnyToken(lower, tokens) {
			score += 2
		}
		candidates = append(candidates, types.Candidate[string]{Value: resolved, Score: score, Provenance: "document"})
	}

	d.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		ctx := ScoreByContext(d, s, false)
		if ctx <= hardReject {
			return
		}
		href, _ := s.Attr("href")
		add(href, s.Text(), ctx)
	})
	d.Find("object[data], iframe[src], embed[src]").Each(func(_ int, s *goquery.Selection) {
		ctx := ScoreByContext(d, s, false)
		if ctx <= hardReject {
			return
		}
		for _, attr := range []string{"data", "src"} {
			if v, ok := s.Attr(attr); ok && v != "" {
				add(v, "", ctx)
			}
		}
	})
	d.Find("[onclick]").Each(func(_ int, s *goquery.Selection) {
		ctx := ScoreByContext(d, s, false)
		if ctx <= hardReject {
			return
		}
		onclick, _ := s.Attr("onclick")
		for _, m := range onclickURLPattern.FindAllStringSubmatch(onclick, -1) {
			add(m[1], s.Text(), ctx)
		}
	})
	for _, u := range scriptJSONDocumentURLs(d) {
		add(u, "", 0)
	}

	out := rankAndDedupe(candidates)
	if len(out) > 0 {
		return out
	}

	// Whole-page sweep, restricted to the page's own hostname.
	pageHost := d.Host()
	d.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		resolved := d.Resolve(href)
		if resolved == "" || !documentLike(resolved, s.Text()) {
			return
		}
		if pageHost != "" && !urlutil.SameHost(pageHost, hostOf(resolved)) {
			return
		}
		candidates = append(candidates, types.Candidate[string]{Value: resolved, Score: 0, Provenance: "sweep"})
	})
	return rankAndDedupe(candidates)
}

// documentLike accepts PDF URLs and keyword-matching links, then
// applies the deny list.
func documentLike(resolved, linkText string) bool {
	lower := strings.ToLower(resolved)
	text := strings.ToLower(textutil.NormalizeWhitespace(linkText))
	pathOnly := lower
	if idx := strings.IndexAny(pathOnly, "?#"); idx >= 0 {
		pathOnly = pathOnly[:idx]
	}

	allowed := strings.HasSuffix(pathOnly, ".pdf")
	if !allowed {
		for _, word := range manualAllowWords {
			if strings.Contains(lower, word) || strings.Contains(text, word) {
				allowed = true
				break
			}
		}
	}
	if !allowed {
		return false
	}
	for _, word := range manualDenyWords {
		if containsWord(lower, word) || containsWord(text, word) {
			return false
		}
	}
	return true
}

// containsWord matches whole keyword occurrences so "iso" does not
// reject "comparison.pdf".
func containsWord(haystack, word string) bool {
	idx := 0
	for {
		i := strings.Index(haystack[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		beforeOK := start == 0 || !isWordRune(haystack[start-1])
		afterOK := end == len(haystack) || !isWordRune(haystack[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordRune(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}

func rankAndDedupe(candidates []types.Candidate[string]) []string {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	var out []string
	seen := map[string]struct{}{}
	for _, c := range candidates {
		key := urlutil.PathKey(c.Value)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c.Value)
	}
	return out
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
