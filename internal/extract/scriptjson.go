package extract

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// maxWalkDepth bounds the script-JSON walk so hostile or cyclic-looking
// payloads cannot blow the stack.
const maxWalkDepth = 24

// scriptJSONVisitor receives values found while walking embedded
// application state. path holds the lowercased key trail from the root.
type scriptJSONVisitor struct {
	onString func(path []string, s string)
	onObject func(path []string, obj map[string]any)
}

// walkScriptJSON decodes every JSON-looking script block and walks it
// depth-first. Blocks that fail to decode are skipped; one bad payload
// must not abort the others. Subtrees under recommendation-flavored
// keys are pruned so cross-sell state never contributes candidates.
func walkScriptJSON(d *Document, v scriptJSONVisitor) {
	d.Find("script").Each(func(_ int, s *goquery.Selection) {
		typ, _ := s.Attr("type")
		typ = strings.ToLower(typ)
		if typ == "application/ld+json" {
			return
		}
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}
		jsonType := strings.Contains(typ, "json")
		if !jsonType && !strings.HasPrefix(raw, "{") && !strings.HasPrefix(raw, "[") {
			return
		}
		var decoded any
		if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
			return
		}
		walkValue(decoded, nil, 0, v)
	})
}

func walkValue(val any, path []string, depth int, v scriptJSONVisitor) {
	if depth > maxWalkDepth {
		return
	}
	switch t := val.(type) {
	case string:
		if v.onString != nil {
			v.onString(path, t)
		}
	case []any:
		for _, item := range t {
			walkValue(item, path, depth+1, v)
		}
	case map[string]any:
		if v.onObject != nil {
			v.onObject(path, t)
		}
		for key, item := range t {
			lower := strings.ToLower(key)
			if matchesAny(lower, recommendationPatterns) {
				continue
			}
			walkValue(item, append(path, lower), depth+1, v)
		}
	}
}

// specPairFromObject recognizes {name|label|key, value|val} shaped
// objects with scalar values, the common shape of spec rows in embedded
// state.
func specPairFromObject(obj map[string]any) (key, value string, ok bool) {
	for _, k := range []string{"name", "label", "key"} {
		if key = asString(obj[k]); key != "" {
			break
		}
	}
	if key == "" {
		return "", "", false
	}
	for _, k := range []string{"value", "val"} {
		if value = asString(obj[k]); value != "" {
			break
		}
	}
	if value == "" {
		return "", "", false
	}
	return key, value, true
}

// urlShaped reports whether a string plausibly points at a fetchable
// resource.
func urlShaped(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, " \n\t") {
		return false
	}
	return strings.HasPrefix(s, "http://") ||
		strings.HasPrefix(s, "https://") ||
		strings.HasPrefix(s, "//") ||
		strings.HasPrefix(s, "/")
}

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".gif", ".avif"}

func imageShaped(s string) bool {
	if !urlShaped(s) {
		return false
	}
	lower := strings.ToLower(s)
	if idx := strings.IndexAny(lower, "?#"); idx >= 0 {
		lower = lower[:idx]
	}
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// imageishKeys are the key names under which product image URLs hide in
// embedded state.
var imageishKeys = []string{"image", "img", "thumbnail", "thumb", "src", "media", "gallery", "photo", "picture", "zoom"}

// nonImageExtensions disqualify URLs that sit under image-flavored keys
// but clearly are not images.
var nonImageExtensions = []string{".mp4", ".webm", ".mov", ".m3u8", ".js", ".css", ".pdf", ".svg"}

func hasNonImageExtension(s string) bool {
	lower := strings.ToLower(s)
	if idx := strings.IndexAny(lower, "?#"); idx >= 0 {
		lower = lower[:idx]
	}
	for _, ext := range nonImageExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func underImageishKey(path []string) bool {
	for _, p := range path {
		for _, k := range imageishKeys {
			if strings.Contains(p, k) {
				return true
			}
		}
	}
	return false
}

// ScriptJSONSpecs collects spec-shaped pairs from embedded application
// state, already canonicalized. Recommendation-path subtrees are
// excluded by the walker.
func ScriptJSONSpecs(d *Document) map[string]string {
	specs := map[string]string{}
	walkScriptJSON(d, scriptJSONVisitor{
		onObject: func(path []string, obj map[string]any) {
			if key, value, ok := specPairFromObject(obj); ok {
				canon := CanonicalizeSpecKey(key)
				if _, taken := specs[canon]; !taken {
					specs[canon] = NormalizeUnits(value)
				}
			}
		},
	})
	return specs
}

// scriptJSONImageURLs collects url-shaped image strings from embedded
// state: anything with an image extension, plus extension-less URLs
// sitting under image-flavored keys.
func scriptJSONImageURLs(d *Document) []string {
	var urls []string
	seen := map[string]struct{}{}
	walkScriptJSON(d, scriptJSONVisitor{
		onString: func(path []string, s string) {
			if !imageShaped(s) {
				if !urlShaped(s) || !underImageishKey(path) || hasNonImageExtension(s) {
					return
				}
			}
			if _, dup := seen[s]; dup {
				return
			}
			seen[s] = struct{}{}
			urls = append(urls, s)
		},
	})
	return urls
}

// scriptJSONDocumentURLs collects PDF-shaped strings from embedded
// state for the manual harvester.
func scriptJSONDocumentURLs(d *Document) []string {
	var urls []string
	seen := map[string]struct{}{}
	walkScriptJSON(d, scriptJSONVisitor{
		onString: func(path []string, s string) {
			if !urlShaped(s) {
				return
			}
			lower := strings.ToLower(s)
			if idx := strings.IndexAny(lower, "?#"); idx >= 0 {
				lower = lower[:idx]
			}
			if !strings.HasSuffix(lower, ".pdf") {
				return
			}
			if _, dup := seen[s]; dup {
				return
			}
			seen[s] = struct{}{}
			urls = append(urls, s)
		},
	})
	return urls
}
