package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// hardReject marks candidates inside chrome or recommendation blocks.
const hardReject = -999

// mainScopeBonus rewards candidates inside the resolved product scope.
const mainScopeBonus = 2

// chromeTags are element names that never contain product content.
var chromeTags = map[string]struct{}{
	"nav":    {},
	"footer": {},
	"aside":  {},
}

// chromePatterns match class/id/role fragments of navigation, footer,
// and consent chrome.
var chromePatterns = []string{
	"breadcrumb",
	"navigation",
	"navbar",
	"nav-menu",
	"menu-main",
	"site-header",
	"site-footer",
	"page-footer",
	"cookie",
	"consent",
	"gdpr",
	"newsletter",
	"subscribe-popup",
	"sidebar",
	"mini-cart",
	"search-form",
}

// recommendationPatterns match class/id fragments of cross-sell and
// recommendation blocks whose content mimics real product content.
var recommendationPatterns = []string{
	"related",
	"upsell",
	"up-sell",
	"cross-sell",
	"crosssell",
	"frequently-bought",
	"also-viewed",
	"also-bought",
	"also-like",
	"you-may-also",
	"recommend",
	"similar-product",
	"recently-viewed",
	"customers-also",
	"more-from",
}

// chromeRoles are ARIA roles marking page chrome.
var chromeRoles = map[string]struct{}{
	"navigation":    {},
	"banner":        {},
	"contentinfo":   {},
	"complementary": {},
	"search":        {},
}

// ScoreByContext classifies a node by its DOM surroundings: hardReject
// when any ancestor is chrome or a recommendation block, mainScopeBonus
// when inside the resolved main product scope, 0 otherwise. mainOnly
// turns "outside main scope" into a hard reject too. Every harvester
// calls this before accepting a candidate.
func ScoreByContext(d *Document, sel *goquery.Selection, mainOnly bool) int {
	if len(sel.Nodes) == 0 {
		return hardReject
	}
	for n := sel.Nodes[0]; n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		if _, chrome := chromeTags[n.Data]; chrome {
			return hardReject
		}
		hint := ancestorHint(n)
		if hint != "" {
			if matchesAny(hint, recommendationPatterns) {
				return hardReject
			}
			if matchesAny(hint, chromePatterns) {
				return hardReject
			}
		}
		if role := nodeAttr(n, "role"); role != "" {
			if _, chrome := chromeRoles[strings.ToLower(role)]; chrome {
				return hardReject
			}
		}
	}
	if d.inMainScope(sel) {
		return mainScopeBonus
	}
	if mainOnly {
		return hardReject
	}
	return 0
}

// inRecommendation reports whether a node sits inside a recommendation
// or cross-sell block, ignoring the rest of the chrome classification.
func inRecommendation(sel *goquery.Selection) bool {
	if len(sel.Nodes) == 0 {
		return false
	}
	for n := sel.Nodes[0]; n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		if hint := ancestorHint(n); hint != "" && matchesAny(hint, recommendationPatterns) {
			return true
		}
	}
	return false
}

func ancestorHint(n *html.Node) string {
	var parts []string
	if v := nodeAttr(n, "class"); v != "" {
		parts = append(parts, v)
	}
	if v := nodeAttr(n, "id"); v != "" {
		parts = append(parts, v)
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.ToLower(strings.Join(parts, " "))
}

func matchesAny(hint string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(hint, p) {
			return true
		}
	}
	return false
}
