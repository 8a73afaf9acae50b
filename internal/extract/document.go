// Package extract turns rendered product-page HTML into a normalized
// product record. It parses embedded structured data, classifies DOM
// context to reject chrome and cross-sell noise, runs independent
// candidate harvesters for images, specifications, features, and
// manuals, and merges everything under a fixed precedence order.
package extract

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/medicalexcom/medx-ingest-api-sub000/internal/urlutil"
)

// Document is an immutable parsed page. Harvesters read it through
// selections and never mutate it; anything that needs a rewritten tree
// builds a derived copy first.
type Document struct {
	doc  *goquery.Document
	base *url.URL

	// mainScope is resolved once at construction; every harvester
	// consults it through ScoreByContext.
	mainScope *goquery.Selection
}

// NewDocument parses HTML and resolves the main product scope. baseURL
// anchors relative href/src resolution; it may be empty.
func NewDocument(rawHTML, baseURL string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	var base *url.URL
	if baseURL != "" {
		if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
			base = u
		}
	}
	d := &Document{doc: doc, base: base}
	d.mainScope = d.resolveMainScope()
	return d, nil
}

// Find runs a CSS selector over the whole document.
func (d *Document) Find(selector string) *goquery.Selection {
	return d.doc.Find(selector)
}

// Base returns the document's base URL, or nil when unknown.
func (d *Document) Base() *url.URL {
	return d.base
}

// Resolve resolves an href or src against the document base.
func (d *Document) Resolve(href string) string {
	return urlutil.Resolve(d.base, href)
}

// Host returns the page's own hostname, or "" when unknown.
func (d *Document) Host() string {
	if d.base == nil {
		return ""
	}
	return d.base.Hostname()
}

// mainScopeMatchers resolve, in order, the subtree judged to contain
// the actual product content. The first matcher with a hit wins.
// Compiled once; the resolution runs on every parsed document.
var mainScopeMatchers = []goquery.Matcher{
	cascadia.MustCompile("[itemtype*='Product']"),
	cascadia.MustCompile(".product-detail, .product-details, .product-main, .product-info, .product-page, [id*='product-detail'], [class*='product-detail']"),
	cascadia.MustCompile(".product-gallery, .gallery, [class*='media-gallery'], [class*='carousel']"),
	cascadia.MustCompile("main, article"),
}

func (d *Document) resolveMainScope() *goquery.Selection {
	for _, m := range mainScopeMatchers {
		if s := d.doc.FindMatcher(m).First(); s.Length() > 0 {
			return s
		}
	}
	return d.doc.Selection
}

// inMainScope reports whether sel's first node sits inside the resolved
// main product scope.
func (d *Document) inMainScope(sel *goquery.Selection) bool {
	if len(sel.Nodes) == 0 || len(d.mainScope.Nodes) == 0 {
		return false
	}
	scope := d.mainScope.Nodes[0]
	if scope.Type == html.DocumentNode {
		return true
	}
	for n := sel.Nodes[0]; n != nil; n = n.Parent {
		if n == scope {
			return true
		}
	}
	return false
}

// nodeAttr reads one attribute off a raw node.
func nodeAttr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}
