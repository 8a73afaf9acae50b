package extract

import (
	"fmt"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"

	"github.com/medicalexcom/medx-ingest-api-sub000/internal/textutil"
)

// sanitizeDropSelectors remove tracking and promotional junk before
// harvesting. Scripts carrying JSON payloads stay; the structured-data
// parser and the script-JSON walker still need them.
var sanitizeDropSelectors = []string{
	"style",
	"link[rel='stylesheet']",
	"noscript",
	"[class*='advert']",
	"[id*='advert']",
	"[class*='sponsor']",
	"[class*='cookie-banner']",
	"[class*='newsletter-popup']",
	"[id*='onetrust']",
}

// Sanitize returns a cleaned copy of the page HTML. The original
// string is untouched; callers parse the result into a fresh Document.
func Sanitize(rawHTML string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		typ, _ := s.Attr("type")
		if !strings.Contains(strings.ToLower(typ), "json") {
			s.Remove()
		}
	})
	for _, sel := range sanitizeDropSelectors {
		doc.Find(sel).Remove()
	}

	out, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("serialise html: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// DescriptionMarkdown renders a description HTML fragment as Markdown.
func DescriptionMarkdown(fragment string) (string, error) {
	markdown, err := htmltomarkdown.ConvertString(fragment)
	if err != nil {
		return "", fmt.Errorf("convert description to markdown: %w", err)
	}
	return textutil.CollapseNewlines(markdown), nil
}
