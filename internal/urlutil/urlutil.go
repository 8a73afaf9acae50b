// Package urlutil handles URL resolution, hostname classification, and
// the SSRF guard applied before any outbound fetch.
package urlutil

import (
	"net"
	"net/url"
	"path"
	"regexp"
	"strings"
)

// Resolve resolves href against base. Protocol-relative and already
// absolute URLs pass through with minimal rewriting; anything
// unparseable resolves to the empty string.
func Resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "data:") || strings.HasPrefix(href, "javascript:") {
		return ""
	}
	if base == nil {
		return href
	}
	if strings.HasPrefix(href, "//") {
		return base.Scheme + ":" + href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

// SameHost reports whether two hostnames match case-insensitively,
// ignoring a leading www.
func SameHost(a, b string) bool {
	return stripWWW(a) != "" && stripWWW(a) == stripWWW(b)
}

func stripWWW(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}

// knownImageCDNs are hosts commonly serving first-party product images
// for e-commerce platforms. Matching is by suffix.
var knownImageCDNs = []string{
	"cloudfront.net",
	"shopifycdn.com",
	"cdn.shopify.com",
	"bigcommerce.com",
	"mozu.com",
	"scene7.com",
	"cloudinary.com",
	"imgix.net",
	"akamaized.net",
	"media-amazon.com",
}

// SameSiteOrCDN reports whether imgHost is the page's own host or a
// known product-image CDN.
func SameSiteOrCDN(pageHost, imgHost string) bool {
	if SameHost(pageHost, imgHost) {
		return true
	}
	h := strings.ToLower(imgHost)
	for _, cdn := range knownImageCDNs {
		if h == cdn || strings.HasSuffix(h, "."+cdn) {
			return true
		}
	}
	return false
}

var productCodePattern = regexp.MustCompile(`(?i)\b([a-z]{1,5}[-_]?\d{3,}[a-z0-9]*)\b`)

// ProductCode extracts a best-effort product/SKU code from a product
// page URL path, e.g. "/products/abc-1234-widget" yields "abc-1234".
func ProductCode(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	segment := path.Base(u.Path)
	if m := productCodePattern.FindString(segment); m != "" {
		return strings.ToLower(m)
	}
	if m := productCodePattern.FindString(u.Path); m != "" {
		return strings.ToLower(m)
	}
	return ""
}

// PathKey returns the URL's host+path with query and fragment removed,
// used to deduplicate document links.
func PathKey(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return strings.ToLower(u.Hostname()) + u.EscapedPath()
}

// IsLikelyDangerousHost reports whether a hostname should be refused
// before any fetch: loopback, link-local, RFC1918 and private IPv6
// ranges, plus mDNS-style local suffixes. Hostnames that do not parse
// as IP literals are judged by suffix only; resolution-time rebinding
// is out of scope here.
func IsLikelyDangerousHost(host string) bool {
	h := strings.ToLower(strings.TrimSpace(host))
	if h == "" || h == "localhost" {
		return true
	}
	if strings.HasSuffix(h, ".local") || strings.HasSuffix(h, ".localhost") {
		return true
	}
	ip := net.ParseIP(strings.Trim(h, "[]"))
	if ip == nil {
		return false
	}
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
		return true
	}
	if ip.IsPrivate() {
		return true
	}
	// IPv6 unique local addresses (fc00::/7) are not covered by IsPrivate
	// on all Go versions; check explicitly.
	if v6 := ip.To16(); v6 != nil && ip.To4() == nil && (v6[0]&0xfe) == 0xfc {
		return true
	}
	return false
}

// InferredSize holds pixel dimensions hinted by a filename or query
// string; zero values mean unknown.
type InferredSize struct {
	W, H int
}

var (
	sizeInName  = regexp.MustCompile(`(?i)[-_.](\d{2,4})x(\d{2,4})(?:[-_.]|$)`)
	sizeInQuery = regexp.MustCompile(`(?i)(?:^|[?&])(?:w|width)=(\d{2,4})`)
	heightQuery = regexp.MustCompile(`(?i)(?:^|[?&])(?:h|height)=(\d{2,4})`)
)

// InferPixelSize parses size hints like "widget-500x500.jpg" or
// "?width=800" out of an image URL. Absent hints return zero.
func InferPixelSize(raw string) InferredSize {
	var out InferredSize
	u, err := url.Parse(raw)
	if err != nil {
		return out
	}
	if m := sizeInName.FindStringSubmatch(path.Base(u.Path)); m != nil {
		out.W = atoiSafe(m[1])
		out.H = atoiSafe(m[2])
		return out
	}
	if m := sizeInQuery.FindStringSubmatch(u.RawQuery); m != nil {
		out.W = atoiSafe(m[1])
	}
	if m := heightQuery.FindStringSubmatch(u.RawQuery); m != nil {
		out.H = atoiSafe(m[1])
	}
	return out
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}
