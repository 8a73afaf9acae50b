// Package textutil provides small text helpers shared by the harvesters.
package textutil

import (
	"strings"
	"unicode"

	"github.com/abadojack/whatlanggo"
)

// NormalizeWhitespace collapses all runs of whitespace to single spaces
// and trims the result.
func NormalizeWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

// CollapseNewlines reduces runs of three or more newlines to two.
func CollapseNewlines(s string) string {
	lines := strings.Split(s, "\n")
	result := make([]string, 0, len(lines))
	blank := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			blank++
			if blank > 1 {
				continue
			}
			result = append(result, "")
			continue
		}
		blank = 0
		result = append(result, strings.TrimRight(line, " \t"))
	}
	return strings.TrimSpace(strings.Join(result, "\n"))
}

// MostlyLatin reports whether a string is predominantly Latin-script
// text. Short strings fall back to a rune-ratio check since script
// detection is unreliable below a few words.
func MostlyLatin(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	if len([]rune(s)) >= 24 {
		if script := whatlanggo.DetectScript(s); script != nil {
			return whatlanggo.Scripts[script] == "Latin"
		}
	}
	var latin, letters int
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.Is(unicode.Latin, r) {
			latin++
		}
	}
	if letters == 0 {
		return true
	}
	return float64(latin)/float64(letters) >= 0.8
}

var stopTokens = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "from": {},
	"pro": {}, "new": {}, "set": {}, "pack": {},
}

// TitleTokens returns the significant lowercase tokens of a product
// name, for matching against image and document URLs.
func TitleTokens(name string) []string {
	var tokens []string
	for _, tok := range strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(tok) < 4 {
			continue
		}
		if _, stop := stopTokens[tok]; stop {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// ContainsAnyToken reports whether the haystack (lowercased) contains
// any of the given tokens.
func ContainsAnyToken(haystack string, tokens []string) bool {
	haystack = strings.ToLower(haystack)
	for _, tok := range tokens {
		if strings.Contains(haystack, tok) {
			return true
		}
	}
	return false
}

// LooksLikeKeyValue splits text of the shape "Key: Value" into its
// parts. It rejects sentence-like keys (too long, or containing
// sentence punctuation) so prose with a stray colon is not mistaken
// for a specification.
func LooksLikeKeyValue(text string) (key, value string, ok bool) {
	idx := strings.Index(text, ":")
	if idx <= 0 || idx == len(text)-1 {
		return "", "", false
	}
	key = NormalizeWhitespace(text[:idx])
	value = NormalizeWhitespace(text[idx+1:])
	if key == "" || value == "" {
		return "", "", false
	}
	if len(key) > 60 || strings.ContainsAny(key, ".!?") {
		return "", "", false
	}
	if strings.Count(key, " ") > 5 {
		return "", "", false
	}
	return key, value, true
}

// Truncate shortens s to at most n runes.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	for i := range runes {
		if i >= n {
			return string(runes[:i])
		}
	}
	return s
}
