// Package sanitize provides text sanitization utilities for caller supplied
// and dictated input.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	// htmlTagRegex matches HTML tags
	htmlTagRegex = regexp.MustCompile(`<[^>]*>`)

	spaceRegex = regexp.MustCompile(`\s+`)
)

// spokenSymbols maps dictated words to the characters they stand for in an
// email address. English and French forms are both accepted.
var spokenSymbols = map[string]string{
	"at":         "@",
	"arobase":    "@",
	"arrobase":   "@",
	"dot":        ".",
	"point":      ".",
	"dash":       "-",
	"hyphen":     "-",
	"tiret":      "-",
	"underscore": "_",
	"tiret-bas":  "_",
}

// StripHTML removes all HTML tags from a string, making it safe for text-only display.
func StripHTML(s string) string {
	result := htmlTagRegex.ReplaceAllString(s, "")
	result = strings.ReplaceAll(result, "&lt;", "<")
	result = strings.ReplaceAll(result, "&gt;", ">")
	result = strings.ReplaceAll(result, "&amp;", "&")
	result = strings.ReplaceAll(result, "&quot;", "\"")
	result = strings.ReplaceAll(result, "&#39;", "'")
	// Re-strip after entity decode to catch encoded tags
	result = htmlTagRegex.ReplaceAllString(result, "")
	return strings.TrimSpace(result)
}

// Text sanitizes a string for safe text storage by stripping HTML
// and collapsing whitespace runs. Use for names and free text sent to the
// customer directory.
func Text(s string) string {
	return spaceRegex.ReplaceAllString(StripHTML(s), " ")
}

// SpokenEmail rebuilds an email address from dictated text: spoken symbol
// words become their characters, every space is removed and the result is
// lower-cased. "Jean point Dupont arobase example dot com" becomes
// "jean.dupont@example.com".
func SpokenEmail(s string) string {
	tokens := strings.Fields(strings.ToLower(StripHTML(s)))
	var b strings.Builder
	for _, tok := range tokens {
		if sym, ok := spokenSymbols[tok]; ok {
			b.WriteString(sym)
			continue
		}
		b.WriteString(tok)
	}
	return b.String()
}
