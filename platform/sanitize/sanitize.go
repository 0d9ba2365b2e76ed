// Package sanitize provides text sanitization for profile data that comes
// from scraped, untrusted sources.
package sanitize

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// StripHTML removes all HTML tags from a string and decodes entities,
// making it safe for text-only display.
func StripHTML(s string) string {
	result := html.UnescapeString(strict.Sanitize(s))
	// Second pass catches tags that were hidden behind entities.
	result = html.UnescapeString(strict.Sanitize(result))
	return strings.TrimSpace(result)
}

// Text strips HTML and drops control characters other than newline and tab.
func Text(s string) string {
	stripped := StripHTML(s)
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, stripped)
}
