// Package textutil normalises short user-supplied strings before they are stored or
// forwarded to third parties.
package textutil

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// maxPasses bounds the sanitize/unescape loop for nested entity encodings.
const maxPasses = 4

// Plain strips all markup from s and trims surrounding whitespace. Entity-encoded
// markup is decoded before stripping, so "&lt;b&gt;" is removed like "<b>". The
// result is plain text and still needs escaping in HTML.
func Plain(s string) string {
	if s == "" {
		return ""
	}
	cur := html.UnescapeString(s)
	for i := 0; i < maxPasses; i++ {
		next := html.UnescapeString(strict.Sanitize(cur))
		if next == cur {
			return strings.TrimSpace(cur)
		}
		cur = next
	}
	// still changing: keep the sanitizer's escaped form rather than decoding it again
	return strings.TrimSpace(strict.Sanitize(cur))
}

// Clamp returns Plain(s) cut to at most max runes.
func Clamp(s string, max int) string {
	s = Plain(s)
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:max]))
}

// Len counts runes, which is what every length limit in the API refers to.
func Len(s string) int { return utf8.RuneCountInString(s) }
