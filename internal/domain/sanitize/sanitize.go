// Package sanitize normalizes free-text user input before it is persisted.
package sanitize

import (
	"regexp"
	"strings"
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// entityPattern matches the entities Clean itself produces. Ampersands that
// start one of these are left alone so that cleaning is idempotent.
var entityPattern = regexp.MustCompile(`^&(amp|lt|gt|quot|#x27);`)

// Clean strips markup and control characters from a free-text value and
// normalizes its whitespace. Ampersand escaping runs before the other
// special characters so freshly produced entities are not escaped twice.
// PRE: s is a scalar free-text field, not structural data
// POST: Result contains no tags, no NUL bytes, single internal spaces,
// trimmed ends; Clean(Clean(s)) == Clean(s)
func Clean(s string) string {
	s = tagPattern.ReplaceAllString(s, "")

	s = escapeAmp(s)
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, `"`, "&quot;")
	s = strings.ReplaceAll(s, "'", "&#x27;")

	s = strings.ReplaceAll(s, "\x00", "")

	return strings.Join(strings.Fields(s), " ")
}

// escapeAmp replaces bare ampersands with &amp;, skipping ampersands that
// already begin a known entity.
func escapeAmp(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '&' {
			b.WriteByte(s[i])
			continue
		}
		if entityPattern.MatchString(s[i:]) {
			b.WriteByte('&')
			continue
		}
		b.WriteString("&amp;")
	}
	return b.String()
}
