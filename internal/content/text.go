// Package content derives plain text, metrics, excerpts, keywords, takeaways,
// slugs and ad placements from article HTML. Everything here is pure.
package content

import (
	"strings"
	"unicode/utf8"
)

// StripTags removes every <...> span in one left-to-right pass.
// An unterminated '<' and the text after it are kept as-is.
func StripTags(s string) string {
	if !strings.ContainsRune(s, '<') {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); {
		if s[i] != '<' {
			b.WriteByte(s[i])
			i++
			continue
		}
		end := strings.IndexByte(s[i+1:], '>')
		if end < 0 {
			b.WriteString(s[i:])
			break
		}
		i += end + 2
	}
	return b.String()
}

// PlainText strips tags and trims surrounding whitespace.
func PlainText(s string) string {
	return strings.TrimSpace(StripTags(s))
}

// Truncate cuts s to at most n runes without adding a marker.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
