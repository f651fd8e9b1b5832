package content

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MetaDescriptionLength caps meta descriptions.
	MetaDescriptionLength = 160
	// CardExcerptLength caps excerpts shown on article cards.
	CardExcerptLength = 200
	// FallbackDescriptionLength is the cap used by the non-AI SEO path.
	FallbackDescriptionLength = 155

	ellipsis = "..."
	// longest entity we back off from, e.g. "&thetasym;"
	maxEntityLength = 10
)

// ExtractExcerpt returns the tag-stripped text of html bounded to maxLength runes,
// including the trailing ellipsis when the text had to be cut. A non-positive
// maxLength selects MetaDescriptionLength.
func ExtractExcerpt(html string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = MetaDescriptionLength
	}

	text := PlainText(html)
	if utf8.RuneCountInString(text) <= maxLength {
		return text
	}
	if maxLength <= len(ellipsis) {
		return Truncate(text, maxLength)
	}

	cut := Truncate(text, maxLength-len(ellipsis))
	cut = trimPartialEntity(cut)
	cut = strings.TrimRightFunc(cut, unicode.IsSpace)
	return cut + ellipsis
}

// trimPartialEntity drops a trailing "&name" that lost its ';' to the cut.
func trimPartialEntity(s string) string {
	amp := strings.LastIndexByte(s, '&')
	if amp < 0 || len(s)-amp > maxEntityLength {
		return s
	}
	tail := s[amp+1:]
	if strings.ContainsAny(tail, "; \t\n") {
		return s
	}
	for _, r := range tail {
		if !(r == '#' || r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r))) {
			return s
		}
	}
	return s[:amp]
}
