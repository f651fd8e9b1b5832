package content

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/skyauthor/newsroom/internal/apperr"
	"github.com/skyauthor/newsroom/internal/utils"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// letters that NFD leaves intact
var foldReplacer = strings.NewReplacer(
	"ß", "ss", "æ", "ae", "Æ", "ae", "ø", "o", "Ø", "o", "đ", "d", "Đ", "d",
	"ł", "l", "Ł", "l", "œ", "oe", "Œ", "oe", "þ", "th", "Þ", "th", "ı", "i",
)

// GenerateSlug derives a lowercase, ASCII, hyphen-separated slug from title.
// The same title always yields the same slug. Titles without any ASCII letter or
// digit after folding get "article-" plus a short hash of the title.
func GenerateSlug(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", fmt.Errorf("%w: title is required", apperr.ErrInvalidInput)
	}

	folded, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		foldReplacer.Replace(title),
	)
	if err != nil {
		folded = title
	}

	var b strings.Builder
	b.Grow(len(folded))
	pendingHyphen := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}

	if b.Len() == 0 {
		return "article-" + utils.ShortHash(title), nil
	}
	return b.String(), nil
}

// Disambiguate appends a numeric suffix used when a slug is already taken.
func Disambiguate(slug string, attempt int) string {
	if attempt <= 1 {
		return slug
	}
	return fmt.Sprintf("%s-%d", slug, attempt)
}
