package content

import (
	"strings"
	"unicode/utf8"
)

const (
	// MaxBasicTakeaways is how many sentences the basic synthesizer keeps.
	MaxBasicTakeaways = 3

	minTakeawayLength = 30
	maxTakeawayLength = 200
)

// SynthesizeTakeaways returns the first sentences of the stripped content whose
// length is strictly between 30 and 200 characters.
func SynthesizeTakeaways(html string) []string {
	sentences := strings.FieldsFunc(StripTags(html), func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})

	out := make([]string, 0, MaxBasicTakeaways)
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		n := utf8.RuneCountInString(s)
		if n <= minTakeawayLength || n >= maxTakeawayLength {
			continue
		}
		out = append(out, s)
		if len(out) == MaxBasicTakeaways {
			break
		}
	}
	return out
}

// CleanTakeaways trims entries and drops the blank ones.
func CleanTakeaways(in []string) []string {
	out := make([]string, 0, len(in))
	for _, t := range in {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
