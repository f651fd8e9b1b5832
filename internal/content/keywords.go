package content

import (
	"sort"
	"strings"
)

// MaxBasicKeywords is how many keywords the frequency extractor returns.
const MaxBasicKeywords = 5

var stopWords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		the a an and or but in on at to for of with by is are was were be been being
		have has had do does did will would could should may might must can this that
		these those i you he she it we they what which who when where why how all each
		every both few more most other some such no nor not only own same so than too
		very just also`) {
		stopWords[w] = struct{}{}
	}
}

// ExtractKeywords ranks the words of title and content by frequency and returns
// the top MaxBasicKeywords. Words of three letters or fewer and stop words are
// ignored; ties keep first-occurrence order.
func ExtractKeywords(title, html string) []string {
	text := strings.ToLower(title + " " + StripTags(html))

	counts := make(map[string]int)
	var order []string
	for _, field := range strings.Fields(text) {
		word := lettersOnly(field)
		if len(word) <= 3 {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		if counts[word] == 0 {
			order = append(order, word)
		}
		counts[word]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	if len(order) > MaxBasicKeywords {
		order = order[:MaxBasicKeywords]
	}
	return append([]string{}, order...)
}

func lettersOnly(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= 'a' && c <= 'z' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// NormalizeKeywords trims, drops blanks and removes case-insensitive duplicates,
// keeping the first spelling.
func NormalizeKeywords(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, k := range in {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		key := strings.ToLower(k)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, k)
	}
	return out
}
