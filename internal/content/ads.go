package content

import "strings"

const paragraphClose = "</p>"

// DefaultAdPositions are the 1-based paragraph indices followed by an ad.
var DefaultAdPositions = []int{3, 7, 12}

// DefaultAdCode is the in-article placeholder block.
const DefaultAdCode = `<span class="ad-label">Advertisement</span><div class="ad-slot" data-placement="in-article"></div>`

// InjectAds inserts adCode after every paragraph whose 1-based index is listed
// in positions. It is a serve-time transform: calling it twice inserts the ads
// twice, so its output must never be stored.
func InjectAds(html, adCode string, positions []int) string {
	if positions == nil {
		positions = DefaultAdPositions
	}
	want := make(map[int]bool, len(positions))
	for _, p := range positions {
		want[p] = true
	}

	fragments := strings.Split(html, paragraphClose)

	var b strings.Builder
	b.Grow(len(html) + len(positions)*(len(adCode)+40))
	for i, fragment := range fragments {
		b.WriteString(fragment)
		if strings.Contains(fragment, "<p") {
			b.WriteString(paragraphClose)
		}
		if want[i+1] {
			b.WriteString(`<div class="ad-injection my-8">`)
			b.WriteString(adCode)
			b.WriteString(`</div>`)
		}
	}
	return b.String()
}
