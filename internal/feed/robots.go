package feed

import (
	"fmt"
	"strings"
)

// Robots renders robots.txt. Crawlers may index everything except the admin
// area and the API.
func (b *Builder) Robots() []byte {
	var sb strings.Builder
	sb.WriteString("User-agent: *\nAllow: /\nDisallow: /admin/\nDisallow: /api/\n\n")
	sb.WriteString("User-agent: Googlebot\nAllow: /\n\n")
	sb.WriteString("User-agent: Bingbot\nAllow: /\n\n")
	fmt.Fprintf(&sb, "Sitemap: %s\n", b.site.SitemapURL())
	return []byte(sb.String())
}
