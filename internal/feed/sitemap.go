package feed

import (
	"encoding/xml"
	"time"

	"github.com/skyauthor/newsroom/internal/models"
)

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	News    string       `xml:"xmlns:news,attr,omitempty"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc        string    `xml:"loc"`
	LastMod    string    `xml:"lastmod,omitempty"`
	ChangeFreq string    `xml:"changefreq,omitempty"`
	Priority   string    `xml:"priority,omitempty"`
	News       *newsNews `xml:"news:news"`
}

type newsNews struct {
	Publication     newsPublication `xml:"news:publication"`
	PublicationDate string          `xml:"news:publication_date"`
	Title           cdata           `xml:"news:title"`
	Keywords        string          `xml:"news:keywords"`
}

type newsPublication struct {
	Name     string `xml:"news:name"`
	Language string `xml:"news:language"`
}

const sitemapNS = "http://www.sitemaps.org/schemas/sitemap/0.9"

// Sitemap lists the static pages, one page per category and every published
// article.
func (b *Builder) Sitemap(articles []*models.Article) ([]byte, error) {
	today := b.now().Format("2006-01-02")

	set := urlSet{Xmlns: sitemapNS}
	set.URLs = append(set.URLs,
		sitemapURL{Loc: b.site.URL, LastMod: today, ChangeFreq: "daily", Priority: "1.0"},
		sitemapURL{Loc: b.site.URL + "/trending", LastMod: today, ChangeFreq: "daily", Priority: "0.9"},
		sitemapURL{Loc: b.site.URL + "/search", LastMod: today, ChangeFreq: "weekly", Priority: "0.6"},
	)
	for _, c := range b.categories {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        b.site.URL + "/category/" + c,
			LastMod:    today,
			ChangeFreq: "daily",
			Priority:   "0.7",
		})
	}
	for _, a := range published(articles) {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        b.site.ArticleURL(a.Slug),
			LastMod:    a.LastModified().UTC().Format(time.RFC3339),
			ChangeFreq: "weekly",
			Priority:   "0.8",
		})
	}

	return marshal(set)
}

// NewsSitemap lists published articles created within NewsWindow.
func (b *Builder) NewsSitemap(articles []*models.Article) ([]byte, error) {
	cutoff := b.now().Add(-NewsWindow)

	set := urlSet{
		Xmlns: sitemapNS,
		News:  "http://www.google.com/schemas/sitemap-news/0.9",
		URLs:  []sitemapURL{},
	}
	for _, a := range published(articles) {
		if a.CreatedAt.Before(cutoff) {
			continue
		}
		keywords := a.Category
		if keywords == "" {
			keywords = "news"
		}
		set.URLs = append(set.URLs, sitemapURL{
			Loc: b.site.ArticleURL(a.Slug),
			News: &newsNews{
				Publication:     newsPublication{Name: b.site.Name, Language: "en"},
				PublicationDate: a.CreatedAt.UTC().Format(time.RFC3339),
				Title:           cdata{a.Title},
				Keywords:        keywords,
			},
		})
	}

	return marshal(set)
}
