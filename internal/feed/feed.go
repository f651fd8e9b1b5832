// Package feed renders the RSS feed, sitemaps and robots.txt from published
// articles.
package feed

import (
	"time"

	"github.com/skyauthor/newsroom/internal/models"
)

const (
	// RSSLimit is how many of the latest articles the RSS feed carries.
	RSSLimit = 50
	// NewsWindow bounds the Google News sitemap to recent articles.
	NewsWindow = 48 * time.Hour

	ContentTypeXML  = "application/xml"
	ContentTypeText = "text/plain; charset=utf-8"
)

// Site describes the public site the documents point at.
type Site struct {
	URL         string
	Name        string
	Description string
	Language    string
}

func (s Site) ArticleURL(slug string) string {
	return s.URL + "/article/" + slug
}

func (s Site) SitemapURL() string {
	return s.URL + "/sitemap.xml"
}

// Builder renders feed documents. It holds no state besides configuration.
type Builder struct {
	site       Site
	categories []string
	now        func() time.Time
}

// NewBuilder returns a builder. categories are the category URL keys
// listed in the sitemap.
func NewBuilder(site Site, categories []string) *Builder {
	if site.Language == "" {
		site.Language = "en-us"
	}
	return &Builder{
		site:       site,
		categories: categories,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (b *Builder) Site() Site {
	return b.site
}

// Document is one rendered file with its public path.
type Document struct {
	Path        string
	ContentType string
	Body        []byte
}

// All renders every document served at the site root. latest must be ordered
// newest first; it is used for every document.
func (b *Builder) All(latest []*models.Article) ([]Document, error) {
	rss, err := b.RSS(latest)
	if err != nil {
		return nil, err
	}
	sitemap, err := b.Sitemap(latest)
	if err != nil {
		return nil, err
	}
	news, err := b.NewsSitemap(latest)
	if err != nil {
		return nil, err
	}

	return []Document{
		{Path: "rss.xml", ContentType: ContentTypeXML, Body: rss},
		{Path: "feed.xml", ContentType: ContentTypeXML, Body: rss},
		{Path: "sitemap.xml", ContentType: ContentTypeXML, Body: sitemap},
		{Path: "news-sitemap.xml", ContentType: ContentTypeXML, Body: news},
		{Path: "robots.txt", ContentType: ContentTypeText, Body: b.Robots()},
	}, nil
}

func published(articles []*models.Article) []*models.Article {
	out := make([]*models.Article, 0, len(articles))
	for _, a := range articles {
		if a.IsPublished {
			out = append(out, a)
		}
	}
	return out
}
