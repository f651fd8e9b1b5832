package feed

import (
	"encoding/xml"
	"fmt"
	"time"

	"github.com/skyauthor/newsroom/internal/models"
)

type rss struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Atom    string     `xml:"xmlns:atom,attr"`
	Content string     `xml:"xmlns:content,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	Language      string    `xml:"language"`
	LastBuildDate string    `xml:"lastBuildDate"`
	AtomLink      atomLink  `xml:"atom:link"`
	Image         rssImage  `xml:"image"`
	Items         []rssItem `xml:"item"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type rssImage struct {
	URL   string `xml:"url"`
	Title string `xml:"title"`
	Link  string `xml:"link"`
}

type cdata struct {
	Text string `xml:",cdata"`
}

type rssItem struct {
	Title       cdata         `xml:"title"`
	Link        string        `xml:"link"`
	GUID        rssGUID       `xml:"guid"`
	Description cdata         `xml:"description"`
	PubDate     string        `xml:"pubDate"`
	Category    string        `xml:"category,omitempty"`
	Enclosure   *rssEnclosure `xml:"enclosure"`
}

type rssGUID struct {
	IsPermaLink bool   `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

type rssEnclosure struct {
	URL  string `xml:"url,attr"`
	Type string `xml:"type,attr"`
}

// RSS renders an RSS 2.0 feed of the newest published articles.
func (b *Builder) RSS(latest []*models.Article) ([]byte, error) {
	items := published(latest)
	if len(items) > RSSLimit {
		items = items[:RSSLimit]
	}

	doc := rss{
		Version: "2.0",
		Atom:    "http://www.w3.org/2005/Atom",
		Content: "http://purl.org/rss/1.0/modules/content/",
		Channel: rssChannel{
			Title:         b.site.Name,
			Link:          b.site.URL,
			Description:   b.site.Description,
			Language:      b.site.Language,
			LastBuildDate: b.now().Format(time.RFC1123Z),
			AtomLink:      atomLink{Href: b.site.URL + "/rss.xml", Rel: "self", Type: "application/rss+xml"},
			Image:         rssImage{URL: b.site.URL + "/logo.png", Title: b.site.Name, Link: b.site.URL},
			Items:         make([]rssItem, 0, len(items)),
		},
	}

	for _, a := range items {
		link := b.site.ArticleURL(a.Slug)
		description := a.Excerpt
		if description == "" {
			description = a.MetaDescription
		}

		item := rssItem{
			Title:       cdata{a.Title},
			Link:        link,
			GUID:        rssGUID{IsPermaLink: true, Value: link},
			Description: cdata{description},
			PubDate:     a.PubDate().UTC().Format(time.RFC1123Z),
			Category:    a.Category,
		}
		if a.ImageURL != "" {
			item.Enclosure = &rssEnclosure{URL: a.ImageURL, Type: "image/jpeg"}
		}
		doc.Channel.Items = append(doc.Channel.Items, item)
	}

	return marshal(doc)
}

func marshal(v any) ([]byte, error) {
	out, err := xml.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal xml: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}
