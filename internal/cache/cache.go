// Package cache stores rendered public pages and feeds, and drops them when an
// article changes.
package cache

import (
	"context"
	"time"

	"github.com/skyauthor/newsroom/internal/models"
)

const (
	KeyHome     = "page:home"
	KeyTrending = "page:trending"
	KeyRSS      = "feed:rss"
	KeySitemap  = "feed:sitemap"
	KeyNews     = "feed:news-sitemap"

	categoryPrefix = "page:category:"
	articlePrefix  = "page:article:"
	feedPattern    = "feed:*"
	viewPrefix     = "view:"
)

// PageCache is implemented by RedisCache and MemoryCache.
type PageCache interface {
	// Get returns the cached value and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// InvalidateArticle drops every page that lists or shows the article.
	InvalidateArticle(ctx context.Context, slug, category string) error
	// MarkViewed records key for window and reports whether it was new.
	MarkViewed(ctx context.Context, key string, window time.Duration) (bool, error)
	Close() error
}

// CategoryKey accepts a category value or key: "Web Dev" and "web-dev" map to
// the same page.
func CategoryKey(category string) string {
	return categoryPrefix + models.CategoryKey(category)
}

func ArticleKey(slug string) string {
	return articlePrefix + slug
}

// pageKeys lists the fixed keys touched by a change to one article.
func pageKeys(slug, category string) []string {
	keys := []string{KeyHome, KeyTrending, ArticleKey(slug)}
	if category != "" {
		keys = append(keys, CategoryKey(category))
	}
	return keys
}
