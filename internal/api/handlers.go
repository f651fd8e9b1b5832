package api

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/skyauthor/newsroom/internal/cache"
	"github.com/skyauthor/newsroom/internal/feed"
	"github.com/skyauthor/newsroom/internal/logger"
	"github.com/skyauthor/newsroom/internal/middleware"
	"github.com/skyauthor/newsroom/internal/models"
	"github.com/skyauthor/newsroom/internal/service"
	"github.com/skyauthor/newsroom/internal/utils"
)

const (
	publicCacheControl = "public, max-age=3600"
	adminCacheControl  = "no-store"
	contentTypeJSON    = fiber.MIMEApplicationJSONCharsetUTF8

	defaultVersion = "1.0.0"
)

// Options tunes the handlers. Zero values select the defaults.
type Options struct {
	CacheTTL time.Duration
	Version  string
}

type Handlers struct {
	articles *service.Articles
	pages    cache.PageCache
	feeds    *feed.Builder
	ttl      time.Duration
	version  string
	started  time.Time
}

// NewHandlers wires the HTTP handlers. pages may be nil to disable caching.
func NewHandlers(articles *service.Articles, pages cache.PageCache, feeds *feed.Builder, opts Options) *Handlers {
	if opts.Version == "" {
		opts.Version = defaultVersion
	}
	return &Handlers{
		articles: articles,
		pages:    pages,
		feeds:    feeds,
		ttl:      opts.CacheTTL,
		version:  opts.Version,
		started:  time.Now(),
	}
}

// articleView is an article as readers receive it
type articleView struct {
	*models.Article
	CategoryLabel string `json:"category_label,omitempty"`
	CategoryColor string `json:"category_color,omitempty"`
}

func (h *Handlers) view(a *models.Article) articleView {
	v := articleView{Article: a}
	if cat, ok := h.articles.Category(a.Category); ok {
		v.CategoryLabel = cat.Label
		v.CategoryColor = cat.Color
	}
	return v
}

func (h *Handlers) views(list []*models.Article) []articleView {
	out := make([]articleView, 0, len(list))
	for _, a := range list {
		out = append(out, h.view(a))
	}
	return out
}

// listQuery is validated by middleware.ValidateQuery on every list route.
// Zero values select the defaults.
type listQuery struct {
	Q        string `query:"q" json:"q"`
	Page     int    `query:"page" json:"page" validate:"gte=0"`
	PageSize int    `query:"page_size" json:"page_size" validate:"gte=0"`
	Limit    int    `query:"limit" json:"limit" validate:"gte=0,lte=100"`
}

func queryFrom(c *fiber.Ctx) *listQuery {
	return middleware.Body[listQuery](c)
}

func pageFrom(c *fiber.Ctx) service.Page {
	q := queryFrom(c)
	return service.Page{Number: q.Page, Size: q.PageSize}.Normalize()
}

// limitFrom returns the limit parameter, or def when it is unset.
func limitFrom(c *fiber.Ctx, def int) int {
	if n := queryFrom(c).Limit; n > 0 {
		return n
	}
	return def
}

// cacheable reports whether the page is the one kept in the page cache.
func cacheable(p service.Page) bool {
	return p.Number == 1 && p.Size == service.DefaultPageSize
}

// cached serves key from the page cache, rendering and storing it on a miss.
// Cache failures are logged and the page is rendered fresh.
func (h *Handlers) cached(c *fiber.Ctx, key, contentType string, render func() ([]byte, error)) error {
	ctx := c.UserContext()
	log := logger.WithContext(ctx)

	if h.pages != nil {
		body, ok, err := h.pages.Get(ctx, key)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Page cache read failed")
		} else if ok {
			c.Set("X-Cache", "HIT")
			return sendPublic(c, contentType, body)
		}
	}

	body, err := render()
	if err != nil {
		return err
	}
	if h.pages != nil {
		if err := h.pages.Set(ctx, key, body, h.ttl); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Page cache write failed")
		}
		c.Set("X-Cache", "MISS")
	}
	return sendPublic(c, contentType, body)
}

func sendPublic(c *fiber.Ctx, contentType string, body []byte) error {
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderCacheControl, publicCacheControl)
	return c.Send(body)
}

func jsonRender(v func() (interface{}, error)) func() ([]byte, error) {
	return func() ([]byte, error) {
		out, err := v()
		if err != nil {
			return nil, err
		}
		return json.Marshal(out)
	}
}

// HealthCheck handles GET /api/v1/health
func (h *Handlers) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"version": h.version,
		"time":    time.Now().Format(time.RFC3339),
		"uptime":  time.Since(h.started).Round(time.Second).String(),
	})
}

// ListArticles handles GET /api/v1/articles
func (h *Handlers) ListArticles(c *fiber.Ctx) error {
	page := pageFrom(c)
	render := jsonRender(func() (interface{}, error) {
		list, err := h.articles.Latest(c.UserContext(), page)
		if err != nil {
			return nil, err
		}
		return fiber.Map{
			"page":      page.Number,
			"page_size": page.Size,
			"count":     len(list),
			"items":     h.views(list),
		}, nil
	})

	if !cacheable(page) {
		body, err := render()
		if err != nil {
			return err
		}
		return sendPublic(c, contentTypeJSON, body)
	}
	return h.cached(c, cache.KeyHome, contentTypeJSON, render)
}

// GetArticle handles GET /api/v1/articles/:slug. Every render counts as a
// view, cached or not.
func (h *Handlers) GetArticle(c *fiber.Ctx) error {
	slug := c.Params("slug")
	viewer := utils.ViewerKey(c.IP(), c.Get(fiber.HeaderUserAgent))

	counted := false
	err := h.cached(c, cache.ArticleKey(slug), contentTypeJSON, jsonRender(func() (interface{}, error) {
		a, err := h.articles.View(c.UserContext(), slug, viewer)
		if err != nil {
			return nil, err
		}
		counted = true

		rendered := *a
		rendered.Content = h.articles.RenderContent(a)
		return h.view(&rendered), nil
	}))
	if err == nil && !counted {
		h.articles.CountView(slug, viewer)
	}
	return err
}

// Trending handles GET /api/v1/trending
func (h *Handlers) Trending(c *fiber.Ctx) error {
	limit := limitFrom(c, service.TrendingLimit)
	render := jsonRender(func() (interface{}, error) {
		list, err := h.articles.Trending(c.UserContext(), limit)
		if err != nil {
			return nil, err
		}
		return fiber.Map{"items": h.views(list)}, nil
	})

	if limit != service.TrendingLimit {
		body, err := render()
		if err != nil {
			return err
		}
		return sendPublic(c, contentTypeJSON, body)
	}
	return h.cached(c, cache.KeyTrending, contentTypeJSON, render)
}

// Categories handles GET /api/v1/categories
func (h *Handlers) Categories(c *fiber.Ctx) error {
	c.Set(fiber.HeaderCacheControl, publicCacheControl)
	return c.JSON(fiber.Map{"items": h.articles.Categories()})
}

// CategoryArticles handles GET /api/v1/categories/:category
func (h *Handlers) CategoryArticles(c *fiber.Ctx) error {
	cat, ok := h.articles.Category(c.Params("category"))
	if !ok {
		return fiber.ErrNotFound
	}
	page := pageFrom(c)
	render := jsonRender(func() (interface{}, error) {
		_, list, err := h.articles.ByCategory(c.UserContext(), cat.Key, page)
		if err != nil {
			return nil, err
		}
		return fiber.Map{
			"category":  cat,
			"page":      page.Number,
			"page_size": page.Size,
			"items":     h.views(list),
		}, nil
	})

	if !cacheable(page) {
		body, err := render()
		if err != nil {
			return err
		}
		return sendPublic(c, contentTypeJSON, body)
	}
	return h.cached(c, cache.CategoryKey(cat.Key), contentTypeJSON, render)
}

// Search handles GET /api/v1/search?q=
func (h *Handlers) Search(c *fiber.Ctx) error {
	q := queryFrom(c).Q
	list, err := h.articles.Search(c.UserContext(), q, limitFrom(c, service.DefaultPageSize))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"query": q,
		"count": len(list),
		"items": h.views(list),
	})
}

type subscribeRequest struct {
	Email string `json:"email"`
}

// Subscribe handles POST /api/v1/subscribe
func (h *Handlers) Subscribe(c *fiber.Ctx) error {
	var req subscribeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.articles.Subscribe(c.UserContext(), req.Email); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status":  "subscribed",
		"message": "Thanks for subscribing!",
	})
}

// RSS handles GET /rss.xml and /feed.xml
func (h *Handlers) RSS(c *fiber.Ctx) error {
	return h.cached(c, cache.KeyRSS, feed.ContentTypeXML, func() ([]byte, error) {
		list, err := h.articles.Published(c.UserContext())
		if err != nil {
			return nil, err
		}
		return h.feeds.RSS(list)
	})
}

// Sitemap handles GET /sitemap.xml
func (h *Handlers) Sitemap(c *fiber.Ctx) error {
	return h.cached(c, cache.KeySitemap, feed.ContentTypeXML, func() ([]byte, error) {
		list, err := h.articles.Published(c.UserContext())
		if err != nil {
			return nil, err
		}
		return h.feeds.Sitemap(list)
	})
}

// NewsSitemap handles GET /news-sitemap.xml
func (h *Handlers) NewsSitemap(c *fiber.Ctx) error {
	return h.cached(c, cache.KeyNews, feed.ContentTypeXML, func() ([]byte, error) {
		list, err := h.articles.Published(c.UserContext())
		if err != nil {
			return nil, err
		}
		return h.feeds.NewsSitemap(list)
	})
}

// Robots handles GET /robots.txt
func (h *Handlers) Robots(c *fiber.Ctx) error {
	return sendPublic(c, feed.ContentTypeText, h.feeds.Robots())
}

// AdminListArticles handles GET /api/v1/admin/articles
func (h *Handlers) AdminListArticles(c *fiber.Ctx) error {
	page := pageFrom(c)
	list, err := h.articles.All(c.UserContext(), page)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderCacheControl, adminCacheControl)
	return c.JSON(fiber.Map{
		"page":      page.Number,
		"page_size": page.Size,
		"count":     len(list),
		"items":     list,
	})
}

// AdminGetArticle handles GET /api/v1/admin/articles/:id
func (h *Handlers) AdminGetArticle(c *fiber.Ctx) error {
	a, err := h.articles.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderCacheControl, adminCacheControl)
	return c.JSON(a)
}

// CreateArticle handles POST /api/v1/admin/articles
func (h *Handlers) CreateArticle(c *fiber.Ctx) error {
	input := middleware.Body[models.ArticleInput](c)
	a, err := h.articles.Create(c.UserContext(), *input)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(a)
}

// UpdateArticle handles PUT /api/v1/admin/articles/:id
func (h *Handlers) UpdateArticle(c *fiber.Ctx) error {
	input := middleware.Body[models.ArticleInput](c)
	a, err := h.articles.Update(c.UserContext(), c.Params("id"), *input)
	if err != nil {
		return err
	}
	return c.JSON(a)
}

type publishRequest struct {
	IsPublished *bool `json:"is_published" validate:"required"`
}

// SetPublished handles PATCH /api/v1/admin/articles/:id/publish
func (h *Handlers) SetPublished(c *fiber.Ctx) error {
	req := middleware.Body[publishRequest](c)
	a, err := h.articles.SetPublished(c.UserContext(), c.Params("id"), *req.IsPublished)
	if err != nil {
		return err
	}
	return c.JSON(a)
}

// DeleteArticle handles DELETE /api/v1/admin/articles/:id
func (h *Handlers) DeleteArticle(c *fiber.Ctx) error {
	if err := h.articles.Delete(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"status":  "deleted",
		"message": "Article deleted successfully",
	})
}

type optimizeRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"category"`
}

// OptimizeSEO handles POST /api/v1/admin/seo-optimize
func (h *Handlers) OptimizeSEO(c *fiber.Ctx) error {
	req := middleware.Body[optimizeRequest](c)
	result, err := h.articles.Optimize(c.UserContext(), req.Title, req.Content, req.Category)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

// Derive handles POST /api/v1/admin/derive
func (h *Handlers) Derive(c *fiber.Ctx) error {
	input := middleware.Body[models.ArticleInput](c)
	d, err := h.articles.Derive(*input)
	if err != nil {
		return err
	}
	return c.JSON(d)
}

type slugRequest struct {
	Slug string `json:"slug"`
}

type notifyRequest struct {
	Slug string `json:"slug" validate:"required"`
}

// NotifyIndex handles POST /api/v1/admin/index
func (h *Handlers) NotifyIndex(c *fiber.Ctx) error {
	req := middleware.Body[notifyRequest](c)
	url, err := h.articles.NotifyIndex(c.UserContext(), req.Slug)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status": "queued",
		"url":    url,
	})
}

// Revalidate handles POST /api/v1/admin/revalidate. An empty slug drops only
// the shared pages and feeds.
func (h *Handlers) Revalidate(c *fiber.Ctx) error {
	req := middleware.Body[slugRequest](c)
	if err := h.articles.Revalidate(c.UserContext(), req.Slug); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"revalidated": true,
		"slug":        req.Slug,
	})
}

// Stats handles GET /api/v1/admin/stats
func (h *Handlers) Stats(c *fiber.Ctx) error {
	st, err := h.articles.Stats(c.UserContext())
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderCacheControl, adminCacheControl)
	return c.JSON(st)
}
