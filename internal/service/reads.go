package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/skyauthor/newsroom/internal/apperr"
	"github.com/skyauthor/newsroom/internal/content"
	"github.com/skyauthor/newsroom/internal/models"
	"github.com/skyauthor/newsroom/internal/search"
	"github.com/skyauthor/newsroom/internal/storage"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	TrendingLimit   = 10
)

var validate = validator.New()

// Page selects a 1-based page of results.
type Page struct {
	Number int
	Size   int
}

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	switch {
	case p.Size > MaxPageSize:
		p.Size = MaxPageSize
	case p.Size <= 0:
		p.Size = DefaultPageSize
	}
	return p
}

func (p Page) offset() int {
	return (p.Number - 1) * p.Size
}

// View returns a published article for a reader and counts the view in the
// background. viewerKey identifies the reader when de-duplication is enabled.
func (s *Articles) View(ctx context.Context, slug, viewerKey string) (*models.Article, error) {
	a, err := s.deps.Store.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !a.IsPublished {
		return nil, fmt.Errorf("article %q: %w", slug, apperr.ErrNotFound)
	}

	s.CountView(slug, viewerKey)
	return a, nil
}

// CountView increments the view count of slug in the background. It is used
// directly when the article was served from the page cache.
func (s *Articles) CountView(slug, viewerKey string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), viewCountTimeout)
		defer cancel()

		if s.deps.ViewDedupWindow > 0 && s.deps.Views != nil && viewerKey != "" {
			fresh, err := s.deps.Views.MarkViewed(ctx, slug+":"+viewerKey, s.deps.ViewDedupWindow)
			if err != nil {
				s.log.Warn().Err(err).Str("slug", slug).Msg("View de-duplication failed, counting anyway")
			} else if !fresh {
				return
			}
		}

		if err := s.deps.Store.IncrementViewCount(ctx, slug); err != nil {
			s.log.Error().Err(err).Str("slug", slug).Msg("Error incrementing view count")
		}
	}()
}

// RenderContent returns the article HTML with in-article ads. The result is
// for the response only and must not be saved.
func (s *Articles) RenderContent(a *models.Article) string {
	return content.InjectAds(a.Content, s.deps.AdCode, s.deps.AdPositions)
}

// Latest lists published articles, newest first.
func (s *Articles) Latest(ctx context.Context, page Page) ([]*models.Article, error) {
	page = page.Normalize()
	return s.deps.Store.List(ctx, storage.ListOptions{
		PublishedOnly: true,
		Limit:         page.Size,
		Offset:        page.offset(),
	})
}

// Published lists every published article, newest first, for feeds and
// sitemaps.
func (s *Articles) Published(ctx context.Context) ([]*models.Article, error) {
	return s.deps.Store.List(ctx, storage.ListOptions{PublishedOnly: true})
}

// All lists every article for the admin dashboard, drafts included.
func (s *Articles) All(ctx context.Context, page Page) ([]*models.Article, error) {
	page = page.Normalize()
	return s.deps.Store.List(ctx, storage.ListOptions{Limit: page.Size, Offset: page.offset()})
}

// Trending lists the most viewed published articles.
func (s *Articles) Trending(ctx context.Context, limit int) ([]*models.Article, error) {
	if limit <= 0 || limit > MaxPageSize {
		limit = TrendingLimit
	}
	return s.deps.Store.List(ctx, storage.ListOptions{
		PublishedOnly: true,
		OrderBy:       storage.OrderViews,
		Limit:         limit,
	})
}

// ByCategory lists published articles of a known category.
func (s *Articles) ByCategory(ctx context.Context, category string, page Page) (models.Category, []*models.Article, error) {
	cat, ok := s.Category(category)
	if !ok {
		return models.Category{}, nil, fmt.Errorf("category %q: %w", category, apperr.ErrNotFound)
	}

	page = page.Normalize()
	articles, err := s.deps.Store.List(ctx, storage.ListOptions{
		PublishedOnly: true,
		Category:      cat.Value,
		Limit:         page.Size,
		Offset:        page.offset(),
	})
	return cat, articles, err
}

// Categories returns the category table.
func (s *Articles) Categories() []models.Category {
	if s.deps.Categories == nil {
		return []models.Category{}
	}
	return s.deps.Categories.All()
}

func (s *Articles) Category(value string) (models.Category, bool) {
	if s.deps.Categories == nil {
		return models.Category{}, false
	}
	return s.deps.Categories.Lookup(value)
}

// Search uses the full-text index when available and falls back to the store.
func (s *Articles) Search(ctx context.Context, q string, limit int) ([]*models.Article, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []*models.Article{}, nil
	}
	if limit <= 0 || limit > MaxPageSize {
		limit = DefaultPageSize
	}

	if s.deps.Index != nil {
		hits, err := s.deps.Index.Search(q, limit)
		if err == nil {
			return s.resolveHits(ctx, hits)
		}
		s.log.Warn().Err(err).Str("query", q).Msg("Full-text search failed, using store search")
	}
	return s.deps.Store.Search(ctx, q, limit)
}

func (s *Articles) resolveHits(ctx context.Context, hits []search.Hit) ([]*models.Article, error) {
	out := make([]*models.Article, 0, len(hits))
	for _, h := range hits {
		a, err := s.deps.Store.GetBySlug(ctx, h.Slug)
		if isNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if a.IsPublished {
			out = append(out, a)
		}
	}
	return out, nil
}

// Derive previews the values computed on save.
func (s *Articles) Derive(input models.ArticleInput) (*models.Derived, error) {
	body, err := content.Normalize(input.Content, input.Format)
	if err != nil {
		return nil, apperr.Invalid("format", err.Error())
	}

	metrics := content.DeriveMetrics(body)
	d := &models.Derived{
		WordCount:       metrics.WordCount,
		ReadingTime:     metrics.ReadingTime,
		Excerpt:         content.ExtractExcerpt(body, content.CardExcerptLength),
		MetaDescription: content.ExtractExcerpt(body, content.MetaDescriptionLength),
	}
	if slug, err := content.GenerateSlug(input.Title); err == nil {
		d.Slug = slug
	}
	return d, nil
}

// Optimize asks the SEO optimizer for metadata.
func (s *Articles) Optimize(ctx context.Context, title, body, category string) (*models.SEOResult, error) {
	if s.deps.Optimizer == nil {
		return nil, fmt.Errorf("%w: optimizer not configured", apperr.ErrOptimizationFailed)
	}
	return s.deps.Optimizer.Optimize(ctx, title, body, category)
}

// NotifyIndex re-announces a published article to search engines.
func (s *Articles) NotifyIndex(ctx context.Context, slug string) (string, error) {
	a, err := s.deps.Store.GetBySlug(ctx, slug)
	if err != nil {
		return "", err
	}
	if !a.IsPublished {
		return "", fmt.Errorf("article %q: %w", slug, apperr.ErrNotFound)
	}

	url := s.deps.Site.ArticleURL(a.Slug)
	if s.deps.Notifier != nil {
		s.deps.Notifier.NotifyPublish(url)
	}
	return url, nil
}

// Revalidate drops cached pages for slug, or only the shared pages when slug
// is empty.
func (s *Articles) Revalidate(ctx context.Context, slug string) error {
	category := ""
	if slug != "" {
		a, err := s.deps.Store.GetBySlug(ctx, slug)
		if err != nil {
			return err
		}
		category = a.Category
	}
	s.invalidate(ctx, slug, category)
	return nil
}

// Reindex rebuilds the full-text index from the store.
func (s *Articles) Reindex(ctx context.Context) (int, error) {
	if s.deps.Index == nil {
		return 0, fmt.Errorf("search index not configured")
	}
	articles, err := s.deps.Store.List(ctx, storage.ListOptions{PublishedOnly: true})
	if err != nil {
		return 0, err
	}
	return s.deps.Index.Rebuild(articles)
}

// Subscribe adds an email address to the newsletter.
func (s *Articles) Subscribe(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if err := validate.Var(email, "required,email"); err != nil {
		return apperr.Invalid("email", "please enter a valid email address.")
	}
	if err := s.deps.Store.AddSubscriber(ctx, email); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}

func (s *Articles) Stats(ctx context.Context) (*models.Stats, error) {
	return s.deps.Store.Stats(ctx)
}
