// Package service runs the article lifecycle: derivation on save, publish
// rules, and the side effects of publishing.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/skyauthor/newsroom/internal/apperr"
	"github.com/skyauthor/newsroom/internal/content"
	"github.com/skyauthor/newsroom/internal/feed"
	"github.com/skyauthor/newsroom/internal/logger"
	"github.com/skyauthor/newsroom/internal/models"
	"github.com/skyauthor/newsroom/internal/search"
	"github.com/skyauthor/newsroom/internal/storage"
)

const (
	// maxSlugAttempts bounds the -2 .. -6 suffixes tried on a taken slug.
	maxSlugAttempts = 6

	msgFillTitleContent = "please fill in both title and content."
	msgAddTakeaway      = "add at least one key takeaway."
	msgTitleRequired    = "please add a title."
	msgChooseCategory   = "please choose a category."

	viewCountTimeout = 5 * time.Second
)

// Store is the article persistence the service depends on.
type Store interface {
	GetBySlug(ctx context.Context, slug string) (*models.Article, error)
	GetByID(ctx context.Context, id string) (*models.Article, error)
	SlugTaken(ctx context.Context, slug, exceptID string) (bool, error)
	Save(ctx context.Context, a *models.Article) error
	Delete(ctx context.Context, id string) error
	IncrementViewCount(ctx context.Context, slug string) error
	List(ctx context.Context, opts storage.ListOptions) ([]*models.Article, error)
	Search(ctx context.Context, q string, limit int) ([]*models.Article, error)
	Stats(ctx context.Context) (*models.Stats, error)
	AddSubscriber(ctx context.Context, email string) error
}

// Invalidator drops whatever caches list or show an article.
type Invalidator interface {
	InvalidateArticle(ctx context.Context, slug, category string) error
}

// SearchIndex is the full-text index kept in step with published articles.
type SearchIndex interface {
	IndexArticle(a *models.Article) error
	Delete(slug string) error
	Search(q string, limit int) ([]search.Hit, error)
	Rebuild(articles []*models.Article) (int, error)
}

// Notifier announces newly published URLs to search engines. It must not block.
type Notifier interface {
	NotifyPublish(url string)
}

// Optimizer produces SEO metadata on request.
type Optimizer interface {
	Optimize(ctx context.Context, title, body, category string) (*models.SEOResult, error)
}

// ViewMarker de-duplicates views within a window.
type ViewMarker interface {
	MarkViewed(ctx context.Context, key string, window time.Duration) (bool, error)
}

// Deps wires the service. Index, Notifier, Views and Optimizer are optional.
type Deps struct {
	Store        Store
	Index        SearchIndex
	Invalidators []Invalidator
	Notifier     Notifier
	Optimizer    Optimizer
	Views        ViewMarker
	Categories   *models.CategoryTable
	Site         feed.Site

	ViewDedupWindow time.Duration
	AdCode          string
	AdPositions     []int
}

// Articles implements every article operation exposed over HTTP and the CLI
type Articles struct {
	deps Deps
	now  func() time.Time
	wg   sync.WaitGroup
	log  zerolog.Logger
}

func NewArticles(deps Deps) *Articles {
	if deps.AdCode == "" {
		deps.AdCode = content.DefaultAdCode
	}
	return &Articles{
		deps: deps,
		now:  func() time.Time { return time.Now().UTC() },
		log:  logger.Component("articles"),
	}
}

// Wait blocks until detached view-count updates have finished or ctx expires.
func (s *Articles) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Create stores a new article, publishing it when input.Publish is set.
func (s *Articles) Create(ctx context.Context, input models.ArticleInput) (*models.Article, error) {
	a := &models.Article{}
	if err := s.apply(a, input); err != nil {
		return nil, err
	}

	if input.Publish {
		if err := validatePublish(a); err != nil {
			return nil, err
		}
		s.markPublished(a)
	}

	if err := s.assignSlug(ctx, a); err != nil {
		return nil, err
	}
	if err := s.deps.Store.Save(ctx, a); err != nil {
		return nil, fmt.Errorf("create article: %w", err)
	}

	s.log.Info().Str("id", a.ID).Str("slug", a.Slug).Bool("published", a.IsPublished).Msg("Article created")
	if a.IsPublished {
		s.afterPublish(ctx, a)
	}
	return a, nil
}

// Update replaces the editable fields of an article. A published article stays
// published and must keep satisfying the publish rules.
func (s *Articles) Update(ctx context.Context, id string, input models.ArticleInput) (*models.Article, error) {
	a, err := s.deps.Store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	wasPublished := a.IsPublished
	oldSlug, oldCategory, oldTitle := a.Slug, a.Category, a.Title

	if err := s.apply(a, input); err != nil {
		return nil, err
	}

	if wasPublished || input.Publish {
		if err := validatePublish(a); err != nil {
			return nil, err
		}
		if !wasPublished {
			s.markPublished(a)
		}
	}

	if a.Title != oldTitle || a.Slug == "" {
		if err := s.assignSlug(ctx, a); err != nil {
			return nil, err
		}
	}
	if err := s.deps.Store.Save(ctx, a); err != nil {
		return nil, fmt.Errorf("update article: %w", err)
	}

	switch {
	case !wasPublished && a.IsPublished:
		s.afterPublish(ctx, a)
	case wasPublished:
		if oldSlug != a.Slug || !strings.EqualFold(oldCategory, a.Category) {
			s.invalidate(ctx, oldSlug, oldCategory)
			s.unindex(oldSlug)
		}
		s.invalidate(ctx, a.Slug, a.Category)
		s.index(a)
	}
	return a, nil
}

// Publish makes a draft public. Publishing a published article is a no-op.
func (s *Articles) Publish(ctx context.Context, id string) (*models.Article, error) {
	a, err := s.deps.Store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.IsPublished {
		return a, nil
	}
	if err := validatePublish(a); err != nil {
		return nil, err
	}

	s.markPublished(a)
	if a.MetaDescription == "" {
		a.MetaDescription = content.ExtractExcerpt(a.Content, content.MetaDescriptionLength)
	}
	if err := s.deps.Store.Save(ctx, a); err != nil {
		return nil, fmt.Errorf("publish article: %w", err)
	}

	s.afterPublish(ctx, a)
	return a, nil
}

// Unpublish hides an article from readers. PublishedAt is kept.
func (s *Articles) Unpublish(ctx context.Context, id string) (*models.Article, error) {
	a, err := s.deps.Store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.IsPublished {
		return a, nil
	}

	a.IsPublished = false
	if err := s.deps.Store.Save(ctx, a); err != nil {
		return nil, fmt.Errorf("unpublish article: %w", err)
	}

	s.log.Info().Str("slug", a.Slug).Msg("Article unpublished")
	s.invalidate(ctx, a.Slug, a.Category)
	s.unindex(a.Slug)
	return a, nil
}

// SetPublished publishes or unpublishes.
func (s *Articles) SetPublished(ctx context.Context, id string, published bool) (*models.Article, error) {
	if published {
		return s.Publish(ctx, id)
	}
	return s.Unpublish(ctx, id)
}

func (s *Articles) Delete(ctx context.Context, id string) error {
	a, err := s.deps.Store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.deps.Store.Delete(ctx, id); err != nil {
		return err
	}

	s.log.Info().Str("id", id).Str("slug", a.Slug).Msg("Article deleted")
	s.invalidate(ctx, a.Slug, a.Category)
	s.unindex(a.Slug)
	return nil
}

// Get returns any article by ID, drafts included.
func (s *Articles) Get(ctx context.Context, id string) (*models.Article, error) {
	return s.deps.Store.GetByID(ctx, id)
}

// apply copies input into a and fills derived fields.
func (s *Articles) apply(a *models.Article, input models.ArticleInput) error {
	body, err := content.Normalize(input.Content, input.Format)
	if err != nil {
		return apperr.Invalid("format", err.Error())
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return apperr.Invalid("title", msgTitleRequired)
	}

	cat, ok := s.Category(input.Category)
	if !ok {
		return apperr.Invalid("category", msgChooseCategory)
	}

	a.Title = title
	a.Content = body
	a.Category = cat.Value
	a.Keywords = content.NormalizeKeywords(input.Keywords)
	a.KeyTakeaways = content.CleanTakeaways(input.KeyTakeaways)
	a.Tags = content.NormalizeKeywords(input.Tags)
	a.ImageURL = strings.TrimSpace(input.ImageURL)
	a.AuthorName = strings.TrimSpace(input.AuthorName)
	a.IsFeatured = input.IsFeatured
	a.ReadingTime = content.DeriveMetrics(body).ReadingTime

	a.Excerpt = strings.TrimSpace(input.Excerpt)
	if a.Excerpt == "" {
		a.Excerpt = content.ExtractExcerpt(body, content.CardExcerptLength)
	}

	a.MetaDescription = content.Truncate(strings.TrimSpace(input.MetaDescription), content.MetaDescriptionLength)
	if a.MetaDescription == "" && (input.Publish || a.IsPublished) {
		a.MetaDescription = content.ExtractExcerpt(body, content.MetaDescriptionLength)
	}
	return nil
}

func (s *Articles) markPublished(a *models.Article) {
	now := s.now()
	a.IsPublished = true
	a.PublishedAt = &now
}

// assignSlug derives the slug from the title, appending -2 .. -6 while it is
// taken by another article.
func (s *Articles) assignSlug(ctx context.Context, a *models.Article) error {
	base, err := content.GenerateSlug(a.Title)
	if err != nil {
		return apperr.Invalid("title", msgTitleRequired)
	}

	for attempt := 1; attempt <= maxSlugAttempts; attempt++ {
		candidate := content.Disambiguate(base, attempt)
		taken, err := s.deps.Store.SlugTaken(ctx, candidate, a.ID)
		if err != nil {
			return err
		}
		if !taken {
			a.Slug = candidate
			return nil
		}
	}
	return fmt.Errorf("%w: slug %q and its variants are taken, change the title", apperr.ErrConflict, base)
}

// validatePublish enforces the publish rules. Only the first failing rule is
// reported.
func validatePublish(a *models.Article) error {
	if strings.TrimSpace(a.Title) == "" || content.PlainText(a.Content) == "" {
		return apperr.Invalid("content", msgFillTitleContent)
	}
	if len(content.CleanTakeaways(a.KeyTakeaways)) == 0 {
		return apperr.Invalid("key_takeaways", msgAddTakeaway)
	}
	return nil
}

func (s *Articles) afterPublish(ctx context.Context, a *models.Article) {
	s.log.Info().Str("slug", a.Slug).Msg("Article published")
	s.invalidate(ctx, a.Slug, a.Category)
	s.index(a)
	if s.deps.Notifier != nil {
		s.deps.Notifier.NotifyPublish(s.deps.Site.ArticleURL(a.Slug))
	}
}

func (s *Articles) invalidate(ctx context.Context, slug, category string) {
	for _, inv := range s.deps.Invalidators {
		if err := inv.InvalidateArticle(ctx, slug, category); err != nil {
			s.log.Error().Err(err).Str("slug", slug).Msg("Cache invalidation failed")
		}
	}
}

func (s *Articles) index(a *models.Article) {
	if s.deps.Index == nil {
		return
	}
	if err := s.deps.Index.IndexArticle(a); err != nil {
		s.log.Error().Err(err).Str("slug", a.Slug).Msg("Search indexing failed")
	}
}

func (s *Articles) unindex(slug string) {
	if s.deps.Index == nil {
		return
	}
	if err := s.deps.Index.Delete(slug); err != nil {
		s.log.Error().Err(err).Str("slug", slug).Msg("Search index delete failed")
	}
}

// isNotFound reports whether err means the article does not exist.
func isNotFound(err error) bool {
	return errors.Is(err, apperr.ErrNotFound)
}
