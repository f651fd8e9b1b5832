package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/skyauthor/newsroom/internal/apperr"
	"github.com/skyauthor/newsroom/internal/cache"
	"github.com/skyauthor/newsroom/internal/feed"
	"github.com/skyauthor/newsroom/internal/models"
	"github.com/skyauthor/newsroom/internal/search"
	"github.com/skyauthor/newsroom/internal/storage"
)

type recordingNotifier struct {
	mu   sync.Mutex
	urls []string
}

func (n *recordingNotifier) NotifyPublish(url string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.urls = append(n.urls, url)
}

type recordingInvalidator struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingInvalidator) InvalidateArticle(ctx context.Context, slug, category string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, slug+"|"+category)
	return nil
}

type fixture struct {
	svc      *Articles
	store    *storage.Storage
	index    *search.Index
	cache    *cache.MemoryCache
	notifier *recordingNotifier
	inv      *recordingInvalidator
}

func newFixture(t *testing.T, mutate ...func(*Deps)) *fixture {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "articles.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	idx, err := search.Open("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { idx.Close() })

	f := &fixture{
		store:    store,
		index:    idx,
		cache:    cache.NewMemoryCache(),
		notifier: &recordingNotifier{},
		inv:      &recordingInvalidator{},
	}
	deps := Deps{
		Store:        store,
		Index:        idx,
		Invalidators: []Invalidator{f.cache, f.inv},
		Notifier:     f.notifier,
		Views:        f.cache,
		Categories: models.NewCategoryTable([]models.Category{
			{Value: "Tech", Label: "Tech"},
			{Value: "Money", Label: "Money"},
		}),
		Site: feed.Site{URL: "https://example.com", Name: "Example"},
	}
	for _, m := range mutate {
		m(&deps)
	}
	f.svc = NewArticles(deps)
	return f
}

func validInput(title string) models.ArticleInput {
	return models.ArticleInput{
		Title:        title,
		Content:      "<p>" + strings.Repeat("word ", 400) + "</p>",
		Category:     "Tech",
		KeyTakeaways: []string{"Readers remember concrete takeaways."},
		Keywords:     []string{"go", "Go", " news "},
	}
}

func assertInvalid(t *testing.T, err error, msg string) {
	t.Helper()
	if !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("error = %v, want ErrInvalidInput", err)
	}
	if err.Error() != msg {
		t.Errorf("message = %q, want %q", err.Error(), msg)
	}
}

func TestCreateDraftDerivesFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.Create(ctx, validInput("Hello, World! 2024 Edition"))
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if a.Slug != "hello-world-2024-edition" {
		t.Errorf("Slug = %q", a.Slug)
	}
	if a.ReadingTime != 2 {
		t.Errorf("ReadingTime = %d, want 2", a.ReadingTime)
	}
	if n := len([]rune(a.Excerpt)); n != 200 || !strings.HasSuffix(a.Excerpt, "...") {
		t.Errorf("Excerpt length = %d (%q)", n, a.Excerpt)
	}
	if a.MetaDescription != "" {
		t.Errorf("draft should not get a derived meta description, got %q", a.MetaDescription)
	}
	if strings.Join(a.Keywords, ",") != "go,news" {
		t.Errorf("Keywords = %v", a.Keywords)
	}
	if a.IsPublished || a.PublishedAt != nil {
		t.Error("draft should not be published")
	}
	if len(f.inv.calls) != 0 || len(f.notifier.urls) != 0 {
		t.Error("creating a draft must not invalidate or notify")
	}
}

func TestCreateRequiresTitle(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), models.ArticleInput{Title: "  ", Content: "<p>x</p>"})
	assertInvalid(t, err, msgTitleRequired)
}

func TestPublishRejectsBlankTakeaways(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := validInput("No takeaways")
	in.KeyTakeaways = []string{"", "   "}
	in.Publish = true

	_, err := f.svc.Create(ctx, in)
	assertInvalid(t, err, "add at least one key takeaway.")

	if st, _ := f.store.Stats(ctx); st.TotalArticles != 0 {
		t.Error("rejected publish must not store anything")
	}
	if len(f.notifier.urls) != 0 {
		t.Error("rejected publish must not notify")
	}
}

func TestPublishRejectsEmptyContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := validInput("Empty body")
	in.Content = "<p>   </p>"
	draft, err := f.svc.Create(ctx, in)
	if err != nil {
		t.Fatal(err)
	}

	_, err = f.svc.Publish(ctx, draft.ID)
	assertInvalid(t, err, "please fill in both title and content.")
}

func TestPublishSideEffects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.cache.Set(ctx, cache.KeyHome, []byte("stale"), time.Hour)
	f.cache.Set(ctx, cache.KeyRSS, []byte("stale"), time.Hour)

	draft, err := f.svc.Create(ctx, validInput("Fresh Story"))
	if err != nil {
		t.Fatal(err)
	}

	a, err := f.svc.Publish(ctx, draft.ID)
	if err != nil {
		t.Fatalf("Publish() error: %v", err)
	}
	if !a.IsPublished || a.PublishedAt == nil {
		t.Fatal("article should be published with PublishedAt set")
	}
	if n := len([]rune(a.MetaDescription)); n != 160 {
		t.Errorf("MetaDescription length = %d, want 160", n)
	}

	if _, ok, _ := f.cache.Get(ctx, cache.KeyHome); ok {
		t.Error("home page should be invalidated")
	}
	if _, ok, _ := f.cache.Get(ctx, cache.KeyRSS); ok {
		t.Error("feeds should be invalidated")
	}
	if len(f.inv.calls) != 1 || f.inv.calls[0] != "fresh-story|Tech" {
		t.Errorf("invalidations = %v", f.inv.calls)
	}
	if len(f.notifier.urls) != 1 || f.notifier.urls[0] != "https://example.com/article/fresh-story" {
		t.Errorf("notified = %v", f.notifier.urls)
	}

	found, err := f.svc.Search(ctx, "word", 10)
	if err != nil || len(found) != 1 || found[0].Slug != "fresh-story" {
		t.Errorf("Search() = %v, %v", found, err)
	}

	// publishing again is a no-op
	firstPublished := *a.PublishedAt
	again, err := f.svc.Publish(ctx, draft.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !again.PublishedAt.Equal(firstPublished) {
		t.Error("PublishedAt changed on a repeated publish")
	}
	if len(f.notifier.urls) != 1 {
		t.Error("repeated publish notified again")
	}
}

func TestSlugDisambiguation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	want := []string{"same-title", "same-title-2", "same-title-3", "same-title-4", "same-title-5", "same-title-6"}
	for _, slug := range want {
		a, err := f.svc.Create(ctx, validInput("Same Title"))
		if err != nil {
			t.Fatalf("Create() error: %v", err)
		}
		if a.Slug != slug {
			t.Errorf("Slug = %q, want %q", a.Slug, slug)
		}
	}

	_, err := f.svc.Create(ctx, validInput("Same Title"))
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("seventh Create() error = %v, want ErrConflict", err)
	}
}

func TestUpdatePublishedMovesSlug(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := validInput("Original Title")
	in.Publish = true
	a, err := f.svc.Create(ctx, in)
	if err != nil {
		t.Fatal(err)
	}
	publishedAt := *a.PublishedAt
	f.inv.calls = nil

	in.Title = "Renamed Title"
	in.Category = "Money"
	in.Publish = false
	updated, err := f.svc.Update(ctx, a.ID, in)
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if updated.Slug != "renamed-title" || !updated.IsPublished {
		t.Errorf("updated = %s published=%v", updated.Slug, updated.IsPublished)
	}
	if !updated.PublishedAt.Equal(publishedAt) {
		t.Error("editing must not move PublishedAt")
	}
	if strings.Join(f.inv.calls, ",") != "original-title|Tech,renamed-title|Money" {
		t.Errorf("invalidations = %v", f.inv.calls)
	}

	if _, err := f.svc.View(ctx, "original-title", ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("old slug View() error = %v", err)
	}
	if n, _ := f.index.Count(); n != 1 {
		t.Errorf("index holds %d documents, want 1", n)
	}
}

func TestUpdatePublishedKeepsRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := validInput("Rules Stay")
	in.Publish = true
	a, _ := f.svc.Create(ctx, in)

	in.KeyTakeaways = nil
	_, err := f.svc.Update(ctx, a.ID, in)
	assertInvalid(t, err, "add at least one key takeaway.")
}

func TestUnpublishAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := validInput("Short Lived")
	in.Publish = true
	a, _ := f.svc.Create(ctx, in)

	if _, err := f.svc.SetPublished(ctx, a.ID, false); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.View(ctx, a.Slug, ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unpublished View() error = %v, want ErrNotFound", err)
	}
	if n, _ := f.index.Count(); n != 0 {
		t.Errorf("unpublished article still indexed")
	}

	f.inv.calls = nil
	if err := f.svc.Delete(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	if len(f.inv.calls) != 1 {
		t.Errorf("delete invalidations = %v", f.inv.calls)
	}
	if _, err := f.svc.Get(ctx, a.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("deleted Get() error = %v", err)
	}
	if err := f.svc.Delete(ctx, a.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second Delete() error = %v", err)
	}
}

func TestViewCountsEveryRender(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := validInput("Counted")
	in.Publish = true
	a, _ := f.svc.Create(ctx, in)

	for i := 0; i < 3; i++ {
		if _, err := f.svc.View(ctx, a.Slug, "same-reader"); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.svc.Wait(ctx); err != nil {
		t.Fatal(err)
	}

	got, _ := f.store.GetBySlug(ctx, a.Slug)
	if got.ViewCount != 3 {
		t.Errorf("ViewCount = %d, want 3", got.ViewCount)
	}
}

func TestViewDedupWindow(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.ViewDedupWindow = time.Hour })
	ctx := context.Background()

	in := validInput("Deduped")
	in.Publish = true
	a, _ := f.svc.Create(ctx, in)

	for i := 0; i < 3; i++ {
		f.svc.View(ctx, a.Slug, "reader-1")
		f.svc.Wait(ctx)
	}
	f.svc.View(ctx, a.Slug, "reader-2")
	f.svc.Wait(ctx)

	got, _ := f.store.GetBySlug(ctx, a.Slug)
	if got.ViewCount != 2 {
		t.Errorf("ViewCount = %d, want 2", got.ViewCount)
	}
}

func TestViewDraftIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, _ := f.svc.Create(ctx, validInput("Secret Draft"))
	if _, err := f.svc.View(ctx, a.Slug, ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("View(draft) error = %v, want ErrNotFound", err)
	}
}

func TestMarkdownInput(t *testing.T) {
	f := newFixture(t)
	in := validInput("Markdown Post")
	in.Format = "markdown"
	in.Content = "# Heading\n\nSome **bold** text."

	a, err := f.svc.Create(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(a.Content, "<strong>bold</strong>") {
		t.Errorf("Content = %q", a.Content)
	}

	in.Format = "docx"
	_, err = f.svc.Create(context.Background(), in)
	if !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("unknown format error = %v", err)
	}
}

func TestRenderContentDoesNotPersistAds(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.AdPositions = []int{1} })
	ctx := context.Background()

	in := validInput("With Ads")
	in.Content = "<p>one</p><p>two</p>"
	in.Publish = true
	a, _ := f.svc.Create(ctx, in)

	rendered := f.svc.RenderContent(a)
	if strings.Count(rendered, "ad-injection") != 1 {
		t.Errorf("rendered = %q", rendered)
	}
	stored, _ := f.store.GetBySlug(ctx, a.Slug)
	if strings.Contains(stored.Content, "ad-injection") {
		t.Error("ads leaked into stored content")
	}
}

func TestSearchFallsBackToStore(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.Index = nil })
	ctx := context.Background()

	in := validInput("Fallback Search")
	in.Publish = true
	f.svc.Create(ctx, in)

	got, err := f.svc.Search(ctx, "fallback", 10)
	if err != nil || len(got) != 1 {
		t.Errorf("Search() = %v, %v", got, err)
	}
	if _, err := f.svc.Reindex(ctx); err == nil {
		t.Error("Reindex without an index should fail")
	}
}

func TestReindex(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, title := range []string{"One", "Two"} {
		in := validInput(title)
		in.Publish = true
		f.svc.Create(ctx, in)
	}
	f.svc.Create(ctx, validInput("Draft"))

	n, err := f.svc.Reindex(ctx)
	if err != nil || n != 2 {
		t.Errorf("Reindex() = %d, %v; want 2", n, err)
	}
}

func TestByCategory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := validInput("Tech Story")
	in.Publish = true
	f.svc.Create(ctx, in)

	cat, list, err := f.svc.ByCategory(ctx, "tech", Page{})
	if err != nil || cat.Value != "Tech" || len(list) != 1 {
		t.Errorf("ByCategory(tech) = %+v, %d, %v", cat, len(list), err)
	}
	if _, _, err := f.svc.ByCategory(ctx, "gardening", Page{}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown category error = %v", err)
	}
}

func TestCreateRequiresKnownCategory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, category := range []string{"NotACategory", "", "   "} {
		in := validInput("Bogus category")
		in.Category = category
		in.Publish = true
		_, err := f.svc.Create(ctx, in)
		assertInvalid(t, err, msgChooseCategory)
	}
	if st, _ := f.store.Stats(ctx); st.TotalArticles != 0 {
		t.Error("rejected article must not be stored")
	}

	in := validInput("Lowercase category")
	in.Category = "money"
	a, err := f.svc.Create(ctx, in)
	if err != nil {
		t.Fatal(err)
	}
	if a.Category != "Money" {
		t.Errorf("Category = %q, want the table value", a.Category)
	}

	in.Category = "gardening"
	if _, err := f.svc.Update(ctx, a.ID, in); err == nil {
		t.Error("update to an unknown category should fail")
	}
	stored, _ := f.svc.Get(ctx, a.ID)
	if stored.Category != "Money" {
		t.Errorf("stored category = %q after a rejected update", stored.Category)
	}
}

func TestSubscribe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.Subscribe(ctx, "not-an-email"); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("invalid email error = %v", err)
	}
	if err := f.svc.Subscribe(ctx, "reader@example.com"); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Subscribe(ctx, "READER@example.com"); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("duplicate error = %v, want ErrConflict", err)
	}
}

func TestDerive(t *testing.T) {
	f := newFixture(t)
	d, err := f.svc.Derive(models.ArticleInput{
		Title:   "Hello, World! 2024 Edition",
		Content: "<p>" + strings.Repeat("word ", 300) + "</p>",
	})
	if err != nil {
		t.Fatal(err)
	}
	if d.Slug != "hello-world-2024-edition" || d.WordCount != 300 || d.ReadingTime != 2 {
		t.Errorf("Derive() = %+v", d)
	}
	if len(d.MetaDescription) != 160 || !strings.HasSuffix(d.MetaDescription, "...") {
		t.Errorf("MetaDescription = %q", d.MetaDescription)
	}

	empty, _ := f.svc.Derive(models.ArticleInput{})
	if empty.Slug != "" || empty.ReadingTime != 0 {
		t.Errorf("Derive(empty) = %+v", empty)
	}
}

func TestDetachedInvalidator(t *testing.T) {
	inner := &recordingInvalidator{}
	d := NewDetached("mirror", inner, time.Second)

	if err := d.InvalidateArticle(context.Background(), "slug", "Tech"); err != nil {
		t.Fatal(err)
	}
	if err := d.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(inner.calls) != 1 || inner.calls[0] != "slug|Tech" {
		t.Errorf("calls = %v", inner.calls)
	}
}

func TestOptimizeWithoutOptimizer(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Optimize(context.Background(), "t", "c", "")
	if !errors.Is(err, apperr.ErrOptimizationFailed) {
		t.Errorf("error = %v", err)
	}
}
