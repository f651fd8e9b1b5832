package search

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/skyauthor/newsroom/internal/content"
	"github.com/skyauthor/newsroom/internal/models"
)

// Index wraps a Bleve full-text index of published articles, keyed by slug
type Index struct {
	index bleve.Index
}

// indexedArticle is the document stored per article
type indexedArticle struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Excerpt  string   `json:"excerpt"`
	Category string   `json:"category"`
	Keywords []string `json:"keywords"`
	Tags     []string `json:"tags"`
	Author   string   `json:"author"`
}

// Hit is one search result. Hits come back best match first.
type Hit struct {
	Slug  string  `json:"slug"`
	Score float64 `json:"score"`
}

// Open opens or creates a Bleve index at path. An empty path keeps the index
// in memory.
func Open(path string) (*Index, error) {
	if path == "" {
		idx, err := bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create memory index: %w", err)
		}
		return &Index{index: idx}, nil
	}

	idx, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create index directory: %w", err)
		}
		idx, err = bleve.New(path, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	return &Index{index: idx}, nil
}

// buildIndexMapping analyzes prose in English and keeps the category key as a
// single token.
func buildIndexMapping() mapping.IndexMapping {
	english := bleve.NewTextFieldMapping()
	english.Analyzer = "en"

	keyword := bleve.NewTextFieldMapping()
	keyword.Analyzer = "keyword"

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("title", english)
	docMapping.AddFieldMappingsAt("content", english)
	docMapping.AddFieldMappingsAt("excerpt", english)
	docMapping.AddFieldMappingsAt("category", keyword)
	docMapping.AddFieldMappingsAt("keywords", english)
	docMapping.AddFieldMappingsAt("tags", english)
	docMapping.AddFieldMappingsAt("author", bleve.NewTextFieldMapping())

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = "en"
	return indexMapping
}

func (i *Index) Close() error {
	return i.index.Close()
}

// IndexArticle adds or replaces an article. Drafts are removed instead.
func (i *Index) IndexArticle(a *models.Article) error {
	if !a.IsPublished {
		return i.Delete(a.Slug)
	}
	if err := i.index.Index(a.Slug, toDocument(a)); err != nil {
		return fmt.Errorf("index %s: %w", a.Slug, err)
	}
	return nil
}

// Delete removes the article with slug. Missing documents are not an error.
func (i *Index) Delete(slug string) error {
	if err := i.index.Delete(slug); err != nil {
		return fmt.Errorf("delete %s: %w", slug, err)
	}
	return nil
}

// Search runs a query-string query and returns at most limit hits.
func (i *Index) Search(queryStr string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 20
	}

	// Parse query string (supports quotes, boolean operators, fuzzy ~)
	query := bleve.NewQueryStringQuery(queryStr)

	req := bleve.NewSearchRequestOptions(query, limit, 0, false)
	results, err := i.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	hits := make([]Hit, 0, len(results.Hits))
	for _, h := range results.Hits {
		hits = append(hits, Hit{Slug: h.ID, Score: h.Score})
	}
	return hits, nil
}

// Rebuild replaces the index contents with the given articles.
func (i *Index) Rebuild(articles []*models.Article) (int, error) {
	existing, err := i.slugs()
	if err != nil {
		return 0, err
	}

	batch := i.index.NewBatch()
	for _, slug := range existing {
		batch.Delete(slug)
	}

	indexed := 0
	for _, a := range articles {
		if !a.IsPublished {
			continue
		}
		if err := batch.Index(a.Slug, toDocument(a)); err != nil {
			return 0, fmt.Errorf("batch index %s: %w", a.Slug, err)
		}
		indexed++
	}

	if err := i.index.Batch(batch); err != nil {
		return 0, fmt.Errorf("commit batch: %w", err)
	}
	return indexed, nil
}

// Count returns the number of documents in the index
func (i *Index) Count() (uint64, error) {
	return i.index.DocCount()
}

func (i *Index) slugs() ([]string, error) {
	n, err := i.index.DocCount()
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	if n == 0 {
		return nil, nil
	}

	req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), int(n), 0, false)
	res, err := i.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	out := make([]string, 0, len(res.Hits))
	for _, h := range res.Hits {
		out = append(out, h.ID)
	}
	return out, nil
}

func toDocument(a *models.Article) indexedArticle {
	return indexedArticle{
		Title:    a.Title,
		Content:  content.PlainText(a.Content),
		Excerpt:  a.Excerpt,
		Category: a.CategoryKey(),
		Keywords: a.Keywords,
		Tags:     a.Tags,
		Author:   a.AuthorName,
	}
}
