package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/skyauthor/newsroom/internal/apperr"
	"github.com/skyauthor/newsroom/internal/models"
)

// Order selects the sort used by List
type Order string

const (
	OrderNewest Order = "newest"
	OrderViews  Order = "views"
)

// ListOptions filters List results.
type ListOptions struct {
	PublishedOnly bool
	Category      string
	Since         time.Time
	OrderBy       Order
	Limit         int
	Offset        int
}

// Storage persists articles and newsletter subscribers in SQLite
type Storage struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the SQLite database at path
func Open(path string) (*Storage, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	s := &Storage{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS articles (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		content TEXT NOT NULL DEFAULT '',
		excerpt TEXT NOT NULL DEFAULT '',
		meta_description TEXT NOT NULL DEFAULT '',
		keywords TEXT NOT NULL DEFAULT '[]',
		key_takeaways TEXT NOT NULL DEFAULT '[]',
		category TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '[]',
		image_url TEXT NOT NULL DEFAULT '',
		author_name TEXT NOT NULL DEFAULT '',
		is_featured INTEGER NOT NULL DEFAULT 0,
		is_published INTEGER NOT NULL DEFAULT 0,
		reading_time INTEGER NOT NULL DEFAULT 0,
		view_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		published_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_articles_published ON articles(is_published, created_at);
	CREATE INDEX IF NOT EXISTS idx_articles_category ON articles(category COLLATE NOCASE);
	CREATE INDEX IF NOT EXISTS idx_articles_views ON articles(view_count);

	CREATE TABLE IF NOT EXISTS newsletter_subscribers (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		subscribed_at TIMESTAMP NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

const articleColumns = `id, title, slug, content, excerpt, meta_description, keywords, key_takeaways,
	category, tags, image_url, author_name, is_featured, is_published, reading_time, view_count,
	created_at, updated_at, published_at`

// Save inserts the article when it has no ID and updates it otherwise.
// A slug already used by another article yields apperr.ErrConflict.
func (s *Storage) Save(ctx context.Context, a *models.Article) error {
	now := s.now()
	a.UpdatedAt = now

	keywords, takeaways, tags, err := encodeLists(a)
	if err != nil {
		return err
	}

	if a.ID == "" {
		a.ID = uuid.NewString()
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		_, err = s.db.ExecContext(ctx, `
		INSERT INTO articles (`+articleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.Title, a.Slug, a.Content, a.Excerpt, a.MetaDescription, keywords, takeaways,
			a.Category, tags, a.ImageURL, a.AuthorName, a.IsFeatured, a.IsPublished, a.ReadingTime, a.ViewCount,
			a.CreatedAt, a.UpdatedAt, a.PublishedAt,
		)
		if err != nil {
			a.ID = ""
			return translate(err, "insert article")
		}
		return nil
	}

	// view_count is owned by IncrementViewCount and never overwritten here
	res, err := s.db.ExecContext(ctx, `
	UPDATE articles SET
		title = ?, slug = ?, content = ?, excerpt = ?, meta_description = ?, keywords = ?,
		key_takeaways = ?, category = ?, tags = ?, image_url = ?, author_name = ?,
		is_featured = ?, is_published = ?, reading_time = ?, updated_at = ?, published_at = ?
	WHERE id = ?`,
		a.Title, a.Slug, a.Content, a.Excerpt, a.MetaDescription, keywords,
		takeaways, a.Category, tags, a.ImageURL, a.AuthorName,
		a.IsFeatured, a.IsPublished, a.ReadingTime, a.UpdatedAt, a.PublishedAt,
		a.ID,
	)
	if err != nil {
		return translate(err, "update article")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update article %s: %w", a.ID, apperr.ErrNotFound)
	}
	return nil
}

// GetBySlug returns the article with slug, published or not.
func (s *Storage) GetBySlug(ctx context.Context, slug string) (*models.Article, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles WHERE slug = ?`, slug)
	a, err := scanArticle(row)
	if err != nil {
		return nil, fmt.Errorf("get article %q: %w", slug, err)
	}
	return a, nil
}

func (s *Storage) GetByID(ctx context.Context, id string) (*models.Article, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = ?`, id)
	a, err := scanArticle(row)
	if err != nil {
		return nil, fmt.Errorf("get article %s: %w", id, err)
	}
	return a, nil
}

// SlugTaken reports whether slug belongs to an article other than exceptID.
func (s *Storage) SlugTaken(ctx context.Context, slug, exceptID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM articles WHERE slug = ? AND id != ?`, slug, exceptID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check slug: %w", err)
	}
	return n > 0, nil
}

func (s *Storage) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM articles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete article %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete article %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// IncrementViewCount atomically bumps the view counter of a published article.
func (s *Storage) IncrementViewCount(ctx context.Context, slug string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE articles SET view_count = view_count + 1 WHERE slug = ? AND is_published = 1`, slug)
	if err != nil {
		return fmt.Errorf("increment view count %q: %w", slug, err)
	}
	return nil
}

func (s *Storage) List(ctx context.Context, opts ListOptions) ([]*models.Article, error) {
	var (
		where []string
		args  []any
	)
	if opts.PublishedOnly {
		where = append(where, "is_published = 1")
	}
	if opts.Category != "" {
		where = append(where, "category = ? COLLATE NOCASE")
		args = append(args, opts.Category)
	}
	if !opts.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, opts.Since.UTC())
	}

	query := `SELECT ` + articleColumns + ` FROM articles`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	switch opts.OrderBy {
	case OrderViews:
		query += " ORDER BY view_count DESC, created_at DESC"
	default:
		query += " ORDER BY created_at DESC"
	}
	if opts.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, opts.Limit, max(opts.Offset, 0))
	}

	return s.query(ctx, query, args...)
}

// Search matches title, content and category with LIKE. It is the fallback
// when no full-text index is available.
func (s *Storage) Search(ctx context.Context, q string, limit int) ([]*models.Article, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []*models.Article{}, nil
	}
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + escapeLike(q) + "%"
	return s.query(ctx, `SELECT `+articleColumns+` FROM articles
	WHERE is_published = 1 AND (
		title LIKE ? ESCAPE '\' OR content LIKE ? ESCAPE '\' OR category LIKE ? ESCAPE '\'
	)
	ORDER BY view_count DESC
	LIMIT ?`, pattern, pattern, pattern, limit)
}

func (s *Storage) Stats(ctx context.Context) (*models.Stats, error) {
	st := &models.Stats{}
	err := s.db.QueryRowContext(ctx, `
	SELECT COUNT(*),
		COALESCE(SUM(is_published), 0),
		COALESCE(SUM(view_count), 0)
	FROM articles`).Scan(&st.TotalArticles, &st.Published, &st.TotalViews)
	if err != nil {
		return nil, fmt.Errorf("article stats: %w", err)
	}
	st.Drafts = st.TotalArticles - st.Published

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM newsletter_subscribers WHERE is_active = 1`).Scan(&st.Subscribers); err != nil {
		return nil, fmt.Errorf("subscriber stats: %w", err)
	}
	return st, nil
}

// AddSubscriber stores a lowercase email. Existing addresses yield apperr.ErrConflict.
func (s *Storage) AddSubscriber(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO newsletter_subscribers (id, email, subscribed_at) VALUES (?, ?, ?)`,
		uuid.NewString(), email, s.now(),
	)
	return translate(err, "add subscriber")
}

func (s *Storage) query(ctx context.Context, query string, args ...any) ([]*models.Article, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	articles := []*models.Article{}
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArticle(row scanner) (*models.Article, error) {
	var (
		a                         models.Article
		keywords, takeaways, tags string
		publishedAt               sql.NullTime
	)
	err := row.Scan(
		&a.ID, &a.Title, &a.Slug, &a.Content, &a.Excerpt, &a.MetaDescription, &keywords, &takeaways,
		&a.Category, &tags, &a.ImageURL, &a.AuthorName, &a.IsFeatured, &a.IsPublished, &a.ReadingTime, &a.ViewCount,
		&a.CreatedAt, &a.UpdatedAt, &publishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan article: %w", err)
	}

	if publishedAt.Valid {
		t := publishedAt.Time
		a.PublishedAt = &t
	}
	if err := decodeList(keywords, &a.Keywords); err != nil {
		return nil, err
	}
	if err := decodeList(takeaways, &a.KeyTakeaways); err != nil {
		return nil, err
	}
	if err := decodeList(tags, &a.Tags); err != nil {
		return nil, err
	}
	return &a, nil
}

func encodeLists(a *models.Article) (keywords, takeaways, tags string, err error) {
	if keywords, err = encodeList(a.Keywords); err != nil {
		return
	}
	if takeaways, err = encodeList(a.KeyTakeaways); err != nil {
		return
	}
	tags, err = encodeList(a.Tags)
	return
}

func encodeList(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("encode list: %w", err)
	}
	return string(data), nil
}

func decodeList(raw string, dst *[]string) error {
	*dst = []string{}
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("decode list: %w", err)
	}
	return nil
}

// translate maps sqlite unique violations to apperr.ErrConflict.
func translate(err error, op string) error {
	if err == nil {
		return nil
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey) {
		return fmt.Errorf("%s: %w", op, apperr.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
