package models

import "time"

// Article is a stored article, draft or published
type Article struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Slug            string     `json:"slug"`
	Content         string     `json:"content"`
	Excerpt         string     `json:"excerpt"`
	MetaDescription string     `json:"meta_description"`
	Keywords        []string   `json:"keywords"`
	KeyTakeaways    []string   `json:"key_takeaways"`
	Category        string     `json:"category"`
	Tags            []string   `json:"tags"`
	ImageURL        string     `json:"image_url"`
	AuthorName      string     `json:"author_name"`
	IsFeatured      bool       `json:"is_featured"`
	IsPublished     bool       `json:"is_published"`
	ReadingTime     int        `json:"reading_time"`
	ViewCount       int64      `json:"view_count"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	PublishedAt     *time.Time `json:"published_at,omitempty"`
}

// PubDate is the date feeds show for the article.
func (a *Article) PubDate() time.Time {
	if a.PublishedAt != nil && !a.PublishedAt.IsZero() {
		return *a.PublishedAt
	}
	return a.CreatedAt
}

// LastModified is the date sitemaps show for the article.
func (a *Article) LastModified() time.Time {
	if !a.UpdatedAt.IsZero() {
		return a.UpdatedAt
	}
	return a.CreatedAt
}

// CategoryKey is the category key used in URLs and cache keys.
func (a *Article) CategoryKey() string {
	return CategoryKey(a.Category)
}

// ArticleInput is what the editor submits on save.
type ArticleInput struct {
	Title           string   `json:"title" validate:"max=300"`
	Content         string   `json:"content"`
	Format          string   `json:"format" validate:"omitempty,oneof=html markdown"`
	Excerpt         string   `json:"excerpt" validate:"max=500"`
	MetaDescription string   `json:"meta_description" validate:"max=300"`
	Keywords        []string `json:"keywords" validate:"max=20"`
	KeyTakeaways    []string `json:"key_takeaways" validate:"max=10"`
	Category        string   `json:"category"`
	Tags            []string `json:"tags" validate:"max=20"`
	ImageURL        string   `json:"image_url" validate:"omitempty,url"`
	AuthorName      string   `json:"author_name" validate:"max=120"`
	IsFeatured      bool     `json:"is_featured"`
	Publish         bool     `json:"publish"`
}

// Derived is the editor preview computed on every save.
type Derived struct {
	Slug            string `json:"slug"`
	WordCount       int    `json:"word_count"`
	ReadingTime     int    `json:"reading_time"`
	Excerpt         string `json:"excerpt"`
	MetaDescription string `json:"meta_description"`
}

// Stats backs the admin dashboard.
type Stats struct {
	TotalArticles int64 `json:"total_articles"`
	Published     int64 `json:"published"`
	Drafts        int64 `json:"drafts"`
	TotalViews    int64 `json:"total_views"`
	Subscribers   int64 `json:"subscribers"`
}
