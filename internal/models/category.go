package models

import (
	"strings"

	"github.com/skyauthor/newsroom/internal/content"
)

// Category is one entry of the fixed category table
type Category struct {
	Value string `json:"value" yaml:"value"`
	// Key is the URL segment and cache key suffix, derived from Value.
	Key   string `json:"key" yaml:"-"`
	Label string `json:"label" yaml:"label"`
	Color string `json:"color" yaml:"color"`
	Group string `json:"group,omitempty" yaml:"group"`
}

const defaultCategoryColor = "bg-gray-500"

// CategoryKey returns the URL-safe key for a category value: "Web Dev"
// becomes "web-dev". Blank values have no key.
func CategoryKey(value string) string {
	key, err := content.GenerateSlug(value)
	if err != nil {
		return ""
	}
	return key
}

// CategoryTable is an immutable, ordered category list built once at startup.
type CategoryTable struct {
	items []Category
	index map[string]int
}

// NewCategoryTable copies cats; later entries with a duplicate value or key are
// ignored.
func NewCategoryTable(cats []Category) *CategoryTable {
	t := &CategoryTable{
		items: make([]Category, 0, len(cats)),
		index: make(map[string]int, 2*len(cats)),
	}
	for _, c := range cats {
		c.Value = strings.TrimSpace(c.Value)
		lower := strings.ToLower(c.Value)
		if lower == "" {
			continue
		}
		c.Key = CategoryKey(c.Value)
		if _, dup := t.index[lower]; dup {
			continue
		}
		if _, dup := t.index[c.Key]; dup {
			continue
		}
		t.index[lower] = len(t.items)
		t.index[c.Key] = len(t.items)
		t.items = append(t.items, c)
	}
	return t
}

// All returns a copy of the table in display order.
func (t *CategoryTable) All() []Category {
	return append([]Category(nil), t.items...)
}

// Lookup finds a category by its key or by its value, case-insensitively.
func (t *CategoryTable) Lookup(value string) (Category, bool) {
	i, ok := t.index[strings.ToLower(strings.TrimSpace(value))]
	if !ok {
		return Category{}, false
	}
	return t.items[i], true
}

func (t *CategoryTable) Color(value string) string {
	if c, ok := t.Lookup(value); ok && c.Color != "" {
		return c.Color
	}
	return defaultCategoryColor
}

// Keys returns the category keys used in category URLs.
func (t *CategoryTable) Keys() []string {
	out := make([]string, len(t.items))
	for i, c := range t.items {
		out[i] = c.Key
	}
	return out
}

func (t *CategoryTable) Len() int {
	return len(t.items)
}
