package config

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/skyauthor/newsroom/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed categories.yaml
var defaultCategories []byte

// LoadCategories reads the category table from path, or the built-in table when
// path is empty. The result is never modified at runtime.
func LoadCategories(path string) (*models.CategoryTable, error) {
	data := defaultCategories
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("read categories file: %w", err)
		}
	}
	return ParseCategories(data)
}

func ParseCategories(data []byte) (*models.CategoryTable, error) {
	var cats []models.Category
	if err := yaml.Unmarshal(data, &cats); err != nil {
		return nil, fmt.Errorf("parse categories: %w", err)
	}

	table := models.NewCategoryTable(cats)
	if table.Len() == 0 {
		return nil, fmt.Errorf("parse categories: no categories defined")
	}
	return table, nil
}
