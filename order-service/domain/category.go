package domain

import (
	"context"

	"github.com/cafeteria/ordering-system/shared/models"
	"github.com/pkg/errors"
)

// ErrCategoryNotFound is returned when a category does not exist
var ErrCategoryNotFound = errors.New("category not found")

// CategoryType classifies menu categories
type CategoryType string

const (
	CategoryTypeHotDrinks  CategoryType = "hot_drinks"
	CategoryTypeColdDrinks CategoryType = "cold_drinks"
	CategoryTypeDesserts   CategoryType = "desserts"
	CategoryTypeSnacks     CategoryType = "snacks"
	CategoryTypeBreakfast  CategoryType = "breakfast"
	CategoryTypeLunch      CategoryType = "lunch"
)

// NewCategoryType parses a category type from string
func NewCategoryType(value string) (CategoryType, error) {
	switch CategoryType(value) {
	case CategoryTypeHotDrinks, CategoryTypeColdDrinks, CategoryTypeDesserts,
		CategoryTypeSnacks, CategoryTypeBreakfast, CategoryTypeLunch:
		return CategoryType(value), nil
	}
	return "", errors.Errorf("unknown category type %q", value)
}

// Category groups related menu products
type Category struct {
	ID          models.ID    `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Type        CategoryType `json:"type"`
	Active      bool         `json:"active"`
}

// CategoryRepository provides access to menu categories
type CategoryRepository interface {
	FindAll(ctx context.Context) ([]*Category, error)
	FindByID(ctx context.Context, id models.ID) (*Category, error)
	FindByType(ctx context.Context, categoryType CategoryType) ([]*Category, error)
	FindActive(ctx context.Context) ([]*Category, error)
	Save(ctx context.Context, category *Category) error
	Delete(ctx context.Context, id models.ID) error
}
