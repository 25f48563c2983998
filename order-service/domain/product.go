package domain

import (
	"context"

	"github.com/cafeteria/ordering-system/shared/models"
	"github.com/pkg/errors"
)

// ErrProductNotFound is returned when a product does not exist
var ErrProductNotFound = errors.New("product not found")

// ProductSize represents a serving size
type ProductSize string

const (
	ProductSizeSmall      ProductSize = "small"
	ProductSizeMedium     ProductSize = "medium"
	ProductSizeLarge      ProductSize = "large"
	ProductSizeExtraLarge ProductSize = "extra_large"
)

// Product is a purchasable menu item
type Product struct {
	ID          models.ID    `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Price       models.Money `json:"price"`
	CategoryID  models.ID    `json:"category_id"`
	Available   bool         `json:"available"`
	Size        *ProductSize `json:"size,omitempty"`
	Ingredients []string     `json:"ingredients,omitempty"`
	Calories    *int         `json:"calories,omitempty"`
}

// NewProduct creates a product, enforcing a positive price
func NewProduct(name, description string, price models.Money, categoryID models.ID) (*Product, error) {
	if name == "" {
		return nil, errors.New("product name is required")
	}
	if !price.IsPositive() {
		return nil, errors.New("product price must be positive")
	}

	return &Product{
		ID:          models.GenerateUUID(),
		Name:        name,
		Description: description,
		Price:       price,
		CategoryID:  categoryID,
		Available:   true,
	}, nil
}

// ProductRepository provides access to menu products
type ProductRepository interface {
	FindAll(ctx context.Context) ([]*Product, error)
	FindByID(ctx context.Context, id models.ID) (*Product, error)
	FindByCategory(ctx context.Context, categoryID models.ID) ([]*Product, error)
	FindAvailable(ctx context.Context) ([]*Product, error)
	SearchByName(ctx context.Context, name string) ([]*Product, error)
	Save(ctx context.Context, product *Product) error
	Delete(ctx context.Context, id models.ID) error
}
