package application

import (
	"context"

	"github.com/cafeteria/ordering-system/order-service/domain"
)

// MenuFilter narrows the menu to a price range or calorie budget.
// Amounts are in cents; zero values mean "no limit".
type MenuFilter struct {
	MinPrice    int64 `json:"min_price,omitempty"`
	MaxPrice    int64 `json:"max_price,omitempty"`
	MaxCalories int   `json:"max_calories,omitempty"`
}

// MenuSection groups the available products of one active category
type MenuSection struct {
	Category *domain.Category  `json:"category"`
	Products []*domain.Product `json:"products"`
}

// GetMenu use case assembles the menu from active categories and
// available products
type GetMenu struct {
	productRepository  domain.ProductRepository
	categoryRepository domain.CategoryRepository
}

// NewGetMenu creates a new GetMenu use case
func NewGetMenu(productRepository domain.ProductRepository, categoryRepository domain.CategoryRepository) *GetMenu {
	return &GetMenu{
		productRepository:  productRepository,
		categoryRepository: categoryRepository,
	}
}

// Execute returns the menu grouped by category. Categories without any
// matching product are omitted.
func (uc *GetMenu) Execute(ctx context.Context, filter *MenuFilter) ([]*MenuSection, error) {
	categories, err := uc.categoryRepository.FindActive(ctx)
	if err != nil {
		return nil, err
	}

	products, err := uc.productRepository.FindAvailable(ctx)
	if err != nil {
		return nil, err
	}

	if filter != nil {
		products = filterProducts(products, filter)
	}

	byCategory := make(map[string][]*domain.Product)
	for _, product := range products {
		key := product.CategoryID.String()
		byCategory[key] = append(byCategory[key], product)
	}

	var sections []*MenuSection
	for _, category := range categories {
		matched := byCategory[category.ID.String()]
		if len(matched) == 0 {
			continue
		}
		sections = append(sections, &MenuSection{Category: category, Products: matched})
	}
	return sections, nil
}

func filterProducts(products []*domain.Product, filter *MenuFilter) []*domain.Product {
	var result []*domain.Product
	for _, p := range products {
		if filter.MinPrice > 0 && p.Price.Amount < filter.MinPrice {
			continue
		}
		if filter.MaxPrice > 0 && p.Price.Amount > filter.MaxPrice {
			continue
		}
		if filter.MaxCalories > 0 && (p.Calories == nil || *p.Calories > filter.MaxCalories) {
			continue
		}
		result = append(result, p)
	}
	return result
}
