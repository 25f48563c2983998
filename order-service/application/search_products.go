package application

import (
	"context"

	"github.com/cafeteria/ordering-system/order-service/domain"
	"github.com/pkg/errors"
)

// SearchProducts use case searches the catalog by product name
type SearchProducts struct {
	productRepository domain.ProductRepository
}

// NewSearchProducts creates a new SearchProducts use case
func NewSearchProducts(productRepository domain.ProductRepository) *SearchProducts {
	return &SearchProducts{productRepository: productRepository}
}

// Execute returns products whose name contains the term
func (uc *SearchProducts) Execute(ctx context.Context, term string) ([]*domain.Product, error) {
	if term == "" {
		return nil, errors.New("search term is required")
	}
	return uc.productRepository.SearchByName(ctx, term)
}
