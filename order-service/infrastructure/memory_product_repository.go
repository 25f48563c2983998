package infrastructure

import (
	"context"
	"strings"
	"sync"

	"github.com/cafeteria/ordering-system/order-service/domain"
	"github.com/cafeteria/ordering-system/shared/models"
)

// MemoryProductRepository implements ProductRepository with an
// in-process map, the default backend for local development.
type MemoryProductRepository struct {
	mu       sync.RWMutex
	products map[models.ID]*domain.Product
	order    []models.ID
}

// NewMemoryProductRepository creates a repository preloaded with seed
func NewMemoryProductRepository(seed []*domain.Product) *MemoryProductRepository {
	r := &MemoryProductRepository{products: make(map[models.ID]*domain.Product)}
	for _, p := range seed {
		clone := *p
		r.products[p.ID] = &clone
		r.order = append(r.order, p.ID)
	}
	return r
}

// FindAll returns every product
func (r *MemoryProductRepository) FindAll(ctx context.Context) ([]*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Product, 0, len(r.order))
	for _, id := range r.order {
		clone := *r.products[id]
		result = append(result, &clone)
	}
	return result, nil
}

// FindByID returns a product by ID
func (r *MemoryProductRepository) FindByID(ctx context.Context, id models.ID) (*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	clone := *p
	return &clone, nil
}

// FindByCategory returns products in a category
func (r *MemoryProductRepository) FindByCategory(ctx context.Context, categoryID models.ID) ([]*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.Product
	for _, id := range r.order {
		if p := r.products[id]; p.CategoryID == categoryID {
			clone := *p
			result = append(result, &clone)
		}
	}
	return result, nil
}

// FindAvailable returns products marked available
func (r *MemoryProductRepository) FindAvailable(ctx context.Context) ([]*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.Product
	for _, id := range r.order {
		if p := r.products[id]; p.Available {
			clone := *p
			result = append(result, &clone)
		}
	}
	return result, nil
}

// SearchByName returns products whose name contains the term
func (r *MemoryProductRepository) SearchByName(ctx context.Context, name string) ([]*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	term := strings.ToLower(name)
	var result []*domain.Product
	for _, id := range r.order {
		if p := r.products[id]; strings.Contains(strings.ToLower(p.Name), term) {
			clone := *p
			result = append(result, &clone)
		}
	}
	return result, nil
}

// Save inserts or replaces a product
func (r *MemoryProductRepository) Save(ctx context.Context, product *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.products[product.ID]; !exists {
		r.order = append(r.order, product.ID)
	}
	clone := *product
	r.products[product.ID] = &clone
	return nil
}

// Delete removes a product
func (r *MemoryProductRepository) Delete(ctx context.Context, id models.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.products[id]; !ok {
		return domain.ErrProductNotFound
	}
	delete(r.products, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}
