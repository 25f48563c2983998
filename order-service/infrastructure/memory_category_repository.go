package infrastructure

import (
	"context"
	"sync"

	"github.com/cafeteria/ordering-system/order-service/domain"
	"github.com/cafeteria/ordering-system/shared/models"
)

// MemoryCategoryRepository implements CategoryRepository in process memory
type MemoryCategoryRepository struct {
	mu         sync.RWMutex
	categories map[models.ID]*domain.Category
	order      []models.ID
}

// NewMemoryCategoryRepository creates a repository preloaded with seed
func NewMemoryCategoryRepository(seed []*domain.Category) *MemoryCategoryRepository {
	r := &MemoryCategoryRepository{categories: make(map[models.ID]*domain.Category)}
	for _, c := range seed {
		clone := *c
		r.categories[c.ID] = &clone
		r.order = append(r.order, c.ID)
	}
	return r
}

// FindAll returns every category
func (r *MemoryCategoryRepository) FindAll(ctx context.Context) ([]*domain.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Category, 0, len(r.order))
	for _, id := range r.order {
		clone := *r.categories[id]
		result = append(result, &clone)
	}
	return result, nil
}

// FindByID returns a category by ID
func (r *MemoryCategoryRepository) FindByID(ctx context.Context, id models.ID) (*domain.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.categories[id]
	if !ok {
		return nil, domain.ErrCategoryNotFound
	}
	clone := *c
	return &clone, nil
}

// FindByType returns categories of the given type
func (r *MemoryCategoryRepository) FindByType(ctx context.Context, categoryType domain.CategoryType) ([]*domain.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.Category
	for _, id := range r.order {
		if c := r.categories[id]; c.Type == categoryType {
			clone := *c
			result = append(result, &clone)
		}
	}
	return result, nil
}

// FindActive returns active categories
func (r *MemoryCategoryRepository) FindActive(ctx context.Context) ([]*domain.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.Category
	for _, id := range r.order {
		if c := r.categories[id]; c.Active {
			clone := *c
			result = append(result, &clone)
		}
	}
	return result, nil
}

// Save inserts or replaces a category
func (r *MemoryCategoryRepository) Save(ctx context.Context, category *domain.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.categories[category.ID]; !exists {
		r.order = append(r.order, category.ID)
	}
	clone := *category
	r.categories[category.ID] = &clone
	return nil
}

// Delete removes a category
func (r *MemoryCategoryRepository) Delete(ctx context.Context, id models.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.categories[id]; !ok {
		return domain.ErrCategoryNotFound
	}
	delete(r.categories, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}
