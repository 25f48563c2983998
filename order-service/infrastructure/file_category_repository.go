package infrastructure

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/cafeteria/ordering-system/order-service/domain"
	"github.com/cafeteria/ordering-system/shared/circuitbreaker"
	"github.com/cafeteria/ordering-system/shared/models"
	"github.com/pkg/errors"
)

// FileCategoryRepository implements CategoryRepository on a JSON file,
// with the same breaker-and-snapshot discipline as FileProductRepository.
type FileCategoryRepository struct {
	path    string
	breaker *circuitbreaker.CircuitBreaker
	cache   *MemoryCategoryRepository
}

// NewFileCategoryRepository loads categories from path, seeding the
// file when it does not exist yet.
func NewFileCategoryRepository(path string, seed []*domain.Category, breaker *circuitbreaker.CircuitBreaker) (*FileCategoryRepository, error) {
	r := &FileCategoryRepository{
		path:    path,
		breaker: breaker,
		cache:   NewMemoryCategoryRepository(seed),
	}

	var loaded []*domain.Category
	err := breaker.Call(func() error {
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			if os.IsNotExist(readErr) {
				return nil
			}
			return errors.Wrap(readErr, "failed to read categories file")
		}
		return json.Unmarshal(data, &loaded)
	})
	if err != nil {
		return r, nil
	}

	if loaded == nil {
		if err := r.persist(context.Background()); err != nil {
			return r, nil
		}
		return r, nil
	}

	r.cache = NewMemoryCategoryRepository(loaded)
	return r, nil
}

func (r *FileCategoryRepository) persist(ctx context.Context) error {
	categories, err := r.cache.FindAll(ctx)
	if err != nil {
		return err
	}

	return r.breaker.Call(func() error {
		data, err := json.MarshalIndent(categories, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to encode categories file")
		}
		if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
			return errors.Wrap(err, "failed to create data directory")
		}
		if err := os.WriteFile(r.path, data, 0o644); err != nil {
			return errors.Wrap(err, "failed to write categories file")
		}
		return nil
	})
}

// FindAll returns every category from the snapshot
func (r *FileCategoryRepository) FindAll(ctx context.Context) ([]*domain.Category, error) {
	return r.cache.FindAll(ctx)
}

// FindByID returns a category by ID
func (r *FileCategoryRepository) FindByID(ctx context.Context, id models.ID) (*domain.Category, error) {
	return r.cache.FindByID(ctx, id)
}

// FindByType returns categories of the given type
func (r *FileCategoryRepository) FindByType(ctx context.Context, categoryType domain.CategoryType) ([]*domain.Category, error) {
	return r.cache.FindByType(ctx, categoryType)
}

// FindActive returns active categories
func (r *FileCategoryRepository) FindActive(ctx context.Context) ([]*domain.Category, error) {
	return r.cache.FindActive(ctx)
}

// Save persists a category to the file and updates the snapshot
func (r *FileCategoryRepository) Save(ctx context.Context, category *domain.Category) error {
	if err := r.cache.Save(ctx, category); err != nil {
		return err
	}
	return r.persist(ctx)
}

// Delete removes a category from the file and the snapshot
func (r *FileCategoryRepository) Delete(ctx context.Context, id models.ID) error {
	if err := r.cache.Delete(ctx, id); err != nil {
		return err
	}
	return r.persist(ctx)
}
