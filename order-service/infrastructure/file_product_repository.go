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

// FileProductRepository implements ProductRepository on top of a JSON
// file. Every file touch is routed through a circuit breaker; while the
// circuit is open, reads are served from the last successfully loaded
// in-memory snapshot and writes fail fast with CircuitOpenError.
type FileProductRepository struct {
	path    string
	breaker *circuitbreaker.CircuitBreaker
	cache   *MemoryProductRepository
}

// NewFileProductRepository loads the catalog from path, seeding the
// file when it does not exist yet.
func NewFileProductRepository(path string, seed []*domain.Product, breaker *circuitbreaker.CircuitBreaker) (*FileProductRepository, error) {
	r := &FileProductRepository{
		path:    path,
		breaker: breaker,
		cache:   NewMemoryProductRepository(seed),
	}

	var loaded []*domain.Product
	err := breaker.Call(func() error {
		var readErr error
		loaded, readErr = readProductsFile(path)
		return readErr
	})
	if err != nil {
		// Keep serving the seed snapshot; the breaker records the failure.
		return r, nil
	}

	if loaded == nil {
		if err := r.persist(context.Background()); err != nil {
			return r, nil
		}
		return r, nil
	}

	r.cache = NewMemoryProductRepository(loaded)
	return r, nil
}

func readProductsFile(path string) ([]*domain.Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to read products file")
	}

	var products []*domain.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, errors.Wrap(err, "failed to decode products file")
	}
	return products, nil
}

// persist writes the current snapshot through the circuit breaker
func (r *FileProductRepository) persist(ctx context.Context) error {
	products, err := r.cache.FindAll(ctx)
	if err != nil {
		return err
	}

	return r.breaker.Call(func() error {
		data, err := json.MarshalIndent(products, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to encode products file")
		}
		if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
			return errors.Wrap(err, "failed to create data directory")
		}
		if err := os.WriteFile(r.path, data, 0o644); err != nil {
			return errors.Wrap(err, "failed to write products file")
		}
		return nil
	})
}

// FindAll returns every product from the snapshot
func (r *FileProductRepository) FindAll(ctx context.Context) ([]*domain.Product, error) {
	return r.cache.FindAll(ctx)
}

// FindByID returns a product by ID
func (r *FileProductRepository) FindByID(ctx context.Context, id models.ID) (*domain.Product, error) {
	return r.cache.FindByID(ctx, id)
}

// FindByCategory returns products in a category
func (r *FileProductRepository) FindByCategory(ctx context.Context, categoryID models.ID) ([]*domain.Product, error) {
	return r.cache.FindByCategory(ctx, categoryID)
}

// FindAvailable returns available products
func (r *FileProductRepository) FindAvailable(ctx context.Context) ([]*domain.Product, error) {
	return r.cache.FindAvailable(ctx)
}

// SearchByName returns products whose name contains the term
func (r *FileProductRepository) SearchByName(ctx context.Context, name string) ([]*domain.Product, error) {
	return r.cache.SearchByName(ctx, name)
}

// Save persists the product to the file and updates the snapshot
func (r *FileProductRepository) Save(ctx context.Context, product *domain.Product) error {
	if err := r.cache.Save(ctx, product); err != nil {
		return err
	}
	return r.persist(ctx)
}

// Delete removes a product from the file and the snapshot
func (r *FileProductRepository) Delete(ctx context.Context, id models.ID) error {
	if err := r.cache.Delete(ctx, id); err != nil {
		return err
	}
	return r.persist(ctx)
}
