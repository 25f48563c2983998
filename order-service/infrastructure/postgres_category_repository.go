package infrastructure

import (
	"context"
	"database/sql"

	"github.com/cafeteria/ordering-system/order-service/domain"
	"github.com/cafeteria/ordering-system/shared/circuitbreaker"
	"github.com/cafeteria/ordering-system/shared/models"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// PostgresCategoryRepository implements CategoryRepository using
// PostgreSQL behind the database circuit breaker. While the circuit is
// open, reads are served from the last-known in-memory snapshot and
// writes fail fast with CircuitOpenError.
type PostgresCategoryRepository struct {
	db      *sqlx.DB
	breaker *circuitbreaker.CircuitBreaker
	cache   *MemoryCategoryRepository
}

// NewPostgresCategoryRepository creates a new PostgresCategoryRepository.
// seed primes the read fallback snapshot until the first successful
// database read replaces it.
func NewPostgresCategoryRepository(db *sqlx.DB, breaker *circuitbreaker.CircuitBreaker, seed []*domain.Category) *PostgresCategoryRepository {
	return &PostgresCategoryRepository{
		db:      db,
		breaker: breaker,
		cache:   NewMemoryCategoryRepository(seed),
	}
}

// postgresCategory represents a category row
type postgresCategory struct {
	ID          string `db:"id"`
	Name        string `db:"name"`
	Description string `db:"description"`
	Type        string `db:"type"`
	Active      bool   `db:"active"`
}

func (r *PostgresCategoryRepository) toDomain(row *postgresCategory) *domain.Category {
	return &domain.Category{
		ID:          models.ID(row.ID),
		Name:        row.Name,
		Description: row.Description,
		Type:        domain.CategoryType(row.Type),
		Active:      row.Active,
	}
}

const selectCategoryColumns = `SELECT id, name, description, type, active FROM categories`

// FindAll returns every category
func (r *PostgresCategoryRepository) FindAll(ctx context.Context) ([]*domain.Category, error) {
	return r.selectCategories(ctx, r.cache.FindAll, selectCategoryColumns+` ORDER BY name`)
}

// FindByID returns a category by ID
func (r *PostgresCategoryRepository) FindByID(ctx context.Context, id models.ID) (*domain.Category, error) {
	var row postgresCategory
	found := false
	err := r.breaker.Call(func() error {
		getErr := r.db.GetContext(ctx, &row, selectCategoryColumns+` WHERE id = $1`, id.String())
		if errors.Is(getErr, sql.ErrNoRows) {
			// A missing row is an answer, not a database failure.
			return nil
		}
		if getErr != nil {
			return getErr
		}
		found = true
		return nil
	})
	if err != nil {
		if isCircuitOpen(err) {
			return r.cache.FindByID(ctx, id)
		}
		return nil, errors.Wrap(err, "failed to find category")
	}
	if !found {
		return nil, domain.ErrCategoryNotFound
	}

	category := r.toDomain(&row)
	_ = r.cache.Save(ctx, category)
	return category, nil
}

// FindByType returns categories of the given type
func (r *PostgresCategoryRepository) FindByType(ctx context.Context, categoryType domain.CategoryType) ([]*domain.Category, error) {
	fallback := func(ctx context.Context) ([]*domain.Category, error) {
		return r.cache.FindByType(ctx, categoryType)
	}
	return r.selectCategories(ctx, fallback, selectCategoryColumns+` WHERE type = $1 ORDER BY name`, string(categoryType))
}

// FindActive returns active categories
func (r *PostgresCategoryRepository) FindActive(ctx context.Context) ([]*domain.Category, error) {
	return r.selectCategories(ctx, r.cache.FindActive, selectCategoryColumns+` WHERE active ORDER BY name`)
}

func (r *PostgresCategoryRepository) selectCategories(ctx context.Context, fallback func(context.Context) ([]*domain.Category, error), query string, args ...interface{}) ([]*domain.Category, error) {
	var rows []postgresCategory
	err := r.breaker.Call(func() error {
		return r.db.SelectContext(ctx, &rows, query, args...)
	})
	if err != nil {
		if isCircuitOpen(err) {
			return fallback(ctx)
		}
		return nil, errors.Wrap(err, "failed to select categories")
	}

	categories := make([]*domain.Category, len(rows))
	for i := range rows {
		categories[i] = r.toDomain(&rows[i])
		_ = r.cache.Save(ctx, categories[i])
	}
	return categories, nil
}

// Save upserts a category
func (r *PostgresCategoryRepository) Save(ctx context.Context, category *domain.Category) error {
	query := `
		INSERT INTO categories (id, name, description, type, active)
		VALUES (:id, :name, :description, :type, :active)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			type = EXCLUDED.type,
			active = EXCLUDED.active`

	err := r.breaker.Call(func() error {
		_, execErr := r.db.NamedExecContext(ctx, query, &postgresCategory{
			ID:          category.ID.String(),
			Name:        category.Name,
			Description: category.Description,
			Type:        string(category.Type),
			Active:      category.Active,
		})
		return execErr
	})
	if err != nil {
		return errors.Wrap(err, "failed to save category")
	}
	return r.cache.Save(ctx, category)
}

// Delete removes a category
func (r *PostgresCategoryRepository) Delete(ctx context.Context, id models.ID) error {
	var affected int64
	err := r.breaker.Call(func() error {
		result, execErr := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id.String())
		if execErr != nil {
			return execErr
		}
		affected, execErr = result.RowsAffected()
		return execErr
	})
	if err != nil {
		return errors.Wrap(err, "failed to delete category")
	}
	if affected == 0 {
		return domain.ErrCategoryNotFound
	}
	_ = r.cache.Delete(ctx, id)
	return nil
}
