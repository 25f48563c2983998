package infrastructure

import (
	"context"
	"database/sql"

	"github.com/cafeteria/ordering-system/order-service/domain"
	"github.com/cafeteria/ordering-system/shared/circuitbreaker"
	"github.com/cafeteria/ordering-system/shared/models"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// PostgresProductRepository implements ProductRepository using
// PostgreSQL. Every query runs through the database circuit breaker so
// a failing database trips to fail-fast instead of piling up timeouts.
// While the circuit is open, reads are served from the last-known
// in-memory snapshot and writes fail fast with CircuitOpenError.
type PostgresProductRepository struct {
	db      *sqlx.DB
	breaker *circuitbreaker.CircuitBreaker
	cache   *MemoryProductRepository
}

// NewPostgresProductRepository creates a new PostgresProductRepository.
// seed primes the read fallback snapshot until the first successful
// database read replaces it.
func NewPostgresProductRepository(db *sqlx.DB, breaker *circuitbreaker.CircuitBreaker, seed []*domain.Product) *PostgresProductRepository {
	return &PostgresProductRepository{
		db:      db,
		breaker: breaker,
		cache:   NewMemoryProductRepository(seed),
	}
}

func isCircuitOpen(err error) bool {
	var openErr *circuitbreaker.CircuitOpenError
	return errors.As(err, &openErr)
}

// postgresProduct represents a product row
type postgresProduct struct {
	ID          string         `db:"id"`
	Name        string         `db:"name"`
	Description string         `db:"description"`
	PriceAmount int64          `db:"price_amount"`
	Currency    string         `db:"price_currency"`
	CategoryID  string         `db:"category_id"`
	Available   bool           `db:"available"`
	Size        *string        `db:"size"`
	Ingredients pq.StringArray `db:"ingredients"`
	Calories    *int           `db:"calories"`
}

func (r *PostgresProductRepository) toDomain(row *postgresProduct) *domain.Product {
	product := &domain.Product{
		ID:          models.ID(row.ID),
		Name:        row.Name,
		Description: row.Description,
		Price:       models.NewMoney(row.PriceAmount, row.Currency),
		CategoryID:  models.ID(row.CategoryID),
		Available:   row.Available,
		Ingredients: row.Ingredients,
		Calories:    row.Calories,
	}
	if row.Size != nil {
		size := domain.ProductSize(*row.Size)
		product.Size = &size
	}
	return product
}

func (r *PostgresProductRepository) toPostgres(product *domain.Product) *postgresProduct {
	row := &postgresProduct{
		ID:          product.ID.String(),
		Name:        product.Name,
		Description: product.Description,
		PriceAmount: product.Price.Amount,
		Currency:    product.Price.Currency,
		CategoryID:  product.CategoryID.String(),
		Available:   product.Available,
		Ingredients: product.Ingredients,
		Calories:    product.Calories,
	}
	if product.Size != nil {
		size := string(*product.Size)
		row.Size = &size
	}
	return row
}

const selectProductColumns = `
	SELECT id, name, description, price_amount, price_currency,
	       category_id, available, size, ingredients, calories
	FROM products`

// FindAll returns every product
func (r *PostgresProductRepository) FindAll(ctx context.Context) ([]*domain.Product, error) {
	return r.selectProducts(ctx, r.cache.FindAll, selectProductColumns+` ORDER BY name`)
}

// FindByID returns a product by ID
func (r *PostgresProductRepository) FindByID(ctx context.Context, id models.ID) (*domain.Product, error) {
	var row postgresProduct
	found := false
	err := r.breaker.Call(func() error {
		getErr := r.db.GetContext(ctx, &row, selectProductColumns+` WHERE id = $1`, id.String())
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
		return nil, errors.Wrap(err, "failed to find product")
	}
	if !found {
		return nil, domain.ErrProductNotFound
	}

	product := r.toDomain(&row)
	_ = r.cache.Save(ctx, product)
	return product, nil
}

// FindByCategory returns products in a category
func (r *PostgresProductRepository) FindByCategory(ctx context.Context, categoryID models.ID) ([]*domain.Product, error) {
	fallback := func(ctx context.Context) ([]*domain.Product, error) {
		return r.cache.FindByCategory(ctx, categoryID)
	}
	return r.selectProducts(ctx, fallback, selectProductColumns+` WHERE category_id = $1 ORDER BY name`, categoryID.String())
}

// FindAvailable returns products marked available
func (r *PostgresProductRepository) FindAvailable(ctx context.Context) ([]*domain.Product, error) {
	return r.selectProducts(ctx, r.cache.FindAvailable, selectProductColumns+` WHERE available ORDER BY name`)
}

// SearchByName returns products whose name contains the term
func (r *PostgresProductRepository) SearchByName(ctx context.Context, name string) ([]*domain.Product, error) {
	fallback := func(ctx context.Context) ([]*domain.Product, error) {
		return r.cache.SearchByName(ctx, name)
	}
	return r.selectProducts(ctx, fallback, selectProductColumns+` WHERE name ILIKE '%' || $1 || '%' ORDER BY name`, name)
}

func (r *PostgresProductRepository) selectProducts(ctx context.Context, fallback func(context.Context) ([]*domain.Product, error), query string, args ...interface{}) ([]*domain.Product, error) {
	var rows []postgresProduct
	err := r.breaker.Call(func() error {
		return r.db.SelectContext(ctx, &rows, query, args...)
	})
	if err != nil {
		if isCircuitOpen(err) {
			return fallback(ctx)
		}
		return nil, errors.Wrap(err, "failed to select products")
	}

	products := make([]*domain.Product, len(rows))
	for i := range rows {
		products[i] = r.toDomain(&rows[i])
		_ = r.cache.Save(ctx, products[i])
	}
	return products, nil
}

// Save upserts a product
func (r *PostgresProductRepository) Save(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (
			id, name, description, price_amount, price_currency,
			category_id, available, size, ingredients, calories
		) VALUES (
			:id, :name, :description, :price_amount, :price_currency,
			:category_id, :available, :size, :ingredients, :calories
		)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			price_amount = EXCLUDED.price_amount,
			price_currency = EXCLUDED.price_currency,
			category_id = EXCLUDED.category_id,
			available = EXCLUDED.available,
			size = EXCLUDED.size,
			ingredients = EXCLUDED.ingredients,
			calories = EXCLUDED.calories`

	err := r.breaker.Call(func() error {
		_, execErr := r.db.NamedExecContext(ctx, query, r.toPostgres(product))
		return execErr
	})
	if err != nil {
		return errors.Wrap(err, "failed to save product")
	}
	return r.cache.Save(ctx, product)
}

// Delete removes a product
func (r *PostgresProductRepository) Delete(ctx context.Context, id models.ID) error {
	var affected int64
	err := r.breaker.Call(func() error {
		result, execErr := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id.String())
		if execErr != nil {
			return execErr
		}
		affected, execErr = result.RowsAffected()
		return execErr
	})
	if err != nil {
		return errors.Wrap(err, "failed to delete product")
	}
	if affected == 0 {
		return domain.ErrProductNotFound
	}
	_ = r.cache.Delete(ctx, id)
	return nil
}
