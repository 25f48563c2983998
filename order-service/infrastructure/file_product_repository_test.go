package infrastructure

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cafeteria/ordering-system/order-service/domain"
	"github.com/cafeteria/ordering-system/shared/circuitbreaker"
	"github.com/cafeteria/ordering-system/shared/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBreaker(threshold int) *circuitbreaker.CircuitBreaker {
	return circuitbreaker.New("catalog-file-test", threshold, 30*time.Second)
}

func seedProduct(t *testing.T, name string) *domain.Product {
	t.Helper()
	p, err := domain.NewProduct(name, "", models.NewMoney(4500, "MXN"), models.GenerateUUID())
	require.NoError(t, err)
	return p
}

func TestFileProductRepository_SeedsMissingFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "products.json")
	coffee := seedProduct(t, "Americano")

	repo, err := NewFileProductRepository(path, []*domain.Product{coffee}, newTestBreaker(3))
	require.NoError(t, err)

	products, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Americano", products[0].Name)

	// The seed was written out for the next start.
	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestFileProductRepository_SaveRoundTrips(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "products.json")
	coffee := seedProduct(t, "Americano")

	repo, err := NewFileProductRepository(path, []*domain.Product{coffee}, newTestBreaker(3))
	require.NoError(t, err)

	torta := seedProduct(t, "Torta de Milanesa")
	require.NoError(t, repo.Save(ctx, torta))

	// A fresh repository over the same file sees the saved product.
	reloaded, err := NewFileProductRepository(path, nil, newTestBreaker(3))
	require.NoError(t, err)

	products, err := reloaded.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 2)

	found, err := reloaded.FindByID(ctx, torta.ID)
	require.NoError(t, err)
	assert.Equal(t, "Torta de Milanesa", found.Name)
}

func TestFileProductRepository_CorruptFileFallsBackToSeed(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "products.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	coffee := seedProduct(t, "Americano")
	repo, err := NewFileProductRepository(path, []*domain.Product{coffee}, newTestBreaker(3))
	require.NoError(t, err)

	products, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Americano", products[0].Name)
}

func TestFileProductRepository_OpenCircuitServesCacheAndFailsWrites(t *testing.T) {
	ctx := context.Background()
	// Pointing the repository at a directory makes every file touch fail.
	dir := t.TempDir()
	breaker := newTestBreaker(1)

	coffee := seedProduct(t, "Americano")
	repo, err := NewFileProductRepository(dir, []*domain.Product{coffee}, breaker)
	require.NoError(t, err)
	require.Equal(t, circuitbreaker.StateOpen, breaker.State())

	// Reads keep working from the last-known snapshot.
	products, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 1)

	found, err := repo.FindByID(ctx, coffee.ID)
	require.NoError(t, err)
	assert.Equal(t, coffee.ID, found.ID)

	// Writes are rejected without touching the filesystem.
	err = repo.Save(ctx, seedProduct(t, "Frappe"))
	require.Error(t, err)
	var openErr *circuitbreaker.CircuitOpenError
	assert.ErrorAs(t, err, &openErr)
}
