package infrastructure

import (
	"context"
	"testing"
	"time"

	"github.com/cafeteria/ordering-system/order-service/domain"
	"github.com/cafeteria/ordering-system/shared/circuitbreaker"
	"github.com/cafeteria/ordering-system/shared/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var categoryColumns = []string{"id", "name", "description", "type", "active"}

func seedCategory(name string) *domain.Category {
	return &domain.Category{
		ID:     models.GenerateUUID(),
		Name:   name,
		Type:   domain.CategoryTypeHotDrinks,
		Active: true,
	}
}

func TestPostgresCategoryRepository_MissingRowLeavesBreakerClosed(t *testing.T) {
	ctx := context.Background()
	catalogStub.set(false, categoryColumns, nil)

	breaker := circuitbreaker.New("catalog-db-test", 3, 30*time.Second)
	repo := NewPostgresCategoryRepository(openStubDB(t), breaker, nil)

	for i := 0; i < 5; i++ {
		_, err := repo.FindByID(ctx, models.GenerateUUID())
		assert.ErrorIs(t, err, domain.ErrCategoryNotFound)
	}
	assert.Equal(t, circuitbreaker.StateClosed, breaker.State())
	assert.Equal(t, 0, breaker.Stats().FailureCount)
}

func TestPostgresCategoryRepository_OpenCircuitServesSnapshot(t *testing.T) {
	ctx := context.Background()
	catalogStub.set(true, nil, nil)

	breaker := circuitbreaker.New("catalog-db-test", 1, 30*time.Second)
	drinks := seedCategory("Bebidas Calientes")
	repo := NewPostgresCategoryRepository(openStubDB(t), breaker, []*domain.Category{drinks})

	_, err := repo.FindAll(ctx)
	require.Error(t, err)
	require.Equal(t, circuitbreaker.StateOpen, breaker.State())

	categories, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 1)
	assert.Equal(t, drinks.ID, categories[0].ID)

	found, err := repo.FindByID(ctx, drinks.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bebidas Calientes", found.Name)

	err = repo.Save(ctx, seedCategory("Postres"))
	var openErr *circuitbreaker.CircuitOpenError
	require.ErrorAs(t, err, &openErr)
}
