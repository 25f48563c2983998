package infrastructure

import (
	"context"
	"sync"
	"testing"

	"github.com/cafeteria/ordering-system/order-service/domain"
	"github.com/cafeteria/ordering-system/shared/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryReservationStore_ReserveAndRelease(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryReservationStore()
	productID := models.GenerateUUID()

	require.NoError(t, store.Reserve(ctx, productID, 3))
	require.NoError(t, store.Reserve(ctx, productID, 2))

	held, err := store.Reserved(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, 5, held)

	require.NoError(t, store.Release(ctx, productID, 2))
	held, err = store.Reserved(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, 3, held)

	// Releasing the remainder clears the entry entirely.
	require.NoError(t, store.Release(ctx, productID, 3))
	all, err := store.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestMemoryReservationStore_ReleaseValidation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryReservationStore()
	productID := models.GenerateUUID()

	err := store.Release(ctx, productID, 1)
	assert.ErrorIs(t, err, domain.ErrNothingReserved)

	require.NoError(t, store.Reserve(ctx, productID, 1))
	assert.Error(t, store.Release(ctx, productID, 2))
	assert.Error(t, store.Release(ctx, productID, 0))
	assert.Error(t, store.Reserve(ctx, productID, -1))
}

func TestMemoryReservationStore_ConcurrentReservations(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryReservationStore()
	productID := models.GenerateUUID()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Reserve(ctx, productID, 1)
		}()
	}
	wg.Wait()

	held, err := store.Reserved(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, 50, held)
}

func TestMemoryOrderRepository_DeleteMissingIsNoOp(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryOrderRepository()

	// Compensations may retry a delete; a missing order is not an error.
	assert.NoError(t, repo.Delete(ctx, models.GenerateUUID()))

	item, err := domain.NewOrderItem(models.GenerateUUID(), "Americano", 1, models.NewMoney(4500, "MXN"))
	require.NoError(t, err)
	order, err := domain.CreateOrder("Ana", []domain.OrderItem{item})
	require.NoError(t, err)

	require.NoError(t, repo.Save(ctx, order))
	require.NoError(t, repo.Delete(ctx, order.ID))
	assert.NoError(t, repo.Delete(ctx, order.ID))

	_, err = repo.FindByID(ctx, order.ID)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}
