package domain

import (
	"testing"

	"github.com/cafeteria/ordering-system/shared/events"
	"github.com/cafeteria/ordering-system/shared/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testItems(t *testing.T) []OrderItem {
	t.Helper()

	coffee, err := NewOrderItem(models.GenerateUUID(), "Americano", 2, models.NewMoney(4500, "MXN"))
	require.NoError(t, err)
	torta, err := NewOrderItem(models.GenerateUUID(), "Torta de Milanesa", 1, models.NewMoney(8500, "MXN"))
	require.NoError(t, err)
	return []OrderItem{coffee, torta}
}

func TestCreateOrder_TotalsItemsAndRecordsEvent(t *testing.T) {
	order, err := CreateOrder("Ana", testItems(t))
	require.NoError(t, err)

	assert.Equal(t, OrderStatusPending, order.Status)
	assert.Equal(t, int64(2*4500+8500), order.Total.Amount)
	assert.Equal(t, "MXN", order.Total.Currency)

	recorded := order.Events()
	require.Len(t, recorded, 1)
	assert.Equal(t, events.OrderCreatedEvent, recorded[0].EventType)
	assert.Equal(t, order.ID, recorded[0].AggregateID)
}

func TestCreateOrder_Validation(t *testing.T) {
	_, err := CreateOrder("", testItems(t))
	assert.Error(t, err)

	_, err = CreateOrder("Ana", nil)
	assert.Error(t, err)

	mixed := testItems(t)
	usd, err := NewOrderItem(models.GenerateUUID(), "Soda", 1, models.NewMoney(200, "USD"))
	require.NoError(t, err)
	_, err = CreateOrder("Ana", append(mixed, usd))
	assert.Error(t, err)
}

func TestOrder_ConfirmOnlyFromPending(t *testing.T) {
	order, err := CreateOrder("Ana", testItems(t))
	require.NoError(t, err)

	require.NoError(t, order.Confirm())
	assert.Equal(t, OrderStatusConfirmed, order.Status)

	err = order.Confirm()
	assert.Error(t, err)

	recorded := order.Events()
	require.Len(t, recorded, 2)
	assert.Equal(t, events.OrderConfirmedEvent, recorded[1].EventType)
}

func TestOrder_CancelIsIdempotent(t *testing.T) {
	order, err := CreateOrder("Ana", testItems(t))
	require.NoError(t, err)

	order.Cancel()
	assert.Equal(t, OrderStatusCancelled, order.Status)
	countAfterFirst := len(order.Events())

	// A second cancel records nothing new.
	order.Cancel()
	assert.Equal(t, OrderStatusCancelled, order.Status)
	assert.Len(t, order.Events(), countAfterFirst)
}

func TestNewOrderItem_ComputesSubtotal(t *testing.T) {
	item, err := NewOrderItem(models.GenerateUUID(), "Americano", 3, models.NewMoney(4500, "MXN"))
	require.NoError(t, err)
	assert.Equal(t, int64(13500), item.Subtotal.Amount)

	_, err = NewOrderItem(models.GenerateUUID(), "Americano", 0, models.NewMoney(4500, "MXN"))
	assert.Error(t, err)
}
