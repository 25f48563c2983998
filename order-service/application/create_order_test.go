package application

import (
	"context"
	"sync"
	"testing"

	"github.com/cafeteria/ordering-system/order-service/domain"
	"github.com/cafeteria/ordering-system/order-service/infrastructure"
	"github.com/cafeteria/ordering-system/shared/events"
	"github.com/cafeteria/ordering-system/shared/models"
	"github.com/cafeteria/ordering-system/shared/saga"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capturePublisher records published events in memory
type capturePublisher struct {
	mux    sync.Mutex
	events []*events.Event
}

func (p *capturePublisher) Publish(ctx context.Context, evts ...*events.Event) error {
	p.mux.Lock()
	defer p.mux.Unlock()
	p.events = append(p.events, evts...)
	return nil
}

func (p *capturePublisher) byType(eventType string) []*events.Event {
	p.mux.Lock()
	defer p.mux.Unlock()
	var matched []*events.Event
	for _, e := range p.events {
		if e.EventType == eventType {
			matched = append(matched, e)
		}
	}
	return matched
}

// failingReservationStore rejects reservations for one product and
// tracks every release so tests can verify rollback
type failingReservationStore struct {
	inner  domain.ReservationStore
	failOn models.ID

	mux      sync.Mutex
	released []domain.Reservation
}

func (s *failingReservationStore) Reserve(ctx context.Context, productID models.ID, quantity int) error {
	if productID == s.failOn {
		return errors.New("stock unavailable")
	}
	return s.inner.Reserve(ctx, productID, quantity)
}

func (s *failingReservationStore) Release(ctx context.Context, productID models.ID, quantity int) error {
	s.mux.Lock()
	s.released = append(s.released, domain.Reservation{ProductID: productID, Quantity: quantity})
	s.mux.Unlock()
	return s.inner.Release(ctx, productID, quantity)
}

func (s *failingReservationStore) Reserved(ctx context.Context, productID models.ID) (int, error) {
	return s.inner.Reserved(ctx, productID)
}

func (s *failingReservationStore) All(ctx context.Context) (map[models.ID]int, error) {
	return s.inner.All(ctx)
}

// confirmFailingOrderRepository fails the save of a confirmed order
type confirmFailingOrderRepository struct {
	domain.OrderRepository
}

func (r *confirmFailingOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	if order.Status == domain.OrderStatusConfirmed {
		return errors.New("orders table unavailable")
	}
	return r.OrderRepository.Save(ctx, order)
}

func testProducts(t *testing.T) (*domain.Product, *domain.Product) {
	t.Helper()

	coffee, err := domain.NewProduct("Americano", "Hot coffee", models.NewMoney(4500, "MXN"), models.GenerateUUID())
	require.NoError(t, err)
	torta, err := domain.NewProduct("Torta de Milanesa", "Breaded beef sandwich", models.NewMoney(8500, "MXN"), models.GenerateUUID())
	require.NoError(t, err)
	return coffee, torta
}

func TestCreateOrder_Execute_CompletesAndConfirms(t *testing.T) {
	coffee, torta := testProducts(t)

	orders := infrastructure.NewMemoryOrderRepository()
	publisher := &capturePublisher{}

	uc, err := NewCreateOrder(
		infrastructure.NewMemoryProductRepository([]*domain.Product{coffee, torta}),
		orders,
		infrastructure.NewMemoryReservationStore(),
		publisher,
	)
	require.NoError(t, err)

	response, err := uc.Execute(context.Background(), &CreateOrderCommand{
		CustomerName: "Ana",
		Items: []OrderItemCommand{
			{ProductID: coffee.ID, Quantity: 2},
			{ProductID: torta.ID, Quantity: 1},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, response.Order)

	assert.Equal(t, "Ana", response.Order.CustomerName)
	assert.Equal(t, domain.OrderStatusConfirmed, response.Order.Status)
	assert.Equal(t, int64(2*4500+8500), response.Order.Total.Amount)

	require.NotNil(t, response.Saga)
	assert.Equal(t, saga.StatusCompleted, response.Saga.Status)
	require.Len(t, response.Saga.Steps, 4)
	for _, record := range response.Saga.Steps {
		assert.True(t, record.Executed, "step %s should have executed", record.Name)
		assert.False(t, record.Compensated, "step %s should not be compensated", record.Name)
		assert.Nil(t, record.Error)
	}

	// Order persisted and confirmed.
	stored, err := orders.FindAll(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, domain.OrderStatusConfirmed, stored[0].Status)

	// Lifecycle events published.
	assert.Len(t, publisher.byType(events.OrderCreatedEvent), 1)
	assert.Len(t, publisher.byType(events.OrderConfirmedEvent), 1)
	assert.Empty(t, publisher.byType(events.OrderCreateFailedEvent))
}

func TestCreateOrder_Execute_ReservationFailureCompensates(t *testing.T) {
	coffee, torta := testProducts(t)

	orders := infrastructure.NewMemoryOrderRepository()
	reservations := &failingReservationStore{
		inner:  infrastructure.NewMemoryReservationStore(),
		failOn: torta.ID,
	}
	publisher := &capturePublisher{}

	uc, err := NewCreateOrder(
		infrastructure.NewMemoryProductRepository([]*domain.Product{coffee, torta}),
		orders,
		reservations,
		publisher,
	)
	require.NoError(t, err)

	response, err := uc.Execute(context.Background(), &CreateOrderCommand{
		CustomerName: "Luis",
		Items: []OrderItemCommand{
			{ProductID: coffee.ID, Quantity: 1},
			{ProductID: torta.ID, Quantity: 3},
		},
	})
	require.Error(t, err)
	require.NotNil(t, response)
	assert.Nil(t, response.Order)

	var execErr *saga.ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, "reserve_inventory", execErr.FailedStep)
	assert.Equal(t, saga.StatusCompensated, execErr.Status)

	require.NotNil(t, response.Saga)
	assert.Equal(t, saga.StatusCompensated, response.Saga.Status)
	require.Len(t, response.Saga.Steps, 4)

	validate, reserve, create, confirm := response.Saga.Steps[0], response.Saga.Steps[1], response.Saga.Steps[2], response.Saga.Steps[3]

	assert.True(t, validate.Executed)
	assert.True(t, validate.Compensated)

	assert.False(t, reserve.Executed)
	assert.False(t, reserve.Compensated)
	require.NotNil(t, reserve.Error)
	assert.Equal(t, saga.KindOperation, reserve.Error.Kind)

	// Steps after the failure never ran.
	for _, record := range []*saga.StepRecord{create, confirm} {
		assert.False(t, record.Executed, "step %s should not have executed", record.Name)
		assert.False(t, record.Compensated)
		assert.Nil(t, record.StartedAt)
	}

	// The partial hold on the first product was released.
	require.Len(t, reservations.released, 1)
	assert.Equal(t, coffee.ID, reservations.released[0].ProductID)
	held, err := reservations.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, held)

	// No order escaped the rollback.
	stored, err := orders.FindAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stored)

	// Failure event carries the saga outcome.
	failed := publisher.byType(events.OrderCreateFailedEvent)
	require.Len(t, failed, 1)
}

func TestCreateOrder_Execute_ConfirmFailureRollsBackOrderAndStock(t *testing.T) {
	coffee, _ := testProducts(t)

	orders := &confirmFailingOrderRepository{OrderRepository: infrastructure.NewMemoryOrderRepository()}
	reservations := infrastructure.NewMemoryReservationStore()
	publisher := &capturePublisher{}

	uc, err := NewCreateOrder(
		infrastructure.NewMemoryProductRepository([]*domain.Product{coffee}),
		orders,
		reservations,
		publisher,
	)
	require.NoError(t, err)

	response, err := uc.Execute(context.Background(), &CreateOrderCommand{
		CustomerName: "Marta",
		Items:        []OrderItemCommand{{ProductID: coffee.ID, Quantity: 1}},
	})
	require.Error(t, err)

	var execErr *saga.ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, "confirm_order", execErr.FailedStep)
	assert.Equal(t, saga.StatusCompensated, execErr.Status)
	assert.Nil(t, response.Order)

	// Created order was deleted and stock released.
	stored, err := orders.FindAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stored)

	held, err := reservations.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, held)
}

func TestCreateOrder_Execute_UnknownProductFailsValidation(t *testing.T) {
	coffee, _ := testProducts(t)

	uc, err := NewCreateOrder(
		infrastructure.NewMemoryProductRepository([]*domain.Product{coffee}),
		infrastructure.NewMemoryOrderRepository(),
		infrastructure.NewMemoryReservationStore(),
		&capturePublisher{},
	)
	require.NoError(t, err)

	response, err := uc.Execute(context.Background(), &CreateOrderCommand{
		CustomerName: "Eva",
		Items:        []OrderItemCommand{{ProductID: models.GenerateUUID(), Quantity: 1}},
	})
	require.Error(t, err)
	require.NotNil(t, response)
	assert.Nil(t, response.Order)

	var execErr *saga.ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, "validate_products", execErr.FailedStep)
	assert.Equal(t, saga.StatusCompensated, execErr.Status)
}

func TestCreateOrder_Execute_RejectsInvalidCommands(t *testing.T) {
	coffee, _ := testProducts(t)

	uc, err := NewCreateOrder(
		infrastructure.NewMemoryProductRepository([]*domain.Product{coffee}),
		infrastructure.NewMemoryOrderRepository(),
		infrastructure.NewMemoryReservationStore(),
		&capturePublisher{},
	)
	require.NoError(t, err)

	tests := []struct {
		name string
		cmd  *CreateOrderCommand
	}{
		{
			name: "missing customer name",
			cmd:  &CreateOrderCommand{Items: []OrderItemCommand{{ProductID: coffee.ID, Quantity: 1}}},
		},
		{
			name: "no items",
			cmd:  &CreateOrderCommand{CustomerName: "Ana"},
		},
		{
			name: "zero quantity",
			cmd: &CreateOrderCommand{
				CustomerName: "Ana",
				Items:        []OrderItemCommand{{ProductID: coffee.ID, Quantity: 0}},
			},
		},
		{
			name: "malformed product ID",
			cmd: &CreateOrderCommand{
				CustomerName: "Ana",
				Items:        []OrderItemCommand{{ProductID: models.ID("not-a-uuid"), Quantity: 1}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			response, err := uc.Execute(context.Background(), tt.cmd)
			require.Error(t, err)
			assert.Nil(t, response)
		})
	}
}
