package domain

import (
	"context"

	"github.com/cafeteria/ordering-system/shared/events"
	"github.com/cafeteria/ordering-system/shared/models"
	"github.com/pkg/errors"
)

// ErrOrderNotFound is returned when an order does not exist
var ErrOrderNotFound = errors.New("order not found")

// OrderStatus represents the status of an order
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusFailed    OrderStatus = "failed"
)

// OrderItem is a single product line inside an order
type OrderItem struct {
	ProductID models.ID    `json:"product_id"`
	Name      string       `json:"name"`
	Quantity  int          `json:"quantity"`
	UnitPrice models.Money `json:"unit_price"`
	Subtotal  models.Money `json:"subtotal"`
}

// NewOrderItem builds an item and computes its subtotal
func NewOrderItem(productID models.ID, name string, quantity int, unitPrice models.Money) (OrderItem, error) {
	if quantity <= 0 {
		return OrderItem{}, errors.Errorf("invalid quantity %d for product %s", quantity, name)
	}

	return OrderItem{
		ProductID: productID,
		Name:      name,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		Subtotal:  unitPrice.Multiply(int64(quantity)),
	}, nil
}

// Order aggregate root
type Order struct {
	ID           models.ID         `json:"id"`
	CustomerName string            `json:"customer_name"`
	Items        []OrderItem       `json:"items"`
	Total        models.Money      `json:"total"`
	Status       OrderStatus       `json:"status"`
	Timestamps   models.Timestamps `json:"-"`

	domainEvents []*events.Event
}

// OrderCreatedData is the payload of the order.created event
type OrderCreatedData struct {
	OrderID      models.ID    `json:"order_id"`
	CustomerName string       `json:"customer_name"`
	Total        models.Money `json:"total"`
	ItemCount    int          `json:"item_count"`
}

// OrderStatusData is the payload of status transition events
type OrderStatusData struct {
	OrderID models.ID   `json:"order_id"`
	Status  OrderStatus `json:"status"`
}

// CreateOrder factory method. The total is the sum of item subtotals;
// all items must share one currency.
func CreateOrder(customerName string, items []OrderItem) (*Order, error) {
	if customerName == "" {
		return nil, errors.New("customer name is required")
	}
	if len(items) == 0 {
		return nil, errors.New("order requires at least one item")
	}

	total := models.NewMoney(0, items[0].UnitPrice.Currency)
	for _, item := range items {
		sum, err := total.Add(item.Subtotal)
		if err != nil {
			return nil, errors.Wrap(err, "failed to total order items")
		}
		total = sum
	}

	order := &Order{
		ID:           models.GenerateUUID(),
		CustomerName: customerName,
		Items:        items,
		Total:        total,
		Status:       OrderStatusPending,
		Timestamps:   models.NewTimestamps(),
	}

	order.recordEvent(events.NewEvent(order.ID, events.OrderCreatedEvent, OrderCreatedData{
		OrderID:      order.ID,
		CustomerName: order.CustomerName,
		Total:        order.Total,
		ItemCount:    len(order.Items),
	}))

	return order, nil
}

// Confirm marks a pending order as confirmed
func (o *Order) Confirm() error {
	if o.Status != OrderStatusPending {
		return errors.Errorf("order can only be confirmed from pending status, got %s", o.Status)
	}

	o.Status = OrderStatusConfirmed
	o.Timestamps = o.Timestamps.Update()
	o.recordEvent(events.NewEvent(o.ID, events.OrderConfirmedEvent, OrderStatusData{
		OrderID: o.ID,
		Status:  o.Status,
	}))
	return nil
}

// Cancel marks the order as cancelled. Cancelling an already cancelled
// order is a no-op so saga compensations stay idempotent.
func (o *Order) Cancel() {
	if o.Status == OrderStatusCancelled {
		return
	}

	o.Status = OrderStatusCancelled
	o.Timestamps = o.Timestamps.Update()
	o.recordEvent(events.NewEvent(o.ID, events.OrderCancelledEvent, OrderStatusData{
		OrderID: o.ID,
		Status:  o.Status,
	}))
}

// Events returns recorded domain events
func (o *Order) Events() []*events.Event {
	return o.domainEvents
}

// ClearEvents drops recorded events after they have been published
func (o *Order) ClearEvents() {
	o.domainEvents = nil
}

func (o *Order) recordEvent(event *events.Event) {
	o.domainEvents = append(o.domainEvents, event)
}

// OrderRepository provides access to orders
type OrderRepository interface {
	Save(ctx context.Context, order *Order) error
	FindByID(ctx context.Context, id models.ID) (*Order, error)
	FindAll(ctx context.Context) ([]*Order, error)
	Delete(ctx context.Context, id models.ID) error
}
