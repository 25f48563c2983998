package application

import (
	"context"
	"time"

	"github.com/cafeteria/ordering-system/order-service/domain"
	"github.com/cafeteria/ordering-system/shared/events"
	"github.com/cafeteria/ordering-system/shared/models"
	"github.com/cafeteria/ordering-system/shared/saga"
	"github.com/cafeteria/ordering-system/shared/telemetry"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// OrderItemCommand is one requested product line
type OrderItemCommand struct {
	ProductID models.ID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// CreateOrderCommand represents the command to create an order
type CreateOrderCommand struct {
	CustomerName string             `json:"customer_name"`
	Items        []OrderItemCommand `json:"items"`
}

// OrderResponse is the serializable view of an order
type OrderResponse struct {
	OrderID      string             `json:"order_id"`
	CustomerName string             `json:"customer_name"`
	Items        []domain.OrderItem `json:"items"`
	Total        models.Money       `json:"total"`
	Status       domain.OrderStatus `json:"status"`
}

// CreateOrderResponse carries the created order (when the saga
// completed) and the full execution trail in every case, so callers
// can reconstruct exactly what executed and what was undone.
type CreateOrderResponse struct {
	Order *OrderResponse  `json:"order,omitempty"`
	Saga  *saga.Execution `json:"saga"`
}

// CreateOrder runs the order-creation saga: validate products, reserve
// inventory, create the order, confirm it. Any step failure rolls the
// earlier steps back in reverse order.
type CreateOrder struct {
	orchestrator   *saga.Orchestrator
	eventPublisher events.Publisher
}

// NewCreateOrder creates a new CreateOrder use case
func NewCreateOrder(
	productRepository domain.ProductRepository,
	orderRepository domain.OrderRepository,
	reservationStore domain.ReservationStore,
	eventPublisher events.Publisher,
) (*CreateOrder, error) {
	orchestrator, err := saga.NewOrchestrator("create-order",
		NewValidateProductsStep(productRepository),
		NewReserveInventoryStep(reservationStore),
		NewCreateOrderStep(orderRepository),
		NewConfirmOrderStep(orderRepository),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build create-order saga")
	}

	return &CreateOrder{
		orchestrator:   orchestrator,
		eventPublisher: eventPublisher,
	}, nil
}

// Execute runs the saga for one order. The response always carries the
// saga execution trail; the error is non-nil when the saga did not
// complete (compensated or failed).
func (uc *CreateOrder) Execute(ctx context.Context, cmd *CreateOrderCommand) (*CreateOrderResponse, error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "create_order",
		trace.WithAttributes(
			attribute.String("customer", cmd.CustomerName),
			attribute.Int("items", len(cmd.Items)),
		),
	)
	defer span.End()

	if err := uc.validateCommand(cmd); err != nil {
		return nil, errors.Wrap(err, "invalid command")
	}

	sc := saga.NewContext()
	sc.Set(ctxKeyCustomer, cmd.CustomerName)
	sc.Set(ctxKeyItems, cmd.Items)

	execution, runErr := uc.orchestrator.Run(ctx, sc)
	response := &CreateOrderResponse{Saga: execution}

	telemetry.RecordHistogram(ctx, "create_order_duration_seconds", "Create order duration",
		time.Since(start).Seconds(),
		attribute.String("status", string(execution.Status)),
	)

	if runErr != nil {
		span.RecordError(runErr)
		uc.publishFailure(ctx, execution, runErr)
		return response, runErr
	}

	raw, _ := sc.Get(ctxKeyOrder)
	if o, ok := raw.(*domain.Order); ok {
		response.Order = toOrderResponse(o)
		uc.publishOrderEvents(ctx, o)
	}

	return response, nil
}

func (uc *CreateOrder) validateCommand(cmd *CreateOrderCommand) error {
	if cmd.CustomerName == "" {
		return errors.New("customer name is required")
	}
	if len(cmd.Items) == 0 {
		return errors.New("at least one item is required")
	}
	for _, item := range cmd.Items {
		if _, err := models.NewID(item.ProductID.String()); err != nil {
			return errors.Wrapf(err, "invalid product ID %q", item.ProductID)
		}
		if item.Quantity <= 0 {
			return errors.Errorf("quantity must be positive for product %s", item.ProductID)
		}
	}
	return nil
}

func (uc *CreateOrder) publishOrderEvents(ctx context.Context, order *domain.Order) {
	if err := uc.eventPublisher.Publish(ctx, order.Events()...); err != nil {
		// Publishing is best-effort: the order is already committed.
		telemetry.RecordCounter(ctx, "order_event_publish_failures_total", "Failed order event publishes", 1)
		return
	}
	order.ClearEvents()
}

// OrderCreateFailedData is the payload of the order.create_failed event
type OrderCreateFailedData struct {
	SagaID     models.ID   `json:"saga_id"`
	Status     saga.Status `json:"status"`
	FailedStep string      `json:"failed_step"`
	Reason     string      `json:"reason"`
}

func (uc *CreateOrder) publishFailure(ctx context.Context, execution *saga.Execution, runErr error) {
	data := OrderCreateFailedData{
		SagaID: execution.ID,
		Status: execution.Status,
		Reason: runErr.Error(),
	}

	var execErr *saga.ExecutionError
	if errors.As(runErr, &execErr) {
		data.FailedStep = execErr.FailedStep
	}

	event := events.NewEvent(execution.ID, events.OrderCreateFailedEvent, data)
	if err := uc.eventPublisher.Publish(ctx, event); err != nil {
		telemetry.RecordCounter(ctx, "order_event_publish_failures_total", "Failed order event publishes", 1)
	}
}

func toOrderResponse(order *domain.Order) *OrderResponse {
	return &OrderResponse{
		OrderID:      order.ID.String(),
		CustomerName: order.CustomerName,
		Items:        order.Items,
		Total:        order.Total,
		Status:       order.Status,
	}
}
