package application

import (
	"context"

	"github.com/cafeteria/ordering-system/order-service/domain"
	"github.com/cafeteria/ordering-system/shared/models"
	"github.com/pkg/errors"
)

// GetOrderQuery represents the query to retrieve an order
type GetOrderQuery struct {
	OrderID string `json:"order_id"`
}

// GetOrder use case retrieves a single order
type GetOrder struct {
	orderRepository domain.OrderRepository
}

// NewGetOrder creates a new GetOrder use case
func NewGetOrder(orderRepository domain.OrderRepository) *GetOrder {
	return &GetOrder{orderRepository: orderRepository}
}

// Execute retrieves the order by ID
func (uc *GetOrder) Execute(ctx context.Context, query *GetOrderQuery) (*OrderResponse, error) {
	id, err := models.NewID(query.OrderID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid order ID")
	}

	order, err := uc.orderRepository.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return toOrderResponse(order), nil
}
