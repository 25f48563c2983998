package application

import (
	"context"

	"github.com/cafeteria/ordering-system/order-service/domain"
)

// ListOrders use case lists every order of the current process
type ListOrders struct {
	orderRepository domain.OrderRepository
}

// NewListOrders creates a new ListOrders use case
func NewListOrders(orderRepository domain.OrderRepository) *ListOrders {
	return &ListOrders{orderRepository: orderRepository}
}

// Execute returns all orders in creation order
func (uc *ListOrders) Execute(ctx context.Context) ([]*OrderResponse, error) {
	orders, err := uc.orderRepository.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	responses := make([]*OrderResponse, len(orders))
	for i, order := range orders {
		responses[i] = toOrderResponse(order)
	}
	return responses, nil
}
