package application

import (
	"context"

	"github.com/cafeteria/ordering-system/order-service/domain"
	"github.com/cafeteria/ordering-system/shared/saga"
	"github.com/pkg/errors"
)

// Saga context keys shared between the create-order steps
const (
	ctxKeyCustomer     = "customer_name"
	ctxKeyItems        = "requested_items"
	ctxKeyValidated    = "validated_items"
	ctxKeyReservations = "reservations"
	ctxKeyOrder        = "order"
)

// validatedItem pairs a verified product with the requested quantity
type validatedItem struct {
	Product  *domain.Product
	Quantity int
}

// ValidateProductsStep verifies that every requested product exists,
// is available, and is requested in a sane quantity. It has no side
// effects, so its compensation is a no-op.
type ValidateProductsStep struct {
	products domain.ProductRepository
}

// NewValidateProductsStep creates the validation step
func NewValidateProductsStep(products domain.ProductRepository) *ValidateProductsStep {
	return &ValidateProductsStep{products: products}
}

func (s *ValidateProductsStep) Name() string { return "validate_products" }

func (s *ValidateProductsStep) Execute(ctx context.Context, sc *saga.Context) error {
	raw, ok := sc.Get(ctxKeyItems)
	if !ok {
		return saga.NewDomainError("order has no items")
	}
	items := raw.([]OrderItemCommand)

	validated := make([]validatedItem, 0, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			return saga.NewDomainError("invalid quantity %d for product %s", item.Quantity, item.ProductID)
		}

		product, err := s.products.FindByID(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, domain.ErrProductNotFound) {
				return saga.NewDomainError("product %s not found", item.ProductID)
			}
			return saga.NewOperationError(err, "failed to load product")
		}

		if !product.Available {
			return saga.NewDomainError("product %s is not available", product.Name)
		}

		validated = append(validated, validatedItem{Product: product, Quantity: item.Quantity})
	}

	sc.Set(ctxKeyValidated, validated)
	return nil
}

func (s *ValidateProductsStep) Compensate(ctx context.Context, sc *saga.Context) error {
	// Validation commits nothing, there is nothing to undo.
	return nil
}

// ReserveInventoryStep holds stock for every validated item. Its
// compensation releases exactly the reservations this run created.
type ReserveInventoryStep struct {
	reservations domain.ReservationStore
}

// NewReserveInventoryStep creates the reservation step
func NewReserveInventoryStep(reservations domain.ReservationStore) *ReserveInventoryStep {
	return &ReserveInventoryStep{reservations: reservations}
}

func (s *ReserveInventoryStep) Name() string { return "reserve_inventory" }

func (s *ReserveInventoryStep) Execute(ctx context.Context, sc *saga.Context) error {
	raw, ok := sc.Get(ctxKeyValidated)
	if !ok {
		return saga.NewDomainError("no validated items to reserve")
	}
	validated := raw.([]validatedItem)

	held := make([]domain.Reservation, 0, len(validated))
	for _, item := range validated {
		if err := s.reservations.Reserve(ctx, item.Product.ID, item.Quantity); err != nil {
			// Free the partial holds: a failed step must leave no
			// committed effect behind for the orchestrator to miss.
			s.releaseAll(ctx, held)
			return saga.NewOperationError(err, "failed to reserve inventory")
		}
		held = append(held, domain.Reservation{ProductID: item.Product.ID, Quantity: item.Quantity})
	}

	sc.Set(ctxKeyReservations, held)
	return nil
}

func (s *ReserveInventoryStep) Compensate(ctx context.Context, sc *saga.Context) error {
	raw, ok := sc.Get(ctxKeyReservations)
	if !ok {
		return nil
	}
	held := raw.([]domain.Reservation)

	if err := s.releaseAll(ctx, held); err != nil {
		return err
	}

	// Dropping the key makes a repeated compensation a no-op.
	sc.Delete(ctxKeyReservations)
	return nil
}

func (s *ReserveInventoryStep) releaseAll(ctx context.Context, held []domain.Reservation) error {
	var firstErr error
	for _, reservation := range held {
		if err := s.reservations.Release(ctx, reservation.ProductID, reservation.Quantity); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "failed to release reservation for %s", reservation.ProductID)
		}
	}
	return firstErr
}

// CreateOrderStep builds the order aggregate from the validated items
// and persists it. Its compensation deletes the created order.
type CreateOrderStep struct {
	orders domain.OrderRepository
}

// NewCreateOrderStep creates the order-creation step
func NewCreateOrderStep(orders domain.OrderRepository) *CreateOrderStep {
	return &CreateOrderStep{orders: orders}
}

func (s *CreateOrderStep) Name() string { return "create_order" }

func (s *CreateOrderStep) Execute(ctx context.Context, sc *saga.Context) error {
	raw, ok := sc.Get(ctxKeyValidated)
	if !ok {
		return saga.NewDomainError("no validated items to order")
	}
	validated := raw.([]validatedItem)

	items := make([]domain.OrderItem, 0, len(validated))
	for _, v := range validated {
		item, err := domain.NewOrderItem(v.Product.ID, v.Product.Name, v.Quantity, v.Product.Price)
		if err != nil {
			return saga.NewDomainError("%v", err)
		}
		items = append(items, item)
	}

	order, err := domain.CreateOrder(sc.GetString(ctxKeyCustomer), items)
	if err != nil {
		return saga.NewDomainError("%v", err)
	}

	if err := s.orders.Save(ctx, order); err != nil {
		return saga.NewOperationError(err, "failed to save order")
	}

	sc.Set(ctxKeyOrder, order)
	return nil
}

func (s *CreateOrderStep) Compensate(ctx context.Context, sc *saga.Context) error {
	raw, ok := sc.Get(ctxKeyOrder)
	if !ok {
		return nil
	}
	order := raw.(*domain.Order)

	// Delete is a no-op for an already removed order.
	if err := s.orders.Delete(ctx, order.ID); err != nil {
		return errors.Wrap(err, "failed to delete order")
	}
	return nil
}

// ConfirmOrderStep transitions the created order to confirmed. Its
// compensation cancels the order instead of deleting it, keeping an
// audit trace of the attempt.
type ConfirmOrderStep struct {
	orders domain.OrderRepository
}

// NewConfirmOrderStep creates the confirmation step
func NewConfirmOrderStep(orders domain.OrderRepository) *ConfirmOrderStep {
	return &ConfirmOrderStep{orders: orders}
}

func (s *ConfirmOrderStep) Name() string { return "confirm_order" }

func (s *ConfirmOrderStep) Execute(ctx context.Context, sc *saga.Context) error {
	raw, ok := sc.Get(ctxKeyOrder)
	if !ok {
		return saga.NewDomainError("no order to confirm")
	}
	order := raw.(*domain.Order)

	if err := order.Confirm(); err != nil {
		return saga.NewOperationError(err, "failed to confirm order")
	}

	if err := s.orders.Save(ctx, order); err != nil {
		return saga.NewOperationError(err, "failed to save confirmed order")
	}
	return nil
}

func (s *ConfirmOrderStep) Compensate(ctx context.Context, sc *saga.Context) error {
	raw, ok := sc.Get(ctxKeyOrder)
	if !ok {
		return nil
	}
	order := raw.(*domain.Order)

	order.Cancel()
	if err := s.orders.Save(ctx, order); err != nil {
		return errors.Wrap(err, "failed to save cancelled order")
	}
	return nil
}
