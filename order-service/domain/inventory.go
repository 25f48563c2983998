package domain

import (
	"context"

	"github.com/cafeteria/ordering-system/shared/models"
	"github.com/pkg/errors"
)

// ErrNothingReserved is returned when a release exceeds what is held
var ErrNothingReserved = errors.New("no reservation held for product")

// Reservation is a quantity of a product held for an in-flight order
type Reservation struct {
	ProductID models.ID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// ReservationStore tracks inventory quantities held by in-flight
// orders. Implementations must be safe for concurrent use: multiple
// saga runs may reserve and release against the same products at once.
type ReservationStore interface {
	Reserve(ctx context.Context, productID models.ID, quantity int) error
	Release(ctx context.Context, productID models.ID, quantity int) error
	Reserved(ctx context.Context, productID models.ID) (int, error)
	All(ctx context.Context) (map[models.ID]int, error)
}
