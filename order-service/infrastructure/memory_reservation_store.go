package infrastructure

import (
	"context"
	"sync"

	"github.com/cafeteria/ordering-system/order-service/domain"
	"github.com/cafeteria/ordering-system/shared/models"
	"github.com/pkg/errors"
)

// MemoryReservationStore tracks reserved inventory quantities. It is
// shared by all concurrent saga runs, so every operation takes the
// store lock.
type MemoryReservationStore struct {
	mu       sync.Mutex
	reserved map[models.ID]int
}

// NewMemoryReservationStore creates an empty reservation store
func NewMemoryReservationStore() *MemoryReservationStore {
	return &MemoryReservationStore{reserved: make(map[models.ID]int)}
}

// Reserve holds quantity units of a product
func (s *MemoryReservationStore) Reserve(ctx context.Context, productID models.ID, quantity int) error {
	if quantity <= 0 {
		return errors.Errorf("invalid reservation quantity %d", quantity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reserved[productID] += quantity
	return nil
}

// Release frees up to quantity previously reserved units. Releasing
// more than is held fails; releasing against an empty reservation
// returns ErrNothingReserved.
func (s *MemoryReservationStore) Release(ctx context.Context, productID models.ID, quantity int) error {
	if quantity <= 0 {
		return errors.Errorf("invalid release quantity %d", quantity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	held, ok := s.reserved[productID]
	if !ok {
		return domain.ErrNothingReserved
	}
	if quantity > held {
		return errors.Errorf("cannot release %d units of %s, only %d reserved", quantity, productID, held)
	}

	if held == quantity {
		delete(s.reserved, productID)
		return nil
	}
	s.reserved[productID] = held - quantity
	return nil
}

// Reserved returns the quantity currently held for a product
func (s *MemoryReservationStore) Reserved(ctx context.Context, productID models.ID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reserved[productID], nil
}

// All returns a snapshot of every reservation
func (s *MemoryReservationStore) All(ctx context.Context) (map[models.ID]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make(map[models.ID]int, len(s.reserved))
	for id, qty := range s.reserved {
		snapshot[id] = qty
	}
	return snapshot, nil
}
