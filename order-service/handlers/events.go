package handlers

import (
	"context"
	"log"

	"github.com/cafeteria/ordering-system/order-service/application"
	"github.com/cafeteria/ordering-system/shared/events"
)

// OrderEventHandlers routes consumed order events to the audit trail.
// Consumption never drives the order flow: events are recorded, not
// acted on.
type OrderEventHandlers struct {
	recordOrderEvent *application.RecordOrderEvent
}

// NewOrderEventHandlers creates new order event handlers
func NewOrderEventHandlers(recordOrderEvent *application.RecordOrderEvent) *OrderEventHandlers {
	return &OrderEventHandlers{recordOrderEvent: recordOrderEvent}
}

// Handle implements the events.EventHandler interface
func (h *OrderEventHandlers) Handle(ctx context.Context, event *events.Event) error {
	switch event.EventType {
	case events.OrderCreatedEvent,
		events.OrderConfirmedEvent,
		events.OrderCancelledEvent,
		events.OrderCreateFailedEvent,
		events.InventoryReservedEvent,
		events.InventoryReleasedEvent:
		if err := h.recordOrderEvent.Execute(ctx, event); err != nil {
			log.Printf("failed to record order event %s: %v", event.ID, err)
			return err
		}
		return nil
	default:
		// Unknown event type, ignore
		return nil
	}
}
