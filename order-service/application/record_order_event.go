package application

import (
	"context"

	"github.com/cafeteria/ordering-system/shared/events"
	"github.com/cafeteria/ordering-system/shared/telemetry"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// RecordOrderEvent appends order events consumed from the queue to the
// event store, building an audit trail of every order lifecycle change.
// It never drives business flow: consumed events do not trigger saga
// steps.
type RecordOrderEvent struct {
	eventStore events.EventStore
}

// NewRecordOrderEvent creates a new RecordOrderEvent use case
func NewRecordOrderEvent(eventStore events.EventStore) *RecordOrderEvent {
	return &RecordOrderEvent{eventStore: eventStore}
}

// Execute appends the event to its aggregate's stream
func (uc *RecordOrderEvent) Execute(ctx context.Context, event *events.Event) error {
	existing, err := uc.eventStore.GetEvents(ctx, event.AggregateID)
	if err != nil {
		return errors.Wrap(err, "failed to load event stream")
	}

	// Skip duplicates: SQS is at-least-once delivery.
	for _, e := range existing {
		if e.ID == event.ID {
			return nil
		}
	}

	if err := uc.eventStore.SaveEvents(ctx, event.AggregateID, []*events.Event{event}, len(existing)); err != nil {
		return errors.Wrap(err, "failed to append event")
	}

	telemetry.RecordCounter(ctx, "order_events_recorded_total", "Order events appended to the audit stream", 1,
		attribute.String("event_type", event.EventType),
	)
	return nil
}
