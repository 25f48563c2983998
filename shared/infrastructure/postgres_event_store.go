package infrastructure

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cafeteria/ordering-system/shared/circuitbreaker"
	"github.com/cafeteria/ordering-system/shared/events"
	"github.com/cafeteria/ordering-system/shared/models"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

var _ events.EventStore = (*PostgresEventStore)(nil)

// PostgresEventStore persists the order event audit stream in
// PostgreSQL. Queries run through the database circuit breaker.
type PostgresEventStore struct {
	db      *sqlx.DB
	breaker *circuitbreaker.CircuitBreaker
}

// NewPostgresEventStore creates a new PostgresEventStore
func NewPostgresEventStore(db *sqlx.DB, breaker *circuitbreaker.CircuitBreaker) *PostgresEventStore {
	return &PostgresEventStore{db: db, breaker: breaker}
}

type postgresEvent struct {
	ID            string    `db:"id"`
	AggregateID   string    `db:"aggregate_id"`
	EventType     string    `db:"event_type"`
	Version       string    `db:"version"`
	Data          []byte    `db:"data"`
	Metadata      []byte    `db:"metadata"`
	Timestamp     time.Time `db:"timestamp"`
	CorrelationID string    `db:"correlation_id"`
	StreamVersion int       `db:"stream_version"`
}

// SaveEvents appends events to the aggregate's stream, enforcing the
// expected stream version
func (es *PostgresEventStore) SaveEvents(ctx context.Context, aggregateID models.ID, evts []*events.Event, expectedVersion int) error {
	if len(evts) == 0 {
		return nil
	}

	return es.breaker.Call(func() error {
		tx, err := es.db.BeginTxx(ctx, nil)
		if err != nil {
			return errors.Wrap(err, "failed to begin transaction")
		}
		defer tx.Rollback()

		var currentVersion int
		err = tx.GetContext(ctx, &currentVersion,
			"SELECT COALESCE(MAX(stream_version), 0) FROM order_events WHERE aggregate_id = $1",
			aggregateID.String())
		if err != nil && err != sql.ErrNoRows {
			return errors.Wrap(err, "failed to get current stream version")
		}

		if currentVersion != expectedVersion {
			return errors.Errorf("concurrency conflict: expected version %d, got %d", expectedVersion, currentVersion)
		}

		for i, event := range evts {
			row, err := es.toPostgres(event, currentVersion+i+1)
			if err != nil {
				return errors.Wrap(err, "failed to convert event")
			}

			query := `
				INSERT INTO order_events (
					id, aggregate_id, event_type, version, data, metadata,
					timestamp, correlation_id, stream_version
				) VALUES (
					:id, :aggregate_id, :event_type, :version, :data, :metadata,
					:timestamp, :correlation_id, :stream_version
				)`

			if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
				return errors.Wrap(err, "failed to insert event")
			}
		}

		return tx.Commit()
	})
}

// GetEvents retrieves the full stream of an aggregate in order
func (es *PostgresEventStore) GetEvents(ctx context.Context, aggregateID models.ID) ([]*events.Event, error) {
	query := `
		SELECT id, aggregate_id, event_type, version, data, metadata,
		       timestamp, correlation_id, stream_version
		FROM order_events
		WHERE aggregate_id = $1
		ORDER BY stream_version ASC`

	return es.selectEvents(ctx, query, aggregateID.String())
}

// GetEventsByType retrieves events of one type with pagination
func (es *PostgresEventStore) GetEventsByType(ctx context.Context, eventType string, offset, limit int) ([]*events.Event, error) {
	query := `
		SELECT id, aggregate_id, event_type, version, data, metadata,
		       timestamp, correlation_id, stream_version
		FROM order_events
		WHERE event_type = $1
		ORDER BY timestamp ASC
		LIMIT $2 OFFSET $3`

	return es.selectEvents(ctx, query, eventType, limit, offset)
}

func (es *PostgresEventStore) selectEvents(ctx context.Context, query string, args ...interface{}) ([]*events.Event, error) {
	var rows []postgresEvent
	err := es.breaker.Call(func() error {
		return es.db.SelectContext(ctx, &rows, query, args...)
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to select events")
	}

	result := make([]*events.Event, len(rows))
	for i := range rows {
		event, err := es.toDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		result[i] = event
	}
	return result, nil
}

func (es *PostgresEventStore) toPostgres(event *events.Event, streamVersion int) (*postgresEvent, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal event data")
	}

	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal event metadata")
	}

	correlationID := ""
	if event.CorrelationID != "" {
		correlationID = event.CorrelationID.String()
	}

	return &postgresEvent{
		ID:            event.ID.String(),
		AggregateID:   event.AggregateID.String(),
		EventType:     event.EventType,
		Version:       event.Version,
		Data:          data,
		Metadata:      metadata,
		Timestamp:     event.Timestamp,
		CorrelationID: correlationID,
		StreamVersion: streamVersion,
	}, nil
}

func (es *PostgresEventStore) toDomain(row *postgresEvent) (*events.Event, error) {
	id, err := models.NewID(row.ID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid event ID")
	}

	aggregateID, err := models.NewID(row.AggregateID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid aggregate ID")
	}

	var data interface{}
	if err := json.Unmarshal(row.Data, &data); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal event data")
	}

	var rawMetadata map[string]interface{}
	if err := json.Unmarshal(row.Metadata, &rawMetadata); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal event metadata")
	}

	metadata := make(events.Metadata)
	for k, v := range rawMetadata {
		if str, ok := v.(string); ok {
			metadata.Set(k, str)
		} else {
			metadata.Set(k, fmt.Sprintf("%v", v))
		}
	}

	var correlationID models.ID
	if row.CorrelationID != "" {
		correlationID, err = models.NewID(row.CorrelationID)
		if err != nil {
			return nil, errors.Wrap(err, "invalid correlation ID")
		}
	}

	return &events.Event{
		ID:            id,
		AggregateID:   aggregateID,
		Topic:         events.Topic(row.EventType),
		EventType:     row.EventType,
		Version:       row.Version,
		Data:          data,
		Metadata:      metadata,
		Timestamp:     row.Timestamp,
		CorrelationID: correlationID,
	}, nil
}
