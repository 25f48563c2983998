package infrastructure

import (
	"context"
	"sort"
	"sync"

	"github.com/cafeteria/ordering-system/shared/events"
	"github.com/cafeteria/ordering-system/shared/models"
	"github.com/pkg/errors"
)

var _ events.EventStore = (*MemoryEventStore)(nil)

// MemoryEventStore keeps the event audit stream in process memory.
// Used by the memory and file repository backends.
type MemoryEventStore struct {
	mux     sync.RWMutex
	streams map[string][]*events.Event
}

// NewMemoryEventStore creates a new MemoryEventStore
func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{
		streams: make(map[string][]*events.Event),
	}
}

// SaveEvents appends events to the aggregate's stream, enforcing the
// expected stream version
func (es *MemoryEventStore) SaveEvents(ctx context.Context, aggregateID models.ID, evts []*events.Event, expectedVersion int) error {
	if len(evts) == 0 {
		return nil
	}

	es.mux.Lock()
	defer es.mux.Unlock()

	stream := es.streams[aggregateID.String()]
	if len(stream) != expectedVersion {
		return errors.Errorf("concurrency conflict: expected version %d, got %d", expectedVersion, len(stream))
	}

	for _, event := range evts {
		stream = append(stream, event.Clone())
	}
	es.streams[aggregateID.String()] = stream
	return nil
}

// GetEvents retrieves the full stream of an aggregate in order
func (es *MemoryEventStore) GetEvents(ctx context.Context, aggregateID models.ID) ([]*events.Event, error) {
	es.mux.RLock()
	defer es.mux.RUnlock()

	stream := es.streams[aggregateID.String()]
	result := make([]*events.Event, len(stream))
	for i, event := range stream {
		result[i] = event.Clone()
	}
	return result, nil
}

// GetEventsByType retrieves events of one type with pagination
func (es *MemoryEventStore) GetEventsByType(ctx context.Context, eventType string, offset, limit int) ([]*events.Event, error) {
	es.mux.RLock()
	defer es.mux.RUnlock()

	var matched []*events.Event
	for _, stream := range es.streams {
		for _, event := range stream {
			if event.EventType == eventType {
				matched = append(matched, event)
			}
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Timestamp.Before(matched[j].Timestamp)
	})

	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(matched) {
		end = len(matched)
	}

	result := make([]*events.Event, 0, end-offset)
	for _, event := range matched[offset:end] {
		result = append(result, event.Clone())
	}
	return result, nil
}
