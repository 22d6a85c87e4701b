// Package events publishes lifecycle events to KurrentDB streams so
// downstream consumers (notification senders, analytics pipelines) can
// react without polling the relational store. The service runs fine
// without it; publishing is best-effort and never blocks a request.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/EventStore/EventStore-Client-Go/v4/esdb"
	"github.com/addis-gov/cas/internal/shared/types"
	"github.com/google/uuid"
)

// Event is a single lifecycle fact about an aggregate.
type Event struct {
	ID            types.ID
	AggregateType string
	AggregateID   types.ID
	EventType     string
	Data          interface{}
	OccurredAt    time.Time
}

// NewEvent builds an event with a fresh identity and timestamp.
func NewEvent(aggregateType string, aggregateID types.ID, eventType string, data interface{}) *Event {
	return &Event{
		ID:            types.NewID(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Data:          data,
		OccurredAt:    time.Now().UTC(),
	}
}

// Publisher sends lifecycle events somewhere. The nil-safe Bus below is
// the production implementation; tests use in-memory recorders.
type Publisher interface {
	Publish(ctx context.Context, events ...*Event) error
}

// Bus publishes events to per-aggregate KurrentDB streams. A nil Bus is
// valid and drops all events, which is how the service runs when event
// streaming is disabled.
type Bus struct {
	db *esdb.Client
}

// NewBus connects to KurrentDB using an esdb connection string.
func NewBus(connectionString string) (*Bus, error) {
	settings, err := esdb.ParseConnectionString(connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	db, err := esdb.NewClient(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Bus{db: db}, nil
}

// Publish appends events to their aggregate streams.
func (b *Bus) Publish(ctx context.Context, events ...*Event) error {
	if b == nil {
		return nil
	}

	for _, event := range events {
		data, err := json.Marshal(event.Data)
		if err != nil {
			return fmt.Errorf("failed to marshal event data: %w", err)
		}

		metadata, err := json.Marshal(map[string]string{
			"occurred_at": event.OccurredAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return fmt.Errorf("failed to marshal event metadata: %w", err)
		}

		esdbEvent := esdb.EventData{
			EventType:   event.EventType,
			ContentType: esdb.ContentTypeJson,
			Data:        data,
			Metadata:    metadata,
			EventID:     toUUID(event.ID),
		}

		stream := fmt.Sprintf("%s-%s", event.AggregateType, event.AggregateID)
		_, err = b.db.AppendToStream(ctx, stream, esdb.AppendToStreamOptions{
			ExpectedRevision: esdb.Any{},
		}, esdbEvent)
		if err != nil {
			return fmt.Errorf("failed to publish event %s: %w", event.ID, err)
		}
	}

	return nil
}

// Health verifies the connection is alive by reading a system stream.
func (b *Bus) Health(ctx context.Context) error {
	if b == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	stream, err := b.db.ReadStream(ctx, "$streams", esdb.ReadStreamOptions{
		From:      esdb.Start{},
		Direction: esdb.Forwards,
	}, 1)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer stream.Close()

	return nil
}

// Close closes the underlying connection.
func (b *Bus) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

func toUUID(id types.ID) uuid.UUID {
	parsed, err := uuid.Parse(id.String())
	if err != nil {
		return uuid.New()
	}
	return parsed
}
