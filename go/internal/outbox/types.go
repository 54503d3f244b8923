package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// OutboxEvent is one row of the transactional outbox. It is written in the
// same transaction as the business change it describes and published
// asynchronously by the dispatcher.
type OutboxEvent struct {
	ID            uuid.UUID       `json:"id"`
	EventType     string          `json:"event_type"`
	AggregateID   string          `json:"aggregate_id"`
	Payload       json.RawMessage `json:"payload"`
	RoutingKey    string          `json:"routing_key"`
	CorrelationID string          `json:"correlation_id"`
	CreatedBy     string          `json:"created_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	Sent          bool            `json:"sent"`
	SentAt        *time.Time      `json:"sent_at,omitempty"`
}

// EventPublisher delivers a single outbox event to the message broker.
// Implementations must not report success before the broker confirms.
type EventPublisher interface {
	Publish(ctx context.Context, event OutboxEvent) error
}
