package outbox

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// BrokerClient is the subset of the messaging client the outbox needs.
type BrokerClient interface {
	Publish(ctx context.Context, exchange, routingKey, correlationID string, data any) error
	IsConnected() bool
}

// BrokerPublisher routes outbox events to a topic exchange using the
// routing key recorded on the row.
type BrokerPublisher struct {
	client   BrokerClient
	exchange string
}

func NewBrokerPublisher(client BrokerClient, exchange string) *BrokerPublisher {
	return &BrokerPublisher{
		client:   client,
		exchange: exchange,
	}
}

func (p *BrokerPublisher) Publish(ctx context.Context, event OutboxEvent) error {
	err := p.client.Publish(ctx, p.exchange, event.RoutingKey, event.CorrelationID, json.RawMessage(event.Payload))
	if err != nil {
		return err
	}

	log.Debug().
		Str("event_id", event.ID.String()).
		Str("exchange", p.exchange).
		Str("routing_key", event.RoutingKey).
		Msg("published outbox event")

	return nil
}

// IsConnected exposes broker connectivity for health checks.
func (p *BrokerPublisher) IsConnected() bool {
	return p.client.IsConnected()
}
