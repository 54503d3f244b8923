// Package consumers hosts the message consumers that keep local replicas in
// step with upstream services and answer drift notifications.
package consumers

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/carewell/activity-service/go/internal/messaging/rabbitmq"
)

const connectRetries = 5

// Broker is the topology and subscription surface a consumer needs during setup.
type Broker interface {
	ExchangeDeclare(exchange string) error
	QueueDeclareAndBind(queue, exchange, routingKey string) error
	Subscribe(queue string, handler rabbitmq.HandlerFunc)
}

// BrokerClient is a full broker connection owned by one consumer.
type BrokerClient interface {
	Broker
	Connect(ctx context.Context, maxRetries int) error
	StartConsuming(ctx context.Context) error
	Close() error
}

// Consumer declares its topology and registers handlers on its own client.
type Consumer interface {
	Name() string
	Setup(broker Broker) error
}

// Manager runs each consumer on a dedicated broker connection so a channel
// failure in one does not take down the others.
type Manager struct {
	newClient func(consumerName string) BrokerClient
	consumers []Consumer

	mu      sync.Mutex
	running bool
	clients []BrokerClient
	wg      sync.WaitGroup
}

func NewManager(newClient func(consumerName string) BrokerClient, consumers ...Consumer) *Manager {
	return &Manager{
		newClient: newClient,
		consumers: consumers,
	}
}

// Start connects and sets up every consumer, then consumes until ctx is
// cancelled. It fails fast: if any consumer cannot connect or declare its
// topology, already-started clients are closed and the error is returned.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("consumer manager already running")
	}
	m.running = true
	m.mu.Unlock()

	for _, consumer := range m.consumers {
		client := m.newClient(consumer.Name())

		if err := client.Connect(ctx, connectRetries); err != nil {
			m.Stop()
			return fmt.Errorf("failed to connect consumer %s: %w", consumer.Name(), err)
		}
		if err := consumer.Setup(client); err != nil {
			_ = client.Close()
			m.Stop()
			return fmt.Errorf("failed to set up consumer %s: %w", consumer.Name(), err)
		}

		m.mu.Lock()
		m.clients = append(m.clients, client)
		m.mu.Unlock()

		m.wg.Add(1)
		go func(name string, client BrokerClient) {
			defer m.wg.Done()
			if err := client.StartConsuming(ctx); err != nil {
				log.Error().Err(err).Str("consumer", name).Msg("consumer stopped with error")
				return
			}
			log.Info().Str("consumer", name).Msg("consumer stopped")
		}(consumer.Name(), client)

		log.Info().Str("consumer", consumer.Name()).Msg("consumer started")
	}

	return nil
}

// Stop closes all broker connections and waits for the consume loops to end.
func (m *Manager) Stop() {
	m.mu.Lock()
	clients := m.clients
	m.clients = nil
	m.running = false
	m.mu.Unlock()

	for _, client := range clients {
		if err := client.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close consumer client")
		}
	}
	m.wg.Wait()
}
