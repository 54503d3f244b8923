package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// AckDecision tells the consume loop what to do with a delivery.
type AckDecision int

const (
	// Ack removes the message from the queue.
	Ack AckDecision = iota
	// NackRequeue returns the message to the queue for redelivery.
	NackRequeue
	// NackDiscard drops the message without redelivery.
	NackDiscard
)

// Envelope wraps every published message. Data holds the domain payload.
type Envelope struct {
	Timestamp     string          `json:"timestamp"`
	SourceService string          `json:"source_service"`
	Data          json.RawMessage `json:"data"`
}

// HandlerFunc processes one decoded envelope and decides its acknowledgment.
type HandlerFunc func(ctx context.Context, envelope Envelope) AckDecision

type subscription struct {
	queue   string
	handler HandlerFunc
}

const (
	publishAttempts = 3
	publishDelay    = time.Second
)

// Client wraps an AMQP connection with publisher confirms, enveloped
// publishing and a cooperative consume loop. Each consumer owns its own
// Client so channel-level failures stay isolated.
type Client struct {
	cfg Config

	mu            sync.Mutex
	conn          *amqp.Connection
	channel       *amqp.Channel
	connected     bool
	subscriptions []subscription
	consumerTags  []string
}

func NewClient(cfg Config) *Client {
	return &Client{cfg: cfg}
}

// Connect dials the broker with exponential backoff, enables publisher
// confirms and applies the prefetch limit.
func (c *Client) Connect(ctx context.Context, maxRetries int) error {
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		conn, err := amqp.DialConfig(c.cfg.URL(), amqp.Config{
			Heartbeat: c.cfg.Heartbeat,
		})
		if err != nil {
			lastErr = err
			log.Error().Err(err).Int("attempt", attempt+1).Msg("broker connection attempt failed")
			continue
		}

		channel, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			lastErr = err
			continue
		}

		if err := channel.Confirm(false); err != nil {
			_ = conn.Close()
			lastErr = fmt.Errorf("failed to enable publisher confirms: %w", err)
			continue
		}

		if err := channel.Qos(c.cfg.PrefetchCount, 0, false); err != nil {
			_ = conn.Close()
			lastErr = fmt.Errorf("failed to set prefetch: %w", err)
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.channel = channel
		c.connected = true
		c.consumerTags = nil
		c.mu.Unlock()

		log.Info().
			Str("service", c.cfg.ServiceName).
			Str("host", c.cfg.Host).
			Int("port", c.cfg.Port).
			Msg("connected to RabbitMQ")
		return nil
	}

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	return fmt.Errorf("failed to connect after %d attempts: %w", maxRetries, lastErr)
}

// IsConnected reports whether the connection is open.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected && c.conn != nil && !c.conn.IsClosed()
}

func (c *Client) currentChannel() (*amqp.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected || c.channel == nil {
		return nil, fmt.Errorf("not connected to RabbitMQ")
	}
	return c.channel, nil
}

// Publish wraps data in the service envelope and publishes it persistently,
// waiting for the broker confirm. Failed attempts are retried with a fixed
// delay before giving up.
func (c *Client) Publish(ctx context.Context, exchange, routingKey, correlationID string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal message data: %w", err)
	}

	envelope := Envelope{
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
		SourceService: c.cfg.ServiceName,
		Data:          payload,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < publishAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(publishDelay):
			}
		}

		channel, err := c.currentChannel()
		if err != nil {
			lastErr = err
			continue
		}

		confirm, err := channel.PublishWithDeferredConfirmWithContext(ctx, exchange, routingKey, false, false,
			amqp.Publishing{
				ContentType:   "application/json",
				DeliveryMode:  amqp.Persistent,
				Timestamp:     time.Now(),
				CorrelationId: correlationID,
				MessageId:     fmt.Sprintf("%s_%d", c.cfg.ServiceName, time.Now().UnixMilli()),
				Body:          body,
			})
		if err != nil {
			lastErr = err
			log.Error().Err(err).Int("attempt", attempt+1).
				Str("exchange", exchange).
				Str("routing_key", routingKey).
				Msg("publish attempt failed")
			continue
		}

		confirmed, err := confirm.WaitContext(ctx)
		if err != nil {
			lastErr = err
			continue
		}
		if !confirmed {
			lastErr = fmt.Errorf("broker nacked publish to %s/%s", exchange, routingKey)
			continue
		}

		log.Info().
			Str("correlation_id", correlationID).
			Str("exchange", exchange).
			Str("routing_key", routingKey).
			Msg("published message")
		return nil
	}

	return fmt.Errorf("failed to publish after %d attempts: %w", publishAttempts, lastErr)
}

// ExchangeDeclare declares a durable topic exchange.
func (c *Client) ExchangeDeclare(exchange string) error {
	channel, err := c.currentChannel()
	if err != nil {
		return err
	}
	if err := channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	return nil
}

// QueueDeclareAndBind declares a durable queue and binds it to a topic
// exchange with the given routing key pattern.
func (c *Client) QueueDeclareAndBind(queue, exchange, routingKey string) error {
	channel, err := c.currentChannel()
	if err != nil {
		return err
	}
	if _, err := channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	if err := channel.QueueBind(queue, routingKey, exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s to %s/%s: %w", queue, exchange, routingKey, err)
	}
	return nil
}

// Subscribe registers a handler for a queue. Consumption begins when
// StartConsuming runs.
func (c *Client) Subscribe(queue string, handler HandlerFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscriptions = append(c.subscriptions, subscription{queue: queue, handler: handler})
}

// StartConsuming consumes all subscribed queues until ctx is cancelled. On a
// lost connection it reconnects once and resumes; a second loss ends the loop.
func (c *Client) StartConsuming(ctx context.Context) error {
	reconnected := false

	for {
		deliveries, err := c.consumeAll()
		if err != nil {
			return err
		}

		lost := c.dispatch(ctx, deliveries)
		if !lost {
			return nil // context cancelled, clean shutdown
		}

		if reconnected {
			return fmt.Errorf("broker connection lost twice, giving up")
		}
		reconnected = true

		log.Warn().Str("service", c.cfg.ServiceName).Msg("broker connection lost, reconnecting")
		if err := c.Connect(ctx, 5); err != nil {
			return fmt.Errorf("failed to reconnect consumer: %w", err)
		}
	}
}

// consumeAll opens a consumer per subscribed queue and merges the delivery
// streams into one channel.
func (c *Client) consumeAll() (<-chan amqp.Delivery, error) {
	channel, err := c.currentChannel()
	if err != nil {
		return nil, err
	}

	merged := make(chan amqp.Delivery)
	var wg sync.WaitGroup

	c.mu.Lock()
	subs := make([]subscription, len(c.subscriptions))
	copy(subs, c.subscriptions)
	c.mu.Unlock()

	if len(subs) == 0 {
		return nil, fmt.Errorf("no queues subscribed")
	}

	for _, sub := range subs {
		tag := fmt.Sprintf("%s-%s", c.cfg.ServiceName, sub.queue)
		deliveries, err := channel.Consume(sub.queue, tag, false, false, false, false, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to consume queue %s: %w", sub.queue, err)
		}

		c.mu.Lock()
		c.consumerTags = append(c.consumerTags, tag)
		c.mu.Unlock()

		wg.Add(1)
		go func(in <-chan amqp.Delivery) {
			defer wg.Done()
			for d := range in {
				merged <- d
			}
		}(deliveries)

		log.Info().Str("queue", sub.queue).Str("consumer_tag", tag).Msg("consuming queue")
	}

	go func() {
		wg.Wait()
		close(merged)
	}()

	return merged, nil
}

// dispatch feeds deliveries to their handlers. It returns true if the
// delivery stream closed underneath us (connection loss), false on a
// context-driven shutdown.
func (c *Client) dispatch(ctx context.Context, deliveries <-chan amqp.Delivery) bool {
	for {
		select {
		case <-ctx.Done():
			c.drainAndRequeue(deliveries)
			return false
		case d, ok := <-deliveries:
			if !ok {
				return ctx.Err() == nil
			}
			c.handleDelivery(ctx, d)
		}
	}
}

// drainAndRequeue nack-requeues anything already in flight so shutdown never
// half-processes a message.
func (c *Client) drainAndRequeue(deliveries <-chan amqp.Delivery) {
	c.cancelConsumers()
	for {
		select {
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			_ = d.Nack(false, true)
		default:
			return
		}
	}
}

func (c *Client) handleDelivery(ctx context.Context, d amqp.Delivery) {
	var envelope Envelope
	if err := json.Unmarshal(d.Body, &envelope); err != nil {
		log.Error().Err(err).Str("queue", d.RoutingKey).Msg("invalid JSON in message, discarding")
		_ = d.Nack(false, false)
		return
	}

	handler := c.handlerFor(d.ConsumerTag)
	if handler == nil {
		log.Error().Str("consumer_tag", d.ConsumerTag).Msg("no handler for delivery, requeueing")
		_ = d.Nack(false, true)
		return
	}

	switch handler(ctx, envelope) {
	case Ack:
		if err := d.Ack(false); err != nil {
			log.Error().Err(err).Msg("failed to ack message")
		}
	case NackRequeue:
		if err := d.Nack(false, true); err != nil {
			log.Error().Err(err).Msg("failed to nack message")
		}
	case NackDiscard:
		if err := d.Nack(false, false); err != nil {
			log.Error().Err(err).Msg("failed to discard message")
		}
	}
}

func (c *Client) handlerFor(consumerTag string) HandlerFunc {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, sub := range c.subscriptions {
		if fmt.Sprintf("%s-%s", c.cfg.ServiceName, sub.queue) == consumerTag {
			return sub.handler
		}
	}
	return nil
}

func (c *Client) cancelConsumers() {
	c.mu.Lock()
	channel := c.channel
	tags := c.consumerTags
	c.consumerTags = nil
	c.mu.Unlock()

	if channel == nil {
		return
	}
	for _, tag := range tags {
		if err := channel.Cancel(tag, false); err != nil {
			log.Debug().Err(err).Str("consumer_tag", tag).Msg("failed to cancel consumer")
		}
	}
}

// Close cancels consumers and closes the channel and connection.
func (c *Client) Close() error {
	c.cancelConsumers()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.connected = false
	if c.channel != nil {
		_ = c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil && !c.conn.IsClosed() {
		if err := c.conn.Close(); err != nil {
			return fmt.Errorf("failed to close broker connection: %w", err)
		}
	}
	c.conn = nil

	log.Info().Str("service", c.cfg.ServiceName).Msg("closed RabbitMQ connection")
	return nil
}
