package outbox

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Config controls the dispatcher poll loop.
type Config struct {
	PollInterval time.Duration
	BatchSize    int32
	MaxRetries   int
	RetryDelay   time.Duration
}

func DefaultConfig() Config {
	return Config{
		PollInterval: 5 * time.Second,
		BatchSize:    100,
		MaxRetries:   3,
		RetryDelay:   time.Second,
	}
}

// EventStore is what the dispatcher needs from the outbox repository.
type EventStore interface {
	FetchUnsent(ctx context.Context, limit int32) ([]OutboxEvent, error)
	MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error
}

// Dispatcher polls the outbox and publishes unsent events in order.
// An event is marked sent only after the broker confirms it, so a crash
// between publish and MarkSent yields a redundant publish, never a loss.
type Dispatcher struct {
	store     EventStore
	publisher EventPublisher
	config    Config
	clock     clockwork.Clock

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup

	published atomic.Uint64
	lastRunNs atomic.Int64
}

func NewDispatcher(store EventStore, publisher EventPublisher, cfg Config, clock clockwork.Clock) *Dispatcher {
	return &Dispatcher{
		store:     store,
		publisher: publisher,
		config:    cfg,
		clock:     clock,
		stopChan:  make(chan struct{}),
	}
}

func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("outbox dispatcher already running")
	}
	d.running = true
	d.mu.Unlock()

	d.wg.Add(1)
	go d.run(ctx)

	log.Info().
		Dur("poll_interval", d.config.PollInterval).
		Int32("batch_size", d.config.BatchSize).
		Msg("outbox dispatcher started")

	return nil
}

func (d *Dispatcher) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return fmt.Errorf("outbox dispatcher not running")
	}
	d.running = false
	d.mu.Unlock()

	close(d.stopChan)
	d.wg.Wait()

	log.Info().Msg("outbox dispatcher stopped")
	return nil
}

// Running reports whether the poll loop is active.
func (d *Dispatcher) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Stats returns the total confirmed publishes and the time of the last batch.
func (d *Dispatcher) Stats() (uint64, time.Time) {
	ns := d.lastRunNs.Load()
	var last time.Time
	if ns > 0 {
		last = time.Unix(0, ns)
	}
	return d.published.Load(), last
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()

	ticker := d.clock.NewTicker(d.config.PollInterval)
	defer ticker.Stop()

	// Process immediately on start
	d.processBatch(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopChan:
			return
		case <-ticker.Chan():
			d.processBatch(ctx)
		}
	}
}

func (d *Dispatcher) processBatch(ctx context.Context) {
	d.lastRunNs.Store(d.clock.Now().UnixNano())

	events, err := d.store.FetchUnsent(ctx, d.config.BatchSize)
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch unsent outbox events")
		return
	}
	if len(events) == 0 {
		return
	}

	log.Debug().Int("count", len(events)).Msg("processing outbox events")

	successful := 0
	for _, event := range events {
		if err := d.publishWithRetry(ctx, event); err != nil {
			log.Error().
				Err(err).
				Str("event_id", event.ID.String()).
				Str("event_type", event.EventType).
				Msg("failed to publish event, leaving unsent")
			continue
		}

		if err := d.store.MarkSent(ctx, event.ID, d.clock.Now()); err != nil {
			// The event was published. MarkSent failing means the next batch
			// republishes it, which consumers dedupe by correlation id.
			log.Error().
				Err(err).
				Str("event_id", event.ID.String()).
				Msg("failed to mark outbox event as sent")
			continue
		}

		d.published.Add(1)
		successful++
	}

	log.Info().
		Int("total", len(events)).
		Int("successful", successful).
		Msg("processed outbox batch")
}

func (d *Dispatcher) publishWithRetry(ctx context.Context, event OutboxEvent) error {
	var lastErr error

	for attempt := 0; attempt <= d.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-d.clock.After(d.config.RetryDelay * time.Duration(attempt)):
			}
		}

		if err := d.publisher.Publish(ctx, event); err != nil {
			lastErr = err
			log.Warn().
				Err(err).
				Str("event_id", event.ID.String()).
				Int("attempt", attempt+1).
				Msg("failed to publish event, retrying")
			continue
		}

		return nil
	}

	return fmt.Errorf("publish failed after %d attempts: %w", d.config.MaxRetries+1, lastErr)
}
