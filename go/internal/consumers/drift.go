package consumers

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/carewell/activity-service/go/internal/activity"
	"github.com/carewell/activity-service/go/internal/messaging/events"
	"github.com/carewell/activity-service/go/internal/messaging/rabbitmq"
	"github.com/carewell/activity-service/go/internal/models"
	"github.com/carewell/activity-service/go/internal/sqlutil"
)

// Snapshots reads current entity state, soft-deleted rows included, so sync
// events carry deletions downstream.
type Snapshots interface {
	Get(ctx context.Context, q sqlutil.Querier, id int64, includeDeleted bool) (*models.Activity, error)
	GetCentreActivity(ctx context.Context, q sqlutil.Querier, id int64) (*models.CentreActivity, error)
	GetPreference(ctx context.Context, q sqlutil.Querier, id int64) (*models.CentreActivityPreference, error)
	GetRecommendation(ctx context.Context, q sqlutil.Querier, id int64) (*models.CentreActivityRecommendation, error)
	GetExclusion(ctx context.Context, q sqlutil.Querier, id int64) (*models.CentreActivityExclusion, error)
}

// SyncPublisher publishes sync events straight to the broker. Drift answers
// skip the outbox: they carry full current state, so a lost publish just
// means the reconciliation service reports the drift again.
type SyncPublisher interface {
	Publish(ctx context.Context, exchange, routingKey, correlationID string, data any) error
}

// DriftConsumer answers drift notifications by republishing the current
// state of the drifted record as a full-state sync event.
type DriftConsumer struct {
	db        database
	snapshots Snapshots
	publisher SyncPublisher
}

func NewDriftConsumer(pool *pgxpool.Pool, snapshots Snapshots, publisher SyncPublisher) *DriftConsumer {
	return &DriftConsumer{
		db:        newDatabase(pool),
		snapshots: snapshots,
		publisher: publisher,
	}
}

func (c *DriftConsumer) Name() string {
	return "drift"
}

func (c *DriftConsumer) Setup(broker Broker) error {
	if err := broker.ExchangeDeclare(events.ReconciliationExchange); err != nil {
		return err
	}
	if err := broker.ExchangeDeclare(events.ActivityExchange); err != nil {
		return err
	}
	if err := broker.QueueDeclareAndBind(events.QueueDriftDetected, events.ReconciliationExchange, "drift.detected.#"); err != nil {
		return err
	}
	broker.Subscribe(events.QueueDriftDetected, c.handleDrift)
	return nil
}

func (c *DriftConsumer) handleDrift(ctx context.Context, envelope rabbitmq.Envelope) rabbitmq.AckDecision {
	event, err := events.ParseDriftEvent(envelope.Data)
	if err != nil {
		log.Error().Err(err).Msg("invalid drift event, discarding")
		return rabbitmq.NackDiscard
	}

	payload, routingKey, correlationID, err := c.buildSyncEvent(ctx, event)
	if err != nil {
		if errors.Is(err, activity.ErrNotFound) {
			// Nothing to republish; the record never existed here
			log.Warn().
				Str("record_type", event.RecordType).
				Int64("record_id", event.RecordID).
				Msg("drifted record not found, nothing to sync")
			return rabbitmq.Ack
		}
		log.Error().Err(err).
			Str("record_type", event.RecordType).
			Int64("record_id", event.RecordID).
			Msg("failed to load drifted record")
		return rabbitmq.NackRequeue
	}
	if payload == nil {
		log.Error().
			Str("record_type", event.RecordType).
			Msg("unknown drift record type, discarding")
		return rabbitmq.NackDiscard
	}

	if err := c.publisher.Publish(ctx, events.ActivityExchange, routingKey, correlationID, payload); err != nil {
		log.Error().Err(err).
			Str("record_type", event.RecordType).
			Int64("record_id", event.RecordID).
			Msg("failed to publish sync event")
		return rabbitmq.NackRequeue
	}

	log.Info().
		Str("record_type", event.RecordType).
		Int64("record_id", event.RecordID).
		Str("routing_key", routingKey).
		Msg("published sync event for drifted record")
	return rabbitmq.Ack
}

func (c *DriftConsumer) buildSyncEvent(ctx context.Context, event *events.DriftEvent) (any, string, string, error) {
	switch event.RecordType {
	case events.RecordTypeActivity:
		a, err := c.snapshots.Get(ctx, c.db.pool, event.RecordID, true)
		if err != nil {
			return nil, "", "", err
		}
		sync, key := events.NewActivitySync(*a, events.SyncReasonDrift)
		return sync, key, sync.CorrelationID, nil

	case events.RecordTypeCentreActivity:
		ca, err := c.snapshots.GetCentreActivity(ctx, c.db.pool, event.RecordID)
		if err != nil {
			return nil, "", "", err
		}
		sync, key := events.NewCentreActivitySync(*ca, events.SyncReasonDrift)
		return sync, key, sync.CorrelationID, nil

	case events.RecordTypePreference:
		p, err := c.snapshots.GetPreference(ctx, c.db.pool, event.RecordID)
		if err != nil {
			return nil, "", "", err
		}
		sync, key := events.NewPreferenceSync(*p, events.SyncReasonDrift)
		return sync, key, sync.CorrelationID, nil

	case events.RecordTypeRecommendation:
		r, err := c.snapshots.GetRecommendation(ctx, c.db.pool, event.RecordID)
		if err != nil {
			return nil, "", "", err
		}
		sync, key := events.NewRecommendationSync(*r, events.SyncReasonDrift)
		return sync, key, sync.CorrelationID, nil

	case events.RecordTypeExclusion:
		e, err := c.snapshots.GetExclusion(ctx, c.db.pool, event.RecordID)
		if err != nil {
			return nil, "", "", err
		}
		sync, key := events.NewExclusionSync(*e, events.SyncReasonDrift)
		return sync, key, sync.CorrelationID, nil
	}

	return nil, "", "", nil
}
