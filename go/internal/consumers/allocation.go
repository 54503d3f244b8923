package consumers

import (
	"context"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/carewell/activity-service/go/internal/idempotency"
	"github.com/carewell/activity-service/go/internal/messaging/events"
	"github.com/carewell/activity-service/go/internal/messaging/mappers"
	"github.com/carewell/activity-service/go/internal/messaging/rabbitmq"
	"github.com/carewell/activity-service/go/internal/refallocation"
	"github.com/carewell/activity-service/go/internal/sqlutil"
)

// AllocationApplier is what the consumer needs from the refallocation service.
type AllocationApplier interface {
	Create(ctx context.Context, q sqlutil.Querier, proc idempotency.ProcessParams, params refallocation.CreateRefAllocationParams) idempotency.Result
	Update(ctx context.Context, q sqlutil.Querier, proc idempotency.ProcessParams, id int64, params refallocation.UpdateRefAllocationParams, sync *refallocation.SyncContext) idempotency.Result
	Delete(ctx context.Context, q sqlutil.Querier, proc idempotency.ProcessParams, id int64, params refallocation.DeleteRefAllocationParams) idempotency.Result
}

// AllocationConsumer applies care-team allocation events to the
// REF_PATIENT_ALLOCATION replica.
type AllocationConsumer struct {
	db          database
	processor   Processor
	allocations AllocationApplier
}

func NewAllocationConsumer(pool *pgxpool.Pool, processor Processor, allocations AllocationApplier) *AllocationConsumer {
	return &AllocationConsumer{
		db:          newDatabase(pool),
		processor:   processor,
		allocations: allocations,
	}
}

func (c *AllocationConsumer) Name() string {
	return "patient-allocation"
}

func (c *AllocationConsumer) Setup(broker Broker) error {
	if err := broker.ExchangeDeclare(events.AllocationExchange); err != nil {
		return err
	}

	bindings := []struct {
		queue      string
		routingKey string
		handler    rabbitmq.HandlerFunc
	}{
		{events.QueueAllocationCreated, "patient.allocation.created.*", c.handleCreated},
		{events.QueueAllocationUpdated, "patient.allocation.updated.*", c.handleUpdated},
		{events.QueueAllocationDeleted, "patient.allocation.deleted.*", c.handleDeleted},
	}
	for _, b := range bindings {
		if err := broker.QueueDeclareAndBind(b.queue, events.AllocationExchange, b.routingKey); err != nil {
			return err
		}
		broker.Subscribe(b.queue, b.handler)
	}
	return nil
}

func (c *AllocationConsumer) handleCreated(ctx context.Context, envelope rabbitmq.Envelope) rabbitmq.AckDecision {
	event, err := events.ParseAllocationEvent(envelope.Data)
	if err != nil {
		log.Error().Err(err).Msg("invalid allocation created event, discarding")
		return rabbitmq.NackDiscard
	}
	proc := allocationProcessParams(event)

	if !event.IsSyncEvent && c.processor.IsAlreadyProcessed(ctx, c.db.pool, event.CorrelationID) {
		return rabbitmq.Ack
	}

	params, mapErr := mappers.MapAllocationCreate(event.EntityData())

	var result idempotency.Result
	txErr := c.db.runTx(ctx, func(tx pgx.Tx) error {
		if mapErr != nil {
			result = c.recordUnmappable(ctx, tx, proc, mapErr)
		} else {
			result = c.allocations.Create(ctx, tx, proc, *params)
		}
		if result.Kind == idempotency.ResultRetryableFailure {
			return result.Err
		}
		return nil
	})
	if txErr != nil {
		log.Error().Err(txErr).Str("correlation_id", event.CorrelationID).Msg("allocation create transaction failed")
		return rabbitmq.NackRequeue
	}

	return finalize(ctx, c.db, c.processor, event.CorrelationID, result, event.IsSyncEvent)
}

func (c *AllocationConsumer) handleUpdated(ctx context.Context, envelope rabbitmq.Envelope) rabbitmq.AckDecision {
	event, err := events.ParseAllocationEvent(envelope.Data)
	if err != nil {
		log.Error().Err(err).Msg("invalid allocation updated event, discarding")
		return rabbitmq.NackDiscard
	}
	proc := allocationProcessParams(event)

	if !event.IsSyncEvent && c.processor.IsAlreadyProcessed(ctx, c.db.pool, event.CorrelationID) {
		return rabbitmq.Ack
	}

	params, mapErr := mappers.MapAllocationUpdate(event.EntityData())

	var sync *refallocation.SyncContext
	if event.IsSyncEvent {
		if mapErr != nil {
			log.Error().Err(mapErr).Str("correlation_id", event.CorrelationID).Msg("unmappable allocation sync payload, discarding")
			return rabbitmq.NackDiscard
		}
		sync = &refallocation.SyncContext{}
		if createParams, err := mappers.MapAllocationCreate(event.EntityData()); err == nil {
			sync.CreateParams = createParams
		}
	}

	var result idempotency.Result
	txErr := c.db.runTx(ctx, func(tx pgx.Tx) error {
		if mapErr != nil {
			result = c.recordUnmappable(ctx, tx, proc, mapErr)
		} else {
			result = c.allocations.Update(ctx, tx, proc, event.AllocationID, *params, sync)
		}
		if result.Kind == idempotency.ResultRetryableFailure {
			return result.Err
		}
		return nil
	})
	if txErr != nil {
		log.Error().Err(txErr).Str("correlation_id", event.CorrelationID).Msg("allocation update transaction failed")
		return rabbitmq.NackRequeue
	}

	return finalize(ctx, c.db, c.processor, event.CorrelationID, result, event.IsSyncEvent)
}

func (c *AllocationConsumer) handleDeleted(ctx context.Context, envelope rabbitmq.Envelope) rabbitmq.AckDecision {
	event, err := events.ParseAllocationEvent(envelope.Data)
	if err != nil {
		log.Error().Err(err).Msg("invalid allocation deleted event, discarding")
		return rabbitmq.NackDiscard
	}
	proc := allocationProcessParams(event)

	if c.processor.IsAlreadyProcessed(ctx, c.db.pool, event.CorrelationID) {
		return rabbitmq.Ack
	}

	deletedBy := event.DeletedBy
	if deletedBy == "" {
		deletedBy = "patient_service"
	}

	var result idempotency.Result
	txErr := c.db.runTx(ctx, func(tx pgx.Tx) error {
		result = c.allocations.Delete(ctx, tx, proc, event.AllocationID, refallocation.DeleteRefAllocationParams{
			ModifiedDate: time.Now().UTC(),
			ModifiedByID: deletedBy,
		})
		if result.Kind == idempotency.ResultRetryableFailure {
			return result.Err
		}
		return nil
	})
	if txErr != nil {
		log.Error().Err(txErr).Str("correlation_id", event.CorrelationID).Msg("allocation delete transaction failed")
		return rabbitmq.NackRequeue
	}

	return finalize(ctx, c.db, c.processor, event.CorrelationID, result, false)
}

func (c *AllocationConsumer) recordUnmappable(ctx context.Context, tx pgx.Tx, proc idempotency.ProcessParams, mapErr error) idempotency.Result {
	return c.processor.ProcessIdempotent(ctx, tx, proc, func(context.Context) (bool, error) {
		return false, idempotency.Permanent("unmappable allocation payload", mapErr)
	})
}

func allocationProcessParams(event *events.AllocationEvent) idempotency.ProcessParams {
	return idempotency.ProcessParams{
		CorrelationID: event.CorrelationID,
		EventType:     event.EventType,
		AggregateID:   strconv.FormatInt(event.AllocationID, 10),
	}
}
