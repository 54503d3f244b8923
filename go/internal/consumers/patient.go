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
	"github.com/carewell/activity-service/go/internal/refpatient"
	"github.com/carewell/activity-service/go/internal/sqlutil"
)

// PatientApplier is what the consumer needs from the refpatient service.
type PatientApplier interface {
	Create(ctx context.Context, q sqlutil.Querier, proc idempotency.ProcessParams, params refpatient.CreateRefPatientParams) idempotency.Result
	Update(ctx context.Context, q sqlutil.Querier, proc idempotency.ProcessParams, id int64, params refpatient.UpdateRefPatientParams, sync *refpatient.SyncContext) idempotency.Result
	Delete(ctx context.Context, q sqlutil.Querier, proc idempotency.ProcessParams, id int64, params refpatient.DeleteRefPatientParams) idempotency.Result
}

// PatientConsumer applies patient lifecycle events to the REF_PATIENT replica.
type PatientConsumer struct {
	db        database
	processor Processor
	patients  PatientApplier
}

func NewPatientConsumer(pool *pgxpool.Pool, processor Processor, patients PatientApplier) *PatientConsumer {
	return &PatientConsumer{
		db:        newDatabase(pool),
		processor: processor,
		patients:  patients,
	}
}

func (c *PatientConsumer) Name() string {
	return "patient"
}

func (c *PatientConsumer) Setup(broker Broker) error {
	if err := broker.ExchangeDeclare(events.PatientExchange); err != nil {
		return err
	}

	bindings := []struct {
		queue      string
		routingKey string
		handler    rabbitmq.HandlerFunc
	}{
		{events.QueuePatientCreated, "patient.created.*", c.handleCreated},
		{events.QueuePatientUpdated, "patient.updated.*", c.handleUpdated},
		{events.QueuePatientDeleted, "patient.deleted.*", c.handleDeleted},
	}
	for _, b := range bindings {
		if err := broker.QueueDeclareAndBind(b.queue, events.PatientExchange, b.routingKey); err != nil {
			return err
		}
		broker.Subscribe(b.queue, b.handler)
	}
	return nil
}

func (c *PatientConsumer) handleCreated(ctx context.Context, envelope rabbitmq.Envelope) rabbitmq.AckDecision {
	event, err := events.ParsePatientEvent(envelope.Data)
	if err != nil {
		log.Error().Err(err).Msg("invalid patient created event, discarding")
		return rabbitmq.NackDiscard
	}
	proc := processParams(event)

	if !event.IsSyncEvent && c.processor.IsAlreadyProcessed(ctx, c.db.pool, event.CorrelationID) {
		return rabbitmq.Ack
	}

	params, mapErr := mappers.MapPatientCreate(event.EntityData())

	var result idempotency.Result
	txErr := c.db.runTx(ctx, func(tx pgx.Tx) error {
		if mapErr != nil {
			result = c.recordUnmappable(ctx, tx, proc, mapErr)
		} else {
			result = c.patients.Create(ctx, tx, proc, *params)
		}
		if result.Kind == idempotency.ResultRetryableFailure {
			return result.Err
		}
		return nil
	})
	if txErr != nil {
		log.Error().Err(txErr).Str("correlation_id", event.CorrelationID).Msg("patient create transaction failed")
		return rabbitmq.NackRequeue
	}

	return finalize(ctx, c.db, c.processor, event.CorrelationID, result, event.IsSyncEvent)
}

func (c *PatientConsumer) handleUpdated(ctx context.Context, envelope rabbitmq.Envelope) rabbitmq.AckDecision {
	event, err := events.ParsePatientEvent(envelope.Data)
	if err != nil {
		log.Error().Err(err).Msg("invalid patient updated event, discarding")
		return rabbitmq.NackDiscard
	}
	proc := processParams(event)

	if !event.IsSyncEvent && c.processor.IsAlreadyProcessed(ctx, c.db.pool, event.CorrelationID) {
		return rabbitmq.Ack
	}

	params, mapErr := mappers.MapPatientUpdate(event.EntityData())

	var sync *refpatient.SyncContext
	if event.IsSyncEvent {
		if mapErr != nil {
			log.Error().Err(mapErr).Str("correlation_id", event.CorrelationID).Msg("unmappable patient sync payload, discarding")
			return rabbitmq.NackDiscard
		}
		sync = &refpatient.SyncContext{}
		// Full state lets a sync update create rows the replica never saw
		if createParams, err := mappers.MapPatientCreate(event.EntityData()); err == nil {
			sync.CreateParams = createParams
		}
	}

	var result idempotency.Result
	txErr := c.db.runTx(ctx, func(tx pgx.Tx) error {
		if mapErr != nil {
			result = c.recordUnmappable(ctx, tx, proc, mapErr)
		} else {
			result = c.patients.Update(ctx, tx, proc, event.PatientID, *params, sync)
		}
		if result.Kind == idempotency.ResultRetryableFailure {
			return result.Err
		}
		return nil
	})
	if txErr != nil {
		log.Error().Err(txErr).Str("correlation_id", event.CorrelationID).Msg("patient update transaction failed")
		return rabbitmq.NackRequeue
	}

	return finalize(ctx, c.db, c.processor, event.CorrelationID, result, event.IsSyncEvent)
}

func (c *PatientConsumer) handleDeleted(ctx context.Context, envelope rabbitmq.Envelope) rabbitmq.AckDecision {
	event, err := events.ParsePatientEvent(envelope.Data)
	if err != nil {
		log.Error().Err(err).Msg("invalid patient deleted event, discarding")
		return rabbitmq.NackDiscard
	}
	proc := processParams(event)

	if c.processor.IsAlreadyProcessed(ctx, c.db.pool, event.CorrelationID) {
		return rabbitmq.Ack
	}

	deletedBy := event.DeletedBy
	if deletedBy == "" {
		deletedBy = "patient_service"
	}

	var result idempotency.Result
	txErr := c.db.runTx(ctx, func(tx pgx.Tx) error {
		result = c.patients.Delete(ctx, tx, proc, event.PatientID, refpatient.DeleteRefPatientParams{
			ModifiedDate: time.Now().UTC(),
			ModifiedByID: deletedBy,
		})
		if result.Kind == idempotency.ResultRetryableFailure {
			return result.Err
		}
		return nil
	})
	if txErr != nil {
		log.Error().Err(txErr).Str("correlation_id", event.CorrelationID).Msg("patient delete transaction failed")
		return rabbitmq.NackRequeue
	}

	return finalize(ctx, c.db, c.processor, event.CorrelationID, result, false)
}

func (c *PatientConsumer) recordUnmappable(ctx context.Context, tx pgx.Tx, proc idempotency.ProcessParams, mapErr error) idempotency.Result {
	return c.processor.ProcessIdempotent(ctx, tx, proc, func(context.Context) (bool, error) {
		return false, idempotency.Permanent("unmappable patient payload", mapErr)
	})
}

func processParams(event *events.PatientEvent) idempotency.ProcessParams {
	return idempotency.ProcessParams{
		CorrelationID: event.CorrelationID,
		EventType:     event.EventType,
		AggregateID:   strconv.FormatInt(event.PatientID, 10),
	}
}
