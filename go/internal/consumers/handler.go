package consumers

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/carewell/activity-service/go/internal/idempotency"
	"github.com/carewell/activity-service/go/internal/messaging/rabbitmq"
	"github.com/carewell/activity-service/go/internal/sqlutil"
)

// Processor is what consumers need from the idempotency service.
type Processor interface {
	ProcessIdempotent(ctx context.Context, q sqlutil.Querier, params idempotency.ProcessParams, op idempotency.Operation) idempotency.Result
	IsAlreadyProcessed(ctx context.Context, q sqlutil.Querier, correlationID string) bool
	VerifyRecorded(ctx context.Context, q sqlutil.Querier, correlationID string) (bool, error)
}

// database bundles a pool-backed querier with a transaction runner so tests
// can substitute both.
type database struct {
	pool  sqlutil.Querier
	runTx func(ctx context.Context, fn func(tx pgx.Tx) error) error
}

func newDatabase(pool *pgxpool.Pool) database {
	return database{
		pool: pool,
		runTx: func(ctx context.Context, fn func(tx pgx.Tx) error) error {
			return sqlutil.RunTx(ctx, pool, fn)
		},
	}
}

// finalize turns a processing result into an ack decision. Outcomes that
// wrote a ledger row are verified against a fresh connection first: if the
// commit did not take effect the message must come around again. Sync events
// skip verification on a miss because no row is written for them.
func finalize(ctx context.Context, db database, processor Processor, correlationID string, result idempotency.Result, isSync bool) rabbitmq.AckDecision {
	switch result.Kind {
	case idempotency.ResultDuplicate:
		return rabbitmq.Ack

	case idempotency.ResultNotFound:
		if isSync {
			return rabbitmq.Ack
		}
		return verifyAndAck(ctx, db, processor, correlationID)

	case idempotency.ResultSuccess, idempotency.ResultPermanentFailure:
		return verifyAndAck(ctx, db, processor, correlationID)

	default:
		log.Warn().
			Err(result.Err).
			Str("correlation_id", correlationID).
			Msg("processing failed, message will be redelivered")
		return rabbitmq.NackRequeue
	}
}

func verifyAndAck(ctx context.Context, db database, processor Processor, correlationID string) rabbitmq.AckDecision {
	recorded, err := processor.VerifyRecorded(ctx, db.pool, correlationID)
	if err != nil || !recorded {
		log.Error().
			Err(err).
			Str("correlation_id", correlationID).
			Msg("ledger row not visible after commit, message will be redelivered")
		return rabbitmq.NackRequeue
	}
	return rabbitmq.Ack
}
