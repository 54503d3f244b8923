package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/carewell/activity-service/go/internal/sqlutil"
)

// Config controls how the service records outcomes.
type Config struct {
	// ProcessedBy identifies this service in ledger rows.
	ProcessedBy string
	// RecordPermanentFailures controls the fate of unretryable business
	// errors: when true they are written to the ledger and the message is
	// dropped, when false they surface as retryable failures instead.
	RecordPermanentFailures bool
}

func DefaultConfig() Config {
	return Config{
		ProcessedBy:             "activity_service",
		RecordPermanentFailures: true,
	}
}

// Ledger is what the service needs from the processed-events repository.
type Ledger interface {
	Insert(ctx context.Context, q sqlutil.Querier, event ProcessedEvent) error
	Exists(ctx context.Context, q sqlutil.Querier, correlationID string) (bool, error)
	DeleteOlderThan(ctx context.Context, q sqlutil.Querier, cutoff time.Time) (int64, error)
	GetStats(ctx context.Context, q sqlutil.Querier, now time.Time) (*Stats, error)
}

// Operation is the business logic guarded by the ledger. It reports whether
// the target entity was found; errors wrapped with Permanent are recorded
// instead of retried.
type Operation func(ctx context.Context) (found bool, err error)

// ProcessParams identifies the message being processed.
type ProcessParams struct {
	CorrelationID string
	EventType     string
	AggregateID   string
}

// Service executes operations at most once per correlation id.
type Service struct {
	ledger Ledger
	clock  clockwork.Clock
	cfg    Config
}

func NewService(ledger Ledger, clock clockwork.Clock, cfg Config) *Service {
	return &Service{
		ledger: ledger,
		clock:  clock,
		cfg:    cfg,
	}
}

// ProcessIdempotent runs op unless the correlation id is already in the
// ledger, then writes the ledger row through the same querier. When q is the
// transaction holding the business change, the change and its ledger row
// commit or roll back together.
func (s *Service) ProcessIdempotent(ctx context.Context, q sqlutil.Querier, params ProcessParams, op Operation) Result {
	already, err := s.ledger.Exists(ctx, q, params.CorrelationID)
	if err != nil {
		// Assume not processed so the message is retried rather than lost
		log.Error().Err(err).Str("correlation_id", params.CorrelationID).Msg("failed to check ledger, assuming unprocessed")
	}
	if already {
		log.Info().
			Str("correlation_id", params.CorrelationID).
			Str("event_type", params.EventType).
			Msg("skipping duplicate event")
		return Duplicate()
	}

	start := s.clock.Now()
	found, opErr := op(ctx)
	duration := s.clock.Since(start)

	if opErr != nil {
		if IsPermanent(opErr) {
			return s.handlePermanent(ctx, q, params, opErr)
		}
		log.Error().
			Err(opErr).
			Str("correlation_id", params.CorrelationID).
			Str("event_type", params.EventType).
			Msg("transient failure, message will be retried")
		return RetryableFailure(opErr)
	}

	status := "success"
	if !found {
		status = "not_found"
	}
	resultJSON := s.resultSummary(status, duration)

	row := ProcessedEvent{
		CorrelationID:   params.CorrelationID,
		EventType:       params.EventType,
		AggregateID:     params.AggregateID,
		ProcessedAt:     s.clock.Now(),
		ProcessedBy:     s.cfg.ProcessedBy,
		OperationResult: &resultJSON,
	}

	if err := s.ledger.Insert(ctx, q, row); err != nil {
		if errors.Is(err, ErrAlreadyProcessed) {
			// Another instance won the race; its result stands
			log.Warn().
				Str("correlation_id", params.CorrelationID).
				Msg("ledger insert raced with another instance")
			return Duplicate()
		}
		return RetryableFailure(err)
	}

	if !found {
		log.Warn().
			Str("correlation_id", params.CorrelationID).
			Str("aggregate_id", params.AggregateID).
			Msg("target entity not found")
		return NotFound()
	}

	log.Info().
		Str("correlation_id", params.CorrelationID).
		Str("event_type", params.EventType).
		Msg("processed event")
	return Success()
}

func (s *Service) handlePermanent(ctx context.Context, q sqlutil.Querier, params ProcessParams, opErr error) Result {
	if !s.cfg.RecordPermanentFailures {
		log.Error().
			Err(opErr).
			Str("correlation_id", params.CorrelationID).
			Msg("permanent failure, policy forbids recording, message will be retried")
		return RetryableFailure(opErr)
	}

	errMsg := opErr.Error()
	row := ProcessedEvent{
		CorrelationID: params.CorrelationID,
		EventType:     params.EventType,
		AggregateID:   params.AggregateID,
		ProcessedAt:   s.clock.Now(),
		ProcessedBy:   s.cfg.ProcessedBy,
		ErrorMessage:  &errMsg,
	}

	if err := s.ledger.Insert(ctx, q, row); err != nil {
		if errors.Is(err, ErrAlreadyProcessed) {
			return Duplicate()
		}
		return RetryableFailure(err)
	}

	log.Error().
		Err(opErr).
		Str("correlation_id", params.CorrelationID).
		Str("event_type", params.EventType).
		Msg("permanent failure recorded, message will be dropped")
	return PermanentFailure(opErr)
}

// RecordProcessedEvent writes a ledger row without a duplicate check. Sync
// events are tracked but never deduplicated, so replays keep converging the
// local replica.
func (s *Service) RecordProcessedEvent(ctx context.Context, q sqlutil.Querier, params ProcessParams) error {
	summary, _ := json.Marshal(map[string]any{
		"status":     "recorded",
		"sync_event": true,
	})
	resultJSON := string(summary)

	row := ProcessedEvent{
		CorrelationID:   params.CorrelationID,
		EventType:       params.EventType,
		AggregateID:     params.AggregateID,
		ProcessedAt:     s.clock.Now(),
		ProcessedBy:     s.cfg.ProcessedBy,
		OperationResult: &resultJSON,
	}

	if err := s.ledger.Insert(ctx, q, row); err != nil && !errors.Is(err, ErrAlreadyProcessed) {
		return err
	}
	return nil
}

// IsAlreadyProcessed reports whether the correlation id is in the ledger.
// Lookup errors are treated as "not processed" so the message is retried.
func (s *Service) IsAlreadyProcessed(ctx context.Context, q sqlutil.Querier, correlationID string) bool {
	exists, err := s.ledger.Exists(ctx, q, correlationID)
	if err != nil {
		log.Error().Err(err).Str("correlation_id", correlationID).Msg("failed to check ledger")
		return false
	}
	return exists
}

// VerifyRecorded confirms a ledger row is visible after commit. A missing row
// means the commit did not take effect and the message must be redelivered.
func (s *Service) VerifyRecorded(ctx context.Context, q sqlutil.Querier, correlationID string) (bool, error) {
	return s.ledger.Exists(ctx, q, correlationID)
}

// Cleanup deletes ledger rows older than retention.
func (s *Service) Cleanup(ctx context.Context, q sqlutil.Querier, retention time.Duration) (int64, error) {
	cutoff := s.clock.Now().Add(-retention)
	deleted, err := s.ledger.DeleteOlderThan(ctx, q, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		log.Info().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("cleaned up processed events")
	}
	return deleted, nil
}

// GetStats returns ledger statistics for monitoring.
func (s *Service) GetStats(ctx context.Context, q sqlutil.Querier) (*Stats, error) {
	return s.ledger.GetStats(ctx, q, s.clock.Now())
}

func (s *Service) resultSummary(status string, duration time.Duration) string {
	summary, _ := json.Marshal(map[string]any{
		"status":                      status,
		"processing_duration_seconds": duration.Seconds(),
		"timestamp":                   s.clock.Now().Format(time.RFC3339),
	})
	return string(summary)
}
