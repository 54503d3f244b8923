package refpatient

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/carewell/activity-service/go/internal/idempotency"
	"github.com/carewell/activity-service/go/internal/models"
	"github.com/carewell/activity-service/go/internal/sqlutil"
)

// Store is what the service needs from the repository.
type Store interface {
	Get(ctx context.Context, q sqlutil.Querier, id int64, includeDeleted bool) (*models.RefPatient, error)
	Insert(ctx context.Context, q sqlutil.Querier, params CreateRefPatientParams) error
	Update(ctx context.Context, q sqlutil.Querier, id int64, params UpdateRefPatientParams) error
	SoftDelete(ctx context.Context, q sqlutil.Querier, id int64, params DeleteRefPatientParams) error
}

// Processor guards operations with the processed-events ledger.
type Processor interface {
	ProcessIdempotent(ctx context.Context, q sqlutil.Querier, params idempotency.ProcessParams, op idempotency.Operation) idempotency.Result
	RecordProcessedEvent(ctx context.Context, q sqlutil.Querier, params idempotency.ProcessParams) error
}

// Service applies patient lifecycle events to the local REF_PATIENT replica.
type Service struct {
	store     Store
	processor Processor
}

func NewService(store Store, processor Processor) *Service {
	return &Service{
		store:     store,
		processor: processor,
	}
}

// Create inserts the patient replica row. Creating a patient that already
// exists is a permanent failure: redelivery can never change the outcome.
func (s *Service) Create(ctx context.Context, q sqlutil.Querier, proc idempotency.ProcessParams, params CreateRefPatientParams) idempotency.Result {
	return s.processor.ProcessIdempotent(ctx, q, proc, func(ctx context.Context) (bool, error) {
		existing, err := s.store.Get(ctx, q, params.ID, true)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return false, err
		}
		if existing != nil {
			return false, idempotency.Permanent(fmt.Sprintf("patient %d already exists", params.ID), nil)
		}

		if err := s.store.Insert(ctx, q, params); err != nil {
			return false, err
		}
		return true, nil
	})
}

// Update applies the changed fields to the replica. Sync events bypass the
// duplicate check, upsert on a local miss, and are recorded without
// deduplication so replays keep converging.
func (s *Service) Update(ctx context.Context, q sqlutil.Querier, proc idempotency.ProcessParams, id int64, params UpdateRefPatientParams, sync *SyncContext) idempotency.Result {
	if sync != nil {
		return s.applySync(ctx, q, proc, id, params, sync)
	}

	return s.processor.ProcessIdempotent(ctx, q, proc, func(ctx context.Context) (bool, error) {
		if err := s.store.Update(ctx, q, id, params); err != nil {
			if errors.Is(err, ErrNotFound) {
				return false, nil
			}
			return false, err
		}
		return true, nil
	})
}

// Delete soft-deletes the replica row.
func (s *Service) Delete(ctx context.Context, q sqlutil.Querier, proc idempotency.ProcessParams, id int64, params DeleteRefPatientParams) idempotency.Result {
	return s.processor.ProcessIdempotent(ctx, q, proc, func(ctx context.Context) (bool, error) {
		if err := s.store.SoftDelete(ctx, q, id, params); err != nil {
			if errors.Is(err, ErrNotFound) {
				return false, nil
			}
			return false, err
		}
		return true, nil
	})
}

// SyncContext carries the full entity state for upgrade-to-create when a
// sync update targets a patient the replica has never seen.
type SyncContext struct {
	CreateParams *CreateRefPatientParams
}

func (s *Service) applySync(ctx context.Context, q sqlutil.Querier, proc idempotency.ProcessParams, id int64, params UpdateRefPatientParams, sync *SyncContext) idempotency.Result {
	err := s.store.Update(ctx, q, id, params)
	if errors.Is(err, ErrNotFound) {
		if sync.CreateParams == nil {
			log.Warn().Int64("patient_id", id).Msg("patient missing during sync and payload not creatable")
			return idempotency.NotFound()
		}
		log.Warn().Int64("patient_id", id).Msg("patient missing during sync, creating from full state")
		err = s.store.Insert(ctx, q, *sync.CreateParams)
	}
	if err != nil {
		return idempotency.RetryableFailure(err)
	}

	if err := s.processor.RecordProcessedEvent(ctx, q, proc); err != nil {
		return idempotency.RetryableFailure(err)
	}
	return idempotency.Success()
}
