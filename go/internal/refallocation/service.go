package refallocation

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/carewell/activity-service/go/internal/idempotency"
	"github.com/carewell/activity-service/go/internal/models"
	"github.com/carewell/activity-service/go/internal/sqlutil"
)

type Store interface {
	Get(ctx context.Context, q sqlutil.Querier, id int64, includeDeleted bool) (*models.RefPatientAllocation, error)
	Insert(ctx context.Context, q sqlutil.Querier, params CreateRefAllocationParams) error
	Update(ctx context.Context, q sqlutil.Querier, id int64, params UpdateRefAllocationParams) error
	SoftDelete(ctx context.Context, q sqlutil.Querier, id int64, params DeleteRefAllocationParams) error
}

type Processor interface {
	ProcessIdempotent(ctx context.Context, q sqlutil.Querier, params idempotency.ProcessParams, op idempotency.Operation) idempotency.Result
	RecordProcessedEvent(ctx context.Context, q sqlutil.Querier, params idempotency.ProcessParams) error
}

// Service applies allocation lifecycle events to the local replica.
// Semantics mirror the patient service: creates of existing rows are
// permanent failures, sync updates upsert and skip deduplication.
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

func (s *Service) Create(ctx context.Context, q sqlutil.Querier, proc idempotency.ProcessParams, params CreateRefAllocationParams) idempotency.Result {
	return s.processor.ProcessIdempotent(ctx, q, proc, func(ctx context.Context) (bool, error) {
		existing, err := s.store.Get(ctx, q, params.ID, true)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return false, err
		}
		if existing != nil {
			return false, idempotency.Permanent(fmt.Sprintf("allocation %d already exists", params.ID), nil)
		}

		if err := s.store.Insert(ctx, q, params); err != nil {
			return false, err
		}
		return true, nil
	})
}

// SyncContext carries the full entity state for upgrade-to-create on a
// sync-update miss.
type SyncContext struct {
	CreateParams *CreateRefAllocationParams
}

func (s *Service) Update(ctx context.Context, q sqlutil.Querier, proc idempotency.ProcessParams, id int64, params UpdateRefAllocationParams, sync *SyncContext) idempotency.Result {
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

func (s *Service) Delete(ctx context.Context, q sqlutil.Querier, proc idempotency.ProcessParams, id int64, params DeleteRefAllocationParams) idempotency.Result {
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

func (s *Service) applySync(ctx context.Context, q sqlutil.Querier, proc idempotency.ProcessParams, id int64, params UpdateRefAllocationParams, sync *SyncContext) idempotency.Result {
	err := s.store.Update(ctx, q, id, params)
	if errors.Is(err, ErrNotFound) {
		if sync.CreateParams == nil {
			log.Warn().Int64("allocation_id", id).Msg("allocation missing during sync and payload not creatable")
			return idempotency.NotFound()
		}
		log.Warn().Int64("allocation_id", id).Msg("allocation missing during sync, creating from full state")
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
