package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carewell/activity-service/go/internal/sqlutil"
)

type fakeLedger struct {
	rows      map[string]ProcessedEvent
	insertErr error
	existsErr error
	deleted   time.Time
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{rows: make(map[string]ProcessedEvent)}
}

func (f *fakeLedger) Insert(ctx context.Context, q sqlutil.Querier, event ProcessedEvent) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	if _, ok := f.rows[event.CorrelationID]; ok {
		return ErrAlreadyProcessed
	}
	f.rows[event.CorrelationID] = event
	return nil
}

func (f *fakeLedger) Exists(ctx context.Context, q sqlutil.Querier, correlationID string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	_, ok := f.rows[correlationID]
	return ok, nil
}

func (f *fakeLedger) DeleteOlderThan(ctx context.Context, q sqlutil.Querier, cutoff time.Time) (int64, error) {
	f.deleted = cutoff
	var n int64
	for id, row := range f.rows {
		if row.ProcessedAt.Before(cutoff) {
			delete(f.rows, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeLedger) GetStats(ctx context.Context, q sqlutil.Querier, now time.Time) (*Stats, error) {
	return &Stats{TotalProcessed: int64(len(f.rows)), GeneratedAt: now}, nil
}

func newTestService(ledger Ledger, cfg Config) (*Service, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClock()
	return NewService(ledger, clock, cfg), clock
}

func params() ProcessParams {
	return ProcessParams{
		CorrelationID: "11111111-2222-3333-4444-555555555555",
		EventType:     "PATIENT_CREATED",
		AggregateID:   "42",
	}
}

func TestProcessIdempotentSuccessWritesLedgerRow(t *testing.T) {
	ledger := newFakeLedger()
	svc, _ := newTestService(ledger, DefaultConfig())

	result := svc.ProcessIdempotent(context.Background(), nil, params(), func(ctx context.Context) (bool, error) {
		return true, nil
	})

	require.Equal(t, ResultSuccess, result.Kind)
	require.NoError(t, result.Err)

	row, ok := ledger.rows[params().CorrelationID]
	require.True(t, ok, "ledger row must be written")
	assert.Equal(t, "PATIENT_CREATED", row.EventType)
	assert.Equal(t, "42", row.AggregateID)
	assert.Equal(t, "activity_service", row.ProcessedBy)
	require.NotNil(t, row.OperationResult)

	var summary map[string]any
	require.NoError(t, json.Unmarshal([]byte(*row.OperationResult), &summary))
	assert.Equal(t, "success", summary["status"])
}

func TestProcessIdempotentSkipsDuplicate(t *testing.T) {
	ledger := newFakeLedger()
	ledger.rows[params().CorrelationID] = ProcessedEvent{CorrelationID: params().CorrelationID}
	svc, _ := newTestService(ledger, DefaultConfig())

	ran := false
	result := svc.ProcessIdempotent(context.Background(), nil, params(), func(ctx context.Context) (bool, error) {
		ran = true
		return true, nil
	})

	assert.Equal(t, ResultDuplicate, result.Kind)
	assert.False(t, ran, "operation must not run for a duplicate")
}

func TestProcessIdempotentNotFoundStillRecorded(t *testing.T) {
	ledger := newFakeLedger()
	svc, _ := newTestService(ledger, DefaultConfig())

	result := svc.ProcessIdempotent(context.Background(), nil, params(), func(ctx context.Context) (bool, error) {
		return false, nil
	})

	assert.Equal(t, ResultNotFound, result.Kind)

	row, ok := ledger.rows[params().CorrelationID]
	require.True(t, ok, "not-found outcomes are still recorded")
	require.NotNil(t, row.OperationResult)
	assert.Contains(t, *row.OperationResult, "not_found")
}

func TestProcessIdempotentTransientFailureNotRecorded(t *testing.T) {
	ledger := newFakeLedger()
	svc, _ := newTestService(ledger, DefaultConfig())

	opErr := errors.New("connection reset")
	result := svc.ProcessIdempotent(context.Background(), nil, params(), func(ctx context.Context) (bool, error) {
		return false, opErr
	})

	assert.Equal(t, ResultRetryableFailure, result.Kind)
	assert.ErrorIs(t, result.Err, opErr)
	assert.Empty(t, ledger.rows, "transient failures must leave no ledger row")
}

func TestProcessIdempotentPermanentFailureRecorded(t *testing.T) {
	ledger := newFakeLedger()
	svc, _ := newTestService(ledger, DefaultConfig())

	opErr := Permanent("patient already exists", nil)
	result := svc.ProcessIdempotent(context.Background(), nil, params(), func(ctx context.Context) (bool, error) {
		return false, opErr
	})

	assert.Equal(t, ResultPermanentFailure, result.Kind)

	row, ok := ledger.rows[params().CorrelationID]
	require.True(t, ok)
	require.NotNil(t, row.ErrorMessage)
	assert.Contains(t, *row.ErrorMessage, "patient already exists")
}

func TestProcessIdempotentPermanentFailurePolicyOff(t *testing.T) {
	ledger := newFakeLedger()
	cfg := DefaultConfig()
	cfg.RecordPermanentFailures = false
	svc, _ := newTestService(ledger, cfg)

	result := svc.ProcessIdempotent(context.Background(), nil, params(), func(ctx context.Context) (bool, error) {
		return false, Permanent("bad payload", nil)
	})

	assert.Equal(t, ResultRetryableFailure, result.Kind)
	assert.Empty(t, ledger.rows, "policy off must not record permanent failures")
}

func TestProcessIdempotentInsertRaceIsDuplicate(t *testing.T) {
	ledger := newFakeLedger()
	ledger.insertErr = ErrAlreadyProcessed
	svc, _ := newTestService(ledger, DefaultConfig())

	result := svc.ProcessIdempotent(context.Background(), nil, params(), func(ctx context.Context) (bool, error) {
		return true, nil
	})

	assert.Equal(t, ResultDuplicate, result.Kind)
}

func TestProcessIdempotentLedgerCheckErrorAllowsRetry(t *testing.T) {
	ledger := newFakeLedger()
	ledger.existsErr = errors.New("ledger unavailable")
	svc, _ := newTestService(ledger, DefaultConfig())

	ran := false
	result := svc.ProcessIdempotent(context.Background(), nil, params(), func(ctx context.Context) (bool, error) {
		ran = true
		return true, nil
	})

	// A failed duplicate check assumes unprocessed and runs the operation
	assert.True(t, ran)
	assert.Equal(t, ResultSuccess, result.Kind)
}

func TestRecordProcessedEventSkipsDuplicateCheck(t *testing.T) {
	ledger := newFakeLedger()
	svc, _ := newTestService(ledger, DefaultConfig())

	require.NoError(t, svc.RecordProcessedEvent(context.Background(), nil, params()))

	row := ledger.rows[params().CorrelationID]
	require.NotNil(t, row.OperationResult)
	assert.Contains(t, *row.OperationResult, "sync_event")

	// Recording again is not an error
	require.NoError(t, svc.RecordProcessedEvent(context.Background(), nil, params()))
}

func TestCleanupDeletesOnlyOldRows(t *testing.T) {
	ledger := newFakeLedger()
	svc, clock := newTestService(ledger, DefaultConfig())

	old := ProcessedEvent{CorrelationID: "old", ProcessedAt: clock.Now().Add(-31 * 24 * time.Hour)}
	fresh := ProcessedEvent{CorrelationID: "fresh", ProcessedAt: clock.Now().Add(-time.Hour)}
	ledger.rows["old"] = old
	ledger.rows["fresh"] = fresh

	deleted, err := svc.Cleanup(context.Background(), nil, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	assert.NotContains(t, ledger.rows, "old")
	assert.Contains(t, ledger.rows, "fresh")
}

func TestPermanentErrorClassification(t *testing.T) {
	cause := errors.New("duplicate key")
	err := Permanent("patient already exists", cause)

	assert.True(t, IsPermanent(err))
	assert.True(t, IsPermanent(fmt.Errorf("handling message: %w", err)))
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsPermanent(errors.New("connection refused")))
}

func TestResultKindString(t *testing.T) {
	assert.Equal(t, "success", ResultSuccess.String())
	assert.Equal(t, "duplicate", ResultDuplicate.String())
	assert.Equal(t, "not_found", ResultNotFound.String())
	assert.Equal(t, "failed_retryable", ResultRetryableFailure.String())
	assert.Equal(t, "failed_permanent", ResultPermanentFailure.String())
}
