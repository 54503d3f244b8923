package refpatient

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carewell/activity-service/go/internal/idempotency"
	"github.com/carewell/activity-service/go/internal/models"
	"github.com/carewell/activity-service/go/internal/sqlutil"
)

type memoryLedger struct {
	rows map[string]idempotency.ProcessedEvent
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{rows: make(map[string]idempotency.ProcessedEvent)}
}

func (m *memoryLedger) Insert(ctx context.Context, q sqlutil.Querier, event idempotency.ProcessedEvent) error {
	if _, ok := m.rows[event.CorrelationID]; ok {
		return idempotency.ErrAlreadyProcessed
	}
	m.rows[event.CorrelationID] = event
	return nil
}

func (m *memoryLedger) Exists(ctx context.Context, q sqlutil.Querier, correlationID string) (bool, error) {
	_, ok := m.rows[correlationID]
	return ok, nil
}

func (m *memoryLedger) DeleteOlderThan(ctx context.Context, q sqlutil.Querier, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (m *memoryLedger) GetStats(ctx context.Context, q sqlutil.Querier, now time.Time) (*idempotency.Stats, error) {
	return &idempotency.Stats{}, nil
}

type memoryStore struct {
	patients map[int64]*models.RefPatient
}

func newMemoryStore() *memoryStore {
	return &memoryStore{patients: make(map[int64]*models.RefPatient)}
}

func (m *memoryStore) Get(ctx context.Context, q sqlutil.Querier, id int64, includeDeleted bool) (*models.RefPatient, error) {
	p, ok := m.patients[id]
	if !ok || (!includeDeleted && p.IsDeleted == "1") {
		return nil, ErrNotFound
	}
	return p, nil
}

func (m *memoryStore) Insert(ctx context.Context, q sqlutil.Querier, params CreateRefPatientParams) error {
	m.patients[params.ID] = &models.RefPatient{
		ID:        params.ID,
		Name:      params.Name,
		IsActive:  params.IsActive,
		IsDeleted: params.IsDeleted,
		UpdateBit: params.UpdateBit,
		StartDate: params.StartDate,
	}
	return nil
}

func (m *memoryStore) Update(ctx context.Context, q sqlutil.Querier, id int64, params UpdateRefPatientParams) error {
	p, ok := m.patients[id]
	if !ok {
		return ErrNotFound
	}
	if params.Name != nil {
		p.Name = *params.Name
	}
	if params.IsDeleted != nil {
		p.IsDeleted = *params.IsDeleted
	}
	return nil
}

func (m *memoryStore) SoftDelete(ctx context.Context, q sqlutil.Querier, id int64, params DeleteRefPatientParams) error {
	p, ok := m.patients[id]
	if !ok || p.IsDeleted == "1" {
		return ErrNotFound
	}
	p.IsDeleted = "1"
	return nil
}

func newTestService() (*Service, *memoryStore, *memoryLedger) {
	store := newMemoryStore()
	ledger := newMemoryLedger()
	processor := idempotency.NewService(ledger, clockwork.NewFakeClock(), idempotency.DefaultConfig())
	return NewService(store, processor), store, ledger
}

func createParams(id int64) CreateRefPatientParams {
	return CreateRefPatientParams{
		ID:        id,
		Name:      "Tan Ah Kow",
		UpdateBit: "1",
		IsActive:  "1",
		IsDeleted: "0",
		StartDate: time.Now(),
	}
}

func procParams(correlationID, eventType string) idempotency.ProcessParams {
	return idempotency.ProcessParams{
		CorrelationID: correlationID,
		EventType:     eventType,
		AggregateID:   "7",
	}
}

func TestCreateInsertsPatientAndLedgerRow(t *testing.T) {
	svc, store, ledger := newTestService()

	result := svc.Create(context.Background(), nil, procParams("c1", "PATIENT_CREATED"), createParams(7))

	require.Equal(t, idempotency.ResultSuccess, result.Kind)
	assert.Contains(t, store.patients, int64(7))
	assert.Contains(t, ledger.rows, "c1")
}

func TestCreateDuplicateDeliverySkipsWork(t *testing.T) {
	svc, store, _ := newTestService()

	first := svc.Create(context.Background(), nil, procParams("c1", "PATIENT_CREATED"), createParams(7))
	require.Equal(t, idempotency.ResultSuccess, first.Kind)

	// Redelivery of the same correlation id
	second := svc.Create(context.Background(), nil, procParams("c1", "PATIENT_CREATED"), createParams(7))
	assert.Equal(t, idempotency.ResultDuplicate, second.Kind)
	assert.Len(t, store.patients, 1)
}

func TestCreateExistingPatientIsPermanentFailure(t *testing.T) {
	svc, _, ledger := newTestService()

	require.Equal(t, idempotency.ResultSuccess,
		svc.Create(context.Background(), nil, procParams("c1", "PATIENT_CREATED"), createParams(7)).Kind)

	// Same patient, different correlation id: a genuinely conflicting create
	result := svc.Create(context.Background(), nil, procParams("c2", "PATIENT_CREATED"), createParams(7))
	assert.Equal(t, idempotency.ResultPermanentFailure, result.Kind)
	assert.Contains(t, ledger.rows, "c2", "permanent failure must be recorded")
}

func TestUpdateMissingPatientIsNotFound(t *testing.T) {
	svc, _, ledger := newTestService()

	name := "Renamed"
	result := svc.Update(context.Background(), nil, procParams("c1", "PATIENT_UPDATED"), 99, UpdateRefPatientParams{Name: &name}, nil)

	assert.Equal(t, idempotency.ResultNotFound, result.Kind)
	assert.Contains(t, ledger.rows, "c1", "not-found outcomes are still recorded")
}

func TestSyncUpdateUpgradesToCreate(t *testing.T) {
	svc, store, ledger := newTestService()

	name := "Tan Ah Kow"
	create := createParams(7)
	result := svc.Update(context.Background(), nil, procParams("s1", "PATIENT_UPDATED"), 7,
		UpdateRefPatientParams{Name: &name}, &SyncContext{CreateParams: &create})

	require.Equal(t, idempotency.ResultSuccess, result.Kind)
	assert.Contains(t, store.patients, int64(7), "sync miss must create the row")
	assert.Contains(t, ledger.rows, "s1")
}

func TestSyncUpdateBypassesDuplicateCheck(t *testing.T) {
	svc, store, _ := newTestService()

	require.Equal(t, idempotency.ResultSuccess,
		svc.Create(context.Background(), nil, procParams("c1", "PATIENT_CREATED"), createParams(7)).Kind)

	name := "Converged"
	// Same correlation id as an already-recorded event still applies
	result := svc.Update(context.Background(), nil, procParams("c1", "PATIENT_UPDATED"), 7,
		UpdateRefPatientParams{Name: &name}, &SyncContext{})

	require.Equal(t, idempotency.ResultSuccess, result.Kind)
	assert.Equal(t, "Converged", store.patients[7].Name)
}

func TestDeleteSoftDeletesOnce(t *testing.T) {
	svc, store, _ := newTestService()

	require.Equal(t, idempotency.ResultSuccess,
		svc.Create(context.Background(), nil, procParams("c1", "PATIENT_CREATED"), createParams(7)).Kind)

	del := DeleteRefPatientParams{ModifiedDate: time.Now(), ModifiedByID: "patient_service"}
	result := svc.Delete(context.Background(), nil, procParams("c2", "PATIENT_DELETED"), 7, del)
	require.Equal(t, idempotency.ResultSuccess, result.Kind)
	assert.Equal(t, "1", store.patients[7].IsDeleted)

	// Deleting again with a new correlation id finds nothing to delete
	again := svc.Delete(context.Background(), nil, procParams("c3", "PATIENT_DELETED"), 7, del)
	assert.Equal(t, idempotency.ResultNotFound, again.Kind)
}
