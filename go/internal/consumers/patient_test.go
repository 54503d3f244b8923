package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carewell/activity-service/go/internal/idempotency"
	"github.com/carewell/activity-service/go/internal/messaging/rabbitmq"
	"github.com/carewell/activity-service/go/internal/models"
	"github.com/carewell/activity-service/go/internal/refpatient"
	"github.com/carewell/activity-service/go/internal/sqlutil"
)

type memoryLedger struct {
	rows map[string]idempotency.ProcessedEvent
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{rows: make(map[string]idempotency.ProcessedEvent)}
}

func (m *memoryLedger) Insert(_ context.Context, _ sqlutil.Querier, event idempotency.ProcessedEvent) error {
	if _, ok := m.rows[event.CorrelationID]; ok {
		return idempotency.ErrAlreadyProcessed
	}
	m.rows[event.CorrelationID] = event
	return nil
}

func (m *memoryLedger) Exists(_ context.Context, _ sqlutil.Querier, correlationID string) (bool, error) {
	_, ok := m.rows[correlationID]
	return ok, nil
}

func (m *memoryLedger) DeleteOlderThan(_ context.Context, _ sqlutil.Querier, cutoff time.Time) (int64, error) {
	var deleted int64
	for id, row := range m.rows {
		if row.ProcessedAt.Before(cutoff) {
			delete(m.rows, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *memoryLedger) GetStats(_ context.Context, _ sqlutil.Querier, now time.Time) (*idempotency.Stats, error) {
	return &idempotency.Stats{TotalProcessed: int64(len(m.rows)), GeneratedAt: now}, nil
}

type memoryPatientStore struct {
	rows    map[int64]models.RefPatient
	failErr error
}

func newMemoryPatientStore() *memoryPatientStore {
	return &memoryPatientStore{rows: make(map[int64]models.RefPatient)}
}

func (m *memoryPatientStore) Get(_ context.Context, _ sqlutil.Querier, id int64, includeDeleted bool) (*models.RefPatient, error) {
	if m.failErr != nil {
		return nil, m.failErr
	}
	row, ok := m.rows[id]
	if !ok || (!includeDeleted && row.IsDeleted == "1") {
		return nil, refpatient.ErrNotFound
	}
	return &row, nil
}

func (m *memoryPatientStore) Insert(_ context.Context, _ sqlutil.Querier, params refpatient.CreateRefPatientParams) error {
	if m.failErr != nil {
		return m.failErr
	}
	m.rows[params.ID] = models.RefPatient{
		ID:        params.ID,
		Name:      params.Name,
		IsActive:  params.IsActive,
		IsDeleted: params.IsDeleted,
	}
	return nil
}

func (m *memoryPatientStore) Update(_ context.Context, _ sqlutil.Querier, id int64, params refpatient.UpdateRefPatientParams) error {
	if m.failErr != nil {
		return m.failErr
	}
	row, ok := m.rows[id]
	if !ok || row.IsDeleted == "1" {
		return refpatient.ErrNotFound
	}
	if params.Name != nil {
		row.Name = *params.Name
	}
	m.rows[id] = row
	return nil
}

func (m *memoryPatientStore) SoftDelete(_ context.Context, _ sqlutil.Querier, id int64, _ refpatient.DeleteRefPatientParams) error {
	if m.failErr != nil {
		return m.failErr
	}
	row, ok := m.rows[id]
	if !ok || row.IsDeleted == "1" {
		return refpatient.ErrNotFound
	}
	row.IsDeleted = "1"
	m.rows[id] = row
	return nil
}

// brokenVerify wraps a processor so post-commit verification always misses.
type brokenVerify struct {
	Processor
}

func (b brokenVerify) VerifyRecorded(context.Context, sqlutil.Querier, string) (bool, error) {
	return false, nil
}

func testDatabase() database {
	return database{
		runTx: func(ctx context.Context, fn func(tx pgx.Tx) error) error {
			return fn(nil)
		},
	}
}

func newPatientFixture() (*PatientConsumer, *memoryLedger, *memoryPatientStore) {
	ledger := newMemoryLedger()
	store := newMemoryPatientStore()
	processor := idempotency.NewService(ledger, clockwork.NewFakeClock(), idempotency.DefaultConfig())
	consumer := &PatientConsumer{
		db:        testDatabase(),
		processor: processor,
		patients:  refpatient.NewService(store, processor),
	}
	return consumer, ledger, store
}

func patientEnvelope(t *testing.T, payload string) rabbitmq.Envelope {
	t.Helper()
	return rabbitmq.Envelope{
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
		SourceService: "patient_service",
		Data:          json.RawMessage(payload),
	}
}

func TestPatientCreatedAppliesAndAcks(t *testing.T) {
	consumer, ledger, store := newPatientFixture()

	envelope := patientEnvelope(t, `{
		"correlation_id": "corr-1",
		"event_type": "PATIENT_CREATED",
		"patient_id": 7,
		"patient_data": {"id": 7, "name": "Alice Tan"}
	}`)

	decision := consumer.handleCreated(context.Background(), envelope)
	assert.Equal(t, rabbitmq.Ack, decision)
	assert.Contains(t, ledger.rows, "corr-1")
	assert.Contains(t, store.rows, int64(7))
}

func TestPatientDuplicateDeliveryAcked(t *testing.T) {
	consumer, _, store := newPatientFixture()

	envelope := patientEnvelope(t, `{
		"correlation_id": "corr-1",
		"event_type": "PATIENT_CREATED",
		"patient_id": 7,
		"patient_data": {"id": 7, "name": "Alice Tan"}
	}`)

	require.Equal(t, rabbitmq.Ack, consumer.handleCreated(context.Background(), envelope))
	require.Equal(t, rabbitmq.Ack, consumer.handleCreated(context.Background(), envelope))
	assert.Len(t, store.rows, 1)
}

func TestPatientInvalidPayloadDiscarded(t *testing.T) {
	consumer, ledger, _ := newPatientFixture()

	envelope := patientEnvelope(t, `{"event_type": "PATIENT_CREATED"}`)

	decision := consumer.handleCreated(context.Background(), envelope)
	assert.Equal(t, rabbitmq.NackDiscard, decision)
	assert.Empty(t, ledger.rows)
}

func TestPatientUnmappablePayloadRecordedAsPermanent(t *testing.T) {
	consumer, ledger, store := newPatientFixture()

	envelope := patientEnvelope(t, `{
		"correlation_id": "corr-2",
		"event_type": "PATIENT_CREATED",
		"patient_id": 7,
		"patient_data": {"id": 7}
	}`)

	decision := consumer.handleCreated(context.Background(), envelope)
	assert.Equal(t, rabbitmq.Ack, decision)
	assert.Empty(t, store.rows)

	row, ok := ledger.rows["corr-2"]
	require.True(t, ok)
	require.NotNil(t, row.ErrorMessage)
	assert.Contains(t, *row.ErrorMessage, "unmappable patient payload")
}

func TestPatientUpdateMissingRowAcked(t *testing.T) {
	consumer, ledger, _ := newPatientFixture()

	envelope := patientEnvelope(t, `{
		"correlation_id": "corr-3",
		"event_type": "PATIENT_UPDATED",
		"patient_id": 404,
		"new_data": {"name": "Nobody"}
	}`)

	decision := consumer.handleUpdated(context.Background(), envelope)
	assert.Equal(t, rabbitmq.Ack, decision)
	assert.Contains(t, ledger.rows, "corr-3")
}

func TestPatientSyncUpdateCreatesMissingRow(t *testing.T) {
	consumer, ledger, store := newPatientFixture()

	envelope := patientEnvelope(t, `{
		"correlation_id": "corr-sync",
		"event_type": "PATIENT_UPDATED",
		"patient_id": 9,
		"new_data": {"id": 9, "name": "Bob Lee"},
		"is_sync_event": true,
		"sync_reason": "drift_detected"
	}`)

	decision := consumer.handleUpdated(context.Background(), envelope)
	assert.Equal(t, rabbitmq.Ack, decision)
	assert.Contains(t, store.rows, int64(9))
	assert.Contains(t, ledger.rows, "corr-sync")

	// Sync events bypass the duplicate check: redelivery applies again
	decision = consumer.handleUpdated(context.Background(), envelope)
	assert.Equal(t, rabbitmq.Ack, decision)
}

func TestPatientTransientFailureRequeued(t *testing.T) {
	consumer, ledger, store := newPatientFixture()
	store.failErr = errors.New("connection reset")

	envelope := patientEnvelope(t, `{
		"correlation_id": "corr-4",
		"event_type": "PATIENT_CREATED",
		"patient_id": 7,
		"patient_data": {"id": 7, "name": "Alice Tan"}
	}`)

	decision := consumer.handleCreated(context.Background(), envelope)
	assert.Equal(t, rabbitmq.NackRequeue, decision)
	assert.Empty(t, ledger.rows)
}

func TestPatientVerificationFailureRequeued(t *testing.T) {
	consumer, _, _ := newPatientFixture()
	consumer.processor = brokenVerify{consumer.processor}

	envelope := patientEnvelope(t, `{
		"correlation_id": "corr-5",
		"event_type": "PATIENT_CREATED",
		"patient_id": 7,
		"patient_data": {"id": 7, "name": "Alice Tan"}
	}`)

	decision := consumer.handleCreated(context.Background(), envelope)
	assert.Equal(t, rabbitmq.NackRequeue, decision)
}

func TestPatientDeletedSoftDeletesReplica(t *testing.T) {
	consumer, ledger, store := newPatientFixture()
	store.rows[7] = models.RefPatient{ID: 7, Name: "Alice Tan", IsDeleted: "0"}

	envelope := patientEnvelope(t, fmt.Sprintf(`{
		"correlation_id": "corr-6",
		"event_type": "PATIENT_DELETED",
		"patient_id": %d,
		"deleted_by": "admin_1"
	}`, 7))

	decision := consumer.handleDeleted(context.Background(), envelope)
	assert.Equal(t, rabbitmq.Ack, decision)
	assert.Equal(t, "1", store.rows[7].IsDeleted)
	assert.Contains(t, ledger.rows, "corr-6")
}
