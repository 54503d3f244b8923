package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePatientEvent(t *testing.T) {
	payload := json.RawMessage(`{
		"correlation_id": "abc-123",
		"event_type": "PATIENT_CREATED",
		"patient_id": 7,
		"patient_data": {"id": 7, "name": "Tan Ah Kow"},
		"created_by": "patient_service",
		"some_future_field": true
	}`)

	event, err := ParsePatientEvent(payload)
	require.NoError(t, err, "unknown fields must be tolerated")
	assert.Equal(t, "abc-123", event.CorrelationID)
	assert.Equal(t, PatientCreated, event.EventType)
	assert.Equal(t, int64(7), event.PatientID)
	assert.False(t, event.IsSyncEvent)
	assert.JSONEq(t, `{"id": 7, "name": "Tan Ah Kow"}`, string(event.EntityData()))
}

func TestParsePatientEventMissingRequired(t *testing.T) {
	cases := map[string]string{
		"no correlation id": `{"event_type": "PATIENT_CREATED", "patient_id": 7}`,
		"no event type":     `{"correlation_id": "abc", "patient_id": 7}`,
		"no patient id":     `{"correlation_id": "abc", "event_type": "PATIENT_CREATED"}`,
		"null patient id":   `{"correlation_id": "abc", "event_type": "PATIENT_CREATED", "patient_id": null}`,
		"not json":          `{"correlation_id": `,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePatientEvent(json.RawMessage(payload))
			assert.Error(t, err)
		})
	}
}

func TestPatientEventEntityDataPrefersNewData(t *testing.T) {
	payload := json.RawMessage(`{
		"correlation_id": "abc",
		"event_type": "PATIENT_UPDATED",
		"patient_id": 7,
		"new_data": {"name": "after"},
		"is_sync_event": true,
		"sync_reason": "drift_detected"
	}`)

	event, err := ParsePatientEvent(payload)
	require.NoError(t, err)
	assert.True(t, event.IsSyncEvent)
	assert.Equal(t, "drift_detected", event.SyncReason)
	assert.JSONEq(t, `{"name": "after"}`, string(event.EntityData()))
}

func TestParseAllocationEvent(t *testing.T) {
	payload := json.RawMessage(`{
		"correlation_id": "def-456",
		"event_type": "PATIENT_ALLOCATION_UPDATED",
		"allocation_id": 12,
		"new_data": {"id": 12, "doctorId": "D100"}
	}`)

	event, err := ParseAllocationEvent(payload)
	require.NoError(t, err)
	assert.Equal(t, int64(12), event.AllocationID)
	assert.JSONEq(t, `{"id": 12, "doctorId": "D100"}`, string(event.EntityData()))

	_, err = ParseAllocationEvent(json.RawMessage(`{"correlation_id": "x", "event_type": "y"}`))
	assert.Error(t, err, "allocation_id is required")
}

func TestParseDriftEvent(t *testing.T) {
	payload := json.RawMessage(`{
		"record_type": "centre_activity",
		"record_id": 31,
		"drift_type": "missing"
	}`)

	event, err := ParseDriftEvent(payload)
	require.NoError(t, err)
	assert.Equal(t, RecordTypeCentreActivity, event.RecordType)
	assert.Equal(t, int64(31), event.RecordID)
	assert.Equal(t, "missing", event.DriftType)

	_, err = ParseDriftEvent(json.RawMessage(`{"record_type": "activity"}`))
	assert.Error(t, err, "record_id is required")
}
