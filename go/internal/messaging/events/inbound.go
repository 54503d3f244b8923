package events

import (
	"encoding/json"
	"fmt"
)

// PatientEvent is the payload of patient lifecycle messages. PatientData
// carries the full entity on creates, NewData on updates and syncs. Unknown
// fields are ignored so upstream schema additions don't break consumption.
type PatientEvent struct {
	CorrelationID string          `json:"correlation_id"`
	EventType     string          `json:"event_type"`
	PatientID     int64           `json:"patient_id"`
	PatientData   json.RawMessage `json:"patient_data,omitempty"`
	NewData       json.RawMessage `json:"new_data,omitempty"`
	CreatedBy     string          `json:"created_by,omitempty"`
	ModifiedBy    string          `json:"modified_by,omitempty"`
	DeletedBy     string          `json:"deleted_by,omitempty"`
	Timestamp     string          `json:"timestamp,omitempty"`
	IsSyncEvent   bool            `json:"is_sync_event,omitempty"`
	SyncReason    string          `json:"sync_reason,omitempty"`
}

// ParsePatientEvent decodes and validates a patient message payload.
func ParsePatientEvent(data json.RawMessage) (*PatientEvent, error) {
	var raw struct {
		PatientEvent
		CorrelationID *string `json:"correlation_id"`
		EventType     *string `json:"event_type"`
		PatientID     *int64  `json:"patient_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid patient event payload: %w", err)
	}
	if err := requireFields(map[string]bool{
		"correlation_id": raw.CorrelationID != nil && *raw.CorrelationID != "",
		"event_type":     raw.EventType != nil && *raw.EventType != "",
		"patient_id":     raw.PatientID != nil,
	}); err != nil {
		return nil, err
	}

	event := raw.PatientEvent
	event.CorrelationID = *raw.CorrelationID
	event.EventType = *raw.EventType
	event.PatientID = *raw.PatientID
	return &event, nil
}

// EntityData returns whichever of PatientData or NewData carries the entity.
func (e *PatientEvent) EntityData() json.RawMessage {
	if len(e.NewData) > 0 && string(e.NewData) != "null" {
		return e.NewData
	}
	return e.PatientData
}

// AllocationEvent is the payload of patient-allocation lifecycle messages.
type AllocationEvent struct {
	CorrelationID  string          `json:"correlation_id"`
	EventType      string          `json:"event_type"`
	AllocationID   int64           `json:"allocation_id"`
	AllocationData json.RawMessage `json:"allocation_data,omitempty"`
	NewData        json.RawMessage `json:"new_data,omitempty"`
	CreatedBy      string          `json:"created_by,omitempty"`
	ModifiedBy     string          `json:"modified_by,omitempty"`
	DeletedBy      string          `json:"deleted_by,omitempty"`
	Timestamp      string          `json:"timestamp,omitempty"`
	IsSyncEvent    bool            `json:"is_sync_event,omitempty"`
	SyncReason     string          `json:"sync_reason,omitempty"`
}

// ParseAllocationEvent decodes and validates an allocation message payload.
func ParseAllocationEvent(data json.RawMessage) (*AllocationEvent, error) {
	var raw struct {
		AllocationEvent
		CorrelationID *string `json:"correlation_id"`
		EventType     *string `json:"event_type"`
		AllocationID  *int64  `json:"allocation_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid allocation event payload: %w", err)
	}
	if err := requireFields(map[string]bool{
		"correlation_id": raw.CorrelationID != nil && *raw.CorrelationID != "",
		"event_type":     raw.EventType != nil && *raw.EventType != "",
		"allocation_id":  raw.AllocationID != nil,
	}); err != nil {
		return nil, err
	}

	event := raw.AllocationEvent
	event.CorrelationID = *raw.CorrelationID
	event.EventType = *raw.EventType
	event.AllocationID = *raw.AllocationID
	return &event, nil
}

// EntityData returns whichever of AllocationData or NewData carries the entity.
func (e *AllocationEvent) EntityData() json.RawMessage {
	if len(e.NewData) > 0 && string(e.NewData) != "null" {
		return e.NewData
	}
	return e.AllocationData
}

// DriftEvent is a drift notification from the reconciliation service.
type DriftEvent struct {
	RecordType string `json:"record_type"`
	RecordID   int64  `json:"record_id"`
	DriftType  string `json:"drift_type,omitempty"`
}

// ParseDriftEvent decodes and validates a drift notification payload.
func ParseDriftEvent(data json.RawMessage) (*DriftEvent, error) {
	var raw struct {
		DriftEvent
		RecordType *string `json:"record_type"`
		RecordID   *int64  `json:"record_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid drift event payload: %w", err)
	}
	if err := requireFields(map[string]bool{
		"record_type": raw.RecordType != nil && *raw.RecordType != "",
		"record_id":   raw.RecordID != nil,
	}); err != nil {
		return nil, err
	}

	event := raw.DriftEvent
	event.RecordType = *raw.RecordType
	event.RecordID = *raw.RecordID
	return &event, nil
}

func requireFields(present map[string]bool) error {
	for field, ok := range present {
		if !ok {
			return fmt.Errorf("missing required field %q", field)
		}
	}
	return nil
}
