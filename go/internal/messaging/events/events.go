// Package events defines the message payload schemas exchanged with the
// patient and reconciliation services, and the payloads this service emits.
package events

// Exchanges.
const (
	PatientExchange        = "patient.updates"
	AllocationExchange     = "patient.allocation.updates"
	ReconciliationExchange = "reconciliation.events"
	ActivityExchange       = "activity.updates"
)

// Inbound event types.
const (
	PatientCreated = "PATIENT_CREATED"
	PatientUpdated = "PATIENT_UPDATED"
	PatientDeleted = "PATIENT_DELETED"

	AllocationCreated = "PATIENT_ALLOCATION_CREATED"
	AllocationUpdated = "PATIENT_ALLOCATION_UPDATED"
	AllocationDeleted = "PATIENT_ALLOCATION_DELETED"
)

// Outbound event types.
const (
	ActivityCreated = "ACTIVITY_CREATED"
	ActivityUpdated = "ACTIVITY_UPDATED"
	ActivityDeleted = "ACTIVITY_DELETED"

	CentreActivityUpdated         = "CENTRE_ACTIVITY_UPDATED"
	ActivityPreferenceUpdated     = "ACTIVITY_PREFERENCE_UPDATED"
	ActivityRecommendationUpdated = "ACTIVITY_RECOMMENDATION_UPDATED"
	ActivityExclusionUpdated      = "ACTIVITY_EXCLUSION_UPDATED"
)

// Consumer queues.
const (
	QueuePatientCreated = "activity.patient.created"
	QueuePatientUpdated = "activity.patient.updated"
	QueuePatientDeleted = "activity.patient.deleted"

	QueueAllocationCreated = "activity.patient.allocation.created"
	QueueAllocationUpdated = "activity.patient.allocation.updated"
	QueueAllocationDeleted = "activity.patient.allocation.deleted"

	QueueDriftDetected = "reconciliation.drift.detected"
)

// Routing keys for full-state sync events. The .sync suffix lets downstream
// consumers bypass their duplicate checks.
const (
	SyncKeyActivity       = "activity.updated.sync"
	SyncKeyCentreActivity = "activity.centre_activity.updated.sync"
	SyncKeyPreference     = "activity.preference.updated.sync"
	SyncKeyRecommendation = "activity.recommendation.updated.sync"
	SyncKeyExclusion      = "activity.centre_activity_exclusion.updated.sync"
)

// Drift record types reported by the reconciliation service.
const (
	RecordTypeActivity       = "activity"
	RecordTypeCentreActivity = "centre_activity"
	RecordTypePreference     = "centre_activity_preference"
	RecordTypeRecommendation = "centre_activity_recommendation"
	RecordTypeExclusion      = "centre_activity_exclusion"
)
