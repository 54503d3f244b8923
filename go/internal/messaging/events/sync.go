package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/carewell/activity-service/go/internal/models"
)

// SyncReason values carried on full-state sync events.
const (
	SyncReasonDrift    = "drift_detected"
	SyncReasonBackfill = "manual_backfill"
)

// SyncEvent is the common shape of a full-state sync message. Sync events
// always use UPDATED semantics: consumers upsert from NewData, and soft
// deletes travel as is_deleted inside the entity state.
type SyncEvent struct {
	CorrelationID  string         `json:"correlation_id"`
	EventType      string         `json:"event_type"`
	OldData        map[string]any `json:"old_data"`
	NewData        any            `json:"new_data"`
	Changes        map[string]any `json:"changes"`
	ModifiedBy     string         `json:"modified_by"`
	ModifiedByName string         `json:"modified_by_name"`
	Timestamp      *string        `json:"timestamp"`
	IsSyncEvent    bool           `json:"is_sync_event"`
	SyncReason     string         `json:"sync_reason"`
}

func newSyncEvent(eventType string, newData any, modifiedBy *string, modifiedAt *time.Time, reason string) SyncEvent {
	by := "drift_reconciliation"
	if modifiedBy != nil && *modifiedBy != "" {
		by = *modifiedBy
	}
	var ts *string
	if modifiedAt != nil && !modifiedAt.IsZero() {
		s := modifiedAt.Format(time.RFC3339)
		ts = &s
	}
	return SyncEvent{
		CorrelationID:  uuid.NewString(), // fresh id: sync events are never deduplicated
		EventType:      eventType,
		OldData:        map[string]any{},
		NewData:        newData,
		Changes:        map[string]any{},
		ModifiedBy:     by,
		ModifiedByName: "Drift Reconciliation",
		Timestamp:      ts,
		IsSyncEvent:    true,
		SyncReason:     reason,
	}
}

type ActivitySyncEvent struct {
	SyncEvent
	ActivityID int64 `json:"activity_id"`
}

func NewActivitySync(a models.Activity, reason string) (ActivitySyncEvent, string) {
	mod := a.ModifiedDate
	return ActivitySyncEvent{
		SyncEvent:  newSyncEvent(ActivityUpdated, a, a.ModifiedByID, &mod, reason),
		ActivityID: a.ID,
	}, SyncKeyActivity
}

type CentreActivitySyncEvent struct {
	SyncEvent
	CentreActivityID int64 `json:"centre_activity_id"`
}

func NewCentreActivitySync(ca models.CentreActivity, reason string) (CentreActivitySyncEvent, string) {
	mod := ca.ModifiedDate
	return CentreActivitySyncEvent{
		SyncEvent:        newSyncEvent(CentreActivityUpdated, ca, &ca.ModifiedByID, &mod, reason),
		CentreActivityID: ca.ID,
	}, SyncKeyCentreActivity
}

type PreferenceSyncEvent struct {
	SyncEvent
	PreferenceID int64 `json:"preference_id"`
}

func NewPreferenceSync(p models.CentreActivityPreference, reason string) (PreferenceSyncEvent, string) {
	return PreferenceSyncEvent{
		SyncEvent:    newSyncEvent(ActivityPreferenceUpdated, p, p.ModifiedByID, p.ModifiedDate, reason),
		PreferenceID: p.ID,
	}, SyncKeyPreference
}

type RecommendationSyncEvent struct {
	SyncEvent
	RecommendationID int64 `json:"recommendation_id"`
}

func NewRecommendationSync(r models.CentreActivityRecommendation, reason string) (RecommendationSyncEvent, string) {
	return RecommendationSyncEvent{
		SyncEvent:        newSyncEvent(ActivityRecommendationUpdated, r, r.ModifiedByID, r.ModifiedDate, reason),
		RecommendationID: r.ID,
	}, SyncKeyRecommendation
}

type ExclusionSyncEvent struct {
	SyncEvent
	ExclusionID int64 `json:"exclusion_id"`
}

func NewExclusionSync(e models.CentreActivityExclusion, reason string) (ExclusionSyncEvent, string) {
	mod := e.ModifiedDate
	return ExclusionSyncEvent{
		SyncEvent:   newSyncEvent(ActivityExclusionUpdated, e, e.ModifiedByID, &mod, reason),
		ExclusionID: e.ID,
	}, SyncKeyExclusion
}
