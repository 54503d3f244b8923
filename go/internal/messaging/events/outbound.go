package events

import (
	"fmt"
	"time"

	"github.com/carewell/activity-service/go/internal/models"
)

// ActivityCreatedEvent is the payload published when an activity is created.
type ActivityCreatedEvent struct {
	EventType    string          `json:"event_type"`
	ActivityID   int64           `json:"activity_id"`
	ActivityData models.Activity `json:"activity_data"`
	CreatedBy    string          `json:"created_by"`
	Timestamp    string          `json:"timestamp"`
}

func NewActivityCreated(activity models.Activity, createdBy string) (ActivityCreatedEvent, string) {
	return ActivityCreatedEvent{
		EventType:    ActivityCreated,
		ActivityID:   activity.ID,
		ActivityData: activity,
		CreatedBy:    createdBy,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	}, fmt.Sprintf("activity.created.%d", activity.ID)
}

// ActivityUpdatedEvent carries before/after state and the changed fields.
type ActivityUpdatedEvent struct {
	EventType  string          `json:"event_type"`
	ActivityID int64           `json:"activity_id"`
	OldData    models.Activity `json:"old_data"`
	NewData    models.Activity `json:"new_data"`
	Changes    map[string]any  `json:"changes"`
	ModifiedBy string          `json:"modified_by"`
	Timestamp  string          `json:"timestamp"`
}

func NewActivityUpdated(oldState, newState models.Activity, changes map[string]any, modifiedBy string) (ActivityUpdatedEvent, string) {
	return ActivityUpdatedEvent{
		EventType:  ActivityUpdated,
		ActivityID: newState.ID,
		OldData:    oldState,
		NewData:    newState,
		Changes:    changes,
		ModifiedBy: modifiedBy,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}, fmt.Sprintf("activity.updated.%d", newState.ID)
}

// ActivityDeletedEvent is the payload published on soft delete.
type ActivityDeletedEvent struct {
	EventType    string          `json:"event_type"`
	ActivityID   int64           `json:"activity_id"`
	ActivityData models.Activity `json:"activity_data"`
	DeletedBy    string          `json:"deleted_by"`
	Timestamp    string          `json:"timestamp"`
}

func NewActivityDeleted(activity models.Activity, deletedBy string) (ActivityDeletedEvent, string) {
	return ActivityDeletedEvent{
		EventType:    ActivityDeleted,
		ActivityID:   activity.ID,
		ActivityData: activity,
		DeletedBy:    deletedBy,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	}, fmt.Sprintf("activity.deleted.%d", activity.ID)
}
