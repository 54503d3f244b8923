package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carewell/activity-service/go/internal/messaging/events"
	"github.com/carewell/activity-service/go/internal/models"
	"github.com/carewell/activity-service/go/internal/outbox"
	"github.com/carewell/activity-service/go/internal/sqlutil"
)

type memoryStore struct {
	rows   map[int64]models.Activity
	nextID int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{rows: make(map[int64]models.Activity), nextID: 1}
}

func (m *memoryStore) Get(_ context.Context, _ sqlutil.Querier, id int64, includeDeleted bool) (*models.Activity, error) {
	row, ok := m.rows[id]
	if !ok || (!includeDeleted && row.IsDeleted) {
		return nil, ErrNotFound
	}
	return &row, nil
}

func (m *memoryStore) Insert(_ context.Context, _ sqlutil.Querier, params CreateActivityParams) (*models.Activity, error) {
	now := time.Now().UTC()
	row := models.Activity{
		ID:           m.nextID,
		Active:       true,
		Title:        params.Title,
		Description:  params.Description,
		StartDate:    params.StartDate,
		EndDate:      params.EndDate,
		CreatedDate:  now,
		ModifiedDate: now,
		CreatedByID:  params.CreatedByID,
		ModifiedByID: params.CreatedByID,
	}
	m.rows[row.ID] = row
	m.nextID++
	return &row, nil
}

func (m *memoryStore) Update(_ context.Context, _ sqlutil.Querier, id int64, params UpdateActivityParams) (*models.Activity, error) {
	row, ok := m.rows[id]
	if !ok || row.IsDeleted {
		return nil, ErrNotFound
	}
	if params.Active != nil {
		row.Active = *params.Active
	}
	if params.Title != nil {
		row.Title = *params.Title
	}
	if params.Description != nil {
		row.Description = params.Description
	}
	if params.StartDate != nil {
		row.StartDate = *params.StartDate
	}
	if params.EndDate != nil {
		row.EndDate = params.EndDate
	}
	row.ModifiedDate = time.Now().UTC()
	row.ModifiedByID = params.ModifiedByID
	m.rows[id] = row
	return &row, nil
}

func (m *memoryStore) SoftDelete(_ context.Context, _ sqlutil.Querier, id int64, modifiedByID *string) (*models.Activity, error) {
	row, ok := m.rows[id]
	if !ok || row.IsDeleted {
		return nil, ErrNotFound
	}
	row.IsDeleted = true
	row.Active = false
	row.ModifiedDate = time.Now().UTC()
	row.ModifiedByID = modifiedByID
	m.rows[id] = row
	return &row, nil
}

type captureOutbox struct {
	created []outbox.CreateEventParams
	err     error
}

func (c *captureOutbox) CreateEvent(_ context.Context, _ sqlutil.Querier, params outbox.CreateEventParams) (*outbox.OutboxEvent, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.created = append(c.created, params)
	return &outbox.OutboxEvent{EventType: params.EventType}, nil
}

func newTestService(store Store, ob OutboxStore) *Service {
	svc := NewService(nil, store, ob)
	svc.runTx = func(ctx context.Context, fn func(tx pgx.Tx) error) error {
		return fn(nil)
	}
	return svc
}

func TestCreateStagesOutboxEvent(t *testing.T) {
	store := newMemoryStore()
	ob := &captureOutbox{}
	svc := newTestService(store, ob)

	created, err := svc.Create(context.Background(), CreateActivityParams{
		Title:     "Mahjong",
		StartDate: time.Now().UTC(),
	})
	require.NoError(t, err)
	require.Len(t, ob.created, 1)

	staged := ob.created[0]
	assert.Equal(t, events.ActivityCreated, staged.EventType)
	assert.Equal(t, fmt.Sprintf("%d", created.ID), staged.AggregateID)
	assert.Equal(t, fmt.Sprintf("activity.created.%d", created.ID), staged.RoutingKey)
	assert.Equal(t, "activity_service", staged.CreatedBy)

	var payload events.ActivityCreatedEvent
	require.NoError(t, json.Unmarshal(staged.Payload, &payload))
	assert.Equal(t, "Mahjong", payload.ActivityData.Title)
}

func TestCreateFailsWhenOutboxInsertFails(t *testing.T) {
	store := newMemoryStore()
	ob := &captureOutbox{err: errors.New("db gone")}
	svc := newTestService(store, ob)

	_, err := svc.Create(context.Background(), CreateActivityParams{
		Title:     "Mahjong",
		StartDate: time.Now().UTC(),
	})
	assert.Error(t, err)
	assert.Empty(t, ob.created)
}

func TestUpdateRecordsFieldChanges(t *testing.T) {
	store := newMemoryStore()
	ob := &captureOutbox{}
	svc := newTestService(store, ob)

	created, err := svc.Create(context.Background(), CreateActivityParams{
		Title:     "Mahjong",
		StartDate: time.Now().UTC(),
	})
	require.NoError(t, err)
	ob.created = nil

	newTitle := "Mahjong (Beginner)"
	_, err = svc.Update(context.Background(), created.ID, UpdateActivityParams{Title: &newTitle})
	require.NoError(t, err)
	require.Len(t, ob.created, 1)

	staged := ob.created[0]
	assert.Equal(t, events.ActivityUpdated, staged.EventType)
	assert.Equal(t, fmt.Sprintf("activity.updated.%d", created.ID), staged.RoutingKey)

	var payload events.ActivityUpdatedEvent
	require.NoError(t, json.Unmarshal(staged.Payload, &payload))
	assert.Equal(t, "Mahjong", payload.OldData.Title)
	assert.Equal(t, "Mahjong (Beginner)", payload.NewData.Title)
	require.Contains(t, payload.Changes, "title")
	assert.NotContains(t, payload.Changes, "start_date")
}

func TestUpdateMissingActivity(t *testing.T) {
	svc := newTestService(newMemoryStore(), &captureOutbox{})

	title := "anything"
	_, err := svc.Update(context.Background(), 404, UpdateActivityParams{Title: &title})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteStagesDeletedEvent(t *testing.T) {
	store := newMemoryStore()
	ob := &captureOutbox{}
	svc := newTestService(store, ob)

	created, err := svc.Create(context.Background(), CreateActivityParams{
		Title:     "Mahjong",
		StartDate: time.Now().UTC(),
	})
	require.NoError(t, err)
	ob.created = nil

	deleted, err := svc.Delete(context.Background(), created.ID, nil)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted)
	require.Len(t, ob.created, 1)

	staged := ob.created[0]
	assert.Equal(t, events.ActivityDeleted, staged.EventType)
	assert.Equal(t, fmt.Sprintf("activity.deleted.%d", created.ID), staged.RoutingKey)

	var payload events.ActivityDeletedEvent
	require.NoError(t, json.Unmarshal(staged.Payload, &payload))
	assert.True(t, payload.ActivityData.IsDeleted)

	_, err = svc.Delete(context.Background(), created.ID, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}
