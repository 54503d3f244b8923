package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/carewell/activity-service/go/internal/messaging/events"
	"github.com/carewell/activity-service/go/internal/models"
	"github.com/carewell/activity-service/go/internal/outbox"
	"github.com/carewell/activity-service/go/internal/sqlutil"
)

// serviceIdentity attributes rows and events when the caller omits an author.
const serviceIdentity = "activity_service"

type Store interface {
	Get(ctx context.Context, q sqlutil.Querier, id int64, includeDeleted bool) (*models.Activity, error)
	Insert(ctx context.Context, q sqlutil.Querier, params CreateActivityParams) (*models.Activity, error)
	Update(ctx context.Context, q sqlutil.Querier, id int64, params UpdateActivityParams) (*models.Activity, error)
	SoftDelete(ctx context.Context, q sqlutil.Querier, id int64, modifiedByID *string) (*models.Activity, error)
}

type OutboxStore interface {
	CreateEvent(ctx context.Context, q sqlutil.Querier, params outbox.CreateEventParams) (*outbox.OutboxEvent, error)
}

// Service mutates activities and stages the matching event in the outbox,
// both inside one transaction. Either the row changes and the event will
// eventually publish, or neither happens.
type Service struct {
	runTx  func(ctx context.Context, fn func(tx pgx.Tx) error) error
	store  Store
	outbox OutboxStore
}

func NewService(pool *pgxpool.Pool, store Store, outboxStore OutboxStore) *Service {
	return &Service{
		runTx: func(ctx context.Context, fn func(tx pgx.Tx) error) error {
			return sqlutil.RunTx(ctx, pool, fn)
		},
		store:  store,
		outbox: outboxStore,
	}
}

func (s *Service) Create(ctx context.Context, params CreateActivityParams) (*models.Activity, error) {
	createdBy := sqlutil.StringOr(params.CreatedByID, serviceIdentity)

	var created *models.Activity
	err := s.runTx(ctx, func(tx pgx.Tx) error {
		activity, err := s.store.Insert(ctx, tx, params)
		if err != nil {
			return err
		}

		event, routingKey := events.NewActivityCreated(*activity, createdBy)
		if err := s.stageEvent(ctx, tx, events.ActivityCreated, activity.ID, routingKey, createdBy, event); err != nil {
			return err
		}

		created = activity
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int64("activity_id", created.ID).Msg("activity created")
	return created, nil
}

func (s *Service) Update(ctx context.Context, id int64, params UpdateActivityParams) (*models.Activity, error) {
	modifiedBy := sqlutil.StringOr(params.ModifiedByID, serviceIdentity)

	var updated *models.Activity
	err := s.runTx(ctx, func(tx pgx.Tx) error {
		oldState, err := s.store.Get(ctx, tx, id, false)
		if err != nil {
			return err
		}

		newState, err := s.store.Update(ctx, tx, id, params)
		if err != nil {
			return err
		}

		event, routingKey := events.NewActivityUpdated(*oldState, *newState, diffActivities(*oldState, *newState), modifiedBy)
		if err := s.stageEvent(ctx, tx, events.ActivityUpdated, id, routingKey, modifiedBy, event); err != nil {
			return err
		}

		updated = newState
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int64("activity_id", id).Msg("activity updated")
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id int64, modifiedByID *string) (*models.Activity, error) {
	deletedBy := sqlutil.StringOr(modifiedByID, serviceIdentity)

	var deleted *models.Activity
	err := s.runTx(ctx, func(tx pgx.Tx) error {
		activity, err := s.store.SoftDelete(ctx, tx, id, modifiedByID)
		if err != nil {
			return err
		}

		event, routingKey := events.NewActivityDeleted(*activity, deletedBy)
		if err := s.stageEvent(ctx, tx, events.ActivityDeleted, id, routingKey, deletedBy, event); err != nil {
			return err
		}

		deleted = activity
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int64("activity_id", id).Msg("activity deleted")
	return deleted, nil
}

func (s *Service) stageEvent(ctx context.Context, tx pgx.Tx, eventType string, activityID int64, routingKey, createdBy string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}

	_, err = s.outbox.CreateEvent(ctx, tx, outbox.CreateEventParams{
		EventType:   eventType,
		AggregateID: strconv.FormatInt(activityID, 10),
		Payload:     payload,
		RoutingKey:  routingKey,
		CreatedBy:   createdBy,
	})
	return err
}

// diffActivities records old/new pairs for every field that changed.
func diffActivities(oldState, newState models.Activity) map[string]any {
	changes := make(map[string]any)
	record := func(field string, oldVal, newVal any) {
		changes[field] = map[string]any{"old": oldVal, "new": newVal}
	}

	if oldState.Active != newState.Active {
		record("active", oldState.Active, newState.Active)
	}
	if oldState.Title != newState.Title {
		record("title", oldState.Title, newState.Title)
	}
	if !strPtrEqual(oldState.Description, newState.Description) {
		record("description", oldState.Description, newState.Description)
	}
	if !oldState.StartDate.Equal(newState.StartDate) {
		record("start_date", oldState.StartDate, newState.StartDate)
	}
	if !timePtrEqual(oldState.EndDate, newState.EndDate) {
		record("end_date", oldState.EndDate, newState.EndDate)
	}
	return changes
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
