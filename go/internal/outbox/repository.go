package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carewell/activity-service/go/internal/sqlutil"
)

// ErrNotFound is returned when an outbox event does not exist.
var ErrNotFound = fmt.Errorf("outbox event not found")

// CreateEventParams describes a new outbox row. CorrelationID may be empty,
// in which case a fresh UUID is assigned.
type CreateEventParams struct {
	EventType     string
	AggregateID   string
	Payload       []byte
	RoutingKey    string
	CorrelationID string
	CreatedBy     string
}

// Repository provides outbox persistence on top of pgx.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const createEventQuery = `
INSERT INTO outbox_events (id, event_type, aggregate_id, payload, routing_key, correlation_id, created_by, created_at, sent)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE)
RETURNING id, event_type, aggregate_id, payload, routing_key, correlation_id, created_by, created_at, sent, sent_at`

// CreateEvent inserts an outbox row using the caller's querier, normally a
// pgx.Tx holding the business change. The row only becomes visible to the
// dispatcher once that transaction commits.
func (r *Repository) CreateEvent(ctx context.Context, q sqlutil.Querier, params CreateEventParams) (*OutboxEvent, error) {
	correlationID := params.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	row := q.QueryRow(ctx, createEventQuery,
		uuid.New(),
		params.EventType,
		params.AggregateID,
		params.Payload,
		params.RoutingKey,
		correlationID,
		params.CreatedBy,
		time.Now().UTC(),
	)

	event, err := scanEvent(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create outbox event: %w", err)
	}
	return event, nil
}

const fetchUnsentQuery = `
SELECT id, event_type, aggregate_id, payload, routing_key, correlation_id, created_by, created_at, sent, sent_at
FROM outbox_events
WHERE sent = FALSE
ORDER BY created_at ASC
LIMIT $1`

// FetchUnsent returns unsent events oldest first.
func (r *Repository) FetchUnsent(ctx context.Context, limit int32) ([]OutboxEvent, error) {
	rows, err := r.pool.Query(ctx, fetchUnsentQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unsent outbox events: %w", err)
	}
	defer rows.Close()

	var events []OutboxEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		events = append(events, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read outbox rows: %w", err)
	}
	return events, nil
}

const fetchByIDQuery = `
SELECT id, event_type, aggregate_id, payload, routing_key, correlation_id, created_by, created_at, sent, sent_at
FROM outbox_events
WHERE id = $1`

// FetchByID returns a single outbox event.
func (r *Repository) FetchByID(ctx context.Context, id uuid.UUID) (*OutboxEvent, error) {
	event, err := scanEvent(r.pool.QueryRow(ctx, fetchByIDQuery, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch outbox event: %w", err)
	}
	return event, nil
}

const markSentQuery = `
UPDATE outbox_events
SET sent = TRUE, sent_at = $2
WHERE id = $1 AND sent = FALSE`

// MarkSent flags an event as published. The sent = FALSE guard makes a
// repeat call a no-op: the original sent_at is never overwritten, so
// redundant publishes after a dispatcher race leave no trace in the row.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	if _, err := r.pool.Exec(ctx, markSentQuery, id, sentAt.UTC()); err != nil {
		return fmt.Errorf("failed to mark outbox event as sent: %w", err)
	}
	return nil
}

const countPendingQuery = `SELECT COUNT(*) FROM outbox_events WHERE sent = FALSE`

// CountPending returns how many events are waiting to be published.
func (r *Repository) CountPending(ctx context.Context) (int64, error) {
	var count int64
	if err := r.pool.QueryRow(ctx, countPendingQuery).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count pending outbox events: %w", err)
	}
	return count, nil
}

const deleteSentBeforeQuery = `DELETE FROM outbox_events WHERE sent = TRUE AND sent_at < $1`

// DeleteSentBefore removes published rows older than the cutoff.
func (r *Repository) DeleteSentBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, deleteSentBeforeQuery, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete sent outbox events: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanEvent(row pgx.Row) (*OutboxEvent, error) {
	var event OutboxEvent
	err := row.Scan(
		&event.ID,
		&event.EventType,
		&event.AggregateID,
		&event.Payload,
		&event.RoutingKey,
		&event.CorrelationID,
		&event.CreatedBy,
		&event.CreatedAt,
		&event.Sent,
		&event.SentAt,
	)
	if err != nil {
		return nil, err
	}
	return &event, nil
}
