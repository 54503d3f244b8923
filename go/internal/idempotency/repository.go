package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/carewell/activity-service/go/internal/sqlutil"
)

// ErrAlreadyProcessed is returned when inserting a ledger row whose
// correlation id already exists.
var ErrAlreadyProcessed = errors.New("event already processed")

// uniqueViolation is the Postgres error code for duplicate primary keys.
const uniqueViolation = "23505"

// Repository persists the processed-events ledger. Methods take a Querier so
// ledger writes can share the transaction of the business change they guard.
type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

const insertQuery = `
INSERT INTO processed_events (correlation_id, event_type, aggregate_id, processed_at, processed_by, operation_result, error_message)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

// Insert writes a ledger row. A duplicate correlation id returns
// ErrAlreadyProcessed so callers can treat the race as a duplicate delivery.
func (r *Repository) Insert(ctx context.Context, q sqlutil.Querier, event ProcessedEvent) error {
	_, err := q.Exec(ctx, insertQuery,
		event.CorrelationID,
		event.EventType,
		event.AggregateID,
		event.ProcessedAt,
		event.ProcessedBy,
		event.OperationResult,
		event.ErrorMessage,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrAlreadyProcessed
		}
		return fmt.Errorf("failed to insert processed event: %w", err)
	}
	return nil
}

const existsQuery = `SELECT EXISTS (SELECT 1 FROM processed_events WHERE correlation_id = $1)`

// Exists reports whether a correlation id is already in the ledger.
func (r *Repository) Exists(ctx context.Context, q sqlutil.Querier, correlationID string) (bool, error) {
	var exists bool
	if err := q.QueryRow(ctx, existsQuery, correlationID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check processed event: %w", err)
	}
	return exists, nil
}

const getQuery = `
SELECT correlation_id, event_type, aggregate_id, processed_at, processed_by, operation_result, error_message
FROM processed_events
WHERE correlation_id = $1`

// Get fetches a ledger row, or pgx.ErrNoRows when absent.
func (r *Repository) Get(ctx context.Context, q sqlutil.Querier, correlationID string) (*ProcessedEvent, error) {
	var event ProcessedEvent
	err := q.QueryRow(ctx, getQuery, correlationID).Scan(
		&event.CorrelationID,
		&event.EventType,
		&event.AggregateID,
		&event.ProcessedAt,
		&event.ProcessedBy,
		&event.OperationResult,
		&event.ErrorMessage,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get processed event: %w", err)
	}
	return &event, nil
}

const deleteOlderThanQuery = `DELETE FROM processed_events WHERE processed_at < $1`

// DeleteOlderThan removes ledger rows older than the cutoff and returns the
// number deleted. Keeps the table bounded; redelivery that old is not expected.
func (r *Repository) DeleteOlderThan(ctx context.Context, q sqlutil.Querier, cutoff time.Time) (int64, error) {
	tag, err := q.Exec(ctx, deleteOlderThanQuery, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up processed events: %w", err)
	}
	return tag.RowsAffected(), nil
}

const statsTotalsQuery = `
SELECT
	COUNT(*),
	COUNT(*) FILTER (WHERE processed_at >= $1),
	COUNT(*) FILTER (WHERE error_message IS NOT NULL)
FROM processed_events`

const statsByTypeQuery = `
SELECT event_type, COUNT(*)
FROM processed_events
GROUP BY event_type`

// GetStats summarizes ledger contents for monitoring endpoints.
func (r *Repository) GetStats(ctx context.Context, q sqlutil.Querier, now time.Time) (*Stats, error) {
	stats := &Stats{
		ByType:      make(map[string]int64),
		GeneratedAt: now,
	}

	err := q.QueryRow(ctx, statsTotalsQuery, now.Add(-24*time.Hour)).
		Scan(&stats.TotalProcessed, &stats.Last24Hours, &stats.WithErrors)
	if err != nil {
		return nil, fmt.Errorf("failed to get processed event totals: %w", err)
	}

	rows, err := q.Query(ctx, statsByTypeQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to get processed events by type: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var eventType string
		var count int64
		if err := rows.Scan(&eventType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan processed event stats: %w", err)
		}
		stats.ByType[eventType] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read processed event stats: %w", err)
	}

	return stats, nil
}
