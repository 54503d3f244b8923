package activity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/carewell/activity-service/go/internal/models"
	"github.com/carewell/activity-service/go/internal/sqlutil"
)

// ErrNotFound is returned when no activity row matches.
var ErrNotFound = errors.New("activity not found")

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

const activityColumns = `id, active, is_deleted, title, description, start_date, end_date, created_date, modified_date, created_by_id, modified_by_id`

func (r *Repository) Get(ctx context.Context, q sqlutil.Querier, id int64, includeDeleted bool) (*models.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activity WHERE id = $1`
	if !includeDeleted {
		query += ` AND is_deleted = FALSE`
	}

	activity, err := scanActivity(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}
	return activity, nil
}

const insertActivityQuery = `
INSERT INTO activity (active, is_deleted, title, description, start_date, end_date, created_date, modified_date, created_by_id, modified_by_id)
VALUES (TRUE, FALSE, $1, $2, $3, $4, $5, $5, $6, $6)
RETURNING ` + activityColumns

func (r *Repository) Insert(ctx context.Context, q sqlutil.Querier, params CreateActivityParams) (*models.Activity, error) {
	now := time.Now().UTC()
	activity, err := scanActivity(q.QueryRow(ctx, insertActivityQuery,
		params.Title,
		params.Description,
		params.StartDate,
		params.EndDate,
		now,
		params.CreatedByID,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to insert activity: %w", err)
	}
	return activity, nil
}

// Update applies the non-nil fields of params and returns the updated row.
// Soft-deleted rows are not updatable.
func (r *Repository) Update(ctx context.Context, q sqlutil.Querier, id int64, params UpdateActivityParams) (*models.Activity, error) {
	sets := make([]string, 0, 7)
	args := make([]any, 0, 8)

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if params.Active != nil {
		add("active", *params.Active)
	}
	if params.Title != nil {
		add("title", *params.Title)
	}
	if params.Description != nil {
		add("description", *params.Description)
	}
	if params.StartDate != nil {
		add("start_date", *params.StartDate)
	}
	if params.EndDate != nil {
		add("end_date", *params.EndDate)
	}
	add("modified_date", time.Now().UTC())
	add("modified_by_id", params.ModifiedByID)

	args = append(args, id)
	query := fmt.Sprintf(
		"UPDATE activity SET %s WHERE id = $%d AND is_deleted = FALSE RETURNING %s",
		strings.Join(sets, ", "), len(args), activityColumns,
	)

	activity, err := scanActivity(q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update activity: %w", err)
	}
	return activity, nil
}

const softDeleteActivityQuery = `
UPDATE activity
SET is_deleted = TRUE, active = FALSE, modified_date = $2, modified_by_id = $3
WHERE id = $1 AND is_deleted = FALSE
RETURNING ` + activityColumns

func (r *Repository) SoftDelete(ctx context.Context, q sqlutil.Querier, id int64, modifiedByID *string) (*models.Activity, error) {
	activity, err := scanActivity(q.QueryRow(ctx, softDeleteActivityQuery, id, time.Now().UTC(), modifiedByID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to delete activity: %w", err)
	}
	return activity, nil
}

func scanActivity(row pgx.Row) (*models.Activity, error) {
	var a models.Activity
	err := row.Scan(
		&a.ID,
		&a.Active,
		&a.IsDeleted,
		&a.Title,
		&a.Description,
		&a.StartDate,
		&a.EndDate,
		&a.CreatedDate,
		&a.ModifiedDate,
		&a.CreatedByID,
		&a.ModifiedByID,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
