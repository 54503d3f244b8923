package activity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/carewell/activity-service/go/internal/models"
	"github.com/carewell/activity-service/go/internal/sqlutil"
)

// Snapshot queries for drift reconciliation and backfill. They always include
// soft-deleted rows: a sync event must carry the deletion so downstream
// replicas converge on it.

const centreActivityColumns = `id, activity_id, active, is_deleted, is_compulsory, is_fixed, is_group, start_date, end_date, min_duration, max_duration, min_people_req, fixed_time_slots, created_date, modified_date, created_by_id, modified_by_id`

func (r *Repository) GetCentreActivity(ctx context.Context, q sqlutil.Querier, id int64) (*models.CentreActivity, error) {
	row := q.QueryRow(ctx, `SELECT `+centreActivityColumns+` FROM centre_activity WHERE id = $1`, id)
	ca, err := scanCentreActivity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get centre activity: %w", err)
	}
	return ca, nil
}

const preferenceColumns = `id, centre_activity_id, patient_id, is_like, is_deleted, created_date, modified_date, created_by_id, modified_by_id`

func (r *Repository) GetPreference(ctx context.Context, q sqlutil.Querier, id int64) (*models.CentreActivityPreference, error) {
	row := q.QueryRow(ctx, `SELECT `+preferenceColumns+` FROM centre_activity_preference WHERE id = $1`, id)
	p, err := scanPreference(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get centre activity preference: %w", err)
	}
	return p, nil
}

const recommendationColumns = `id, centre_activity_id, patient_id, doctor_id, doctor_recommendation, doctor_remarks, is_deleted, created_date, modified_date, created_by_id, modified_by_id`

func (r *Repository) GetRecommendation(ctx context.Context, q sqlutil.Querier, id int64) (*models.CentreActivityRecommendation, error) {
	row := q.QueryRow(ctx, `SELECT `+recommendationColumns+` FROM centre_activity_recommendation WHERE id = $1`, id)
	rec, err := scanRecommendation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get centre activity recommendation: %w", err)
	}
	return rec, nil
}

const exclusionColumns = `id, centre_activity_id, patient_id, is_deleted, exclusion_remarks, start_date, end_date, created_date, modified_date, created_by_id, modified_by_id`

func (r *Repository) GetExclusion(ctx context.Context, q sqlutil.Querier, id int64) (*models.CentreActivityExclusion, error) {
	row := q.QueryRow(ctx, `SELECT `+exclusionColumns+` FROM centre_activity_exclusion WHERE id = $1`, id)
	e, err := scanExclusion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get centre activity exclusion: %w", err)
	}
	return e, nil
}

// List queries page through every row of a table, soft-deleted included,
// for the backfill tool.

func (r *Repository) ListActivities(ctx context.Context, q sqlutil.Querier, limit int32, offset int64) ([]models.Activity, error) {
	rows, err := q.Query(ctx, `SELECT `+activityColumns+` FROM activity ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	var out []models.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r *Repository) ListCentreActivities(ctx context.Context, q sqlutil.Querier, limit int32, offset int64) ([]models.CentreActivity, error) {
	rows, err := q.Query(ctx, `SELECT `+centreActivityColumns+` FROM centre_activity ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list centre activities: %w", err)
	}
	defer rows.Close()

	var out []models.CentreActivity
	for rows.Next() {
		ca, err := scanCentreActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan centre activity: %w", err)
		}
		out = append(out, *ca)
	}
	return out, rows.Err()
}

func (r *Repository) ListPreferences(ctx context.Context, q sqlutil.Querier, limit int32, offset int64) ([]models.CentreActivityPreference, error) {
	rows, err := q.Query(ctx, `SELECT `+preferenceColumns+` FROM centre_activity_preference ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list centre activity preferences: %w", err)
	}
	defer rows.Close()

	var out []models.CentreActivityPreference
	for rows.Next() {
		p, err := scanPreference(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan centre activity preference: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *Repository) ListRecommendations(ctx context.Context, q sqlutil.Querier, limit int32, offset int64) ([]models.CentreActivityRecommendation, error) {
	rows, err := q.Query(ctx, `SELECT `+recommendationColumns+` FROM centre_activity_recommendation ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list centre activity recommendations: %w", err)
	}
	defer rows.Close()

	var out []models.CentreActivityRecommendation
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan centre activity recommendation: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (r *Repository) ListExclusions(ctx context.Context, q sqlutil.Querier, limit int32, offset int64) ([]models.CentreActivityExclusion, error) {
	rows, err := q.Query(ctx, `SELECT `+exclusionColumns+` FROM centre_activity_exclusion ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list centre activity exclusions: %w", err)
	}
	defer rows.Close()

	var out []models.CentreActivityExclusion
	for rows.Next() {
		e, err := scanExclusion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan centre activity exclusion: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func scanCentreActivity(row pgx.Row) (*models.CentreActivity, error) {
	var ca models.CentreActivity
	err := row.Scan(
		&ca.ID,
		&ca.ActivityID,
		&ca.Active,
		&ca.IsDeleted,
		&ca.IsCompulsory,
		&ca.IsFixed,
		&ca.IsGroup,
		&ca.StartDate,
		&ca.EndDate,
		&ca.MinDuration,
		&ca.MaxDuration,
		&ca.MinPeopleReq,
		&ca.FixedTimeSlots,
		&ca.CreatedDate,
		&ca.ModifiedDate,
		&ca.CreatedByID,
		&ca.ModifiedByID,
	)
	if err != nil {
		return nil, err
	}
	return &ca, nil
}

func scanPreference(row pgx.Row) (*models.CentreActivityPreference, error) {
	var p models.CentreActivityPreference
	err := row.Scan(
		&p.ID,
		&p.CentreActivityID,
		&p.PatientID,
		&p.IsLike,
		&p.IsDeleted,
		&p.CreatedDate,
		&p.ModifiedDate,
		&p.CreatedByID,
		&p.ModifiedByID,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanRecommendation(row pgx.Row) (*models.CentreActivityRecommendation, error) {
	var rec models.CentreActivityRecommendation
	err := row.Scan(
		&rec.ID,
		&rec.CentreActivityID,
		&rec.PatientID,
		&rec.DoctorID,
		&rec.DoctorRecommendation,
		&rec.DoctorRemarks,
		&rec.IsDeleted,
		&rec.CreatedDate,
		&rec.ModifiedDate,
		&rec.CreatedByID,
		&rec.ModifiedByID,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func scanExclusion(row pgx.Row) (*models.CentreActivityExclusion, error) {
	var e models.CentreActivityExclusion
	err := row.Scan(
		&e.ID,
		&e.CentreActivityID,
		&e.PatientID,
		&e.IsDeleted,
		&e.ExclusionRemarks,
		&e.StartDate,
		&e.EndDate,
		&e.CreatedDate,
		&e.ModifiedDate,
		&e.CreatedByID,
		&e.ModifiedByID,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
