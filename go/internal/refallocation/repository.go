package refallocation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/carewell/activity-service/go/internal/models"
	"github.com/carewell/activity-service/go/internal/sqlutil"
)

// ErrNotFound is returned when no allocation row matches.
var ErrNotFound = errors.New("ref patient allocation not found")

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

const allocationColumns = `id, active, is_deleted, patient_id, doctor_id, game_therapist_id, supervisor_id, caregiver_id, temp_doctor_id, temp_caregiver_id, created_date, modified_date, created_by_id, modified_by_id`

func (r *Repository) Get(ctx context.Context, q sqlutil.Querier, id int64, includeDeleted bool) (*models.RefPatientAllocation, error) {
	query := `SELECT ` + allocationColumns + ` FROM ref_patient_allocation WHERE id = $1`
	if !includeDeleted {
		query += ` AND is_deleted = '0'`
	}

	allocation, err := scanAllocation(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get ref patient allocation: %w", err)
	}
	return allocation, nil
}

const insertAllocationQuery = `
INSERT INTO ref_patient_allocation (` + allocationColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

func (r *Repository) Insert(ctx context.Context, q sqlutil.Querier, params CreateRefAllocationParams) error {
	_, err := q.Exec(ctx, insertAllocationQuery,
		params.ID,
		params.Active,
		params.IsDeleted,
		params.PatientID,
		params.DoctorID,
		params.GameTherapistID,
		params.SupervisorID,
		params.CaregiverID,
		params.TempDoctorID,
		params.TempCaregiverID,
		params.CreatedDate,
		params.ModifiedDate,
		params.CreatedByID,
		params.ModifiedByID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert ref patient allocation: %w", err)
	}
	return nil
}

// Update applies the non-nil fields of params.
func (r *Repository) Update(ctx context.Context, q sqlutil.Querier, id int64, params UpdateRefAllocationParams) error {
	sets := make([]string, 0, 11)
	args := make([]any, 0, 12)

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if params.Active != nil {
		add("active", *params.Active)
	}
	if params.IsDeleted != nil {
		add("is_deleted", *params.IsDeleted)
	}
	if params.PatientID != nil {
		add("patient_id", *params.PatientID)
	}
	if params.DoctorID != nil {
		add("doctor_id", *params.DoctorID)
	}
	if params.GameTherapistID != nil {
		add("game_therapist_id", *params.GameTherapistID)
	}
	if params.SupervisorID != nil {
		add("supervisor_id", *params.SupervisorID)
	}
	if params.CaregiverID != nil {
		add("caregiver_id", *params.CaregiverID)
	}
	if params.TempDoctorID != nil {
		add("temp_doctor_id", *params.TempDoctorID)
	}
	if params.TempCaregiverID != nil {
		add("temp_caregiver_id", *params.TempCaregiverID)
	}
	if params.ModifiedDate != nil {
		add("modified_date", *params.ModifiedDate)
	}
	if params.ModifiedByID != nil {
		add("modified_by_id", *params.ModifiedByID)
	}

	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE ref_patient_allocation SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))

	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update ref patient allocation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const softDeleteAllocationQuery = `
UPDATE ref_patient_allocation
SET is_deleted = '1', modified_date = $2, modified_by_id = $3
WHERE id = $1 AND is_deleted = '0'`

func (r *Repository) SoftDelete(ctx context.Context, q sqlutil.Querier, id int64, params DeleteRefAllocationParams) error {
	tag, err := q.Exec(ctx, softDeleteAllocationQuery, id, params.ModifiedDate, params.ModifiedByID)
	if err != nil {
		return fmt.Errorf("failed to delete ref patient allocation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAllocation(row pgx.Row) (*models.RefPatientAllocation, error) {
	var a models.RefPatientAllocation
	err := row.Scan(
		&a.ID,
		&a.Active,
		&a.IsDeleted,
		&a.PatientID,
		&a.DoctorID,
		&a.GameTherapistID,
		&a.SupervisorID,
		&a.CaregiverID,
		&a.TempDoctorID,
		&a.TempCaregiverID,
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
