package refpatient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/carewell/activity-service/go/internal/models"
	"github.com/carewell/activity-service/go/internal/sqlutil"
)

// ErrNotFound is returned when no patient row matches.
var ErrNotFound = errors.New("ref patient not found")

// Repository provides REF_PATIENT data access. Methods take a Querier so
// writes can join the message-processing transaction.
type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

const patientColumns = `id, name, preferred_name, update_bit, start_date, end_date, is_active, is_deleted, created_date, modified_date, created_by_id, modified_by_id`

// Get fetches a patient. Soft-deleted rows are excluded unless
// includeDeleted is set, which sync processing needs to converge state.
func (r *Repository) Get(ctx context.Context, q sqlutil.Querier, id int64, includeDeleted bool) (*models.RefPatient, error) {
	query := `SELECT ` + patientColumns + ` FROM ref_patient WHERE id = $1`
	if !includeDeleted {
		query += ` AND is_deleted = '0'`
	}

	patient, err := scanPatient(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get ref patient: %w", err)
	}
	return patient, nil
}

const insertPatientQuery = `
INSERT INTO ref_patient (` + patientColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

// Insert writes a patient row with the id assigned by the source service.
func (r *Repository) Insert(ctx context.Context, q sqlutil.Querier, params CreateRefPatientParams) error {
	_, err := q.Exec(ctx, insertPatientQuery,
		params.ID,
		params.Name,
		params.PreferredName,
		params.UpdateBit,
		params.StartDate,
		params.EndDate,
		params.IsActive,
		params.IsDeleted,
		params.CreatedDate,
		params.ModifiedDate,
		params.CreatedByID,
		params.ModifiedByID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert ref patient: %w", err)
	}
	return nil
}

// Update applies the non-nil fields of params. Returns ErrNotFound when the
// row does not exist (soft-deleted rows are still updatable for syncs).
func (r *Repository) Update(ctx context.Context, q sqlutil.Querier, id int64, params UpdateRefPatientParams) error {
	sets := make([]string, 0, 9)
	args := make([]any, 0, 10)

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if params.Name != nil {
		add("name", *params.Name)
	}
	if params.PreferredName != nil {
		add("preferred_name", *params.PreferredName)
	}
	if params.UpdateBit != nil {
		add("update_bit", *params.UpdateBit)
	}
	if params.StartDate != nil {
		add("start_date", *params.StartDate)
	}
	if params.EndDate != nil {
		add("end_date", *params.EndDate)
	}
	if params.IsActive != nil {
		add("is_active", *params.IsActive)
	}
	if params.IsDeleted != nil {
		add("is_deleted", *params.IsDeleted)
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
	query := fmt.Sprintf("UPDATE ref_patient SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))

	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update ref patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const softDeletePatientQuery = `
UPDATE ref_patient
SET is_deleted = '1', modified_date = $2, modified_by_id = $3
WHERE id = $1 AND is_deleted = '0'`

// SoftDelete marks a patient deleted. Deleting an already-deleted or absent
// row returns ErrNotFound.
func (r *Repository) SoftDelete(ctx context.Context, q sqlutil.Querier, id int64, params DeleteRefPatientParams) error {
	tag, err := q.Exec(ctx, softDeletePatientQuery, id, params.ModifiedDate, params.ModifiedByID)
	if err != nil {
		return fmt.Errorf("failed to delete ref patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPatient(row pgx.Row) (*models.RefPatient, error) {
	var p models.RefPatient
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.PreferredName,
		&p.UpdateBit,
		&p.StartDate,
		&p.EndDate,
		&p.IsActive,
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
