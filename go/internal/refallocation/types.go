package refallocation

import "time"

// CreateRefAllocationParams is the full local allocation state for an insert.
type CreateRefAllocationParams struct {
	ID              int64
	Active          string
	IsDeleted       string
	PatientID       int64
	DoctorID        string
	GameTherapistID string
	SupervisorID    string
	CaregiverID     string
	TempDoctorID    *string
	TempCaregiverID *string
	CreatedDate     time.Time
	ModifiedDate    time.Time
	CreatedByID     *string
	ModifiedByID    *string
}

// UpdateRefAllocationParams carries only the fields present in the source
// message; nil fields are left untouched.
type UpdateRefAllocationParams struct {
	Active          *string
	IsDeleted       *string
	PatientID       *int64
	DoctorID        *string
	GameTherapistID *string
	SupervisorID    *string
	CaregiverID     *string
	TempDoctorID    *string
	TempCaregiverID *string
	ModifiedDate    *time.Time
	ModifiedByID    *string
}

// DeleteRefAllocationParams records who soft-deleted the row and when.
type DeleteRefAllocationParams struct {
	ModifiedDate time.Time
	ModifiedByID string
}
