package refpatient

import "time"

// CreateRefPatientParams is the full local patient state for an insert.
// Flag fields carry the source system's "0"/"1" encoding.
type CreateRefPatientParams struct {
	ID            int64
	Name          string
	PreferredName *string
	UpdateBit     string
	StartDate     time.Time
	EndDate       *time.Time
	IsActive      string
	IsDeleted     string
	CreatedDate   time.Time
	ModifiedDate  time.Time
	CreatedByID   *string
	ModifiedByID  *string
}

// UpdateRefPatientParams carries only the fields present in the source
// message; nil fields are left untouched.
type UpdateRefPatientParams struct {
	Name          *string
	PreferredName *string
	UpdateBit     *string
	StartDate     *time.Time
	EndDate       *time.Time
	IsActive      *string
	IsDeleted     *string
	ModifiedDate  *time.Time
	ModifiedByID  *string
}

// DeleteRefPatientParams records who soft-deleted the row and when.
type DeleteRefPatientParams struct {
	ModifiedDate time.Time
	ModifiedByID string
}
