package activity

import "time"

// CreateActivityParams describes a new activity. CreatedByID falls back to
// the service identity when omitted.
type CreateActivityParams struct {
	Title       string
	Description *string
	StartDate   time.Time
	EndDate     *time.Time
	CreatedByID *string
}

// UpdateActivityParams applies only its non-nil fields.
type UpdateActivityParams struct {
	Active       *bool
	Title        *string
	Description  *string
	StartDate    *time.Time
	EndDate      *time.Time
	ModifiedByID *string
}
