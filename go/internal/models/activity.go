package models

import "time"

// Activity is the producer-side scheduling entity. Rows are soft-deleted;
// IsDeleted stays queryable so sync events can republish full state.
type Activity struct {
	ID           int64      `json:"id"`
	Active       bool       `json:"active"`
	IsDeleted    bool       `json:"is_deleted"`
	Title        string     `json:"title"`
	Description  *string    `json:"description,omitempty"`
	StartDate    time.Time  `json:"start_date"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	CreatedDate  time.Time  `json:"created_date"`
	ModifiedDate time.Time  `json:"modified_date"`
	CreatedByID  *string    `json:"created_by_id,omitempty"`
	ModifiedByID *string    `json:"modified_by_id,omitempty"`
}

// CentreActivity binds an Activity to a care centre schedule.
type CentreActivity struct {
	ID             int64      `json:"id"`
	ActivityID     int64      `json:"activity_id"`
	Active         bool       `json:"active"`
	IsDeleted      bool       `json:"is_deleted"`
	IsCompulsory   bool       `json:"is_compulsory"`
	IsFixed        bool       `json:"is_fixed"`
	IsGroup        bool       `json:"is_group"`
	StartDate      *time.Time `json:"start_date,omitempty"`
	EndDate        *time.Time `json:"end_date,omitempty"`
	MinDuration    int32      `json:"min_duration"`
	MaxDuration    int32      `json:"max_duration"`
	MinPeopleReq   int32      `json:"min_people_req"`
	FixedTimeSlots *string    `json:"fixed_time_slots,omitempty"`
	CreatedDate    time.Time  `json:"created_date"`
	ModifiedDate   time.Time  `json:"modified_date"`
	CreatedByID    string     `json:"created_by_id"`
	ModifiedByID   string     `json:"modified_by_id"`
}

// CentreActivityPreference records a patient's like/dislike of a centre activity.
type CentreActivityPreference struct {
	ID               int64      `json:"id"`
	CentreActivityID int64      `json:"centre_activity_id"`
	PatientID        int64      `json:"patient_id"`
	IsLike           bool       `json:"is_like"`
	IsDeleted        bool       `json:"is_deleted"`
	CreatedDate      time.Time  `json:"created_date"`
	ModifiedDate     *time.Time `json:"modified_date,omitempty"`
	CreatedByID      string     `json:"created_by_id"`
	ModifiedByID     *string    `json:"modified_by_id,omitempty"`
}

// CentreActivityRecommendation records a doctor's recommendation for a patient.
// DoctorRecommendation is -1 (not recommended), 0 (neutral) or 1 (recommended).
type CentreActivityRecommendation struct {
	ID                   int64      `json:"id"`
	CentreActivityID     int64      `json:"centre_activity_id"`
	PatientID            int64      `json:"patient_id"`
	DoctorID             int64      `json:"doctor_id"`
	DoctorRecommendation int32      `json:"doctor_recommendation"`
	DoctorRemarks        *string    `json:"doctor_remarks,omitempty"`
	IsDeleted            bool       `json:"is_deleted"`
	CreatedDate          time.Time  `json:"created_date"`
	ModifiedDate         *time.Time `json:"modified_date,omitempty"`
	CreatedByID          string     `json:"created_by_id"`
	ModifiedByID         *string    `json:"modified_by_id,omitempty"`
}

// CentreActivityExclusion excludes a patient from a centre activity for a period.
type CentreActivityExclusion struct {
	ID               int64      `json:"id"`
	CentreActivityID int64      `json:"centre_activity_id"`
	PatientID        int64      `json:"patient_id"`
	IsDeleted        bool       `json:"is_deleted"`
	ExclusionRemarks *string    `json:"exclusion_remarks,omitempty"`
	StartDate        time.Time  `json:"start_date"`
	EndDate          *time.Time `json:"end_date,omitempty"`
	CreatedDate      time.Time  `json:"created_date"`
	ModifiedDate     time.Time  `json:"modified_date"`
	CreatedByID      *string    `json:"created_by_id,omitempty"`
	ModifiedByID     *string    `json:"modified_by_id,omitempty"`
}
