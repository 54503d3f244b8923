package models

import "time"

// RefPatient is the local replica of the patient service's patient record.
// The source system encodes flags as "0"/"1" strings; the mapper converts
// them before rows reach this type.
type RefPatient struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	PreferredName *string    `json:"preferred_name,omitempty"`
	UpdateBit     string     `json:"update_bit"`
	StartDate     time.Time  `json:"start_date"`
	EndDate       *time.Time `json:"end_date,omitempty"`
	IsActive      string     `json:"is_active"`
	IsDeleted     string     `json:"is_deleted"`
	CreatedDate   time.Time  `json:"created_date"`
	ModifiedDate  time.Time  `json:"modified_date"`
	CreatedByID   *string    `json:"created_by_id,omitempty"`
	ModifiedByID  *string    `json:"modified_by_id,omitempty"`
}

// RefPatientAllocation is the local replica of a patient's care-team allocation.
type RefPatientAllocation struct {
	ID              int64     `json:"id"`
	Active          string    `json:"active"`
	IsDeleted       string    `json:"is_deleted"`
	PatientID       int64     `json:"patient_id"`
	DoctorID        string    `json:"doctor_id"`
	GameTherapistID string    `json:"game_therapist_id"`
	SupervisorID    string    `json:"supervisor_id"`
	CaregiverID     string    `json:"caregiver_id"`
	TempDoctorID    *string   `json:"temp_doctor_id,omitempty"`
	TempCaregiverID *string   `json:"temp_caregiver_id,omitempty"`
	CreatedDate     time.Time `json:"created_date"`
	ModifiedDate    time.Time `json:"modified_date"`
	CreatedByID     *string   `json:"created_by_id,omitempty"`
	ModifiedByID    *string   `json:"modified_by_id,omitempty"`
}
