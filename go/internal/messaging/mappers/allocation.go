package mappers

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/carewell/activity-service/go/internal/refallocation"
)

// allocationSource mirrors the patient service's allocation payload. Note
// the authorship keys arrive PascalCased; guardian fields are not tracked.
type allocationSource struct {
	ID              *int64      `json:"id"`
	Active          *string     `json:"active"`
	IsDeleted       *Bit        `json:"isDeleted"`
	PatientID       *int64      `json:"patientId"`
	DoctorID        *FlexString `json:"doctorId"`
	GameTherapistID *FlexString `json:"gameTherapistId"`
	SupervisorID    *FlexString `json:"supervisorId"`
	CaregiverID     *FlexString `json:"caregiverId"`
	TempDoctorID    *FlexString `json:"tempDoctorId"`
	TempCaregiverID *FlexString `json:"tempCaregiverId"`
	CreatedDate     *FlexTime   `json:"createdDate"`
	ModifiedDate    *FlexTime   `json:"modifiedDate"`
	CreatedByID     *string     `json:"CreatedById"`
	ModifiedByID    *string     `json:"ModifiedById"`
}

func parseAllocationSource(data json.RawMessage) (*allocationSource, error) {
	var src allocationSource
	if err := json.Unmarshal(data, &src); err != nil {
		return nil, fmt.Errorf("unmappable allocation payload: %w", err)
	}
	return &src, nil
}

// MapAllocationCreate maps a full allocation payload onto create params.
// The id, patient and the four care-team roles are required.
func MapAllocationCreate(data json.RawMessage) (*refallocation.CreateRefAllocationParams, error) {
	src, err := parseAllocationSource(data)
	if err != nil {
		return nil, err
	}
	if src.ID == nil || src.PatientID == nil ||
		src.DoctorID == nil || src.GameTherapistID == nil ||
		src.SupervisorID == nil || src.CaregiverID == nil {
		return nil, fmt.Errorf("allocation payload missing required fields")
	}

	now := time.Now().UTC()
	params := refallocation.CreateRefAllocationParams{
		ID:              *src.ID,
		Active:          "Y",
		IsDeleted:       "0",
		PatientID:       *src.PatientID,
		DoctorID:        string(*src.DoctorID),
		GameTherapistID: string(*src.GameTherapistID),
		SupervisorID:    string(*src.SupervisorID),
		CaregiverID:     string(*src.CaregiverID),
		CreatedDate:     now,
		ModifiedDate:    now,
		CreatedByID:     ptr(sourceDefault),
		ModifiedByID:    ptr(sourceDefault),
	}

	if src.Active != nil {
		params.Active = *src.Active
	}
	if src.IsDeleted != nil {
		params.IsDeleted = src.IsDeleted.Or("0")
	}
	if src.TempDoctorID != nil {
		params.TempDoctorID = ptr(string(*src.TempDoctorID))
	}
	if src.TempCaregiverID != nil {
		params.TempCaregiverID = ptr(string(*src.TempCaregiverID))
	}
	if src.CreatedDate != nil {
		params.CreatedDate = src.CreatedDate.Or(now)
	}
	if src.ModifiedDate != nil {
		params.ModifiedDate = src.ModifiedDate.Or(now)
	}
	if src.CreatedByID != nil {
		params.CreatedByID = src.CreatedByID
	}
	if src.ModifiedByID != nil {
		params.ModifiedByID = src.ModifiedByID
	}

	return &params, nil
}

// MapAllocationUpdate maps only the fields present in the payload.
func MapAllocationUpdate(data json.RawMessage) (*refallocation.UpdateRefAllocationParams, error) {
	src, err := parseAllocationSource(data)
	if err != nil {
		return nil, err
	}

	var params refallocation.UpdateRefAllocationParams
	mapped := false

	if src.Active != nil {
		params.Active = src.Active
		mapped = true
	}
	if src.IsDeleted != nil {
		params.IsDeleted = ptr(src.IsDeleted.Or("0"))
		mapped = true
	}
	if src.PatientID != nil {
		params.PatientID = src.PatientID
		mapped = true
	}
	if src.DoctorID != nil {
		params.DoctorID = ptr(string(*src.DoctorID))
		mapped = true
	}
	if src.GameTherapistID != nil {
		params.GameTherapistID = ptr(string(*src.GameTherapistID))
		mapped = true
	}
	if src.SupervisorID != nil {
		params.SupervisorID = ptr(string(*src.SupervisorID))
		mapped = true
	}
	if src.CaregiverID != nil {
		params.CaregiverID = ptr(string(*src.CaregiverID))
		mapped = true
	}
	if src.TempDoctorID != nil {
		params.TempDoctorID = ptr(string(*src.TempDoctorID))
		mapped = true
	}
	if src.TempCaregiverID != nil {
		params.TempCaregiverID = ptr(string(*src.TempCaregiverID))
		mapped = true
	}
	if src.ModifiedDate != nil && src.ModifiedDate.Valid {
		params.ModifiedDate = src.ModifiedDate.Ptr()
		mapped = true
	}
	if src.ModifiedByID != nil {
		params.ModifiedByID = src.ModifiedByID
		mapped = true
	}

	if !mapped {
		return nil, fmt.Errorf("allocation update payload has no mappable fields")
	}
	if params.ModifiedByID == nil {
		params.ModifiedByID = ptr(sourceDefault)
	}
	return &params, nil
}
