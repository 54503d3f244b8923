package mappers

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/carewell/activity-service/go/internal/refpatient"
)

// sourceDefault attributes rows when the source omits authorship fields.
const sourceDefault = "patient_service"

// patientSource mirrors the patient service's camelCase payload. Fields the
// activity service does not track (nric, address, contact numbers and so on)
// simply have no mapping here.
type patientSource struct {
	ID            *int64    `json:"id"`
	Name          *string   `json:"name"`
	PreferredName *string   `json:"preferredName"`
	IsActive      *Bit      `json:"isActive"`
	IsDeleted     *Bit      `json:"isDeleted"`
	UpdateBit     *Bit      `json:"updateBit"`
	StartDate     *FlexTime `json:"startDate"`
	EndDate       *FlexTime `json:"endDate"`
	CreatedDate   *FlexTime `json:"createdDate"`
	ModifiedDate  *FlexTime `json:"modifiedDate"`
	CreatedByID   *string   `json:"createdById"`
	ModifiedByID  *string   `json:"modifiedById"`
}

func parsePatientSource(data json.RawMessage) (*patientSource, error) {
	var src patientSource
	if err := json.Unmarshal(data, &src); err != nil {
		return nil, fmt.Errorf("unmappable patient payload: %w", err)
	}
	return &src, nil
}

// MapPatientCreate maps a full patient payload onto create params, applying
// the replica's defaults for omitted flags and dates. Missing id or name
// makes the payload unmappable.
func MapPatientCreate(data json.RawMessage) (*refpatient.CreateRefPatientParams, error) {
	src, err := parsePatientSource(data)
	if err != nil {
		return nil, err
	}
	if src.ID == nil || src.Name == nil || *src.Name == "" {
		return nil, fmt.Errorf("patient payload missing required id or name")
	}

	now := time.Now().UTC()
	params := refpatient.CreateRefPatientParams{
		ID:           *src.ID,
		Name:         *src.Name,
		UpdateBit:    "1",
		StartDate:    now,
		IsActive:     "1",
		IsDeleted:    "0",
		CreatedDate:  now,
		ModifiedDate: now,
		CreatedByID:  ptr(sourceDefault),
		ModifiedByID: ptr(sourceDefault),
	}

	params.PreferredName = src.PreferredName
	if src.IsActive != nil {
		params.IsActive = src.IsActive.Or("1")
	}
	if src.IsDeleted != nil {
		params.IsDeleted = src.IsDeleted.Or("0")
	}
	if src.UpdateBit != nil {
		params.UpdateBit = src.UpdateBit.Or("1")
	}
	if src.StartDate != nil {
		params.StartDate = src.StartDate.Or(now)
	}
	if src.EndDate != nil {
		params.EndDate = src.EndDate.Ptr()
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

// MapPatientUpdate maps only the fields present in the payload. A payload
// with no mappable fields is unmappable.
func MapPatientUpdate(data json.RawMessage) (*refpatient.UpdateRefPatientParams, error) {
	src, err := parsePatientSource(data)
	if err != nil {
		return nil, err
	}

	var params refpatient.UpdateRefPatientParams
	mapped := false

	if src.Name != nil {
		params.Name = src.Name
		mapped = true
	}
	if src.PreferredName != nil {
		params.PreferredName = src.PreferredName
		mapped = true
	}
	if src.IsActive != nil {
		params.IsActive = ptr(src.IsActive.Or("1"))
		mapped = true
	}
	if src.IsDeleted != nil {
		params.IsDeleted = ptr(src.IsDeleted.Or("0"))
		mapped = true
	}
	if src.UpdateBit != nil {
		params.UpdateBit = ptr(src.UpdateBit.Or("1"))
		mapped = true
	}
	if src.StartDate != nil && src.StartDate.Valid {
		params.StartDate = src.StartDate.Ptr()
		mapped = true
	}
	if src.EndDate != nil && src.EndDate.Valid {
		params.EndDate = src.EndDate.Ptr()
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
		return nil, fmt.Errorf("patient update payload has no mappable fields")
	}
	if params.ModifiedByID == nil {
		params.ModifiedByID = ptr(sourceDefault)
	}
	return &params, nil
}

func ptr[T any](v T) *T {
	return &v
}
