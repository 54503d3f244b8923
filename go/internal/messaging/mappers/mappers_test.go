package mappers

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBitDecodesMixedRepresentations(t *testing.T) {
	tests := []struct {
		name string
		json string
		want string
	}{
		{"bool true", `true`, "1"},
		{"bool false", `false`, "0"},
		{"string one", `"1"`, "1"},
		{"string yes", `"yes"`, "1"},
		{"string n", `"N"`, "0"},
		{"number", `1`, "1"},
		{"number zero", `0`, "0"},
		{"null", `null`, ""},
		{"garbage string", `"maybe"`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b Bit
			require.NoError(t, json.Unmarshal([]byte(tt.json), &b))
			assert.Equal(t, tt.want, string(b))
		})
	}
}

func TestFlexTimeAcceptsSourceFormats(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"rfc3339", `"2025-03-01T10:00:00Z"`},
		{"no zone", `"2025-03-01T10:00:00"`},
		{"space separator", `"2025-03-01 10:00:00"`},
		{"bare date", `"2025-03-01"`},
		{"micros", `"2025-03-01T10:00:00.123456"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ft FlexTime
			require.NoError(t, json.Unmarshal([]byte(tt.json), &ft))
			assert.True(t, ft.Valid)
			assert.Equal(t, 2025, ft.Time.Year())
		})
	}

	var ft FlexTime
	require.NoError(t, json.Unmarshal([]byte(`"not a time"`), &ft))
	assert.False(t, ft.Valid)
	assert.Nil(t, ft.Ptr())
}

func TestFlexStringDecodesNumbers(t *testing.T) {
	var f FlexString
	require.NoError(t, json.Unmarshal([]byte(`42`), &f))
	assert.Equal(t, "42", string(f))

	require.NoError(t, json.Unmarshal([]byte(`"D1001"`), &f))
	assert.Equal(t, "D1001", string(f))
}

func TestMapPatientCreateAppliesDefaults(t *testing.T) {
	payload := json.RawMessage(`{"id": 7, "name": "Alice Tan"}`)

	params, err := MapPatientCreate(payload)
	require.NoError(t, err)

	assert.Equal(t, int64(7), params.ID)
	assert.Equal(t, "Alice Tan", params.Name)
	assert.Equal(t, "1", params.UpdateBit)
	assert.Equal(t, "1", params.IsActive)
	assert.Equal(t, "0", params.IsDeleted)
	require.NotNil(t, params.CreatedByID)
	assert.Equal(t, "patient_service", *params.CreatedByID)
	assert.False(t, params.StartDate.IsZero())
	assert.Nil(t, params.EndDate)
}

func TestMapPatientCreateHonorsPayloadValues(t *testing.T) {
	payload := json.RawMessage(`{
		"id": 7,
		"name": "Alice Tan",
		"preferredName": "Alice",
		"isActive": false,
		"startDate": "2024-06-01",
		"createdById": "admin_1"
	}`)

	params, err := MapPatientCreate(payload)
	require.NoError(t, err)

	assert.Equal(t, "0", params.IsActive)
	require.NotNil(t, params.PreferredName)
	assert.Equal(t, "Alice", *params.PreferredName)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), params.StartDate)
	assert.Equal(t, "admin_1", *params.CreatedByID)
}

func TestMapPatientCreateRequiresIDAndName(t *testing.T) {
	_, err := MapPatientCreate(json.RawMessage(`{"name": "Alice"}`))
	assert.Error(t, err)

	_, err = MapPatientCreate(json.RawMessage(`{"id": 7, "name": ""}`))
	assert.Error(t, err)
}

func TestMapPatientUpdateOnlyMapsPresentFields(t *testing.T) {
	payload := json.RawMessage(`{"name": "Alice Tan-Lim", "isDeleted": "1"}`)

	params, err := MapPatientUpdate(payload)
	require.NoError(t, err)

	require.NotNil(t, params.Name)
	assert.Equal(t, "Alice Tan-Lim", *params.Name)
	require.NotNil(t, params.IsDeleted)
	assert.Equal(t, "1", *params.IsDeleted)
	assert.Nil(t, params.IsActive)
	assert.Nil(t, params.StartDate)
	require.NotNil(t, params.ModifiedByID)
	assert.Equal(t, "patient_service", *params.ModifiedByID)
}

func TestMapPatientUpdateRejectsEmptyPayload(t *testing.T) {
	_, err := MapPatientUpdate(json.RawMessage(`{"nric": "S1234567A"}`))
	assert.Error(t, err)
}

func TestMapAllocationCreateRequiresCareTeam(t *testing.T) {
	payload := json.RawMessage(`{
		"id": 3,
		"patientId": 7,
		"doctorId": 11,
		"gameTherapistId": "GT2",
		"supervisorId": "SV1"
	}`)

	_, err := MapAllocationCreate(payload)
	assert.Error(t, err, "caregiverId missing")
}

func TestMapAllocationCreateNormalizesIDs(t *testing.T) {
	payload := json.RawMessage(`{
		"id": 3,
		"patientId": 7,
		"doctorId": 11,
		"gameTherapistId": "GT2",
		"supervisorId": "SV1",
		"caregiverId": "CG4",
		"isDeleted": false,
		"ModifiedById": "supervisor_2"
	}`)

	params, err := MapAllocationCreate(payload)
	require.NoError(t, err)

	assert.Equal(t, int64(3), params.ID)
	assert.Equal(t, int64(7), params.PatientID)
	assert.Equal(t, "11", params.DoctorID)
	assert.Equal(t, "GT2", params.GameTherapistID)
	assert.Equal(t, "Y", params.Active)
	assert.Equal(t, "0", params.IsDeleted)
	require.NotNil(t, params.ModifiedByID)
	assert.Equal(t, "supervisor_2", *params.ModifiedByID)
	require.NotNil(t, params.CreatedByID)
	assert.Equal(t, "patient_service", *params.CreatedByID)
	assert.Nil(t, params.TempDoctorID)
}

func TestMapAllocationUpdateOnlyMapsPresentFields(t *testing.T) {
	payload := json.RawMessage(`{"doctorId": 15, "tempCaregiverId": "CG9"}`)

	params, err := MapAllocationUpdate(payload)
	require.NoError(t, err)

	require.NotNil(t, params.DoctorID)
	assert.Equal(t, "15", *params.DoctorID)
	require.NotNil(t, params.TempCaregiverID)
	assert.Equal(t, "CG9", *params.TempCaregiverID)
	assert.Nil(t, params.CaregiverID)
	assert.Nil(t, params.Active)
}
