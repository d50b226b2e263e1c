package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/GraminSeva/TriageLine/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// nilIfZero returns nil if n is zero, otherwise returns n.
func nilIfZero(n int64) interface{} {
	if n == 0 {
		return nil
	}
	return n
}

// marshalReasonCodes serializes reason codes for the triage_logs table.
func marshalReasonCodes(codes []string) string {
	if codes == nil {
		codes = []string{}
	}
	data, err := json.Marshal(codes)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// scanSession scans a Session from a single sql.Row.
func scanSession(row *sql.Row) (*models.Session, error) {
	var s models.Session
	var urgency, careLevel, facilityType, locationText, pincode sql.NullString
	var doctorID sql.NullInt64
	err := row.Scan(
		&s.ID, &s.Language, &s.LastIntent, &urgency, &careLevel, &facilityType,
		&locationText, &pincode, &doctorID, &s.ClarifyCount, &s.TriageCount,
		&s.CreatedAt, &s.LastActiveAt,
	)
	if err != nil {
		return nil, err
	}
	s.LastUrgency = models.Urgency(urgency.String)
	s.LastCareLevel = models.CareLevel(careLevel.String)
	s.LastFacilityType = facilityType.String
	s.LastKnownLocationText = locationText.String
	s.LastKnownPincode = pincode.String
	s.LastDoctorID = doctorID.Int64
	return &s, nil
}

// scanDoctor scans a Doctor joined with its facility from sql.Rows.
func scanDoctor(rows *sql.Rows) (models.Doctor, error) {
	var d models.Doctor
	if err := rows.Scan(&d.ID, &d.Name, &d.Specialty, &d.FacilityType, &d.FacilityName, &d.Rating); err != nil {
		return d, fmt.Errorf("scan doctor failed: %w", err)
	}
	return d, nil
}

// scanSlot scans a Slot from sql.Rows.
func scanSlot(rows *sql.Rows) (models.Slot, error) {
	var s models.Slot
	if err := rows.Scan(&s.ID, &s.DoctorID, &s.SlotDate, &s.SlotTime, &s.IsAvailable); err != nil {
		return s, fmt.Errorf("scan slot failed: %w", err)
	}
	return s, nil
}
