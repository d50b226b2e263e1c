package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/GraminSeva/TriageLine/internal/models"
)

// sqlStore holds the queries shared by the SQLite and PostgreSQL
// backends. The placeholder function abstracts over "?" versus "$n".
type sqlStore struct {
	db *sql.DB
	ph func(int) string
}

func questionPlaceholder(int) string { return "?" }

func dollarPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }

func (s *sqlStore) GetSession(id string) (*models.Session, error) {
	query := fmt.Sprintf(`SELECT id, language, last_intent, last_urgency, last_care_level,
		last_facility_type, last_known_location_text, last_known_pincode, last_doctor_id,
		clarify_count, triage_count, created_at, last_active
		FROM sessions WHERE id = %s`, s.ph(1))
	session, err := scanSession(s.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error("Store.GetSession: query failed", "error", err, "sessionID", id)
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	return session, nil
}

func (s *sqlStore) SaveSession(session *models.Session) error {
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.LastActiveAt = now

	query := fmt.Sprintf(`INSERT INTO sessions
		(id, language, last_intent, last_urgency, last_care_level, last_facility_type,
		 last_known_location_text, last_known_pincode, last_doctor_id,
		 clarify_count, triage_count, created_at, last_active)
		VALUES (%s)
		ON CONFLICT (id) DO UPDATE SET
		 language = EXCLUDED.language,
		 last_intent = EXCLUDED.last_intent,
		 last_urgency = EXCLUDED.last_urgency,
		 last_care_level = EXCLUDED.last_care_level,
		 last_facility_type = EXCLUDED.last_facility_type,
		 last_known_location_text = EXCLUDED.last_known_location_text,
		 last_known_pincode = EXCLUDED.last_known_pincode,
		 last_doctor_id = EXCLUDED.last_doctor_id,
		 clarify_count = EXCLUDED.clarify_count,
		 triage_count = EXCLUDED.triage_count,
		 last_active = EXCLUDED.last_active`, placeholderList(s.ph, 1, 13))
	_, err := s.db.Exec(query,
		session.ID, session.Language, string(session.LastIntent),
		nilIfEmpty(string(session.LastUrgency)), nilIfEmpty(string(session.LastCareLevel)),
		nilIfEmpty(session.LastFacilityType), nilIfEmpty(session.LastKnownLocationText),
		nilIfEmpty(session.LastKnownPincode), nilIfZero(session.LastDoctorID),
		session.ClarifyCount, session.TriageCount, session.CreatedAt, session.LastActiveAt,
	)
	if err != nil {
		slog.Error("Store.SaveSession: upsert failed", "error", err, "sessionID", session.ID)
		return fmt.Errorf("failed to save session %s: %w", session.ID, err)
	}
	slog.Debug("Store.SaveSession: session saved", "sessionID", session.ID, "lastIntent", session.LastIntent)
	return nil
}

func (s *sqlStore) AddTriageLog(entry models.TriageLogEntry) error {
	query := fmt.Sprintf(`INSERT INTO triage_logs
		(session_id, input_text, language, urgency, care_level, reason_codes, llm_used, fallback_used, created_at)
		VALUES (%s)`, placeholderList(s.ph, 1, 9))
	_, err := s.db.Exec(query,
		entry.SessionID, entry.InputText, entry.Language,
		string(entry.Urgency), string(entry.CareLevel),
		marshalReasonCodes(entry.ReasonCodes), entry.LLMUsed, entry.Fallback,
		time.Now().UTC(),
	)
	if err != nil {
		slog.Error("Store.AddTriageLog: insert failed", "error", err, "sessionID", entry.SessionID)
		return fmt.Errorf("failed to insert triage log: %w", err)
	}
	return nil
}

func (s *sqlStore) ListFacilitiesByTypes(types []string) ([]models.Facility, error) {
	if len(types) == 0 {
		return []models.Facility{}, nil
	}
	args := make([]interface{}, len(types))
	marks := make([]string, len(types))
	for i, t := range types {
		args[i] = t
		marks[i] = s.ph(i + 1)
	}
	query := fmt.Sprintf(`SELECT id, name, type, address, phone, lat, lon
		FROM facilities WHERE type IN (%s) ORDER BY type, name`, strings.Join(marks, ", "))
	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("Store.ListFacilitiesByTypes: query failed", "error", err, "types", types)
		return nil, fmt.Errorf("failed to query facilities: %w", err)
	}
	defer rows.Close()

	var facilities []models.Facility
	for rows.Next() {
		var f models.Facility
		var address, phone sql.NullString
		var lat, lon sql.NullFloat64
		if err := rows.Scan(&f.ID, &f.Name, &f.Type, &address, &phone, &lat, &lon); err != nil {
			return nil, fmt.Errorf("failed to scan facility row: %w", err)
		}
		f.Address = address.String
		f.Phone = phone.String
		f.Lat = lat.Float64
		f.Lon = lon.Float64
		facilities = append(facilities, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate facility rows: %w", err)
	}
	slog.Debug("Store.ListFacilitiesByTypes: query succeeded", "types", types, "count", len(facilities))
	return facilities, nil
}

func (s *sqlStore) ListDoctorsByFacilityTypes(types []string, limit int) ([]models.Doctor, error) {
	if len(types) == 0 {
		return []models.Doctor{}, nil
	}
	args := make([]interface{}, 0, len(types)+1)
	marks := make([]string, len(types))
	for i, t := range types {
		args = append(args, t)
		marks[i] = s.ph(i + 1)
	}
	args = append(args, limit)
	query := fmt.Sprintf(`SELECT d.id, d.name, d.specialty, f.type, f.name, d.rating
		FROM doctors d JOIN facilities f ON f.id = d.facility_id
		WHERE f.type IN (%s) ORDER BY d.rating DESC, d.name LIMIT %s`,
		strings.Join(marks, ", "), s.ph(len(types)+1))
	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("Store.ListDoctorsByFacilityTypes: query failed", "error", err, "types", types)
		return nil, fmt.Errorf("failed to query doctors: %w", err)
	}
	defer rows.Close()

	var doctors []models.Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		doctors = append(doctors, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate doctor rows: %w", err)
	}
	return doctors, nil
}

func (s *sqlStore) GetDoctor(id int64) (*models.Doctor, error) {
	query := fmt.Sprintf(`SELECT d.id, d.name, d.specialty, f.type, f.name, d.rating
		FROM doctors d JOIN facilities f ON f.id = d.facility_id WHERE d.id = %s`, s.ph(1))
	var d models.Doctor
	err := s.db.QueryRow(query, id).Scan(&d.ID, &d.Name, &d.Specialty, &d.FacilityType, &d.FacilityName, &d.Rating)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error("Store.GetDoctor: query failed", "error", err, "doctorID", id)
		return nil, fmt.Errorf("failed to get doctor %d: %w", id, err)
	}
	return &d, nil
}

func (s *sqlStore) ListAvailableSlots(doctorID int64, limit int) ([]models.Slot, error) {
	query := fmt.Sprintf(`SELECT id, doctor_id, slot_date, slot_time, is_available
		FROM slots WHERE doctor_id = %s AND is_available = %s
		ORDER BY slot_date, slot_time LIMIT %s`, s.ph(1), s.ph(2), s.ph(3))
	rows, err := s.db.Query(query, doctorID, true, limit)
	if err != nil {
		slog.Error("Store.ListAvailableSlots: query failed", "error", err, "doctorID", doctorID)
		return nil, fmt.Errorf("failed to query slots for doctor %d: %w", doctorID, err)
	}
	defer rows.Close()

	var slots []models.Slot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate slot rows: %w", err)
	}
	return slots, nil
}

// BookAppointment reserves the slot and records the appointment in one
// transaction. The UPDATE guards on is_available so a concurrent
// booking loses with zero rows affected rather than double-booking.
func (s *sqlStore) BookAppointment(sessionID string, doctorID, slotID int64) (*models.Booking, error) {
	doctor, err := s.GetDoctor(doctorID)
	if err != nil {
		return nil, err
	}
	if doctor == nil {
		return nil, models.ErrDoctorNotFound
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin booking transaction: %w", err)
	}
	defer tx.Rollback()

	update := fmt.Sprintf(`UPDATE slots SET is_available = %s
		WHERE id = %s AND doctor_id = %s AND is_available = %s`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4))
	res, err := tx.Exec(update, false, slotID, doctorID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve slot %d: %w", slotID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check slot reservation: %w", err)
	}
	if affected == 0 {
		slog.Warn("Store.BookAppointment: slot conflict", "slotID", slotID, "doctorID", doctorID)
		return nil, models.ErrSlotUnavailable
	}

	var slot models.Slot
	slotQuery := fmt.Sprintf(`SELECT id, doctor_id, slot_date, slot_time, is_available
		FROM slots WHERE id = %s`, s.ph(1))
	if err := tx.QueryRow(slotQuery, slotID).Scan(&slot.ID, &slot.DoctorID, &slot.SlotDate, &slot.SlotTime, &slot.IsAvailable); err != nil {
		return nil, fmt.Errorf("failed to load reserved slot %d: %w", slotID, err)
	}

	appointmentID := newAppointmentID()
	insert := fmt.Sprintf(`INSERT INTO appointments (id, session_id, doctor_id, slot_id, status, created_at)
		VALUES (%s)`, placeholderList(s.ph, 1, 6))
	if _, err := tx.Exec(insert, appointmentID, sessionID, doctorID, slotID, "CONFIRMED", time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to insert appointment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit booking: %w", err)
	}
	slog.Info("Store.BookAppointment: appointment confirmed",
		"appointmentID", appointmentID, "doctorID", doctorID, "slotID", slotID)
	return &models.Booking{
		AppointmentID: appointmentID,
		Status:        "CONFIRMED",
		Doctor:        *doctor,
		Slot:          slot,
	}, nil
}

func (s *sqlStore) ListAppointmentsByDate(date string) ([]models.Appointment, error) {
	query := fmt.Sprintf(`SELECT a.id, a.session_id, a.status,
		d.id, d.name, d.specialty, f.type, f.name, d.rating,
		sl.id, sl.doctor_id, sl.slot_date, sl.slot_time, sl.is_available
		FROM appointments a
		JOIN slots sl ON sl.id = a.slot_id
		JOIN doctors d ON d.id = a.doctor_id
		JOIN facilities f ON f.id = d.facility_id
		WHERE sl.slot_date = %s AND a.status = %s
		ORDER BY sl.slot_time, a.id`, s.ph(1), s.ph(2))
	rows, err := s.db.Query(query, date, "CONFIRMED")
	if err != nil {
		slog.Error("Store.ListAppointmentsByDate: query failed", "error", err, "date", date)
		return nil, fmt.Errorf("failed to query appointments for %s: %w", date, err)
	}
	defer rows.Close()

	var appointments []models.Appointment
	for rows.Next() {
		var a models.Appointment
		if err := rows.Scan(&a.AppointmentID, &a.SessionID, &a.Status,
			&a.Doctor.ID, &a.Doctor.Name, &a.Doctor.Specialty, &a.Doctor.FacilityType, &a.Doctor.FacilityName, &a.Doctor.Rating,
			&a.Slot.ID, &a.Slot.DoctorID, &a.Slot.SlotDate, &a.Slot.SlotTime, &a.Slot.IsAvailable); err != nil {
			return nil, fmt.Errorf("failed to scan appointment row: %w", err)
		}
		appointments = append(appointments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate appointment rows: %w", err)
	}
	return appointments, nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
