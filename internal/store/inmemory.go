// Package store provides storage backends for TriageLine.
//
// This file implements an in-memory store used by tests and local
// experiments. It carries the same demo facilities, doctors, and slot
// generation as the SQL seed data.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/GraminSeva/TriageLine/internal/models"
)

// InMemoryStore is a mutex-guarded Store kept entirely in process.
type InMemoryStore struct {
	mu           sync.RWMutex
	sessions     map[string]models.Session
	facilities   []models.Facility
	doctors      []models.Doctor
	slots        map[int64]models.Slot
	logs         []models.TriageLogEntry
	appointments []models.Appointment

	facilityTypeByID map[int64]string
}

// NewInMemoryStore creates an in-memory store pre-seeded with the demo
// facilities, doctors, and three days of slots.
func NewInMemoryStore() *InMemoryStore {
	s := &InMemoryStore{
		sessions:         make(map[string]models.Session),
		slots:            make(map[int64]models.Slot),
		facilityTypeByID: make(map[int64]string),
	}
	s.seed()
	return s
}

func (s *InMemoryStore) seed() {
	s.facilities = []models.Facility{
		{ID: 1, Name: "Wagholi Primary Health Centre", Type: "PHC", Address: "Wagholi, Pune", Phone: "020-27051100", Lat: 18.5804, Lon: 73.9803},
		{ID: 2, Name: "Haveli Primary Health Centre", Type: "PHC", Address: "Haveli, Pune", Phone: "020-26892200", Lat: 18.4968, Lon: 73.8536},
		{ID: 3, Name: "Khed Community Health Centre", Type: "CHC", Address: "Khed, Pune", Phone: "02135-222333", Lat: 18.8380, Lon: 73.8770},
		{ID: 4, Name: "Shirur Community Health Centre", Type: "CHC", Address: "Shirur, Pune", Phone: "02138-222444", Lat: 18.8270, Lon: 74.3740},
		{ID: 5, Name: "Pune District Hospital", Type: "DISTRICT_HOSPITAL", Address: "Aundh, Pune", Phone: "020-27280101", Lat: 18.5590, Lon: 73.8070},
	}
	facilityNames := make(map[int64]string)
	for _, f := range s.facilities {
		s.facilityTypeByID[f.ID] = f.Type
		facilityNames[f.ID] = f.Name
	}
	seedDoctors := []struct {
		doctor     models.Doctor
		facilityID int64
	}{
		{models.Doctor{ID: 1, Name: "Dr. Asha Pawar", Specialty: "General Medicine", Rating: 4.6}, 1},
		{models.Doctor{ID: 2, Name: "Dr. Ramesh Kulkarni", Specialty: "General Medicine", Rating: 4.3}, 2},
		{models.Doctor{ID: 3, Name: "Dr. Sunita Bhosale", Specialty: "Pediatrics", Rating: 4.7}, 3},
		{models.Doctor{ID: 4, Name: "Dr. Vikram Jadhav", Specialty: "General Surgery", Rating: 4.2}, 4},
		{models.Doctor{ID: 5, Name: "Dr. Meena Deshmukh", Specialty: "Internal Medicine", Rating: 4.8}, 5},
		{models.Doctor{ID: 6, Name: "Dr. Prakash Shinde", Specialty: "Emergency Medicine", Rating: 4.5}, 5},
	}
	slotID := int64(0)
	now := time.Now()
	for _, sd := range seedDoctors {
		d := sd.doctor
		d.FacilityType = s.facilityTypeByID[sd.facilityID]
		d.FacilityName = facilityNames[sd.facilityID]
		s.doctors = append(s.doctors, d)
		for day := 0; day < seedSlotDays; day++ {
			date := now.AddDate(0, 0, day).Format("2006-01-02")
			for _, slotTime := range seedSlotTimes {
				slotID++
				s.slots[slotID] = models.Slot{
					ID: slotID, DoctorID: d.ID, SlotDate: date, SlotTime: slotTime, IsAvailable: true,
				}
			}
		}
	}
}

func (s *InMemoryStore) GetSession(id string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	return &session, nil
}

func (s *InMemoryStore) SaveSession(session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.LastActiveAt = now
	s.sessions[session.ID] = *session
	return nil
}

func (s *InMemoryStore) AddTriageLog(entry models.TriageLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.CreatedAt = time.Now().UTC()
	entry.ID = int64(len(s.logs) + 1)
	s.logs = append(s.logs, entry)
	return nil
}

// TriageLogs returns a copy of the audit log, newest last. Test helper.
func (s *InMemoryStore) TriageLogs() []models.TriageLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.TriageLogEntry, len(s.logs))
	copy(out, s.logs)
	return out
}

func (s *InMemoryStore) ListFacilitiesByTypes(types []string) ([]models.Facility, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wanted := make(map[string]bool, len(types))
	for _, t := range types {
		wanted[t] = true
	}
	var out []models.Facility
	for _, f := range s.facilities {
		if wanted[f.Type] {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *InMemoryStore) ListDoctorsByFacilityTypes(types []string, limit int) ([]models.Doctor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wanted := make(map[string]bool, len(types))
	for _, t := range types {
		wanted[t] = true
	}
	var out []models.Doctor
	for _, d := range s.doctors {
		if wanted[d.FacilityType] {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rating != out[j].Rating {
			return out[i].Rating > out[j].Rating
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) GetDoctor(id int64) (*models.Doctor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.doctors {
		if d.ID == id {
			doctor := d
			return &doctor, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) ListAvailableSlots(doctorID int64, limit int) ([]models.Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Slot
	for _, slot := range s.slots {
		if slot.DoctorID == doctorID && slot.IsAvailable {
			out = append(out, slot)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SlotDate != out[j].SlotDate {
			return out[i].SlotDate < out[j].SlotDate
		}
		return out[i].SlotTime < out[j].SlotTime
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) BookAppointment(sessionID string, doctorID, slotID int64) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var doctor *models.Doctor
	for _, d := range s.doctors {
		if d.ID == doctorID {
			found := d
			doctor = &found
			break
		}
	}
	if doctor == nil {
		return nil, models.ErrDoctorNotFound
	}

	slot, ok := s.slots[slotID]
	if !ok || slot.DoctorID != doctorID || !slot.IsAvailable {
		return nil, models.ErrSlotUnavailable
	}
	slot.IsAvailable = false
	s.slots[slotID] = slot

	booking := models.Booking{
		AppointmentID: newAppointmentID(),
		Status:        "CONFIRMED",
		Doctor:        *doctor,
		Slot:          slot,
	}
	s.appointments = append(s.appointments, models.Appointment{
		AppointmentID: booking.AppointmentID,
		SessionID:     sessionID,
		Status:        booking.Status,
		Doctor:        *doctor,
		Slot:          slot,
	})
	return &booking, nil
}

func (s *InMemoryStore) ListAppointmentsByDate(date string) ([]models.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Appointment
	for _, a := range s.appointments {
		if a.Slot.SlotDate == date && a.Status == "CONFIRMED" {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Slot.SlotTime < out[j].Slot.SlotTime
	})
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }
