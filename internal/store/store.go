// Package store provides storage backends for TriageLine.
//
// It includes SQLite and PostgreSQL stores behind a shared Store
// interface, plus an in-memory store for tests. Sessions are simple
// record-oriented get/upsert; booking is the one transactional
// operation: marking a slot unavailable and inserting the appointment
// must be atomic so two patients can never hold the same slot.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/GraminSeva/TriageLine/internal/models"
)

// Store is the persistence contract consumed by the conversation engine.
type Store interface {
	// GetSession returns the session record, or (nil, nil) when absent.
	GetSession(id string) (*models.Session, error)
	// SaveSession upserts the session record by id.
	SaveSession(s *models.Session) error
	// AddTriageLog appends one audit record of a SYMPTOMS classification.
	AddTriageLog(entry models.TriageLogEntry) error
	// ListFacilitiesByTypes returns facilities of the given types.
	ListFacilitiesByTypes(types []string) ([]models.Facility, error)
	// ListDoctorsByFacilityTypes returns doctors at facilities of the
	// given types, best rated first.
	ListDoctorsByFacilityTypes(types []string, limit int) ([]models.Doctor, error)
	// GetDoctor returns one doctor, or (nil, nil) when absent.
	GetDoctor(id int64) (*models.Doctor, error)
	// ListAvailableSlots returns open slots for a doctor, soonest first.
	ListAvailableSlots(doctorID int64, limit int) ([]models.Slot, error)
	// BookAppointment atomically reserves the slot and records the
	// appointment. Returns models.ErrSlotUnavailable when the slot is
	// taken and models.ErrDoctorNotFound when the doctor is unknown.
	BookAppointment(sessionID string, doctorID, slotID int64) (*models.Booking, error)
	// ListAppointmentsByDate returns confirmed appointments whose slot
	// falls on the given date (YYYY-MM-DD), earliest first.
	ListAppointmentsByDate(date string) ([]models.Appointment, error)
	// Close releases the underlying resources.
	Close() error
}

// Opts holds configuration options for store implementations.
type Opts struct {
	// SQLiteDSN is the file path for the SQLite database.
	SQLiteDSN string
	// PostgresDSN is the PostgreSQL connection string.
	PostgresDSN string
}

// Option defines a configuration option for store creation.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.SQLiteDSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.PostgresDSN = dsn }
}

// DetectDSNType reports "postgres" for PostgreSQL-style DSNs and
// "sqlite3" for anything else (file paths).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname=") {
		return "postgres"
	}
	return "sqlite3"
}

// NewStore creates the store matching the configured DSN. With no DSN
// configured it returns an in-memory store, which is only suitable for
// tests and local experiments.
func NewStore(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	switch {
	case cfg.PostgresDSN != "":
		slog.Info("store.NewStore: using PostgreSQL backend")
		return NewPostgresStore(opts...)
	case cfg.SQLiteDSN != "":
		slog.Info("store.NewStore: using SQLite backend", "path", cfg.SQLiteDSN)
		return NewSQLiteStore(opts...)
	default:
		slog.Warn("store.NewStore: no DSN configured, using in-memory store")
		return NewInMemoryStore(), nil
	}
}

// seedSlotTimes are the bookable times generated per doctor per day.
var seedSlotTimes = []string{
	"09:00", "09:30", "10:00", "10:30", "11:00", "11:30",
	"12:00", "14:00", "14:30", "15:00", "15:30", "16:00",
}

// seedSlotDays is how many days of slots are generated ahead.
const seedSlotDays = 3

// seedSlots fills the slots table for every doctor when it is empty.
// Slot generation lives in Go rather than the migration SQL because the
// dates are relative to the current day.
func seedSlots(db *sql.DB, placeholder func(int) string) error {
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM slots`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count slots: %w", err)
	}
	if count > 0 {
		return nil
	}

	rows, err := db.Query(`SELECT id FROM doctors`)
	if err != nil {
		return fmt.Errorf("failed to list doctors for slot seeding: %w", err)
	}
	defer rows.Close()
	var doctorIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("failed to scan doctor id: %w", err)
		}
		doctorIDs = append(doctorIDs, id)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate doctor ids: %w", err)
	}

	stmt := fmt.Sprintf(`INSERT INTO slots (doctor_id, slot_date, slot_time, is_available) VALUES (%s, %s, %s, %s)`,
		placeholder(1), placeholder(2), placeholder(3), placeholder(4))
	now := time.Now()
	inserted := 0
	for _, doctorID := range doctorIDs {
		for day := 0; day < seedSlotDays; day++ {
			date := now.AddDate(0, 0, day).Format("2006-01-02")
			for _, slot := range seedSlotTimes {
				if _, err := db.Exec(stmt, doctorID, date, slot, true); err != nil {
					return fmt.Errorf("failed to seed slot for doctor %d: %w", doctorID, err)
				}
				inserted++
			}
		}
	}
	slog.Info("store.seedSlots: generated demo slots", "doctors", len(doctorIDs), "slots", inserted)
	return nil
}

// newAppointmentID mints the external appointment identifier.
func newAppointmentID() string {
	return uuid.NewString()
}

// placeholderList builds a driver-appropriate placeholder list like
// "?, ?, ?" or "$2, $3, $4" starting at the given index.
func placeholderList(placeholder func(int) string, start, count int) string {
	parts := make([]string, 0, count)
	for i := 0; i < count; i++ {
		parts = append(parts, placeholder(start+i))
	}
	return strings.Join(parts, ", ")
}
