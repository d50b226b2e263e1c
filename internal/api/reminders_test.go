package api

import (
	"strings"
	"testing"
	"time"

	"github.com/GraminSeva/TriageLine/internal/models"
	"github.com/GraminSeva/TriageLine/internal/store"
)

// slotOnDate finds an open slot for the doctor on the given date.
func slotOnDate(t *testing.T, st store.Store, doctorID int64, date string) models.Slot {
	t.Helper()
	slots, err := st.ListAvailableSlots(doctorID, 0)
	if err != nil {
		t.Fatalf("ListAvailableSlots failed: %v", err)
	}
	for _, slot := range slots {
		if slot.SlotDate == date {
			return slot
		}
	}
	t.Fatalf("no seeded slot for doctor %d on %s", doctorID, date)
	return models.Slot{}
}

func TestSendAppointmentReminders(t *testing.T) {
	st := store.NewInMemoryStore()
	sms := &recordingSMS{}
	tomorrow := time.Now().AddDate(0, 0, 1).Format("2006-01-02")

	// An SMS patient with a confirmed appointment tomorrow.
	if err := st.SaveSession(&models.Session{ID: "sms:+919876543210", Language: "en"}); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	slot := slotOnDate(t, st, 1, tomorrow)
	if _, err := st.BookAppointment("sms:+919876543210", 1, slot.ID); err != nil {
		t.Fatalf("BookAppointment failed: %v", err)
	}

	// A web session booking has no phone number to notify.
	webSlot := slotOnDate(t, st, 2, tomorrow)
	if _, err := st.BookAppointment("web-abc", 2, webSlot.ID); err != nil {
		t.Fatalf("BookAppointment failed: %v", err)
	}

	// A booking for today is outside the sweep window.
	today := time.Now().Format("2006-01-02")
	todaySlot := slotOnDate(t, st, 3, today)
	if _, err := st.BookAppointment("sms:+919876543210", 3, todaySlot.ID); err != nil {
		t.Fatalf("BookAppointment failed: %v", err)
	}

	sendAppointmentReminders(st, sms)

	if sms.count() != 1 {
		t.Fatalf("expected 1 reminder SMS, got %d", sms.count())
	}
	sms.mu.Lock()
	defer sms.mu.Unlock()
	if !strings.HasPrefix(sms.sent[0], "+919876543210:") {
		t.Errorf("reminder sent to the wrong number: %s", sms.sent[0])
	}
	if !strings.Contains(sms.sent[0], "Dr. Asha Pawar") || !strings.Contains(sms.sent[0], slot.SlotTime) {
		t.Errorf("reminder should name the doctor and time: %s", sms.sent[0])
	}
}

func TestSendAppointmentRemindersNoAppointments(t *testing.T) {
	st := store.NewInMemoryStore()
	sms := &recordingSMS{}

	sendAppointmentReminders(st, sms)

	if sms.count() != 0 {
		t.Errorf("expected no reminders, got %d", sms.count())
	}
}
