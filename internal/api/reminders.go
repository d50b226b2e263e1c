package api

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/GraminSeva/TriageLine/internal/i18n"
	"github.com/GraminSeva/TriageLine/internal/messaging"
	"github.com/GraminSeva/TriageLine/internal/store"
)

// DefaultReminderCron runs the reminder sweep every evening at 18:00.
const DefaultReminderCron = "0 18 * * *"

// smsSessionPrefix keys sessions created by the SMS webhook. Only these
// sessions carry a reachable phone number.
const smsSessionPrefix = "sms:"

// sendAppointmentReminders notifies SMS patients about tomorrow's
// confirmed appointments.
func sendAppointmentReminders(st store.Store, msg messaging.Service) {
	date := time.Now().AddDate(0, 0, 1).Format("2006-01-02")
	appointments, err := st.ListAppointmentsByDate(date)
	if err != nil {
		slog.Error("api.sendAppointmentReminders: failed to list appointments", "error", err, "date", date)
		return
	}
	sent := 0
	for _, a := range appointments {
		if !strings.HasPrefix(a.SessionID, smsSessionPrefix) {
			continue
		}
		to := strings.TrimPrefix(a.SessionID, smsSessionPrefix)
		language := ""
		if session, err := st.GetSession(a.SessionID); err == nil && session != nil {
			language = session.Language
		}
		text := i18n.Labelf("reminder.appointment", language, a.Doctor.Name, a.Slot.SlotTime)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := msg.SendSMS(ctx, to, text); err != nil {
			slog.Error("api.sendAppointmentReminders: failed to send reminder",
				"error", err, "appointmentID", a.AppointmentID)
		} else {
			sent++
		}
		cancel()
	}
	slog.Info("api.sendAppointmentReminders: sweep complete", "date", date, "appointments", len(appointments), "sent", sent)
}
