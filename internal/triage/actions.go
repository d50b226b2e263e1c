package triage

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/GraminSeva/TriageLine/internal/i18n"
	"github.com/GraminSeva/TriageLine/internal/models"
)

// Listing limits for the browse actions.
const (
	maxDoctors = 5
	maxSlots   = 12
)

// HandleAction processes a card button press. Errors are sentinels from
// the models package so the transport layer can map them onto statuses:
// a missing slot id or doctor id is a bad request, an unknown doctor is
// not found, a taken slot is a conflict.
func (e *Engine) HandleAction(ctx context.Context, req models.ActionRequest) (*models.TurnReply, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	unlock := e.lockSession(sessionID)
	defer unlock()

	session := e.loadOrCreateSession(sessionID, req.Language)
	language := session.Language
	if req.Language != "" {
		language = models.NormalizeLanguage(req.Language)
		session.Language = language
	}

	reply, err := e.action(ctx, session, req, language)
	if err != nil {
		return nil, err
	}
	reply.SessionID = sessionID
	Finalize(reply, language)

	session.LastActiveAt = time.Now().UTC()
	if saveErr := e.store.SaveSession(session); saveErr != nil {
		slog.Error("Engine.HandleAction: failed to save session", "sessionID", sessionID, "error", saveErr)
	}
	reply.Meta.LatencyMs = time.Since(start).Milliseconds()
	slog.Info("Engine.HandleAction: action complete",
		"sessionID", sessionID, "actionId", req.ActionID, "latencyMs", reply.Meta.LatencyMs)
	return reply, nil
}

func (e *Engine) action(ctx context.Context, session *models.Session, req models.ActionRequest, language string) (*models.TurnReply, error) {
	reply := &models.TurnReply{
		Scope:     models.ScopeMedical,
		Intent:    models.IntentSymptoms,
		Urgency:   session.LastUrgency,
		CareLevel: session.LastCareLevel,
	}

	switch req.ActionID {
	case models.ActionCall108:
		reply.Reply = i18n.Label("reply.emergency", language)
		reply.Emergency = &models.Emergency{Number: EmergencyNumber, Message: reply.Reply}
		return reply, nil

	case models.ActionAskLocation:
		session.LastIntent = models.StateAwaitingLocation
		reply.Intent = models.IntentClarification
		reply.Reply = i18n.Label("reply.askPincode", language)
		reply.NextStep = string(models.ActionAskLocation)
		reply.NextQuestion = reply.Reply
		return reply, nil

	case models.ActionFindFacility:
		pincode := payloadString(req.Payload, "pincode")
		if pincode == "" {
			pincode = session.LastKnownPincode
		}
		if pincode == "" {
			session.LastIntent = models.StateAwaitingLocation
			reply.Intent = models.IntentClarification
			reply.Reply = i18n.Label("reply.askPincode", language)
			reply.NextStep = string(models.ActionAskLocation)
			reply.NextQuestion = reply.Reply
			return reply, nil
		}
		return e.facilitySearch(ctx, session, pincode, language), nil

	case models.ActionShowDoctors:
		types := FacilityTypesForCareLevel(session.LastCareLevel)
		if len(types) == 0 {
			types = []string{"PHC"}
		}
		doctors, err := e.store.ListDoctorsByFacilityTypes(types, maxDoctors)
		if err != nil {
			return nil, err
		}
		session.LastIntent = models.StateShowDoctors
		if len(doctors) == 0 {
			reply.Reply = i18n.Label("reply.noDoctors", language)
			return reply, nil
		}
		reply.Doctors = doctors
		reply.Reply = i18n.Label("reply.chooseDoctor", language)
		reply.NextStep = string(models.ActionShowSlots)
		return reply, nil

	case models.ActionShowSlots:
		doctorID := payloadInt64(req.Payload, "doctorId")
		if doctorID == 0 {
			doctorID = session.LastDoctorID
		}
		if doctorID == 0 {
			return nil, models.ErrMissingDoctorID
		}
		doctor, err := e.store.GetDoctor(doctorID)
		if err != nil {
			return nil, err
		}
		if doctor == nil {
			return nil, models.ErrDoctorNotFound
		}
		slots, err := e.store.ListAvailableSlots(doctorID, maxSlots)
		if err != nil {
			return nil, err
		}
		session.LastIntent = models.StateShowSlots
		session.LastDoctorID = doctorID
		if len(slots) == 0 {
			reply.Reply = i18n.Label("reply.noSlots", language)
			return reply, nil
		}
		reply.Doctors = []models.Doctor{*doctor}
		reply.Slots = slots
		reply.Reply = i18n.Label("reply.showSlots", language)
		reply.NextStep = string(models.ActionBookAppointment)
		return reply, nil

	case models.ActionBookAppointment:
		doctorID := payloadInt64(req.Payload, "doctorId")
		if doctorID == 0 {
			doctorID = session.LastDoctorID
		}
		if doctorID == 0 {
			// Without a chosen doctor, restart the booking flow from
			// the doctor list instead of failing.
			types := FacilityTypesForCareLevel(session.LastCareLevel)
			if len(types) == 0 {
				types = []string{"PHC"}
			}
			doctors, err := e.store.ListDoctorsByFacilityTypes(types, maxDoctors)
			if err != nil {
				return nil, err
			}
			session.LastIntent = models.StateShowDoctors
			reply.Doctors = doctors
			reply.Reply = i18n.Label("reply.chooseDoctorBook", language)
			reply.NextStep = string(models.ActionShowSlots)
			return reply, nil
		}
		slotID := payloadInt64(req.Payload, "slotId")
		if slotID == 0 {
			return nil, models.ErrMissingSlotID
		}
		booking, err := e.store.BookAppointment(session.ID, doctorID, slotID)
		if err != nil {
			return nil, err
		}
		session.LastIntent = models.StateBookAppointment
		session.LastDoctorID = doctorID
		reply.Booking = booking
		reply.Reply = i18n.Label("reply.booked", language)
		return reply, nil

	case models.ActionHomeTips:
		reply.Tips = i18n.List("tips.home", language)
		reply.Reply = i18n.Label("reply.homeTips", language)
		return reply, nil
	}

	return nil, models.ErrInvalidAction
}

// payloadInt64 reads a numeric payload field, tolerating the float64
// that encoding/json produces and the string a form post produces.
func payloadInt64(payload map[string]any, key string) int64 {
	switch v := payload[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

func payloadString(payload map[string]any, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}
