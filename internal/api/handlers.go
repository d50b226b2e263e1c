package api

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/GraminSeva/TriageLine/internal/i18n"
	"github.com/GraminSeva/TriageLine/internal/messaging"
	"github.com/GraminSeva/TriageLine/internal/models"
)

// statusForError maps the models error sentinels onto HTTP statuses.
func statusForError(err error) int {
	switch {
	case errors.Is(err, models.ErrEmptyMessage),
		errors.Is(err, models.ErrMessageTooLong),
		errors.Is(err, models.ErrInvalidAction),
		errors.Is(err, models.ErrMissingDoctorID),
		errors.Is(err, models.ErrMissingSlotID),
		errors.Is(err, models.ErrInvalidPincode):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrSessionNotFound),
		errors.Is(err, models.ErrDoctorNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrSlotUnavailable):
		return http.StatusConflict
	case errors.Is(err, models.ErrLocationNotFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrFacilityLookup):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// chatHandler serves POST /api/chat. Beyond request validation it never
// fails: a panic anywhere in the pipeline degrades to a safe reply.
func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.chatHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Server.chatHandler: recovered from panic", "panic", rec)
			writeJSONResponse(w, http.StatusOK, models.Success(safeFallbackReply(req.SessionID, req.Language)))
		}
	}()

	reply, err := s.engine.HandleTurn(r.Context(), req)
	if err != nil {
		// Validation already passed, so degrade instead of failing the turn.
		slog.Error("Server.chatHandler: turn failed, returning safe fallback", "error", err)
		writeJSONResponse(w, http.StatusOK, models.Success(safeFallbackReply(req.SessionID, req.Language)))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(reply))
}

// safeFallbackReply is the last-resort turn reply when the pipeline
// itself breaks.
func safeFallbackReply(sessionID, language string) *models.TurnReply {
	language = models.NormalizeLanguage(language)
	return &models.TurnReply{
		SessionID: sessionID,
		Scope:     models.ScopeMedical,
		Intent:    models.IntentClarification,
		Reply:     i18n.Label("reply.safetyFallback", language),
		Meta:      models.Meta{FallbackUsed: true},
	}
}

// actionHandler serves POST /api/chat/action.
func (s *Server) actionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req models.ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.actionHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	reply, err := s.engine.HandleAction(r.Context(), req)
	if err != nil {
		slog.Warn("Server.actionHandler: action failed", "actionId", req.ActionID, "error", err)
		writeJSONResponse(w, statusForError(err), models.Error(err.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(reply))
}

// triageHandler serves POST /api/triage, the stateless classifier.
func (s *Server) triageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req models.TriageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	reply, err := s.engine.TriageOnce(r.Context(), req)
	if err != nil {
		writeJSONResponse(w, statusForError(err), models.Error(err.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(reply))
}

// sessionStartHandler serves POST /api/session/start.
func (s *Server) sessionStartHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req models.SessionStartRequest
	if r.Body != nil {
		// The body is optional; ignore decode errors for an empty body.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	session, err := s.engine.StartSession(req.Language)
	if err != nil {
		slog.Error("Server.sessionStartHandler: failed to create session", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to create session"))
		return
	}
	writeJSONResponse(w, http.StatusCreated, models.Success(session.Summary()))
}

// sessionHandler serves GET /api/session/{id}.
func (s *Server) sessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/session/")
	if id == "" || strings.Contains(id, "/") {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}
	session, err := s.engine.GetSession(id)
	if err != nil {
		writeJSONResponse(w, statusForError(err), models.Error(err.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(session.Summary()))
}

// facilitiesHandler serves GET /api/facilities/nearby?pincode=NNNNNN.
func (s *Server) facilitiesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	pincode := r.URL.Query().Get("pincode")
	facilities, locationText, err := s.engine.NearbyFacilities(r.Context(), pincode)
	if err != nil {
		writeJSONResponse(w, statusForError(err), models.Error(err.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]any{
		"pincode":      pincode,
		"locationText": locationText,
		"facilities":   facilities,
	}))
}

// healthHandler serves GET /health.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"service": "TriageLine"}))
}

// smsWebhookHandler serves POST /webhook/sms, the Twilio inbound SMS
// hook. It answers with TwiML; an emergency triage additionally sends a
// standalone alert SMS through the messaging service.
func (s *Server) smsWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		slog.Warn("Server.smsWebhookHandler: failed to parse form", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	from := r.FormValue("From")
	body := strings.TrimSpace(r.FormValue("Body"))
	if from == "" || body == "" {
		writeTwiML(w, "")
		return
	}

	sessionID := "sms:" + from
	if canonical, err := messaging.CanonicalizeRecipient(from); err == nil {
		sessionID = "sms:" + canonical
	}

	reply, err := s.engine.HandleTurn(r.Context(), models.ChatRequest{
		SessionID: sessionID,
		Message:   body,
		Source:    "text",
	})
	if err != nil {
		slog.Error("Server.smsWebhookHandler: turn failed", "error", err)
		writeTwiML(w, safeFallbackReply(sessionID, "").Reply)
		return
	}

	if reply.Emergency != nil && s.msg != nil {
		alert := fmt.Sprintf("%s Call %s now.", reply.Emergency.Message, reply.Emergency.Number)
		// Detached from the request context so the send outlives the
		// webhook response.
		go func(to, text string) {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := s.msg.SendSMS(ctx, to, text); err != nil {
				slog.Error("Server.smsWebhookHandler: failed to send emergency SMS", "error", err)
			}
		}(from, alert)
	}
	writeTwiML(w, smsText(reply))
}

// smsText flattens a turn reply into plain SMS text: the reply line
// plus any facility, doctor, or slot listing that a visual card would
// have carried.
func smsText(reply *models.TurnReply) string {
	var b strings.Builder
	b.WriteString(reply.Reply)
	for i, f := range reply.Facilities {
		b.WriteString(fmt.Sprintf("\n%d. %s (%s)", i+1, f.Name, f.Type))
		if f.DistanceKm != nil {
			b.WriteString(fmt.Sprintf(" %.1f km", *f.DistanceKm))
		}
	}
	if len(reply.Facilities) == 0 {
		for i, d := range reply.Doctors {
			b.WriteString(fmt.Sprintf("\n%d. %s, %s (%s)", i+1, d.Name, d.Specialty, d.FacilityName))
		}
	}
	for i, slot := range reply.Slots {
		b.WriteString(fmt.Sprintf("\n%d. %s %s", i+1, slot.SlotDate, slot.SlotTime))
	}
	for _, tip := range reply.Tips {
		b.WriteString("\n- " + tip)
	}
	if reply.NextQuestion != "" && reply.NextQuestion != reply.Reply {
		b.WriteString("\n" + reply.NextQuestion)
	}
	return b.String()
}

// writeTwiML writes a TwiML message response.
func writeTwiML(w http.ResponseWriter, message string) {
	var escaped bytes.Buffer
	if err := xml.EscapeText(&escaped, []byte(message)); err != nil {
		slog.Error("Server.writeTwiML: failed to escape message", "error", err)
		escaped.Reset()
	}
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	body := `<?xml version="1.0" encoding="UTF-8"?><Response>`
	if escaped.Len() > 0 {
		body += "<Message>" + escaped.String() + "</Message>"
	}
	body += `</Response>`
	if _, err := w.Write([]byte(body)); err != nil {
		slog.Error("Server.writeTwiML: failed to write response", "error", err)
	}
}
