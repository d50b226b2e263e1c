// Package models defines session state types to avoid circular imports.
package models

import "time"

// SessionState represents the conversation state stored as session.lastIntent.
type SessionState string

// Session state constants. TRIAGE_RESULT, ASK_LOCATION and the
// facility/booking states carry cross-turn context the state machine
// consults before classifying a new message.
const (
	StateInit             SessionState = "INIT"
	StateSmallTalk        SessionState = "SMALL_TALK"
	StateClarification    SessionState = "CLARIFICATION_REQUIRED"
	StateTriageResult     SessionState = "TRIAGE_RESULT"
	StateAskLocation      SessionState = "ASK_LOCATION"
	StateAwaitingLocation SessionState = "AWAITING_LOCATION"
	StateFacilitySearch   SessionState = "FACILITY_SEARCH"
	StateRefineLocation   SessionState = "REFINE_LOCATION"
	StateShowDoctors      SessionState = "SHOW_DOCTORS"
	StateShowSlots        SessionState = "SHOW_SLOTS"
	StateBookAppointment  SessionState = "BOOK_APPOINTMENT"
)

// MaxClarifyTurns caps consecutive clarification turns before the engine
// stops re-asking and offers the helpline and facility path instead.
const MaxClarifyTurns = 3

// Session is the per-conversation memory record. lastUrgency and
// lastCareLevel are only ever written from deterministic classifier
// output, never from raw model text.
type Session struct {
	ID                    string       `json:"sessionId"`
	Language              string       `json:"language"`
	LastIntent            SessionState `json:"lastIntent"`
	LastUrgency           Urgency      `json:"lastUrgency,omitempty"`
	LastCareLevel         CareLevel    `json:"lastCareLevel,omitempty"`
	LastFacilityType      string       `json:"lastFacilityType,omitempty"`
	LastKnownLocationText string       `json:"lastKnownLocationText,omitempty"`
	LastKnownPincode      string       `json:"lastKnownPincode,omitempty"`
	LastDoctorID          int64        `json:"lastDoctorId,omitempty"`
	ClarifyCount          int          `json:"clarifyCount"`
	TriageCount           int          `json:"triageCount"`
	CreatedAt             time.Time    `json:"createdAt"`
	LastActiveAt          time.Time    `json:"lastActive"`
}

// HasTriageContext reports whether a prior triage decision is in effect
// for this session.
func (s *Session) HasTriageContext() bool {
	return s.LastUrgency != "" && s.LastCareLevel != ""
}

// HasFacilityContext reports whether the conversation is in a facility
// finding or triage-result context, which is what a location-refinement
// message needs to attach to.
func (s *Session) HasFacilityContext() bool {
	switch s.LastIntent {
	case StateFacilitySearch, StateTriageResult, StateRefineLocation,
		StateAskLocation, StateAwaitingLocation:
		return true
	}
	return s.HasTriageContext()
}

// HasKnownLocation reports whether any location information was captured.
func (s *Session) HasKnownLocation() bool {
	return s.LastKnownPincode != "" || s.LastKnownLocationText != ""
}

// TriageLogEntry is one audit record of a SYMPTOMS classification.
type TriageLogEntry struct {
	ID          int64     `json:"id,omitempty"`
	SessionID   string    `json:"sessionId"`
	InputText   string    `json:"inputText"`
	Language    string    `json:"language"`
	Urgency     Urgency   `json:"urgency"`
	CareLevel   CareLevel `json:"careLevel"`
	ReasonCodes []string  `json:"reasonCodes"`
	LLMUsed     bool      `json:"llmUsed"`
	Fallback    bool      `json:"fallbackUsed"`
	CreatedAt   time.Time `json:"createdAt"`
}

// SessionSummary is the read model returned by the session lookup endpoint.
type SessionSummary struct {
	SessionID     string       `json:"sessionId"`
	Language      string       `json:"language"`
	TriageCount   int          `json:"triageCount"`
	ClarifyCount  int          `json:"clarifyCount"`
	LastIntent    SessionState `json:"lastIntent,omitempty"`
	LastUrgency   Urgency      `json:"lastUrgency,omitempty"`
	LastCareLevel CareLevel    `json:"lastCareLevel,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
	LastActive    time.Time    `json:"lastActive"`
}

// Summary converts a Session into its endpoint read model.
func (s *Session) Summary() SessionSummary {
	return SessionSummary{
		SessionID:     s.ID,
		Language:      s.Language,
		TriageCount:   s.TriageCount,
		ClarifyCount:  s.ClarifyCount,
		LastIntent:    s.LastIntent,
		LastUrgency:   s.LastUrgency,
		LastCareLevel: s.LastCareLevel,
		CreatedAt:     s.CreatedAt,
		LastActive:    s.LastActiveAt,
	}
}
