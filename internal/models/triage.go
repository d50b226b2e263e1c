// Package models defines triage decision types shared across modules.
package models

// Scope tags where a message falls relative to the system's purpose.
type Scope string

const (
	// ScopeOutOfScope covers drug/dosage/diagnosis requests and unrelated topics.
	ScopeOutOfScope Scope = "OUT_OF_SCOPE"
	// ScopeNonMedicalSafe covers general chat the system may answer with a nudge.
	ScopeNonMedicalSafe Scope = "NON_MEDICAL_SAFE"
	// ScopeMedical routes into the intent gate and triage pipeline.
	ScopeMedical Scope = "MEDICAL"
)

// Intent is the conversational category of a medical-scope message.
type Intent string

const (
	IntentSmallTalk     Intent = "SMALL_TALK"
	IntentClarification Intent = "CLARIFICATION_REQUIRED"
	IntentSymptoms      Intent = "SYMPTOMS"
)

// IsValidIntent checks if the given intent is one of the three valid values.
func IsValidIntent(i Intent) bool {
	switch i {
	case IntentSmallTalk, IntentClarification, IntentSymptoms:
		return true
	default:
		return false
	}
}

// Urgency is the clinical time-sensitivity tier.
type Urgency string

const (
	UrgencyLow    Urgency = "LOW"
	UrgencyMedium Urgency = "MEDIUM"
	UrgencyHigh   Urgency = "HIGH"
)

// urgencyRank orders urgencies LOW < MEDIUM < HIGH.
var urgencyRank = map[Urgency]int{UrgencyLow: 1, UrgencyMedium: 2, UrgencyHigh: 3}

// Rank returns the total-order position of the urgency, 0 for unknown values.
func (u Urgency) Rank() int { return urgencyRank[u] }

// IsValidUrgency checks if the given urgency is one of the three tiers.
func IsValidUrgency(u Urgency) bool { return urgencyRank[u] != 0 }

// CareLevel is the recommended facility tier.
type CareLevel string

const (
	CareLevelHome             CareLevel = "HOME"
	CareLevelPHC              CareLevel = "PHC"
	CareLevelCHC              CareLevel = "CHC"
	CareLevelDistrictHospital CareLevel = "DISTRICT_HOSPITAL"
	CareLevelEmergency        CareLevel = "EMERGENCY"
)

var careLevelRank = map[CareLevel]int{
	CareLevelHome:             1,
	CareLevelPHC:              2,
	CareLevelCHC:              3,
	CareLevelDistrictHospital: 4,
	CareLevelEmergency:        5,
}

// Rank returns the total-order position of the care level, 0 for unknown values.
func (c CareLevel) Rank() int { return careLevelRank[c] }

// IsValidCareLevel checks if the given care level is one of the five tiers.
func IsValidCareLevel(c CareLevel) bool { return careLevelRank[c] != 0 }

// UnknownComplaint is the sentinel primary complaint when extraction found nothing.
const UnknownComplaint = "unknown"

// Duration holds a normalized complaint duration. Days is the canonical
// value the rule engine compares against; nil means no duration was found.
type Duration struct {
	Value *int    `json:"value"`
	Unit  *string `json:"unit"`
	Days  *int    `json:"days,omitempty"`
}

// DaysOrNegative returns the normalized day count, or -1 when unknown.
func (d Duration) DaysOrNegative() int {
	if d.Days != nil {
		return *d.Days
	}
	return -1
}

// StructuredComplaint is the normalized symptom facts for one turn.
// It is always well-formed: absence is expressed through the "unknown"
// sentinel, empty slices, or nil Duration fields, never by omission.
type StructuredComplaint struct {
	PrimaryComplaint     string   `json:"primaryComplaint"`
	Duration             Duration `json:"duration"`
	Severity             string   `json:"severity"`
	AssociatedSymptoms   []string `json:"associatedSymptoms"`
	RedFlagsDetected     []string `json:"redFlagsDetected"`
	ClarifyingQuestion   *string  `json:"clarifyingQuestion"`
	ExtractionConfidence *float64 `json:"extractionConfidence"`
}

// EmptyComplaint returns a well-formed StructuredComplaint with all
// fields at their absence sentinels.
func EmptyComplaint() StructuredComplaint {
	return StructuredComplaint{
		PrimaryComplaint:   UnknownComplaint,
		Severity:           UnknownComplaint,
		AssociatedSymptoms: []string{},
		RedFlagsDetected:   []string{},
	}
}

// Normalize repairs nil slices and empty sentinels so downstream code
// never needs to null-check individual fields.
func (s *StructuredComplaint) Normalize() {
	if s.PrimaryComplaint == "" {
		s.PrimaryComplaint = UnknownComplaint
	}
	if s.Severity == "" {
		s.Severity = UnknownComplaint
	}
	if s.AssociatedSymptoms == nil {
		s.AssociatedSymptoms = []string{}
	}
	if s.RedFlagsDetected == nil {
		s.RedFlagsDetected = []string{}
	}
}

// IsEmpty reports whether extraction found nothing usable for triage:
// no primary complaint, no red flags, and no duration. Such a turn must
// be treated as CLARIFICATION_REQUIRED, not SYMPTOMS.
func (s *StructuredComplaint) IsEmpty() bool {
	return (s.PrimaryComplaint == "" || s.PrimaryComplaint == UnknownComplaint) &&
		len(s.RedFlagsDetected) == 0 &&
		s.Duration.Days == nil && s.Duration.Value == nil
}

// ClassificationResult is the output of the deterministic classifier,
// the only component allowed to produce the final clinical tier.
type ClassificationResult struct {
	Urgency     Urgency   `json:"urgency"`
	CareLevel   CareLevel `json:"careLevel"`
	ReasonCodes []string  `json:"reasonCodes"`
}

// ActionID identifies a card-button action.
type ActionID string

const (
	ActionCall108         ActionID = "CALL_108"
	ActionAskLocation     ActionID = "ASK_LOCATION"
	ActionFindFacility    ActionID = "FIND_FACILITY"
	ActionShowDoctors     ActionID = "SHOW_DOCTORS"
	ActionShowSlots       ActionID = "SHOW_SLOTS"
	ActionBookAppointment ActionID = "BOOK_APPOINTMENT"
	ActionHomeTips        ActionID = "HOME_TIPS"
)

// IsValidActionID checks if the given action id is supported.
func IsValidActionID(a ActionID) bool {
	switch a {
	case ActionCall108, ActionAskLocation, ActionFindFacility, ActionShowDoctors,
		ActionShowSlots, ActionBookAppointment, ActionHomeTips:
		return true
	default:
		return false
	}
}

// ActionPriority marks a card action as the primary or a secondary choice.
type ActionPriority string

const (
	ActionPriorityPrimary   ActionPriority = "PRIMARY"
	ActionPrioritySecondary ActionPriority = "SECONDARY"
)

// CardAction is one button on a triage card.
type CardAction struct {
	Priority ActionPriority `json:"priority"`
	ActionID ActionID       `json:"actionId"`
	Label    string         `json:"label"`
}

// TriageCard is the presentation-ready triage result. It is derived and
// rebuilt every time from ClassificationResult plus StructuredComplaint,
// never persisted as a source of truth.
type TriageCard struct {
	Urgency      Urgency      `json:"urgency"`
	CareLevel    CareLevel    `json:"careLevel"`
	UrgencyLabel string       `json:"urgencyLabel"`
	Headline     string       `json:"headline"`
	TimeToAct    string       `json:"timeToAct"`
	Why          []string     `json:"why"`      // at most 2 entries
	WatchFor     []string     `json:"watchFor"` // at most 3 entries
	Actions      []CardAction `json:"actions"`
}

// Meta records how a turn was produced.
type Meta struct {
	LLMUsed      bool  `json:"llmUsed"`
	FallbackUsed bool  `json:"fallbackUsed"`
	LatencyMs    int64 `json:"latencyMs"`
}

// Facility is one ranked nearby care facility.
type Facility struct {
	ID         int64    `json:"id,omitempty"`
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Address    string   `json:"address,omitempty"`
	Phone      string   `json:"phone,omitempty"`
	DistanceKm *float64 `json:"distanceKm,omitempty"`
	Lat        float64  `json:"lat,omitempty"`
	Lon        float64  `json:"lon,omitempty"`
}

// Doctor is one bookable doctor at a facility.
type Doctor struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Specialty    string  `json:"specialty"`
	FacilityType string  `json:"facilityType"`
	FacilityName string  `json:"facilityName"`
	Rating       float64 `json:"rating"`
}

// Slot is one bookable appointment slot.
type Slot struct {
	ID          int64  `json:"id"`
	DoctorID    int64  `json:"doctorId"`
	SlotDate    string `json:"date"` // YYYY-MM-DD
	SlotTime    string `json:"time"` // HH:MM
	IsAvailable bool   `json:"isAvailable"`
}

// Booking is the confirmation payload for a completed appointment.
type Booking struct {
	AppointmentID string `json:"appointmentId"`
	Status        string `json:"status"` // always "CONFIRMED" on success
	Doctor        Doctor `json:"doctor"`
	Slot          Slot   `json:"slot"`
}

// Appointment is one stored booking joined with its doctor and slot.
// The reminder job reads these to notify patients the day before.
type Appointment struct {
	AppointmentID string `json:"appointmentId"`
	SessionID     string `json:"sessionId"`
	Status        string `json:"status"`
	Doctor        Doctor `json:"doctor"`
	Slot          Slot   `json:"slot"`
}

// Emergency is the payload for the CALL_108 action.
type Emergency struct {
	Number  string `json:"number"`
	Message string `json:"message"`
}

// TurnReply is the engine's output contract for one conversational turn.
type TurnReply struct {
	SessionID    string               `json:"sessionId,omitempty"`
	Scope        Scope                `json:"scope,omitempty"`
	Intent       Intent               `json:"intent"`
	Reply        string               `json:"reply"`
	Urgency      Urgency              `json:"urgency,omitempty"`
	CareLevel    CareLevel            `json:"careLevel,omitempty"`
	TriageCard   *TriageCard          `json:"triageCard"`
	Structured   *StructuredComplaint `json:"structured"`
	Facilities   []Facility           `json:"facilities"`
	Doctors      []Doctor             `json:"doctors,omitempty"`
	Slots        []Slot               `json:"slots,omitempty"`
	Booking      *Booking             `json:"booking"`
	Emergency    *Emergency           `json:"emergency,omitempty"`
	Tips         []string             `json:"tips,omitempty"`
	NextStep     string               `json:"nextStep,omitempty"`
	NextQuestion string               `json:"nextQuestion,omitempty"`
	Meta         Meta                 `json:"meta"`
}
