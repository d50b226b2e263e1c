package models

import (
	"strings"
	"testing"
)

func TestNormalizeLanguage(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"en", "en"},
		{"HI", "hi"},
		{" ta ", "ta"},
		{"mr", "mr"},
		{"te", "te"},
		{"fr", "en"},
		{"", "en"},
	}
	for _, c := range cases {
		if got := NormalizeLanguage(c.in); got != c.want {
			t.Errorf("NormalizeLanguage(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestChatRequestValidate(t *testing.T) {
	r := ChatRequest{Message: "fever 2 days"}
	if err := r.Validate(); err != nil {
		t.Errorf("expected valid request, got %v", err)
	}

	r = ChatRequest{Message: "   "}
	if err := r.Validate(); err != ErrEmptyMessage {
		t.Errorf("expected ErrEmptyMessage, got %v", err)
	}

	r = ChatRequest{Message: strings.Repeat("a", MaxMessageLength+1)}
	if err := r.Validate(); err != ErrMessageTooLong {
		t.Errorf("expected ErrMessageTooLong, got %v", err)
	}
}

func TestActionRequestValidate(t *testing.T) {
	r := ActionRequest{ActionID: ActionFindFacility}
	if err := r.Validate(); err != nil {
		t.Errorf("expected valid action, got %v", err)
	}
	r = ActionRequest{ActionID: "DELETE_SESSION"}
	if err := r.Validate(); err != ErrInvalidAction {
		t.Errorf("expected ErrInvalidAction, got %v", err)
	}
}

func TestUrgencyOrdering(t *testing.T) {
	if !(UrgencyLow.Rank() < UrgencyMedium.Rank() && UrgencyMedium.Rank() < UrgencyHigh.Rank()) {
		t.Error("urgency ranks must order LOW < MEDIUM < HIGH")
	}
	if Urgency("CRITICAL").Rank() != 0 {
		t.Error("unknown urgency must rank 0")
	}
}

func TestCareLevelOrdering(t *testing.T) {
	ordered := []CareLevel{CareLevelHome, CareLevelPHC, CareLevelCHC, CareLevelDistrictHospital, CareLevelEmergency}
	for i := 1; i < len(ordered); i++ {
		if ordered[i-1].Rank() >= ordered[i].Rank() {
			t.Errorf("care level %s should rank below %s", ordered[i-1], ordered[i])
		}
	}
}

func TestStructuredComplaintIsEmpty(t *testing.T) {
	c := EmptyComplaint()
	if !c.IsEmpty() {
		t.Error("EmptyComplaint should be empty")
	}

	c = EmptyComplaint()
	c.PrimaryComplaint = "fever"
	if c.IsEmpty() {
		t.Error("complaint with primary symptom is not empty")
	}

	c = EmptyComplaint()
	c.RedFlagsDetected = []string{"chest_pain"}
	if c.IsEmpty() {
		t.Error("complaint with red flags is not empty")
	}

	c = EmptyComplaint()
	days := 2
	c.Duration.Days = &days
	if c.IsEmpty() {
		t.Error("complaint with duration is not empty")
	}
}

func TestStructuredComplaintNormalize(t *testing.T) {
	var c StructuredComplaint
	c.Normalize()
	if c.PrimaryComplaint != UnknownComplaint || c.Severity != UnknownComplaint {
		t.Error("Normalize should fill unknown sentinels")
	}
	if c.AssociatedSymptoms == nil || c.RedFlagsDetected == nil {
		t.Error("Normalize should replace nil slices with empty slices")
	}
}

func TestSessionContextHelpers(t *testing.T) {
	s := Session{}
	if s.HasTriageContext() || s.HasKnownLocation() {
		t.Error("fresh session has no triage or location context")
	}
	s.LastUrgency = UrgencyHigh
	s.LastCareLevel = CareLevelEmergency
	if !s.HasTriageContext() {
		t.Error("session with urgency and care level has triage context")
	}
	if !s.HasFacilityContext() {
		t.Error("triage context implies facility context")
	}
	s = Session{LastIntent: StateFacilitySearch}
	if !s.HasFacilityContext() {
		t.Error("FACILITY_SEARCH state implies facility context")
	}
	s = Session{LastKnownPincode: "411001"}
	if !s.HasKnownLocation() {
		t.Error("pincode counts as known location")
	}
}
