package triage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/GraminSeva/TriageLine/internal/aiengine"
	"github.com/GraminSeva/TriageLine/internal/geo"
	"github.com/GraminSeva/TriageLine/internal/models"
	"github.com/GraminSeva/TriageLine/internal/store"
)

// stubLocator satisfies FacilityLocator with canned results.
type stubLocator struct {
	result *geo.Result
	err    error
	calls  int
}

func (s *stubLocator) Lookup(_ context.Context, pincode string) (*geo.Result, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	result := *s.result
	result.Pincode = pincode
	return &result, nil
}

func wagholiResult() *geo.Result {
	dist := 1.2
	return &geo.Result{
		LocationText: "Wagholi, Pune, Maharashtra",
		Lat:          18.5804,
		Lon:          73.9803,
		Facilities: []models.Facility{
			{Name: "Wagholi Clinic", Type: "CLINIC", DistanceKm: &dist},
		},
	}
}

func newTestEngine(opts ...Option) *Engine {
	return New(opts...)
}

func turn(t *testing.T, e *Engine, sessionID, message string) *models.TurnReply {
	t.Helper()
	reply, err := e.HandleTurn(context.Background(), models.ChatRequest{
		SessionID: sessionID, Message: message, Language: "en",
	})
	if err != nil {
		t.Fatalf("HandleTurn(%q) failed: %v", message, err)
	}
	return reply
}

func TestHandleTurnRejectsEmptyMessage(t *testing.T) {
	e := newTestEngine()
	if _, err := e.HandleTurn(context.Background(), models.ChatRequest{Message: "   "}); !errors.Is(err, models.ErrEmptyMessage) {
		t.Errorf("error = %v, want ErrEmptyMessage", err)
	}
}

func TestHandleTurnRedFlagEmergency(t *testing.T) {
	e := newTestEngine()
	reply := turn(t, e, "s1", "I have chest pain and cannot breathe")

	if reply.Intent != models.IntentSymptoms {
		t.Fatalf("intent = %s, want SYMPTOMS", reply.Intent)
	}
	if reply.Urgency != models.UrgencyHigh || reply.CareLevel != models.CareLevelEmergency {
		t.Errorf("tier = %s/%s, want HIGH/EMERGENCY", reply.Urgency, reply.CareLevel)
	}
	if reply.Emergency == nil || reply.Emergency.Number != EmergencyNumber {
		t.Errorf("expected 108 emergency payload, got %+v", reply.Emergency)
	}
	if reply.TriageCard == nil {
		t.Fatal("expected a triage card")
	}
	if got := reply.TriageCard.Actions[0].ActionID; got != models.ActionCall108 {
		t.Errorf("primary action = %s, want CALL_108", got)
	}
	if reply.TriageCard.Actions[0].Priority != models.ActionPriorityPrimary {
		t.Error("first action should be PRIMARY")
	}
	if reply.NextStep != string(models.ActionAskLocation) {
		t.Errorf("nextStep = %q, want ASK_LOCATION", reply.NextStep)
	}
}

func TestHandleTurnSelfLimitingLow(t *testing.T) {
	e := newTestEngine()
	reply := turn(t, e, "s1", "mild cough since yesterday")

	if reply.Urgency != models.UrgencyLow || reply.CareLevel != models.CareLevelHome {
		t.Fatalf("tier = %s/%s, want LOW/HOME", reply.Urgency, reply.CareLevel)
	}
	if len(reply.Tips) == 0 {
		t.Error("LOW tier should include home care tips")
	}
	if got := reply.TriageCard.Actions[0].ActionID; got != models.ActionHomeTips {
		t.Errorf("primary action = %s, want HOME_TIPS", got)
	}
	if reply.NextStep == string(models.ActionAskLocation) {
		t.Error("LOW tier should not demand a location")
	}
	if reply.Emergency != nil {
		t.Error("LOW tier must not carry an emergency payload")
	}
}

func TestHandleTurnFeverMediumAsksLocation(t *testing.T) {
	e := newTestEngine()
	reply := turn(t, e, "s1", "fever since 3 days")

	if reply.Urgency != models.UrgencyMedium || reply.CareLevel != models.CareLevelPHC {
		t.Fatalf("tier = %s/%s, want MEDIUM/PHC", reply.Urgency, reply.CareLevel)
	}
	if got := reply.TriageCard.Actions[0].ActionID; got != models.ActionFindFacility {
		t.Errorf("primary action = %s, want FIND_FACILITY", got)
	}
	if reply.NextStep != string(models.ActionAskLocation) || reply.NextQuestion == "" {
		t.Errorf("expected a location ask, got nextStep=%q question=%q", reply.NextStep, reply.NextQuestion)
	}
}

func TestHandleTurnSmallTalkNeverTriages(t *testing.T) {
	e := newTestEngine()
	for _, msg := range []string{"hello", "thank you doctor", "namaste"} {
		reply := turn(t, e, "smalltalk-"+msg, msg)
		if reply.Intent != models.IntentSmallTalk {
			t.Errorf("%q: intent = %s, want SMALL_TALK", msg, reply.Intent)
		}
		if reply.TriageCard != nil || reply.Urgency != "" || reply.CareLevel != "" {
			t.Errorf("%q: small talk must not triage, got card=%v tier=%s/%s",
				msg, reply.TriageCard, reply.Urgency, reply.CareLevel)
		}
	}
}

func TestHandleTurnOutOfScope(t *testing.T) {
	e := newTestEngine()
	reply := turn(t, e, "s1", "which medicine should I take for fever")

	if reply.Scope != models.ScopeOutOfScope {
		t.Fatalf("scope = %s, want OUT_OF_SCOPE", reply.Scope)
	}
	if reply.TriageCard != nil || reply.Urgency != "" {
		t.Error("out of scope turns must not triage")
	}
	if !strings.Contains(reply.Reply, HelplineNumber) {
		t.Errorf("out of scope reply should point to the %s helpline: %q", HelplineNumber, reply.Reply)
	}
}

func TestHandleTurnClarificationCap(t *testing.T) {
	e := newTestEngine()
	for i := 0; i < models.MaxClarifyTurns; i++ {
		reply := turn(t, e, "s1", "I am not feeling well")
		if reply.Intent != models.IntentClarification {
			t.Fatalf("turn %d: intent = %s, want CLARIFICATION_REQUIRED", i+1, reply.Intent)
		}
		if reply.TriageCard != nil {
			t.Fatalf("turn %d: clarification must not carry a card", i+1)
		}
		if reply.NextQuestion == "" {
			t.Fatalf("turn %d: expected a follow-up question", i+1)
		}
	}

	// The next vague turn stops re-asking and triages conservatively.
	reply := turn(t, e, "s1", "I am not feeling well")
	if reply.Intent != models.IntentSymptoms {
		t.Fatalf("capped turn intent = %s, want SYMPTOMS", reply.Intent)
	}
	if reply.Urgency != models.UrgencyMedium || reply.CareLevel != models.CareLevelPHC {
		t.Errorf("capped tier = %s/%s, want conservative MEDIUM/PHC", reply.Urgency, reply.CareLevel)
	}
}

func TestHandleTurnNeverDowngradesStandingTier(t *testing.T) {
	e := newTestEngine()
	first := turn(t, e, "s1", "severe chest pain")
	if first.Urgency != models.UrgencyHigh {
		t.Fatalf("setup: tier = %s, want HIGH", first.Urgency)
	}

	// Vague follow-ups cap out into a conservative triage, which must
	// not land below the standing HIGH tier.
	var last *models.TurnReply
	for i := 0; i <= models.MaxClarifyTurns; i++ {
		last = turn(t, e, "s1", "I am not feeling well")
	}
	if last.Intent != models.IntentSymptoms {
		t.Fatalf("capped turn intent = %s, want SYMPTOMS", last.Intent)
	}
	if last.Urgency != models.UrgencyHigh || last.CareLevel != models.CareLevelEmergency {
		t.Errorf("tier downgraded to %s/%s despite no new information", last.Urgency, last.CareLevel)
	}
}

func TestHandleTurnLocationFlow(t *testing.T) {
	locator := &stubLocator{result: wagholiResult()}
	e := newTestEngine(WithLocator(locator))

	turn(t, e, "s1", "fever since 3 days")
	reply := turn(t, e, "s1", "412207")

	if len(reply.Facilities) == 0 {
		t.Fatal("expected facilities after sending a pincode")
	}
	if !strings.Contains(reply.Reply, "Wagholi") {
		t.Errorf("reply should name the resolved location: %q", reply.Reply)
	}
	if reply.NextStep != string(models.ActionShowDoctors) {
		t.Errorf("nextStep = %q, want SHOW_DOCTORS", reply.NextStep)
	}

	// "too far" re-opens the location question, then a new pincode
	// searches again.
	refine := turn(t, e, "s1", "that is too far")
	if refine.Intent != models.IntentClarification {
		t.Fatalf("refine intent = %s, want CLARIFICATION_REQUIRED", refine.Intent)
	}
	session, err := e.GetSession("s1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if session.LastIntent != models.StateRefineLocation {
		t.Errorf("state after refine request = %s, want REFINE_LOCATION", session.LastIntent)
	}
	again := turn(t, e, "s1", "411001")
	if len(again.Facilities) == 0 {
		t.Error("expected facilities after the refined pincode")
	}
	if locator.calls != 2 {
		t.Errorf("locator called %d times, want 2", locator.calls)
	}
}

func TestHandleTurnLocationFallsBackToDirectory(t *testing.T) {
	locator := &stubLocator{err: models.ErrFacilityLookup}
	e := newTestEngine(WithLocator(locator))

	turn(t, e, "s1", "fever since 3 days")
	reply := turn(t, e, "s1", "412207")

	if len(reply.Facilities) == 0 {
		t.Fatal("live lookup failure should fall back to the seeded directory")
	}
	for _, f := range reply.Facilities {
		if f.Type != "PHC" {
			t.Errorf("PHC care level should list PHC facilities, got %s", f.Type)
		}
	}
	if !reply.Meta.FallbackUsed {
		t.Error("directory fallback should be reported in meta")
	}
}

func TestHandleTurnRemembersFacilityType(t *testing.T) {
	e := newTestEngine()
	turn(t, e, "s1", "fever since 3 days")

	session, err := e.GetSession("s1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if session.LastFacilityType != "PHC" {
		t.Fatalf("facility type after triage = %q, want PHC", session.LastFacilityType)
	}

	// The remembered type drives the directory search, so a re-search
	// stays on the tier already shown.
	reply := turn(t, e, "s1", "412207")
	for _, f := range reply.Facilities {
		if f.Type != "PHC" {
			t.Errorf("directory search returned a %s facility, want PHC", f.Type)
		}
	}
	session, _ = e.GetSession("s1")
	if session.LastFacilityType != "PHC" {
		t.Errorf("facility type after search = %q, want PHC", session.LastFacilityType)
	}

	turn(t, e, "s2", "severe chest pain")
	session, _ = e.GetSession("s2")
	if session.LastFacilityType != "DISTRICT_HOSPITAL" {
		t.Errorf("facility type for EMERGENCY = %q, want DISTRICT_HOSPITAL", session.LastFacilityType)
	}
}

func TestHandleTurnBadPincodeReasks(t *testing.T) {
	locator := &stubLocator{err: models.ErrInvalidPincode}
	e := newTestEngine(WithLocator(locator))

	turn(t, e, "s1", "fever since 3 days")
	reply := turn(t, e, "s1", "999999")

	if reply.Intent != models.IntentClarification {
		t.Fatalf("intent = %s, want CLARIFICATION_REQUIRED", reply.Intent)
	}
	if len(reply.Facilities) != 0 {
		t.Error("an invalid pincode must not return facilities")
	}
	// The session keeps waiting for a usable pincode.
	next := turn(t, e, "s1", "ok")
	if next.NextStep != string(models.ActionAskLocation) {
		t.Errorf("nextStep = %q, want ASK_LOCATION", next.NextStep)
	}
}

func TestHandleTurnMedicalMessageEscapesLocationWait(t *testing.T) {
	e := newTestEngine()
	turn(t, e, "s1", "fever since 3 days")

	reply := turn(t, e, "s1", "now there is severe chest pain")
	if reply.Urgency != models.UrgencyHigh {
		t.Errorf("new red flag while waiting for location should re-triage, got %s", reply.Urgency)
	}
}

func TestTriageOnceDeterministic(t *testing.T) {
	e := newTestEngine()
	req := models.TriageRequest{Text: "high fever since 3 days and vomiting", Language: "en"}

	first, err := e.TriageOnce(context.Background(), req)
	if err != nil {
		t.Fatalf("TriageOnce failed: %v", err)
	}
	second, err := e.TriageOnce(context.Background(), req)
	if err != nil {
		t.Fatalf("TriageOnce failed: %v", err)
	}
	first.Meta.LatencyMs, second.Meta.LatencyMs = 0, 0
	if !reflect.DeepEqual(first, second) {
		t.Errorf("identical input produced different output:\n%+v\n%+v", first, second)
	}
	if first.Urgency != models.UrgencyMedium || first.CareLevel != models.CareLevelPHC {
		t.Errorf("tier = %s/%s, want MEDIUM/PHC", first.Urgency, first.CareLevel)
	}
}

func TestTriageOnceVagueAsksForDetail(t *testing.T) {
	e := newTestEngine()
	reply, err := e.TriageOnce(context.Background(), models.TriageRequest{Text: "help me please"})
	if err != nil {
		t.Fatalf("TriageOnce failed: %v", err)
	}
	if reply.Intent != models.IntentClarification {
		t.Errorf("intent = %s, want CLARIFICATION_REQUIRED", reply.Intent)
	}
	if reply.TriageCard != nil {
		t.Error("vague input must not produce a card")
	}
}

// A dead remote engine and no remote engine at all must produce the
// same decisions.
func TestFallbackEquivalence(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	local := newTestEngine()
	degraded := newTestEngine(WithRemote(aiengine.NewClient(
		aiengine.WithBaseURL(broken.URL),
		aiengine.WithHTTPClient(broken.Client()),
	)))

	messages := []string{
		"I have chest pain and cannot breathe",
		"fever since 3 days",
		"mild cough since yesterday",
		"which medicine should I take for fever",
		"hello",
	}
	for _, msg := range messages {
		a := turn(t, local, "sess-local", msg)
		b := turn(t, degraded, "sess-degraded", msg)
		if a.Scope != b.Scope || a.Intent != b.Intent || a.Urgency != b.Urgency || a.CareLevel != b.CareLevel {
			t.Errorf("%q: local %s/%s/%s/%s vs degraded %s/%s/%s/%s",
				msg, a.Scope, a.Intent, a.Urgency, a.CareLevel,
				b.Scope, b.Intent, b.Urgency, b.CareLevel)
		}
		if !b.Meta.FallbackUsed {
			t.Errorf("%q: degraded engine should report fallback", msg)
		}
	}
}

// The remote classifier is consulted as a cross-check, but its tier
// never overrides the rule engine.
func TestRemoteClassifyIsAdvisoryOnly(t *testing.T) {
	classifyCalls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/classify" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		classifyCalls++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"urgency":"LOW","careLevel":"HOME","reasonCodes":[]}`))
	}))
	defer srv.Close()

	e := newTestEngine(WithRemote(aiengine.NewClient(
		aiengine.WithBaseURL(srv.URL),
		aiengine.WithHTTPClient(srv.Client()),
	)))
	reply := turn(t, e, "s1", "I have chest pain and cannot breathe")

	if classifyCalls == 0 {
		t.Fatal("remote classifier was never consulted")
	}
	if reply.Urgency != models.UrgencyHigh || reply.CareLevel != models.CareLevelEmergency {
		t.Errorf("tier = %s/%s, want HIGH/EMERGENCY despite the remote saying LOW/HOME",
			reply.Urgency, reply.CareLevel)
	}
}

func TestStartAndGetSession(t *testing.T) {
	e := newTestEngine()
	session, err := e.StartSession("hi")
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if session.ID == "" || session.Language != "hi" || session.LastIntent != models.StateInit {
		t.Errorf("unexpected session %+v", session)
	}

	got, err := e.GetSession(session.ID)
	if err != nil || got.ID != session.ID {
		t.Errorf("GetSession = %+v, %v", got, err)
	}
	if _, err := e.GetSession("missing"); !errors.Is(err, models.ErrSessionNotFound) {
		t.Errorf("error = %v, want ErrSessionNotFound", err)
	}
}

func TestTriageLogWritten(t *testing.T) {
	st := store.NewInMemoryStore()
	e := newTestEngine(WithStore(st))
	turn(t, e, "s1", "snake bite on leg")

	logs := st.TriageLogs()
	if len(logs) != 1 {
		t.Fatalf("expected 1 triage log, got %d", len(logs))
	}
	if logs[0].Urgency != models.UrgencyHigh || len(logs[0].ReasonCodes) == 0 {
		t.Errorf("unexpected log entry %+v", logs[0])
	}
	if logs[0].ReasonCodes[0] != "RF-006" {
		t.Errorf("reason code = %s, want RF-006", logs[0].ReasonCodes[0])
	}
}
