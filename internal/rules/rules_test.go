package rules

import (
	"reflect"
	"testing"

	"github.com/GraminSeva/TriageLine/internal/models"
)

func TestLocalScopeOutOfScopeWinsOverMedical(t *testing.T) {
	// Out-of-scope patterns must win even when medical keywords are present.
	cases := []string{
		"which medicine should I take for fever",
		"medicine for headache please",
		"what dosage of paracetamol for a child",
		"कौन सी दवा लूं बुखार के लिए",
	}
	for _, text := range cases {
		if got := LocalScope(text); got != models.ScopeOutOfScope {
			t.Errorf("LocalScope(%q) = %s, want OUT_OF_SCOPE", text, got)
		}
	}
}

func TestLocalScopeMedical(t *testing.T) {
	cases := []string{
		"I have fever and body pain",
		"chest pain since morning",
		"need a doctor appointment",
		"मुझे बुखार है",
		"पोट दुखत आहे",
		"எனக்கு காய்ச்சல்",
		"నాకు జ్వరం వచ్చింది",
	}
	for _, text := range cases {
		if got := LocalScope(text); got != models.ScopeMedical {
			t.Errorf("LocalScope(%q) = %s, want MEDICAL", text, got)
		}
	}
}

func TestLocalScopeNonMedicalDefault(t *testing.T) {
	cases := []string{"hello there", "what is your name", ""}
	for _, text := range cases {
		if got := LocalScope(text); got != models.ScopeNonMedicalSafe {
			t.Errorf("LocalScope(%q) = %s, want NON_MEDICAL_SAFE", text, got)
		}
	}
	if got := LocalScope("who won the cricket match"); got != models.ScopeOutOfScope {
		t.Errorf("unrelated topic should be OUT_OF_SCOPE, got %s", got)
	}
}

func TestLocalIntentOrdering(t *testing.T) {
	cases := []struct {
		text string
		want models.Intent
	}{
		{"", models.IntentSmallTalk},
		{"   ", models.IntentSmallTalk},
		{"hello", models.IntentSmallTalk},
		{"thanks!", models.IntentSmallTalk},
		{"ok", models.IntentSmallTalk},
		{"नमस्ते", models.IntentSmallTalk},
		// Short but specific symptom phrases must be SYMPTOMS, not small
		// talk: the symptom check runs before the word-count heuristic.
		{"fever 2 days", models.IntentSymptoms},
		{"chest pain and difficulty breathing", models.IntentSymptoms},
		{"mild cough since yesterday", models.IntentSymptoms},
		{"I am sick", models.IntentClarification},
		{"not feeling well since last week", models.IntentClarification},
		{"can you tell", models.IntentSmallTalk},
		{"my neighbour asked me to send you a message today", models.IntentClarification},
	}
	for _, c := range cases {
		if got := LocalIntent(c.text); got != c.want {
			t.Errorf("LocalIntent(%q) = %s, want %s", c.text, got, c.want)
		}
	}
}

func TestLocalExtractFeverWithDuration(t *testing.T) {
	c := LocalExtract("I have fever since 3 days and mild headache")
	if c.PrimaryComplaint != "fever" {
		t.Errorf("primary = %q, want fever", c.PrimaryComplaint)
	}
	if got := c.Duration.DaysOrNegative(); got != 3 {
		t.Errorf("duration days = %d, want 3", got)
	}
	found := false
	for _, s := range c.AssociatedSymptoms {
		if s == "headache" {
			found = true
		}
	}
	if !found {
		t.Errorf("associated symptoms %v should include headache", c.AssociatedSymptoms)
	}
	if c.Severity != "mild" {
		t.Errorf("severity = %q, want mild", c.Severity)
	}
	if len(c.RedFlagsDetected) != 0 {
		t.Errorf("unexpected red flags %v", c.RedFlagsDetected)
	}
}

func TestLocalExtractDurationNormalization(t *testing.T) {
	cases := []struct {
		text string
		days int
	}{
		{"cough for 2 weeks", 14},
		{"headache for 5 hours", 0},
		{"fever since morning", 0},
		{"stomach pain since yesterday", 1},
		{"vomiting since last night", 1},
		{"बुखार 4 दिन से", 4},
	}
	for _, c := range cases {
		got := LocalExtract(c.text)
		if d := got.Duration.DaysOrNegative(); d != c.days {
			t.Errorf("duration of %q = %d days, want %d", c.text, d, c.days)
		}
	}
}

func TestLocalExtractRedFlags(t *testing.T) {
	c := LocalExtract("chest pain and difficulty breathing")
	want := map[string]bool{"chest_pain": true, "breathlessness": true}
	if len(c.RedFlagsDetected) != 2 {
		t.Fatalf("red flags = %v, want chest_pain and breathlessness", c.RedFlagsDetected)
	}
	for _, f := range c.RedFlagsDetected {
		if !want[f] {
			t.Errorf("unexpected red flag %q", f)
		}
	}

	c = LocalExtract("सांप ने काटा है")
	if len(c.RedFlagsDetected) != 1 || c.RedFlagsDetected[0] != "snake_bite" {
		t.Errorf("red flags = %v, want [snake_bite]", c.RedFlagsDetected)
	}
}

func TestLocalExtractEmpty(t *testing.T) {
	c := LocalExtract("please do something for me")
	if !c.IsEmpty() {
		t.Errorf("extraction of symptom-free text should be empty, got %+v", c)
	}
	if c.ClarifyingQuestion == nil || *c.ClarifyingQuestion != "associated" {
		t.Errorf("clarifying question = %v, want associated", c.ClarifyingQuestion)
	}
}

func TestLocalExtractClarifyingQuestionPriority(t *testing.T) {
	c := LocalExtract("I have a headache")
	if c.ClarifyingQuestion == nil || *c.ClarifyingQuestion != "duration" {
		t.Errorf("missing duration should be asked first, got %v", c.ClarifyingQuestion)
	}
	c = LocalExtract("headache for 3 days")
	if c.ClarifyingQuestion == nil || *c.ClarifyingQuestion != "severity" {
		t.Errorf("missing severity should be asked next, got %v", c.ClarifyingQuestion)
	}
	c = LocalExtract("mild headache for 3 days")
	if c.ClarifyingQuestion != nil {
		t.Errorf("complete extraction needs no clarifying question, got %v", *c.ClarifyingQuestion)
	}
}

func TestClassifyDeterminism(t *testing.T) {
	cfg := DefaultConfig()
	inputs := []models.StructuredComplaint{
		LocalExtract("fever 2 days"),
		LocalExtract("chest pain"),
		LocalExtract("mild cough since yesterday"),
		models.EmptyComplaint(),
	}
	for _, in := range inputs {
		a := cfg.Classify(in)
		b := cfg.Classify(in)
		if !reflect.DeepEqual(a, b) {
			t.Errorf("Classify not deterministic for %+v: %+v vs %+v", in, a, b)
		}
	}
}

func TestClassifyRedFlagDominance(t *testing.T) {
	cfg := DefaultConfig()
	c := models.EmptyComplaint()
	c.PrimaryComplaint = "cough"
	c.Severity = "mild"
	days := 1
	c.Duration.Days = &days
	c.RedFlagsDetected = []string{"breathlessness"}

	got := cfg.Classify(c)
	if got.Urgency != models.UrgencyHigh || got.CareLevel != models.CareLevelEmergency {
		t.Errorf("red flag must force HIGH/EMERGENCY, got %s/%s", got.Urgency, got.CareLevel)
	}
	if len(got.ReasonCodes) == 0 {
		t.Error("red flag classification must carry reason codes")
	}
}

func TestClassifyNeverDowngradesViaAbsence(t *testing.T) {
	cfg := DefaultConfig()
	got := cfg.Classify(models.EmptyComplaint())
	if got.Urgency != models.UrgencyMedium || got.CareLevel != models.CareLevelPHC {
		t.Errorf("unknown complaint must be MEDIUM/PHC, got %s/%s", got.Urgency, got.CareLevel)
	}
}

func TestClassifyScenarios(t *testing.T) {
	cfg := DefaultConfig()
	cases := []struct {
		text      string
		urgency   models.Urgency
		careLevel models.CareLevel
	}{
		{"chest pain and difficulty breathing", models.UrgencyHigh, models.CareLevelEmergency},
		{"fever 2 days", models.UrgencyMedium, models.CareLevelPHC},
		{"mild cough since yesterday", models.UrgencyLow, models.CareLevelHome},
		{"stomach pain and vomiting", models.UrgencyMedium, models.CareLevelPHC},
		{"snake bite on leg", models.UrgencyHigh, models.CareLevelEmergency},
	}
	for _, c := range cases {
		got := cfg.Classify(LocalExtract(c.text))
		if got.Urgency != c.urgency || got.CareLevel != c.careLevel {
			t.Errorf("Classify(%q) = %s/%s, want %s/%s",
				c.text, got.Urgency, got.CareLevel, c.urgency, c.careLevel)
		}
	}
}

func TestClassifyConfigurableThresholds(t *testing.T) {
	cfg := Config{FeverDurationDays: 5, SelfLimitingMaxDays: 4}

	// Below the raised fever threshold the conservative default applies.
	got := cfg.Classify(LocalExtract("fever 3 days"))
	if got.Urgency != models.UrgencyMedium || got.CareLevel != models.CareLevelPHC {
		t.Errorf("fever below threshold = %s/%s, want MEDIUM/PHC", got.Urgency, got.CareLevel)
	}

	// A wider self-limiting window lets a 3-day cough stay home care.
	got = cfg.Classify(LocalExtract("cough for 3 days"))
	if got.Urgency != models.UrgencyLow || got.CareLevel != models.CareLevelHome {
		t.Errorf("short cough = %s/%s, want LOW/HOME", got.Urgency, got.CareLevel)
	}
}

func TestClassifySevereNeverHome(t *testing.T) {
	cfg := DefaultConfig()
	got := cfg.Classify(LocalExtract("severe headache since yesterday"))
	if got.Urgency == models.UrgencyLow || got.CareLevel == models.CareLevelHome {
		t.Errorf("severe complaint must not be LOW/HOME, got %s/%s", got.Urgency, got.CareLevel)
	}
}

func TestLocationAndFacilitySignals(t *testing.T) {
	if !IsLocationRefinement("that is too far for me") {
		t.Error("'too far' should be a location refinement signal")
	}
	if !IsLocationRefinement("कोई पास में है क्या") {
		t.Error("Hindi nearby phrasing should be a location refinement signal")
	}
	if IsLocationRefinement("I have a fever") {
		t.Error("plain symptom text is not a location signal")
	}
	if !MentionsFacility("book appointment at the clinic") {
		t.Error("clinic booking should be a facility mention")
	}
	if MentionsFacility("thanks a lot") {
		t.Error("small talk is not a facility mention")
	}
}
