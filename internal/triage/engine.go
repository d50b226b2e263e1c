// Package triage implements the conversation engine: scope and intent
// gating, symptom extraction, deterministic urgency classification,
// card building, and the session state machine that carries a user
// from a complaint to a facility, a doctor, and a booked slot.
//
// The engine is remote-first with a total local fallback. Any failure
// of the upstream AI engine degrades to the rule tables in
// internal/rules, so a turn always produces a usable reply. The final
// clinical tier is always computed by rules.Config.Classify; remote
// output never writes urgency or care level directly.
package triage

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/GraminSeva/TriageLine/internal/aiengine"
	"github.com/GraminSeva/TriageLine/internal/genai"
	"github.com/GraminSeva/TriageLine/internal/geo"
	"github.com/GraminSeva/TriageLine/internal/i18n"
	"github.com/GraminSeva/TriageLine/internal/models"
	"github.com/GraminSeva/TriageLine/internal/rules"
	"github.com/GraminSeva/TriageLine/internal/safety"
	"github.com/GraminSeva/TriageLine/internal/store"
)

// EmergencyNumber is the national ambulance number.
const EmergencyNumber = "108"

// HelplineNumber is the national health helpline.
const HelplineNumber = "104"

// FacilityLocator resolves a pincode to nearby facilities. Satisfied by
// *geo.Service; tests substitute stubs.
type FacilityLocator interface {
	Lookup(ctx context.Context, pincode string) (*geo.Result, error)
}

// Opts holds configuration options for the engine.
type Opts struct {
	Store   store.Store
	Remote  *aiengine.Client
	GenAI   *genai.Client
	Locator FacilityLocator
	Rules   rules.Config
}

// Option configures the engine.
type Option func(*Opts)

// WithStore sets the session and booking store.
func WithStore(s store.Store) Option {
	return func(o *Opts) { o.Store = s }
}

// WithRemote sets the AI engine client. A nil client disables the
// remote path entirely; every turn then runs on local rules.
func WithRemote(c *aiengine.Client) Option {
	return func(o *Opts) { o.Remote = c }
}

// WithGenAI sets the direct LLM client used for general answers.
func WithGenAI(c *genai.Client) Option {
	return func(o *Opts) { o.GenAI = c }
}

// WithLocator sets the facility locator.
func WithLocator(l FacilityLocator) Option {
	return func(o *Opts) { o.Locator = l }
}

// WithRules overrides the rule engine thresholds.
func WithRules(cfg rules.Config) Option {
	return func(o *Opts) { o.Rules = cfg }
}

// Engine drives one conversation turn at a time. Turns on the same
// session are serialized; turns on different sessions run concurrently.
type Engine struct {
	store   store.Store
	remote  *aiengine.Client
	genai   *genai.Client
	locator FacilityLocator
	rules   rules.Config

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates an engine. Without options it runs fully local: in-memory
// store, no remote classifier, no LLM.
func New(opts ...Option) *Engine {
	o := Opts{Rules: rules.DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Store == nil {
		o.Store = store.NewInMemoryStore()
	}
	if o.Rules == (rules.Config{}) {
		o.Rules = rules.DefaultConfig()
	}
	return &Engine{
		store:   o.Store,
		remote:  o.Remote,
		genai:   o.GenAI,
		locator: o.Locator,
		rules:   o.Rules,
		locks:   make(map[string]*sync.Mutex),
	}
}

// lockSession serializes turns for one session id.
func (e *Engine) lockSession(id string) func() {
	e.mu.Lock()
	m, ok := e.locks[id]
	if !ok {
		m = &sync.Mutex{}
		e.locks[id] = m
	}
	e.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// StartSession creates and persists a fresh session.
func (e *Engine) StartSession(language string) (*models.Session, error) {
	session := &models.Session{
		ID:         uuid.NewString(),
		Language:   models.NormalizeLanguage(language),
		LastIntent: models.StateInit,
	}
	if err := e.store.SaveSession(session); err != nil {
		return nil, err
	}
	slog.Info("Engine.StartSession: session created", "sessionID", session.ID, "language", session.Language)
	return session, nil
}

// GetSession returns the stored session or ErrSessionNotFound.
func (e *Engine) GetSession(id string) (*models.Session, error) {
	session, err := e.store.GetSession(id)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, models.ErrSessionNotFound
	}
	return session, nil
}

// NearbyFacilities resolves a pincode to facilities for the lookup
// endpoint. The live chain is tried first; a chain failure falls back
// to the seeded directory. A bad pincode or an unresolvable location
// is reported as-is so the transport can distinguish the cases.
func (e *Engine) NearbyFacilities(ctx context.Context, pincode string) ([]models.Facility, string, error) {
	if geo.ExtractPincode(pincode) != pincode || len(pincode) != 6 {
		return nil, "", models.ErrInvalidPincode
	}
	if e.locator != nil {
		result, err := e.locator.Lookup(ctx, pincode)
		switch {
		case err == nil:
			return result.Facilities, result.LocationText, nil
		case errors.Is(err, models.ErrInvalidPincode), errors.Is(err, models.ErrLocationNotFound):
			return nil, "", err
		default:
			slog.Warn("Engine.NearbyFacilities: live lookup failed, using directory", "pincode", pincode, "error", err)
		}
	}
	facilities, err := e.store.ListFacilitiesByTypes([]string{"PHC", "CHC", "DISTRICT_HOSPITAL"})
	if err != nil || len(facilities) == 0 {
		return nil, "", models.ErrFacilityLookup
	}
	return facilities, "", nil
}

// HandleTurn processes one free-text message. It only returns an error
// for an invalid request; once the pipeline starts, every failure path
// degrades into a usable reply instead.
func (e *Engine) HandleTurn(ctx context.Context, req models.ChatRequest) (*models.TurnReply, error) {
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

	reply := e.turn(ctx, session, req.Message, language)
	reply.SessionID = sessionID
	Finalize(reply, language)

	session.LastActiveAt = time.Now().UTC()
	if err := e.store.SaveSession(session); err != nil {
		slog.Error("Engine.HandleTurn: failed to save session", "sessionID", sessionID, "error", err)
	}
	reply.Meta.LatencyMs = time.Since(start).Milliseconds()
	slog.Info("Engine.HandleTurn: turn complete",
		"sessionID", sessionID, "scope", reply.Scope, "intent", reply.Intent,
		"urgency", reply.Urgency, "latencyMs", reply.Meta.LatencyMs)
	return reply, nil
}

// TriageOnce runs the stateless extract-classify-card pipeline for one
// message, with no session and no conversation flow.
func (e *Engine) TriageOnce(ctx context.Context, req models.TriageRequest) (*models.TurnReply, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	language := models.NormalizeLanguage(req.Language)

	structured, llmUsed := e.extract(ctx, req.Text, language, req.Source)
	reply := &models.TurnReply{
		Scope: models.ScopeMedical,
		Meta:  models.Meta{LLMUsed: llmUsed, FallbackUsed: !llmUsed},
	}
	if structured.IsEmpty() {
		reply.Intent = models.IntentClarification
		reply.Reply = i18n.Label("reply.clarify.generic", language)
		reply.NextQuestion = reply.Reply
	} else {
		e.applyTriage(ctx, reply, structured, language)
	}
	Finalize(reply, language)
	reply.Meta.LatencyMs = time.Since(start).Milliseconds()
	return reply, nil
}

func (e *Engine) loadOrCreateSession(id, language string) *models.Session {
	session, err := e.store.GetSession(id)
	if err != nil {
		slog.Error("Engine.loadOrCreateSession: session load failed", "sessionID", id, "error", err)
	}
	if session == nil {
		session = &models.Session{
			ID:         id,
			Language:   models.NormalizeLanguage(language),
			LastIntent: models.StateInit,
		}
	}
	return session
}

// turn is the state machine core. Location-capture states are checked
// before scope classification so a bare pincode is not misread as
// small talk.
func (e *Engine) turn(ctx context.Context, session *models.Session, text, language string) *models.TurnReply {
	if session.LastIntent == models.StateAskLocation || session.LastIntent == models.StateAwaitingLocation ||
		session.LastIntent == models.StateRefineLocation {
		if pin := geo.ExtractPincode(text); pin != "" {
			return e.facilitySearch(ctx, session, pin, language)
		}
		// A message with real medical content continues the pipeline;
		// only non-medical chatter gets the pincode re-ask.
		if rules.LocalScope(text) != models.ScopeMedical || rules.IsLocationRefinement(text) {
			session.LastIntent = models.StateAwaitingLocation
			reply := i18n.Label("reply.askPincodeAgain", language)
			return &models.TurnReply{
				Scope:        models.ScopeMedical,
				Intent:       models.IntentClarification,
				Reply:        reply,
				NextStep:     string(models.ActionAskLocation),
				NextQuestion: reply,
				Meta:         models.Meta{FallbackUsed: e.remote == nil},
			}
		}
	}
	if pin := geo.ExtractPincode(text); pin != "" && session.HasTriageContext() {
		return e.facilitySearch(ctx, session, pin, language)
	}
	if rules.IsLocationRefinement(text) && session.HasFacilityContext() {
		session.LastIntent = models.StateRefineLocation
		reply := i18n.Label("reply.locationRefine", language)
		return &models.TurnReply{
			Scope:        models.ScopeMedical,
			Intent:       models.IntentClarification,
			Reply:        reply,
			NextStep:     string(models.ActionAskLocation),
			NextQuestion: i18n.Label("reply.askPincode", language),
		}
	}

	scope, llmUsed := e.classifyScope(ctx, text, language)
	meta := models.Meta{LLMUsed: llmUsed, FallbackUsed: !llmUsed}

	switch scope {
	case models.ScopeOutOfScope:
		return &models.TurnReply{
			Scope:  scope,
			Intent: models.IntentSmallTalk,
			Reply:  i18n.Label("reply.outOfScope", language),
			Meta:   meta,
		}
	case models.ScopeNonMedicalSafe:
		return e.generalAnswer(ctx, session, text, language, meta)
	}

	intent, extracted, intentMeta := e.classifyIntent(ctx, text, language)
	meta.LLMUsed = meta.LLMUsed || intentMeta.LLMUsed
	meta.FallbackUsed = meta.FallbackUsed || intentMeta.FallbackUsed

	switch intent {
	case models.IntentSmallTalk:
		if !session.HasTriageContext() {
			session.LastIntent = models.StateSmallTalk
		}
		return &models.TurnReply{
			Scope:  models.ScopeMedical,
			Intent: models.IntentSmallTalk,
			Reply:  i18n.Label("reply.smallTalk", language),
			Meta:   meta,
		}
	case models.IntentSymptoms:
		structured := extracted
		if structured == nil {
			s, llm := e.extract(ctx, text, language, "text")
			structured = &s
			meta.LLMUsed = meta.LLMUsed || llm
			meta.FallbackUsed = meta.FallbackUsed || !llm
		}
		if !structured.IsEmpty() {
			session.ClarifyCount = 0
			return e.symptomTurn(ctx, session, text, *structured, language, meta)
		}
		// Extraction found nothing usable, treat the turn as a
		// clarification request rather than triaging thin air.
		fallthrough
	default:
		return e.clarifyTurn(ctx, session, text, extracted, language, meta)
	}
}

// clarifyTurn asks a targeted follow-up question. After MaxClarifyTurns
// consecutive asks it stops re-asking and triages conservatively with
// whatever is known.
func (e *Engine) clarifyTurn(ctx context.Context, session *models.Session, text string, extracted *models.StructuredComplaint, language string, meta models.Meta) *models.TurnReply {
	session.ClarifyCount++
	if session.ClarifyCount > models.MaxClarifyTurns {
		session.ClarifyCount = 0
		var structured models.StructuredComplaint
		if extracted != nil {
			structured = *extracted
		} else {
			structured = rules.LocalExtract(text)
		}
		structured.Normalize()
		reply := e.symptomTurn(ctx, session, text, structured, language, meta)
		reply.Reply = i18n.Label("reply.clarifyCap", language) + " " + reply.Reply
		return reply
	}

	session.LastIntent = models.StateClarification
	kind := "generic"
	if extracted != nil && extracted.ClarifyingQuestion != nil && *extracted.ClarifyingQuestion != "" {
		kind = *extracted.ClarifyingQuestion
	} else {
		local := rules.LocalExtract(text)
		if local.ClarifyingQuestion != nil && *local.ClarifyingQuestion != "" {
			kind = *local.ClarifyingQuestion
		}
	}
	question := i18n.Label("reply.clarify."+kind, language)
	return &models.TurnReply{
		Scope:        models.ScopeMedical,
		Intent:       models.IntentClarification,
		Reply:        question,
		NextQuestion: question,
		Meta:         meta,
	}
}

// symptomTurn runs the deterministic classifier and assembles the full
// triage reply: card, emergency payload, tips, and the next step.
func (e *Engine) symptomTurn(ctx context.Context, session *models.Session, text string, structured models.StructuredComplaint, language string, meta models.Meta) *models.TurnReply {
	reply := &models.TurnReply{Scope: models.ScopeMedical, Meta: meta}
	e.applyTriage(ctx, reply, structured, language)

	// An uninformative turn never lowers the standing tier.
	if session.HasTriageContext() && structured.PrimaryComplaint == models.UnknownComplaint &&
		len(structured.RedFlagsDetected) == 0 && reply.Urgency.Rank() < session.LastUrgency.Rank() {
		reply.Urgency = session.LastUrgency
		reply.CareLevel = session.LastCareLevel
		if reply.TriageCard != nil {
			reply.TriageCard = e.buildCard(models.ClassificationResult{
				Urgency: reply.Urgency, CareLevel: reply.CareLevel,
			}, structured, language)
		}
	}

	session.LastIntent = models.StateTriageResult
	session.LastUrgency = reply.Urgency
	session.LastCareLevel = reply.CareLevel
	if types := FacilityTypesForCareLevel(reply.CareLevel); len(types) > 0 {
		session.LastFacilityType = types[0]
	} else {
		session.LastFacilityType = ""
	}
	session.TriageCount++

	if err := e.store.AddTriageLog(models.TriageLogEntry{
		SessionID:   session.ID,
		InputText:   text,
		Language:    language,
		Urgency:     reply.Urgency,
		CareLevel:   reply.CareLevel,
		ReasonCodes: e.rules.Classify(structured).ReasonCodes,
		LLMUsed:     meta.LLMUsed,
		Fallback:    meta.FallbackUsed,
	}); err != nil {
		slog.Error("Engine.symptomTurn: failed to write triage log", "sessionID", session.ID, "error", err)
	}

	// HIGH and MEDIUM tiers need a facility, so ask for location unless
	// the session already has one.
	if reply.Urgency != models.UrgencyLow && session.LastKnownPincode == "" {
		session.LastIntent = models.StateAskLocation
		reply.NextStep = string(models.ActionAskLocation)
		reply.NextQuestion = i18n.Label("reply.askPincode", language)
	}
	return reply
}

// applyTriage classifies a structured complaint and fills the triage
// fields of a reply. The tier always comes from the rule engine; the
// remote classifier is consulted as a cross-check and a disagreement
// is only logged.
func (e *Engine) applyTriage(ctx context.Context, reply *models.TurnReply, structured models.StructuredComplaint, language string) {
	structured.Normalize()
	result := e.rules.Classify(structured)
	if e.remote != nil {
		if advisory, err := e.remote.Classify(ctx, structured, language); err == nil {
			if advisory.Urgency != result.Urgency || advisory.CareLevel != result.CareLevel {
				slog.Warn("Engine.applyTriage: remote tier disagrees with rules, keeping rules",
					"remoteUrgency", advisory.Urgency, "remoteCareLevel", advisory.CareLevel,
					"urgency", result.Urgency, "careLevel", result.CareLevel)
			}
		} else {
			slog.Debug("Engine.applyTriage: remote classify unavailable", "error", err)
		}
	}

	reply.Intent = models.IntentSymptoms
	reply.Urgency = result.Urgency
	reply.CareLevel = result.CareLevel
	reply.Structured = &structured
	reply.TriageCard = e.buildCard(result, structured, language)
	reply.Reply = e.explainReply(ctx, reply.TriageCard, result, structured, language)

	switch result.Urgency {
	case models.UrgencyHigh:
		reply.Reply = i18n.Label("reply.emergency", language)
		reply.Emergency = &models.Emergency{
			Number:  EmergencyNumber,
			Message: reply.Reply,
		}
	case models.UrgencyLow:
		reply.Tips = i18n.List("tips.home", language)
	}
}

// explainReply asks the remote engine for a worded rationale, falling
// back to the card headline. Remote text passes the safety check.
func (e *Engine) explainReply(ctx context.Context, card *models.TriageCard, result models.ClassificationResult, structured models.StructuredComplaint, language string) string {
	if e.remote != nil {
		if out, err := e.remote.Explain(ctx, result, structured, language); err == nil {
			text, _ := safety.CheckReply(out.Explanation, language)
			if text != "" {
				if out.TimeToAct != "" {
					card.TimeToAct = out.TimeToAct
				}
				if len(out.WatchFor) > 0 {
					card.WatchFor = capStrings(out.WatchFor, maxWatchFor)
				}
				return text
			}
		} else {
			slog.Warn("Engine.explainReply: remote explain failed, using local wording", "error", err)
		}
	}
	return card.Headline + " " + card.TimeToAct
}

// generalAnswer handles NON_MEDICAL_SAFE chat: answer briefly, then
// nudge back to health. LLM output always passes the safety check.
func (e *Engine) generalAnswer(ctx context.Context, session *models.Session, text, language string, meta models.Meta) *models.TurnReply {
	answer := ""
	if e.remote != nil {
		if out, err := e.remote.GeneralAnswer(ctx, text, language); err == nil {
			answer = out.Reply
			meta.LLMUsed = true
		}
	}
	if answer == "" && e.genai != nil {
		out, err := e.genai.GeneralAnswer(ctx, text, language)
		if err != nil {
			slog.Warn("Engine.generalAnswer: LLM answer failed", "error", err)
		} else {
			answer = out
			meta.LLMUsed = true
		}
	}
	if answer == "" {
		answer = i18n.Label("reply.generalAnswer", language)
		meta.FallbackUsed = true
	}
	answer, repaired := safety.CheckReply(answer, language)
	if repaired {
		slog.Warn("Engine.generalAnswer: reply replaced by safety fallback")
	}
	if !session.HasTriageContext() {
		session.LastIntent = models.StateSmallTalk
	}
	return &models.TurnReply{
		Scope:  models.ScopeNonMedicalSafe,
		Intent: models.IntentSmallTalk,
		Reply:  answer + " " + i18n.Label("reply.nonMedicalNudge", language),
		Meta:   meta,
	}
}

// facilitySearch resolves a pincode to nearby facilities with the live
// lookup chain, falling back to the seeded directory when the chain
// fails. A bad pincode re-asks instead of failing the turn.
func (e *Engine) facilitySearch(ctx context.Context, session *models.Session, pincode, language string) *models.TurnReply {
	reply := &models.TurnReply{
		Scope:     models.ScopeMedical,
		Intent:    models.IntentSymptoms,
		Urgency:   session.LastUrgency,
		CareLevel: session.LastCareLevel,
	}

	locationText := ""
	var facilities []models.Facility
	if e.locator != nil {
		result, err := e.locator.Lookup(ctx, pincode)
		switch {
		case err == nil:
			locationText = result.LocationText
			facilities = result.Facilities
			session.LastKnownPincode = pincode
			session.LastKnownLocationText = locationText
		case errors.Is(err, models.ErrInvalidPincode):
			session.LastIntent = models.StateAwaitingLocation
			reply.Intent = models.IntentClarification
			reply.Reply = i18n.Label("reply.askPincodeAgain", language)
			reply.NextStep = string(models.ActionAskLocation)
			reply.NextQuestion = reply.Reply
			return reply
		default:
			slog.Warn("Engine.facilitySearch: live lookup failed, using directory",
				"pincode", pincode, "error", err)
			reply.Meta.FallbackUsed = true
		}
	}

	if len(facilities) == 0 {
		// A remembered facility type wins over re-deriving from the care
		// level, so a re-search stays on the tier already shown.
		types := []string{session.LastFacilityType}
		if session.LastFacilityType == "" {
			types = FacilityTypesForCareLevel(session.LastCareLevel)
		}
		if len(types) == 0 {
			types = []string{string(models.CareLevelPHC)}
		}
		seeded, err := e.store.ListFacilitiesByTypes(types)
		if err != nil {
			slog.Error("Engine.facilitySearch: directory lookup failed", "error", err)
		}
		facilities = seeded
		session.LastFacilityType = types[0]
	}

	session.LastIntent = models.StateFacilitySearch
	if len(facilities) == 0 {
		reply.Reply = i18n.Label("reply.noFacilities", language)
		return reply
	}
	if locationText == "" {
		locationText = session.LastKnownLocationText
	}
	if locationText == "" {
		locationText = pincode
	}
	reply.Facilities = facilities
	reply.Reply = i18n.Labelf("reply.facilitiesFound", language, locationText)
	reply.NextStep = string(models.ActionShowDoctors)
	return reply
}

// classifyScope is remote-first with a local rule fallback.
func (e *Engine) classifyScope(ctx context.Context, text, language string) (models.Scope, bool) {
	if e.remote != nil {
		if out, err := e.remote.ClassifyScope(ctx, text, language); err == nil {
			return out.Scope, out.LLMUsed
		} else {
			slog.Warn("Engine.classifyScope: remote scope failed, using local rules", "error", err)
		}
	}
	return rules.LocalScope(text), false
}

// classifyIntent is remote-first with a local rule fallback. The remote
// path may also return the extraction, saving a round trip.
func (e *Engine) classifyIntent(ctx context.Context, text, language string) (models.Intent, *models.StructuredComplaint, models.Meta) {
	if e.remote != nil {
		if out, err := e.remote.ClassifyIntent(ctx, text, language); err == nil {
			return out.Intent, out.Extracted, models.Meta{LLMUsed: out.LLMUsed, FallbackUsed: out.FallbackUsed}
		} else {
			slog.Warn("Engine.classifyIntent: remote intent failed, using local rules", "error", err)
		}
	}
	return rules.LocalIntent(text), nil, models.Meta{FallbackUsed: true}
}

// extract is remote-first with a local keyword fallback. The result is
// always normalized.
func (e *Engine) extract(ctx context.Context, text, language, source string) (models.StructuredComplaint, bool) {
	if e.remote != nil {
		if out, err := e.remote.Extract(ctx, text, language, source); err == nil {
			return *out, true
		} else {
			slog.Warn("Engine.extract: remote extraction failed, using local rules", "error", err)
		}
	}
	s := rules.LocalExtract(text)
	s.Normalize()
	return s, false
}
