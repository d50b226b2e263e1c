package triage

import (
	"github.com/GraminSeva/TriageLine/internal/i18n"
	"github.com/GraminSeva/TriageLine/internal/models"
)

// Card display limits.
const (
	maxWhy      = 2
	maxWatchFor = 3
)

// careLevelFacilityTypes maps a recommended care level to the facility
// types worth showing. Each tier includes the next one down so the user
// has a nearer option when the ideal facility is far.
var careLevelFacilityTypes = map[models.CareLevel][]string{
	models.CareLevelHome:             {},
	models.CareLevelPHC:              {"PHC"},
	models.CareLevelCHC:              {"CHC", "PHC"},
	models.CareLevelDistrictHospital: {"DISTRICT_HOSPITAL", "CHC"},
	models.CareLevelEmergency:        {"DISTRICT_HOSPITAL"},
}

// FacilityTypesForCareLevel returns the facility types to search for a
// care level. HOME yields none.
func FacilityTypesForCareLevel(level models.CareLevel) []string {
	types := careLevelFacilityTypes[level]
	out := make([]string, len(types))
	copy(out, types)
	return out
}

// cardActionIDs fixes the button set and ordering per urgency tier. The
// first entry is the primary action.
var cardActionIDs = map[models.Urgency][]models.ActionID{
	models.UrgencyHigh:   {models.ActionCall108, models.ActionFindFacility, models.ActionBookAppointment},
	models.UrgencyMedium: {models.ActionFindFacility, models.ActionBookAppointment, models.ActionHomeTips},
	models.UrgencyLow:    {models.ActionHomeTips, models.ActionFindFacility, models.ActionBookAppointment},
}

// cardActions builds the localized button row for an urgency tier.
func cardActions(urgency models.Urgency, language string) []models.CardAction {
	ids := cardActionIDs[urgency]
	actions := make([]models.CardAction, 0, len(ids))
	for i, id := range ids {
		priority := models.ActionPrioritySecondary
		if i == 0 {
			priority = models.ActionPriorityPrimary
		}
		actions = append(actions, models.CardAction{
			Priority: priority,
			ActionID: id,
			Label:    i18n.Label("action."+string(id), language),
		})
	}
	return actions
}

// buildCard renders a presentation-ready card from the classifier
// output. Cards are always rebuilt from the decision, never cached.
func (e *Engine) buildCard(result models.ClassificationResult, structured models.StructuredComplaint, language string) *models.TriageCard {
	u := string(result.Urgency)
	card := &models.TriageCard{
		Urgency:      result.Urgency,
		CareLevel:    result.CareLevel,
		UrgencyLabel: i18n.Label("urgency."+u+".label", language),
		Headline:     i18n.Label("urgency."+u+".headline", language),
		TimeToAct:    i18n.Label("urgency."+u+".timeToAct", language),
		Why:          cardWhy(structured, language),
		WatchFor:     capStrings(i18n.List("watchFor."+u, language), maxWatchFor),
		Actions:      cardActions(result.Urgency, language),
	}
	return card
}

// cardWhy summarizes what drove the decision: the primary complaint
// with its duration, then the first red flag or associated symptom.
func cardWhy(structured models.StructuredComplaint, language string) []string {
	var why []string
	if structured.PrimaryComplaint != models.UnknownComplaint {
		entry := i18n.SymptomLabel(structured.PrimaryComplaint, language)
		if days := structured.Duration.DaysOrNegative(); days >= 0 {
			entry += " " + i18n.Labelf("card.forDays", language, days)
		}
		why = append(why, entry)
	}
	for _, flag := range structured.RedFlagsDetected {
		if flag != structured.PrimaryComplaint {
			why = append(why, i18n.SymptomLabel(flag, language))
			break
		}
	}
	if len(why) < maxWhy {
		for _, symptom := range structured.AssociatedSymptoms {
			if len(structured.RedFlagsDetected) > 0 {
				break
			}
			why = append(why, i18n.SymptomLabel(symptom, language))
			break
		}
	}
	return capStrings(why, maxWhy)
}

func capStrings(items []string, max int) []string {
	if len(items) > max {
		return items[:max]
	}
	return items
}
