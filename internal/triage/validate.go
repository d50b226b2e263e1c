package triage

import (
	"strings"

	"github.com/GraminSeva/TriageLine/internal/i18n"
	"github.com/GraminSeva/TriageLine/internal/models"
	"github.com/GraminSeva/TriageLine/internal/safety"
)

// Finalize repairs a reply in place so that every turn leaving the
// engine is well-formed. It is total: it never rejects a reply, only
// fixes it. It is also idempotent, running it twice changes nothing.
//
// Repairs applied:
//   - a missing or invalid intent becomes CLARIFICATION_REQUIRED, the
//     conservative reading of a turn whose intent is unknown
//   - a blank reply text becomes the safety fallback wording
//   - non-SYMPTOMS turns carry no urgency, care level, card, or
//     structured complaint
//   - SYMPTOMS turns with an invalid tier get the conservative
//     MEDIUM/PHC default
//   - a card always agrees with the reply's tier and respects the
//     display limits
//   - reply text that names a diagnosis or a medicine is replaced by
//     the safety fallback
func Finalize(reply *models.TurnReply, language string) {
	if !models.IsValidIntent(reply.Intent) {
		reply.Intent = models.IntentClarification
	}

	if reply.Intent != models.IntentSymptoms {
		reply.Urgency = ""
		reply.CareLevel = ""
		reply.TriageCard = nil
		reply.Structured = nil
		reply.Emergency = nil
		reply.Tips = nil
	} else {
		if !models.IsValidUrgency(reply.Urgency) {
			reply.Urgency = models.UrgencyMedium
		}
		if !models.IsValidCareLevel(reply.CareLevel) {
			reply.CareLevel = models.CareLevelPHC
		}
		if card := reply.TriageCard; card != nil {
			card.Urgency = reply.Urgency
			card.CareLevel = reply.CareLevel
			if card.UrgencyLabel == "" {
				card.UrgencyLabel = i18n.Label("urgency."+string(card.Urgency)+".label", language)
			}
			if card.Headline == "" {
				card.Headline = i18n.Label("urgency."+string(card.Urgency)+".headline", language)
			}
			if card.TimeToAct == "" {
				card.TimeToAct = i18n.Label("urgency."+string(card.Urgency)+".timeToAct", language)
			}
			card.Why = capStrings(card.Why, maxWhy)
			card.WatchFor = capStrings(card.WatchFor, maxWatchFor)
			if len(card.Actions) == 0 {
				card.Actions = cardActions(card.Urgency, language)
			}
		}
	}

	if strings.TrimSpace(reply.Reply) == "" {
		reply.Reply = i18n.Label("reply.safetyFallback", language)
	}
	reply.Reply, _ = safety.CheckReply(reply.Reply, language)
}
