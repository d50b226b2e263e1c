package rules

import (
	"strings"

	"github.com/GraminSeva/TriageLine/internal/models"
)

// LocalIntent gates a MEDICAL-scope message into one of the three
// conversational intents. Rule order is load-bearing: symptom signals
// are checked before the word-count heuristic so that short but
// specific phrases like "fever 2 days" are never read as small talk.
func LocalIntent(text string) models.Intent {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return models.IntentSmallTalk
	}
	if greetingPattern.MatchString(trimmed) {
		return models.IntentSmallTalk
	}
	if hasSymptomSignal(trimmed) {
		return models.IntentSymptoms
	}
	if matchAny(trimmed, vagueHealthPatterns) {
		return models.IntentClarification
	}
	if wordCount(trimmed) <= 3 {
		return models.IntentSmallTalk
	}
	return models.IntentClarification
}

// hasSymptomSignal reports whether any symptom or red-flag keyword
// appears in the text.
func hasSymptomSignal(text string) bool {
	for _, code := range symptomOrder {
		if matchAny(text, symptomKeywords[code]) {
			return true
		}
	}
	return false
}
