// Package safety filters generated reply text before it leaves the
// engine. Any reply that reads like a diagnosis or a medicine
// recommendation is replaced with a localized safe fallback, regardless
// of which upstream service produced it.
package safety

import (
	"log/slog"
	"regexp"

	"github.com/GraminSeva/TriageLine/internal/i18n"
)

// blockedPatterns match phrasing the assistant must never emit:
// naming a diagnosis, prescribing, or dosing.
var blockedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\byou (have|are suffering from|probably have|might have)\b.{0,40}\b(malaria|dengue|typhoid|cancer|tuberculosis|covid|pneumonia|diabetes)\b`),
	regexp.MustCompile(`(?i)\b(take|i (recommend|suggest|prescribe))\b.{0,40}\b(tablet|capsule|syrup|antibiotic|paracetamol|ibuprofen|aspirin|dolo|crocin|mg)\b`),
	regexp.MustCompile(`(?i)\b\d+\s*mg\b`),
	regexp.MustCompile(`(?i)\btwice (a|per) day\b|\bthrice (a|per) day\b|\bevery \d+ hours take\b`),
	regexp.MustCompile(`आपको .{0,20}(मलेरिया|डेंगू|टाइफाइड|कैंसर|निमोनिया) (है|हो सकता)`),
	regexp.MustCompile(`(दवा|गोली|टैबलेट) (लें|लीजिए|खाओ|खा लो)`),
	regexp.MustCompile(`(गोळी|औषध) (घ्या|घे)`),
	regexp.MustCompile(`(மாத்திரை|மருந்து) (எடுத்துக்|சாப்பிடு)`),
	regexp.MustCompile(`(మాత్ర|మందు) (వేసుకో|తీసుకో)`),
}

// CheckReply returns the reply unchanged when it is safe, or the
// localized safe fallback when it trips a blocked pattern. The second
// return reports whether filtering happened.
func CheckReply(reply, language string) (string, bool) {
	for _, p := range blockedPatterns {
		if p.MatchString(reply) {
			slog.Warn("safety.CheckReply: blocked unsafe reply", "language", language, "pattern", p.String())
			return i18n.Label("reply.safetyFallback", language), true
		}
	}
	return reply, false
}
