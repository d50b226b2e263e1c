package rules

import (
	"log/slog"
	"strings"

	"github.com/GraminSeva/TriageLine/internal/models"
)

// LocalScope classifies raw text into a safety tier using the keyword
// tables alone. Out-of-scope patterns are checked first and win even
// when medical keywords are also present, so "which medicine for fever"
// stays OUT_OF_SCOPE. Anything matching neither table defaults to
// NON_MEDICAL_SAFE.
func LocalScope(text string) models.Scope {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return models.ScopeNonMedicalSafe
	}
	if matchAny(trimmed, outOfScopePatterns) {
		slog.Debug("rules.LocalScope: out-of-scope pattern matched", "length", len(trimmed))
		return models.ScopeOutOfScope
	}
	if matchAny(trimmed, medicalPatterns) {
		return models.ScopeMedical
	}
	return models.ScopeNonMedicalSafe
}
