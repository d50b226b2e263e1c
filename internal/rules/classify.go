package rules

import (
	"log/slog"

	"github.com/GraminSeva/TriageLine/internal/models"
)

// Config holds the tunable thresholds of the rule engine. The duration
// cutoffs are demonstration values, so they are configuration rather
// than constants baked into the rules.
type Config struct {
	// FeverDurationDays is the day count at which a fever stops being a
	// wait-and-watch complaint (inclusive).
	FeverDurationDays int
	// SelfLimitingMaxDays is the exclusive upper bound for a complaint
	// to count as short-lived.
	SelfLimitingMaxDays int
}

// DefaultConfig returns the standard rule thresholds.
func DefaultConfig() Config {
	return Config{
		FeverDurationDays:   2,
		SelfLimitingMaxDays: 2,
	}
}

// Reason codes for the general rules.
const (
	reasonFeverDuration = "GEN-001"
	reasonSelfLimiting  = "GEN-010"
	reasonDefault       = "DEFAULT"
)

// Classify maps a StructuredComplaint onto an urgency tier and care
// level. It is a pure function: identical input always yields identical
// output, and it is the only place in the system allowed to produce the
// final clinical tier. Rules are evaluated in priority order, first
// match wins:
//
//  1. any red flag          -> HIGH / EMERGENCY
//  2. fever >= threshold    -> MEDIUM / PHC
//  3. one mild short-lived
//     self-limiting symptom -> LOW / HOME
//  4. recognized complaint  -> MEDIUM / PHC
//  5. nothing recognized    -> MEDIUM / PHC (absence of information is
//     never read as absence of risk)
func (cfg Config) Classify(s models.StructuredComplaint) models.ClassificationResult {
	s.Normalize()

	if len(s.RedFlagsDetected) > 0 {
		codes := make([]string, 0, len(s.RedFlagsDetected))
		for _, flag := range s.RedFlagsDetected {
			if code, ok := redFlagRuleCodes[flag]; ok {
				codes = append(codes, code)
			} else {
				codes = append(codes, "RF-FALLBACK")
			}
		}
		slog.Debug("rules.Classify: red flag rule fired", "redFlags", s.RedFlagsDetected)
		return models.ClassificationResult{
			Urgency:     models.UrgencyHigh,
			CareLevel:   models.CareLevelEmergency,
			ReasonCodes: codes,
		}
	}

	days := s.Duration.DaysOrNegative()

	if s.PrimaryComplaint == "fever" && days >= cfg.FeverDurationDays {
		return models.ClassificationResult{
			Urgency:     models.UrgencyMedium,
			CareLevel:   models.CareLevelPHC,
			ReasonCodes: []string{reasonFeverDuration},
		}
	}

	if cfg.isSelfLimiting(s, days) {
		return models.ClassificationResult{
			Urgency:     models.UrgencyLow,
			CareLevel:   models.CareLevelHome,
			ReasonCodes: []string{reasonSelfLimiting},
		}
	}

	// Rules 4 and 5 share the conservative default. An unknown complaint
	// must still land at MEDIUM/PHC, never LOW.
	return models.ClassificationResult{
		Urgency:     models.UrgencyMedium,
		CareLevel:   models.CareLevelPHC,
		ReasonCodes: []string{reasonDefault},
	}
}

// isSelfLimiting checks rule 3: exactly one complaint from the
// self-limiting set, not severe, with either an explicit mildness
// signal or a duration shorter than the configured window.
func (cfg Config) isSelfLimiting(s models.StructuredComplaint, days int) bool {
	if !selfLimitingComplaints[s.PrimaryComplaint] {
		return false
	}
	if len(s.AssociatedSymptoms) > 0 {
		return false
	}
	if s.Severity == "severe" {
		return false
	}
	if s.Severity == "mild" {
		return true
	}
	return days >= 0 && days < cfg.SelfLimitingMaxDays
}
