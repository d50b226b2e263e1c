package rules

import (
	"log/slog"
	"strconv"

	"github.com/GraminSeva/TriageLine/internal/models"
)

// LocalExtract builds a StructuredComplaint from text using the keyword
// tables. It is the fully local substitute for the remote extraction
// endpoint and always returns a well-formed value.
func LocalExtract(text string) models.StructuredComplaint {
	complaint := models.EmptyComplaint()

	var detected []string
	for _, code := range symptomOrder {
		if matchAny(text, symptomKeywords[code]) {
			detected = append(detected, code)
			if redFlagSet[code] {
				complaint.RedFlagsDetected = append(complaint.RedFlagsDetected, code)
			}
		}
	}
	if len(detected) > 0 {
		complaint.PrimaryComplaint = detected[0]
		complaint.AssociatedSymptoms = append(complaint.AssociatedSymptoms, detected[1:]...)
	}

	complaint.Duration = extractDuration(text)
	complaint.Severity = extractSeverity(text)

	confidence := extractionConfidence(len(detected))
	complaint.ExtractionConfidence = &confidence

	if kind := clarifyingQuestionKind(&complaint, len(detected)); kind != "" {
		complaint.ClarifyingQuestion = &kind
	}

	slog.Debug("rules.LocalExtract: extraction complete",
		"primary", complaint.PrimaryComplaint,
		"symptoms", len(detected),
		"redFlags", len(complaint.RedFlagsDetected),
		"durationDays", complaint.Duration.DaysOrNegative())
	return complaint
}

// extractDuration parses a duration mention and normalizes it to days.
// Week counts multiply by 7; hour counts below a day floor to 0; "since
// morning"/"today" mean 0 days and "yesterday"/"last night" mean 1.
func extractDuration(text string) models.Duration {
	unit := "days"
	if m := durationDaysPattern.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		return durationOf(n, n, unit)
	}
	if m := durationWeeksPattern.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		return durationOf(n, n*7, "weeks")
	}
	if m := durationHoursPattern.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		return durationOf(n, n/24, "hours")
	}
	if durationYdayPattern.MatchString(text) {
		return durationOf(1, 1, unit)
	}
	if durationTodayPattern.MatchString(text) {
		return durationOf(0, 0, unit)
	}
	return models.Duration{}
}

func durationOf(value, days int, unit string) models.Duration {
	return models.Duration{Value: &value, Unit: &unit, Days: &days}
}

// extractSeverity checks severity keywords from most to least severe so
// that "very severe but started mild" reads as severe.
func extractSeverity(text string) string {
	switch {
	case matchAny(text, severeSeverityPatterns):
		return "severe"
	case matchAny(text, moderateSeverityPatterns):
		return "moderate"
	case matchAny(text, mildSeverityPatterns):
		return "mild"
	default:
		return models.UnknownComplaint
	}
}

// extractionConfidence maps the detected symptom count onto a rough
// confidence score.
func extractionConfidence(symptomCount int) float64 {
	switch symptomCount {
	case 0:
		return 0.2
	case 1:
		return 0.5
	case 2:
		return 0.7
	default:
		c := 0.6 + float64(symptomCount)*0.1
		if c > 0.95 {
			c = 0.95
		}
		return c
	}
}

// clarifyingQuestionKind picks the single most useful follow-up
// question for an incomplete extraction.
func clarifyingQuestionKind(c *models.StructuredComplaint, symptomCount int) string {
	if symptomCount == 0 {
		return "associated"
	}
	if c.Duration.Days == nil {
		return "duration"
	}
	if c.Severity == models.UnknownComplaint {
		return "severity"
	}
	return ""
}
