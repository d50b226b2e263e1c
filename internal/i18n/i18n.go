// Package i18n provides localized label lookup for TriageLine.
//
// Labels live in an embedded JSON table keyed by label name, then by
// language code. Lookup falls back to English, then to the key itself,
// so callers never receive an empty reply string.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/GraminSeva/TriageLine/internal/models"
)

//go:embed labels.json
var labelFS embed.FS

// labels maps key -> language -> string.
var labels map[string]map[string]string

// lists maps key -> language -> list of strings.
var lists map[string]map[string][]string

type labelFile struct {
	Strings map[string]map[string]string   `json:"strings"`
	Lists   map[string]map[string][]string `json:"lists"`
}

// init parses the embedded label table. A malformed table is a build
// defect, so failure here panics at startup.
func init() {
	data, err := labelFS.ReadFile("labels.json")
	if err != nil {
		panic(fmt.Sprintf("i18n: failed to read embedded labels: %v", err))
	}
	var f labelFile
	if err := json.Unmarshal(data, &f); err != nil {
		panic(fmt.Sprintf("i18n: failed to parse embedded labels: %v", err))
	}
	labels = f.Strings
	lists = f.Lists
}

// Label returns the localized string for key, falling back to English
// and finally to the key itself.
func Label(key, language string) string {
	language = models.NormalizeLanguage(language)
	entry, ok := labels[key]
	if !ok {
		slog.Warn("i18n.Label: unknown label key", "key", key, "language", language)
		return key
	}
	if v, ok := entry[language]; ok && v != "" {
		return v
	}
	if v, ok := entry[models.DefaultLanguage]; ok && v != "" {
		return v
	}
	slog.Warn("i18n.Label: no translation available", "key", key, "language", language)
	return key
}

// Labelf returns the localized string for key formatted with args.
func Labelf(key, language string, args ...any) string {
	return fmt.Sprintf(Label(key, language), args...)
}

// List returns the localized string list for key, falling back to
// English and finally to an empty list.
func List(key, language string) []string {
	language = models.NormalizeLanguage(language)
	entry, ok := lists[key]
	if !ok {
		slog.Warn("i18n.List: unknown list key", "key", key, "language", language)
		return nil
	}
	if v, ok := entry[language]; ok && len(v) > 0 {
		return v
	}
	return entry[models.DefaultLanguage]
}

// SymptomLabel returns the display name for a symptom code, falling
// back to the code itself for unknown symptoms.
func SymptomLabel(code, language string) string {
	key := "symptom." + code
	if _, ok := labels[key]; !ok {
		return code
	}
	return Label(key, language)
}
