// Package extract pulls numeric signals and short phrases out of free-text
// record descriptions. Every function is pure and falls back to a defined
// default when a pattern does not match; nothing here returns an error.
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/emeeran/phrm-diag-sub000/pkg/model"
)

const (
	// DefaultOccurrence is used when a record only counts as "it happened"
	DefaultOccurrence = 1.0
	// DefaultSeverity is used for symptoms without a stated severity
	DefaultSeverity = 5.0
)

var (
	numberPattern        = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
	dosagePattern        = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:mg|ml|g)\b`)
	severityPattern      = regexp.MustCompile(`(?i)severity\s*[:=]?\s*(\d+(?:\.\d+)?)`)
	explicitPattern      = regexp.MustCompile(`(?i)\b(?:severity|intensity|pain(?:\s+level)?)\s*[:=]?\s*(\d+(?:\.\d+)?)`)
	outOfTenPattern      = regexp.MustCompile(`\b(\d+(?:\.\d+)?)\s*/\s*10\b`)
	bloodPressurePattern = regexp.MustCompile(`\b(\d{2,3})\s*/\s*(\d{2,3})\b`)
	agePattern           = regexp.MustCompile(`(?i)\bage\s*[:=]?\s*(\d{1,3})\b|\b(\d{1,3})[\s-]*(?:years?|yrs?)[\s-]*old\b`)
	supplyPattern        = regexp.MustCompile(`(?i)\b(\d{1,3})[\s-]*days?(?:'|’)?\s*supply\b|\bfor\s+(\d{1,3})\s+days\b|\bsupply\s*[:=]?\s*(\d{1,3})\s*days?\b`)
	triggerPattern       = regexp.MustCompile(`(?i)\b(?:after|triggered by|caused by|due to|when)\s+([a-z][a-z' -]{1,40}?)\s*(?:[.,;!?]|\band\b|$)`)
)

// Value returns the best-effort numeric signal of text for the given category:
// the first number for vitals and labs, a dosage for medications, a
// "severity: N" value for symptoms, otherwise the category default.
func Value(text string, category model.Category) float64 {
	switch category {
	case model.CategoryVitalSigns, model.CategoryLabResults:
		if v, ok := firstNumber(text); ok {
			return v
		}
		return DefaultOccurrence
	case model.CategoryMedications:
		if m := dosagePattern.FindStringSubmatch(text); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				return v
			}
		}
		return DefaultOccurrence
	case model.CategorySymptoms:
		if m := severityPattern.FindStringSubmatch(text); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				return v
			}
		}
		return DefaultSeverity
	default:
		return DefaultOccurrence
	}
}

// Severity returns an explicitly stated 1-10 severity or intensity.
func Severity(text string) (float64, bool) {
	for _, p := range []*regexp.Regexp{explicitPattern, outOfTenPattern} {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil || v < 1 || v > 10 {
			continue
		}
		return v, true
	}
	return 0, false
}

// BloodPressure parses a "systolic/diastolic" reading
func BloodPressure(text string) (systolic, diastolic int, ok bool) {
	for _, m := range bloodPressurePattern.FindAllStringSubmatch(text, -1) {
		s, err1 := strconv.Atoi(m[1])
		d, err2 := strconv.Atoi(m[2])
		if err1 != nil || err2 != nil {
			continue
		}
		// "7/10" style ratings and dates do not look like pressures
		if s < 60 || s > 300 || d < 30 || d > 200 || d >= s {
			continue
		}
		return s, d, true
	}
	return 0, 0, false
}

// LabeledValue returns the first number that follows label in text
func LabeledValue(text, label string) (float64, bool) {
	lower := strings.ToLower(text)
	idx := strings.Index(lower, strings.ToLower(label))
	if idx < 0 {
		return 0, false
	}
	return firstNumber(lower[idx+len(label):])
}

// Age parses "age: 67", "67 years old" or "67-year-old"
func Age(text string) (int, bool) {
	m := agePattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	raw := m[1]
	if raw == "" {
		raw = m[2]
	}
	age, err := strconv.Atoi(raw)
	if err != nil || age <= 0 || age > 130 {
		return 0, false
	}
	return age, true
}

// SupplyDays parses a medication supply duration such as "30 day supply"
func SupplyDays(text string) (int, bool) {
	m := supplyPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	for _, g := range m[1:] {
		if g == "" {
			continue
		}
		days, err := strconv.Atoi(g)
		if err == nil && days > 0 {
			return days, true
		}
	}
	return 0, false
}

// Triggers returns the deduplicated, lowercased trigger phrases found in text,
// in order of appearance.
func Triggers(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range triggerPattern.FindAllStringSubmatch(text, -1) {
		t := strings.ToLower(strings.TrimSpace(m[1]))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

var measurementKeywords = []struct {
	kind  string
	terms []string
}{
	{"glucose", []string{"glucose", "blood sugar"}},
	{"hba1c", []string{"hba1c", "a1c", "hemoglobin a1c"}},
	{"lipid_panel", []string{"cholesterol", "ldl", "hdl", "triglycerides"}},
	{"blood_pressure", []string{"blood pressure", "bp", "systolic", "diastolic"}},
	{"heart_rate", []string{"heart rate", "pulse", "bpm"}},
	{"temperature", []string{"temperature", "temp", "fever"}},
	{"weight", []string{"weight", "wt", "kg", "lbs"}},
	{"height", []string{"height", "ht"}},
}

// ClassifyMeasurement guesses what kind of measurement text describes
func ClassifyMeasurement(text string) string {
	words := tokenSet(text)
	lower := strings.ToLower(text)
	for _, mk := range measurementKeywords {
		for _, term := range mk.terms {
			if strings.Contains(term, " ") {
				if strings.Contains(lower, term) {
					return mk.kind
				}
				continue
			}
			if words[term] {
				return mk.kind
			}
		}
	}
	return "unknown"
}

// firstNumber skips digits that are part of a word such as "HbA1c" or "B12"
func firstNumber(text string) (float64, bool) {
	for _, loc := range numberPattern.FindAllStringIndex(text, -1) {
		if loc[0] > 0 && isLetter(text[loc[0]-1]) {
			continue
		}
		v, err := strconv.ParseFloat(text[loc[0]:loc[1]], 64)
		if err != nil {
			continue
		}
		return v, true
	}
	return 0, false
}

func isLetter(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		set[w] = true
	}
	return set
}
