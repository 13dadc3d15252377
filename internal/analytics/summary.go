package analytics

import (
	"fmt"

	"github.com/emeeran/phrm-diag-sub000/pkg/model"
)

// Summarize renders the one-paragraph summary stored with an analysis result
func Summarize(p model.AnalysisPayload) string {
	switch v := p.(type) {
	case model.TrendsPayload:
		return v.Summary
	case model.RiskPayload:
		return fmt.Sprintf("Your health risk score is %d (%s), based on %d risk factor(s).",
			v.Score, v.Level, len(v.Factors))
	case model.MedicationPayload:
		interactions := 0
		flagged := 0
		for _, m := range v.Medications {
			interactions += len(m.Interactions)
			if m.PossibleNonAdherence {
				flagged++
			}
		}
		// every interaction is listed on both medications
		s := fmt.Sprintf("Analyzed %d medication(s) and found %d potential interaction(s).",
			len(v.Medications), interactions/2)
		if flagged > 0 {
			s += fmt.Sprintf(" %d medication(s) show long gaps between records.", flagged)
		}
		return s
	case model.SymptomsPayload:
		if len(v.Patterns) == 0 {
			return "No symptom patterns were found."
		}
		top := v.Patterns[0]
		return fmt.Sprintf("Identified patterns for %d symptom(s). Most frequent: %s (%d report(s)).",
			len(v.Patterns), top.Symptom, top.Frequency)
	default:
		return ""
	}
}
