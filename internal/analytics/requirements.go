package analytics

import (
	"fmt"

	"github.com/emeeran/phrm-diag-sub000/pkg/model"
)

// Minimum record counts per engine
const (
	MinTrendRecords      = 2
	MinRiskRecords       = 3
	MinAnomalyRecords    = 3
	MinMedicationRecords = 1
	MinSymptomRecords    = 1
	MinDetectorRecords   = 1
)

// CheckAnalysis returns a non-nil InsufficientData when records cannot support
// the requested analysis.
func CheckAnalysis(t model.AnalysisType, records []model.HealthRecord) *model.InsufficientData {
	switch t {
	case model.AnalysisTrends:
		return insufficient(string(t), "health records", MinTrendRecords, len(records))
	case model.AnalysisRisk:
		return insufficient(string(t), "health records", MinRiskRecords, len(records))
	case model.AnalysisMedication:
		if len(records) == 0 {
			return insufficient(string(t), "health records", MinMedicationRecords, 0)
		}
		return insufficient(string(t), "medication records", MinMedicationRecords,
			len(filterCategory(records, model.CategoryMedications)))
	case model.AnalysisSymptoms:
		if len(records) == 0 {
			return insufficient(string(t), "health records", MinSymptomRecords, 0)
		}
		return insufficient(string(t), "symptom records", MinSymptomRecords,
			len(filterCategory(records, model.CategorySymptoms)))
	default:
		return nil
	}
}

// CheckDetector returns a non-nil InsufficientData when records cannot support
// the alert detector. Anomaly detection needs a baseline; the others need any record.
func CheckDetector(t model.AlertType, records []model.HealthRecord) *model.InsufficientData {
	if t == model.AlertAnomaly {
		return insufficient(string(t), "health records", MinAnomalyRecords, len(records))
	}
	return insufficient(string(t), "health records", MinDetectorRecords, len(records))
}

func insufficient(subject, noun string, required, actual int) *model.InsufficientData {
	if actual >= required {
		return nil
	}
	return &model.InsufficientData{
		Subject:  subject,
		Required: required,
		Actual:   actual,
		Message:  fmt.Sprintf("At least %d %s are needed for %s analysis, found %d.", required, noun, subject, actual),
	}
}
