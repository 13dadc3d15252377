package model

import (
	"encoding/json"
	"time"
)

// Category represents the kind of a health record
type Category string

const (
	CategoryVitalSigns   Category = "vital_signs"
	CategoryMedications  Category = "medications"
	CategorySymptoms     Category = "symptoms"
	CategoryLabResults   Category = "lab_results"
	CategoryDiagnosis    Category = "diagnosis"
	CategoryAppointments Category = "appointments"
	CategoryOther        Category = "other"
)

// Label returns a human-readable name for the category
func (c Category) Label() string {
	switch c {
	case CategoryVitalSigns:
		return "vital signs"
	case CategoryMedications:
		return "medications"
	case CategorySymptoms:
		return "symptoms"
	case CategoryLabResults:
		return "lab results"
	case CategoryDiagnosis:
		return "diagnoses"
	case CategoryAppointments:
		return "appointments"
	default:
		return "other records"
	}
}

// Valid reports whether c is one of the known categories
func (c Category) Valid() bool {
	switch c {
	case CategoryVitalSigns, CategoryMedications, CategorySymptoms, CategoryLabResults,
		CategoryDiagnosis, CategoryAppointments, CategoryOther:
		return true
	}
	return false
}

// HealthRecord represents a single time-stamped entry in a user's health record.
// Records are owned by the record store and never mutated by the analytics core.
type HealthRecord struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Category    Category  `json:"category"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Date        time.Time `json:"date"`
	CreatedAt   time.Time `json:"created_at"`
}

// Text returns the description, falling back to the title when it is empty
func (r HealthRecord) Text() string {
	if r.Description != "" {
		return r.Description
	}
	return r.Title
}

// RecordFilter narrows a record listing. Zero values mean "no restriction".
type RecordFilter struct {
	Categories []Category
	Since      time.Time
	Until      time.Time
}

// TrendPoint is one (date, value, category) sample derived from a record
type TrendPoint struct {
	Date        time.Time `json:"date"`
	Value       float64   `json:"value"`
	Category    Category  `json:"category"`
	RecordID    string    `json:"record_id,omitempty"`
	Measurement string    `json:"measurement,omitempty"`
}

// RiskLevel is the categorical band of a risk score
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "low"
	RiskLevelModerate RiskLevel = "moderate"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelSevere   RiskLevel = "severe"
)

// RiskLevelFor maps a score to its level
func RiskLevelFor(score int) RiskLevel {
	switch {
	case score < 25:
		return RiskLevelLow
	case score < 50:
		return RiskLevelModerate
	case score < 75:
		return RiskLevelHigh
	default:
		return RiskLevelSevere
	}
}

// RiskScore represents a composite health risk assessment
type RiskScore struct {
	Score           int       `json:"score"`
	Level           RiskLevel `json:"level"`
	Factors         []string  `json:"factors"`
	Recommendations []string  `json:"recommendations"`
}

// MedicationEffectiveness represents the derived effectiveness and adherence of one medication
type MedicationEffectiveness struct {
	MedicationName       string    `json:"medication_name"`
	Effectiveness        float64   `json:"effectiveness"`
	Adherence            float64   `json:"adherence"`
	SideEffects          []string  `json:"side_effects"`
	Interactions         []string  `json:"interactions"`
	StartDate            time.Time `json:"start_date"`
	RecordCount          int       `json:"record_count"`
	AverageGapDays       float64   `json:"average_gap_days"`
	PossibleNonAdherence bool      `json:"possible_non_adherence"`
}

// Correlation links a symptom to a co-occurring factor
type Correlation struct {
	Factor   string  `json:"factor"`
	Strength float64 `json:"strength"`
}

// SymptomPattern represents frequency, intensity and correlations of one symptom
type SymptomPattern struct {
	Symptom          string        `json:"symptom"`
	Frequency        int           `json:"frequency"`
	Intensity        float64       `json:"intensity"`
	IntensityReports int           `json:"intensity_reports"`
	Triggers         []string      `json:"triggers"`
	Correlations     []Correlation `json:"correlations"`
}

// AnalysisType identifies the engine that produced an analysis
type AnalysisType string

const (
	AnalysisTrends     AnalysisType = "trends"
	AnalysisMedication AnalysisType = "medication"
	AnalysisRisk       AnalysisType = "risk"
	AnalysisSymptoms   AnalysisType = "symptoms"
)

// Valid reports whether t is a known analysis type
func (t AnalysisType) Valid() bool {
	switch t {
	case AnalysisTrends, AnalysisMedication, AnalysisRisk, AnalysisSymptoms:
		return true
	}
	return false
}

// AnalysisResult is a persisted analysis artifact
type AnalysisResult struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	AnalysisType    AnalysisType    `json:"analysis_type"`
	Summary         string          `json:"summary"`
	Payload         AnalysisPayload `json:"payload"`
	RecordsAnalyzed int             `json:"records_analyzed"`
	CreatedAt       time.Time       `json:"created_at"`
}

// AlertType identifies the detector that produced an alert
type AlertType string

const (
	AlertAnomaly   AlertType = "anomaly"
	AlertRefill    AlertType = "refill"
	AlertMilestone AlertType = "milestone"
	AlertWellness  AlertType = "wellness"
)

// Priority is the urgency of an alert
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Rank orders priorities; higher is more urgent
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}

// HealthAlert represents a generated alert. Only dismissal mutates it.
type HealthAlert struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	AlertType   AlertType `json:"alert_type"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Priority    Priority  `json:"priority"`
	Data        AlertData `json:"data"`
	Dismissed   bool      `json:"dismissed"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// Active reports whether the alert should still be shown at now
func (a HealthAlert) Active(now time.Time) bool {
	return !a.Dismissed && a.ExpiresAt.After(now)
}

// InsightType identifies the kind of predictive insight
type InsightType string

const (
	InsightRisk            InsightType = "risk"
	InsightRecommendations InsightType = "recommendations"
	InsightAppointments    InsightType = "appointments"
	InsightPreventive      InsightType = "preventive"
)

// Valid reports whether t is a known insight type
func (t InsightType) Valid() bool {
	switch t {
	case InsightRisk, InsightRecommendations, InsightAppointments, InsightPreventive:
		return true
	}
	return false
}

// PredictiveInsight holds generated structured content with a validity horizon
type PredictiveInsight struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	InsightType InsightType     `json:"insight_type"`
	Data        json.RawMessage `json:"data"`
	CreatedAt   time.Time       `json:"created_at"`
	ValidUntil  time.Time       `json:"valid_until"`
}

// InsufficientData reports that an engine had too few records to run
type InsufficientData struct {
	Subject  string `json:"subject"`
	Required int    `json:"required"`
	Actual   int    `json:"actual"`
	Message  string `json:"message"`
}

// OutcomeStatus describes how a service request finished
type OutcomeStatus string

const (
	OutcomeCompleted        OutcomeStatus = "completed"
	OutcomeReused           OutcomeStatus = "reused"
	OutcomeInsufficientData OutcomeStatus = "insufficient_data"
	OutcomeUnavailable      OutcomeStatus = "unavailable"
)

// AnalysisOutcome is returned by analysis requests
type AnalysisOutcome struct {
	Status       OutcomeStatus     `json:"status"`
	AnalysisID   string            `json:"analysis_id,omitempty"`
	AnalysisType AnalysisType      `json:"analysis_type"`
	Insufficient *InsufficientData `json:"insufficient,omitempty"`
}

// DetectionOutcome is returned by alert detector runs
type DetectionOutcome struct {
	Status       OutcomeStatus     `json:"status"`
	AlertType    AlertType         `json:"alert_type"`
	AlertIDs     []string          `json:"alert_ids"`
	Skipped      int               `json:"skipped"`
	Insufficient *InsufficientData `json:"insufficient,omitempty"`
}

// InsightOutcome is returned by insight generation requests
type InsightOutcome struct {
	Status       OutcomeStatus      `json:"status"`
	Insight      *PredictiveInsight `json:"insight,omitempty"`
	Insufficient *InsufficientData  `json:"insufficient,omitempty"`
	Message      string             `json:"message,omitempty"`
}
