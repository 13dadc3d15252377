package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// AnalysisPayload is the tagged variant stored in AnalysisResult.Payload.
// Each concrete payload reports the analysis type it belongs to.
type AnalysisPayload interface {
	AnalysisType() AnalysisType
}

// CategoryStats summarizes the values of one category series
type CategoryStats struct {
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Mean       float64 `json:"mean"`
	Median     float64 `json:"median"`
	StdDev     float64 `json:"std_dev"`
	Direction  string  `json:"direction"` // increasing, decreasing, stable
	DataPoints int     `json:"data_points"`
}

// SignificantChange is a consecutive-point change above the significance threshold
type SignificantChange struct {
	FromDate      time.Time `json:"from_date"`
	ToDate        time.Time `json:"to_date"`
	FromValue     float64   `json:"from_value"`
	ToValue       float64   `json:"to_value"`
	ChangePercent float64   `json:"change_percent"`
	Direction     string    `json:"direction"` // increase, decrease
}

// CategoryTrend is the time series and its summary for one category
type CategoryTrend struct {
	Category      Category            `json:"category"`
	Points        []TrendPoint        `json:"points"`
	ChangePercent *float64            `json:"change_percent,omitempty"`
	Summary       string              `json:"summary"`
	Stats         *CategoryStats      `json:"stats,omitempty"`
	Changes       []SignificantChange `json:"changes,omitempty"`
}

// TrendsPayload is the payload of a trends analysis
type TrendsPayload struct {
	Categories []CategoryTrend `json:"categories"`
	Summary    string          `json:"summary"`
}

func (TrendsPayload) AnalysisType() AnalysisType { return AnalysisTrends }

// RiskPayload is the payload of a risk analysis
type RiskPayload struct {
	RiskScore
}

func (RiskPayload) AnalysisType() AnalysisType { return AnalysisRisk }

// MedicationPayload is the payload of a medication analysis
type MedicationPayload struct {
	Medications []MedicationEffectiveness `json:"medications"`
}

func (MedicationPayload) AnalysisType() AnalysisType { return AnalysisMedication }

// SymptomsPayload is the payload of a symptom correlation analysis
type SymptomsPayload struct {
	Patterns []SymptomPattern `json:"patterns"`
}

func (SymptomsPayload) AnalysisType() AnalysisType { return AnalysisSymptoms }

// EncodeAnalysisPayload serializes a payload for storage
func EncodeAnalysisPayload(p AnalysisPayload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("payload is nil")
	}
	return json.Marshal(p)
}

// DecodeAnalysisPayload restores the concrete payload for an analysis type
func DecodeAnalysisPayload(t AnalysisType, raw []byte) (AnalysisPayload, error) {
	var (
		p   AnalysisPayload
		err error
	)
	switch t {
	case AnalysisTrends:
		var v TrendsPayload
		err = json.Unmarshal(raw, &v)
		p = v
	case AnalysisRisk:
		var v RiskPayload
		err = json.Unmarshal(raw, &v)
		p = v
	case AnalysisMedication:
		var v MedicationPayload
		err = json.Unmarshal(raw, &v)
		p = v
	case AnalysisSymptoms:
		var v SymptomsPayload
		err = json.Unmarshal(raw, &v)
		p = v
	default:
		return nil, fmt.Errorf("unknown analysis type: %s", t)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", t, err)
	}
	return p, nil
}

// AlertData is the tagged variant stored in HealthAlert.Data
type AlertData interface {
	AlertType() AlertType
}

// AnomalyKind distinguishes the anomaly detector rules
type AnomalyKind string

const (
	AnomalyVitalOutlier     AnomalyKind = "vital_outlier"
	AnomalyRecurringSymptom AnomalyKind = "recurring_symptom"
	AnomalyWorseningSymptom AnomalyKind = "worsening_symptom"
	AnomalyAbnormalLab      AnomalyKind = "abnormal_lab"
)

// AnomalyData describes what triggered an anomaly alert
type AnomalyData struct {
	Kind        AnomalyKind `json:"kind"`
	RecordID    string      `json:"record_id,omitempty"`
	Subject     string      `json:"subject"`
	Value       float64     `json:"value,omitempty"`
	Mean        float64     `json:"mean,omitempty"`
	StdDev      float64     `json:"std_dev,omitempty"`
	ZScore      float64     `json:"z_score,omitempty"`
	Direction   string      `json:"direction,omitempty"`
	Occurrences int         `json:"occurrences,omitempty"`
	Severities  []float64   `json:"severities,omitempty"`
	Phrase      string      `json:"phrase,omitempty"`
}

func (AnomalyData) AlertType() AlertType { return AlertAnomaly }

// RefillData describes an upcoming or overdue medication refill
type RefillData struct {
	MedicationName string    `json:"medication_name"`
	LastRecordID   string    `json:"last_record_id"`
	LastFilled     time.Time `json:"last_filled"`
	SupplyDays     int       `json:"supply_days"`
	DueDate        time.Time `json:"due_date"`
	DaysRemaining  int       `json:"days_remaining"`
}

func (RefillData) AlertType() AlertType { return AlertRefill }

// MilestoneData describes an achieved tracking milestone
type MilestoneData struct {
	Key        string    `json:"key"`
	Source     string    `json:"source"` // local or generated
	Value      int       `json:"value,omitempty"`
	AchievedAt time.Time `json:"achieved_at"`
}

func (MilestoneData) AlertType() AlertType { return AlertMilestone }

// WellnessData describes a generated wellness goal
type WellnessData struct {
	Goal       string   `json:"goal"`
	Category   string   `json:"category,omitempty"`
	TargetDays int      `json:"target_days,omitempty"`
	Steps      []string `json:"steps,omitempty"`
}

func (WellnessData) AlertType() AlertType { return AlertWellness }

// EncodeAlertData serializes alert data for storage
func EncodeAlertData(d AlertData) ([]byte, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d)
}

// DecodeAlertData restores the concrete data for an alert type
func DecodeAlertData(t AlertType, raw []byte) (AlertData, error) {
	var (
		d   AlertData
		err error
	)
	switch t {
	case AlertAnomaly:
		var v AnomalyData
		err = json.Unmarshal(raw, &v)
		d = v
	case AlertRefill:
		var v RefillData
		err = json.Unmarshal(raw, &v)
		d = v
	case AlertMilestone:
		var v MilestoneData
		err = json.Unmarshal(raw, &v)
		d = v
	case AlertWellness:
		var v WellnessData
		err = json.Unmarshal(raw, &v)
		d = v
	default:
		return nil, fmt.Errorf("unknown alert type: %s", t)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s alert data: %w", t, err)
	}
	return d, nil
}

// UnmarshalJSON restores the concrete payload from the analysis type
func (r *AnalysisResult) UnmarshalJSON(b []byte) error {
	type alias AnalysisResult
	aux := struct {
		*alias
		Payload json.RawMessage `json:"payload"`
	}{alias: (*alias)(r)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	r.Payload = nil
	if len(aux.Payload) == 0 || string(aux.Payload) == "null" {
		return nil
	}
	p, err := DecodeAnalysisPayload(r.AnalysisType, aux.Payload)
	if err != nil {
		return err
	}
	r.Payload = p
	return nil
}

// UnmarshalJSON restores the concrete data from the alert type
func (a *HealthAlert) UnmarshalJSON(b []byte) error {
	type alias HealthAlert
	aux := struct {
		*alias
		Data json.RawMessage `json:"data"`
	}{alias: (*alias)(a)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	a.Data = nil
	if len(aux.Data) == 0 || string(aux.Data) == "null" {
		return nil
	}
	d, err := DecodeAlertData(a.AlertType, aux.Data)
	if err != nil {
		return err
	}
	a.Data = d
	return nil
}
