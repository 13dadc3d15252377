package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/emeeran/phrm-diag-sub000/internal/audit"
	"github.com/emeeran/phrm-diag-sub000/pkg/model"
)

// RecordRepositoryInterface defines the interface for health record access
type RecordRepositoryInterface interface {
	ListRecords(ctx context.Context, userID string, filter model.RecordFilter) ([]model.HealthRecord, error)
}

// AnalysisRepositoryInterface defines the interface for analysis result persistence
type AnalysisRepositoryInterface interface {
	FindRecent(ctx context.Context, userID string, t model.AnalysisType, since time.Time) (*model.AnalysisResult, error)
	Create(ctx context.Context, result *model.AnalysisResult, since time.Time) (string, error)
	FindByID(ctx context.Context, id string) (*model.AnalysisResult, error)
}

// AlertRepositoryInterface defines the interface for alert persistence
type AlertRepositoryInterface interface {
	CreateAlerts(ctx context.Context, alerts ...model.HealthAlert) ([]string, error)
	ListActiveAlerts(ctx context.Context, userID string, now time.Time) ([]model.HealthAlert, error)
	Dismiss(ctx context.Context, alertID, userID string) (found, changed bool, err error)
}

// InsightRepositoryInterface defines the interface for predictive insight persistence
type InsightRepositoryInterface interface {
	CreateInsight(ctx context.Context, insight *model.PredictiveInsight) error
	FindValidInsight(ctx context.Context, userID string, t model.InsightType, now time.Time) (*model.PredictiveInsight, error)
}

// AuditRecorder receives fire-and-forget audit entries
type AuditRecorder interface {
	Record(ctx context.Context, userID string, action audit.Action, resourceType, resourceID, description string)
}

// Generator is the structured generation port
type Generator interface {
	GenerateStructured(ctx context.Context, kind, input string) (json.RawMessage, error)
}

// Clock returns the current time
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

type nopAuditor struct{}

func (nopAuditor) Record(context.Context, string, audit.Action, string, string, string) {}

func orNop(a AuditRecorder) AuditRecorder {
	if a == nil {
		return nopAuditor{}
	}
	return a
}

func orSystem(c Clock) Clock {
	if c == nil {
		return systemClock
	}
	return c
}
