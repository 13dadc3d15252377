package repository

import (
	"context"
	"encoding/json"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/emeeran/phrm-diag-sub000/internal/apperrors"
	"github.com/emeeran/phrm-diag-sub000/pkg/model"
)

// MemoryStore is an in-process implementation of every store the services
// use. It backs tests and database-less local runs.
type MemoryStore struct {
	mu       sync.Mutex
	records  []model.HealthRecord
	analyses []model.AnalysisResult
	alerts   []model.HealthAlert
	insights []model.PredictiveInsight
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// AddRecords appends records, assigning IDs when empty
func (s *MemoryStore) AddRecords(records ...model.HealthRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = r.Date
		}
		s.records = append(s.records, r)
	}
}

// CreateRecord mirrors RecordRepository.CreateRecord
func (s *MemoryStore) CreateRecord(_ context.Context, record *model.HealthRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	s.AddRecords(*record)
	return nil
}

// ListRecords mirrors RecordRepository.ListRecords
func (s *MemoryStore) ListRecords(_ context.Context, userID string, filter model.RecordFilter) ([]model.HealthRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []model.HealthRecord{}
	for _, r := range s.records {
		if r.UserID != userID {
			continue
		}
		if len(filter.Categories) > 0 && !slices.Contains(filter.Categories, r.Category) {
			continue
		}
		if !filter.Since.IsZero() && r.Date.Before(filter.Since) {
			continue
		}
		if !filter.Until.IsZero() && r.Date.After(filter.Until) {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// FindRecent mirrors AnalysisRepository.FindRecent
func (s *MemoryStore) FindRecent(_ context.Context, userID string, t model.AnalysisType, since time.Time) (*model.AnalysisResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findRecentLocked(userID, t, since), nil
}

func (s *MemoryStore) findRecentLocked(userID string, t model.AnalysisType, since time.Time) *model.AnalysisResult {
	var newest *model.AnalysisResult
	for i := range s.analyses {
		a := &s.analyses[i]
		if a.UserID != userID || a.AnalysisType != t || a.CreatedAt.Before(since) {
			continue
		}
		if newest == nil || a.CreatedAt.After(newest.CreatedAt) {
			newest = a
		}
	}
	if newest == nil {
		return nil
	}
	found := *newest
	return &found
}

// Create mirrors AnalysisRepository.Create
func (s *MemoryStore) Create(_ context.Context, result *model.AnalysisResult, since time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.findRecentLocked(result.UserID, result.AnalysisType, since); existing != nil {
		return existing.ID, nil
	}
	if result.ID == "" {
		result.ID = uuid.New().String()
	}
	s.analyses = append(s.analyses, *result)
	return result.ID, nil
}

// FindByID mirrors AnalysisRepository.FindByID
func (s *MemoryStore) FindByID(_ context.Context, id string) (*model.AnalysisResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.analyses {
		if a.ID == id {
			found := a
			return &found, nil
		}
	}
	return nil, apperrors.NotFound("analysis", id)
}

// CreateAlerts mirrors AlertRepository.CreateAlerts
func (s *MemoryStore) CreateAlerts(_ context.Context, alerts ...model.HealthAlert) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, len(alerts))
	for i, a := range alerts {
		if a.ID == "" {
			a.ID = uuid.New().String()
		}
		ids[i] = a.ID
		s.alerts = append(s.alerts, a)
	}
	return ids, nil
}

// ListActiveAlerts mirrors AlertRepository.ListActiveAlerts
func (s *MemoryStore) ListActiveAlerts(_ context.Context, userID string, now time.Time) ([]model.HealthAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []model.HealthAlert{}
	for _, a := range s.alerts {
		if a.UserID == userID && a.Active(now) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Dismiss mirrors AlertRepository.Dismiss
func (s *MemoryStore) Dismiss(_ context.Context, alertID, userID string) (found, changed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.alerts {
		if s.alerts[i].ID == alertID && s.alerts[i].UserID == userID {
			changed = !s.alerts[i].Dismissed
			s.alerts[i].Dismissed = true
			return true, changed, nil
		}
	}
	return false, false, nil
}

// CreateInsight mirrors InsightRepository.CreateInsight
func (s *MemoryStore) CreateInsight(_ context.Context, insight *model.PredictiveInsight) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if insight.ID == "" {
		insight.ID = uuid.New().String()
	}
	stored := *insight
	stored.Data = append(json.RawMessage(nil), insight.Data...)
	s.insights = append(s.insights, stored)
	return nil
}

// FindValidInsight mirrors InsightRepository.FindValidInsight
func (s *MemoryStore) FindValidInsight(_ context.Context, userID string, t model.InsightType, now time.Time) (*model.PredictiveInsight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var newest *model.PredictiveInsight
	for i := range s.insights {
		in := &s.insights[i]
		if in.UserID != userID || in.InsightType != t || !in.ValidUntil.After(now) {
			continue
		}
		if newest == nil || in.CreatedAt.After(newest.CreatedAt) {
			newest = in
		}
	}
	if newest == nil {
		return nil, nil
	}
	found := *newest
	return &found, nil
}
