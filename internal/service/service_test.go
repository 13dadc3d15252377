package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/emeeran/phrm-diag-sub000/internal/analytics"
	"github.com/emeeran/phrm-diag-sub000/internal/audit"
	"github.com/emeeran/phrm-diag-sub000/internal/repository"
	"github.com/emeeran/phrm-diag-sub000/internal/retry"
	"github.com/emeeran/phrm-diag-sub000/pkg/model"
)

const testUser = "user-1"

var start = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

var fastPolicy = retry.Policy{Attempts: 2, BaseDelay: time.Millisecond}

// fakeClock is a settable clock shared by a service under test
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func record(id string, c model.Category, title, desc string, daysAgo int) model.HealthRecord {
	d := start.AddDate(0, 0, -daysAgo)
	return model.HealthRecord{ID: id, UserID: testUser, Category: c, Title: title, Description: desc, Date: d, CreatedAt: d}
}

// sampleRecords has enough data for every analysis and detector
func sampleRecords() []model.HealthRecord {
	return []model.HealthRecord{
		record("hr-1", model.CategoryVitalSigns, "Heart Rate", "72 bpm", 10),
		record("hr-2", model.CategoryVitalSigns, "Heart Rate", "72 bpm", 9),
		record("hr-3", model.CategoryVitalSigns, "Heart Rate", "72 bpm", 8),
		record("hr-4", model.CategoryVitalSigns, "Heart Rate", "72 bpm", 7),
		record("hr-5", model.CategoryVitalSigns, "Heart Rate", "150 bpm", 1),
		record("med-1", model.CategoryMedications, "Metformin", "500mg, 30 day supply", 25),
		record("sym-1", model.CategorySymptoms, "Headache", "severity: 6", 3),
	}
}

func newStore(records ...model.HealthRecord) *repository.MemoryStore {
	store := repository.NewMemoryStore()
	store.AddRecords(records...)
	return store
}

func newMedicationAnalyzer() *analytics.MedicationAnalyzer {
	return analytics.NewMedicationAnalyzer(nil, fastPolicy, 2, zap.NewNop())
}

type MockRecordRepository struct {
	mock.Mock
}

func (m *MockRecordRepository) ListRecords(ctx context.Context, userID string, filter model.RecordFilter) ([]model.HealthRecord, error) {
	args := m.Called(ctx, userID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.HealthRecord), args.Error(1)
}

type MockAuditRecorder struct {
	mock.Mock
}

func (m *MockAuditRecorder) Record(ctx context.Context, userID string, action audit.Action, resourceType, resourceID, description string) {
	m.Called(ctx, userID, action, resourceType, resourceID, description)
}

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) GenerateStructured(ctx context.Context, kind, input string) (json.RawMessage, error) {
	args := m.Called(ctx, kind, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}
