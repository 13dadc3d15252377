package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/emeeran/phrm-diag-sub000/internal/analytics"
	"github.com/emeeran/phrm-diag-sub000/internal/apperrors"
	"github.com/emeeran/phrm-diag-sub000/internal/audit"
	"github.com/emeeran/phrm-diag-sub000/internal/metrics"
	"github.com/emeeran/phrm-diag-sub000/internal/repository"
	"github.com/emeeran/phrm-diag-sub000/pkg/model"
)

func newAnalysisService(store *repository.MemoryStore, clock *fakeClock, auditor AuditRecorder) *AnalysisService {
	return NewAnalysisService(store, store, newMedicationAnalyzer(), auditor,
		metrics.New(prometheus.NewRegistry()),
		AnalysisConfig{Clock: clock.Now},
		zap.NewNop(),
	)
}

func TestAnalysisService_Analyze_DedupWindow(t *testing.T) {
	store := newStore(sampleRecords()...)
	clock := newFakeClock(start)
	svc := newAnalysisService(store, clock, nil)
	ctx := context.Background()

	first, err := svc.Analyze(ctx, testUser, model.AnalysisTrends)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeCompleted, first.Status)
	require.NotEmpty(t, first.AnalysisID)

	clock.Advance(time.Hour)
	second, err := svc.Analyze(ctx, testUser, model.AnalysisTrends)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeReused, second.Status)
	assert.Equal(t, first.AnalysisID, second.AnalysisID)

	clock.Advance(24 * time.Hour)
	third, err := svc.Analyze(ctx, testUser, model.AnalysisTrends)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeCompleted, third.Status)
	assert.NotEqual(t, first.AnalysisID, third.AnalysisID)

	other, err := svc.Analyze(ctx, testUser, model.AnalysisRisk)
	require.NoError(t, err)
	assert.NotEqual(t, third.AnalysisID, other.AnalysisID)
}

func TestAnalysisService_Analyze_ConcurrentRequestsShareOneResult(t *testing.T) {
	store := newStore(sampleRecords()...)
	svc := newAnalysisService(store, newFakeClock(start), nil)

	var wg sync.WaitGroup
	ids := make([]string, 16)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcome, err := svc.Analyze(context.Background(), testUser, model.AnalysisSymptoms)
			assert.NoError(t, err)
			if outcome != nil {
				ids[i] = outcome.AnalysisID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

// blockingLookup holds every lookup until release is closed
type blockingLookup struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingLookup() *blockingLookup {
	return &blockingLookup{started: make(chan struct{}), release: make(chan struct{})}
}

func (l *blockingLookup) LookupInteraction(ctx context.Context, medA, medB string) ([]string, error) {
	l.once.Do(func() { close(l.started) })

	select {
	case <-l.release:
		return []string{"Monitor blood sugar closely"}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestAnalysisService_Analyze_CancelledCallerDoesNotFailOthers(t *testing.T) {
	records := append(sampleRecords(),
		record("med-2", model.CategoryMedications, "Lisinopril", "10mg daily", 20),
	)
	store := newStore(records...)
	lookup := newBlockingLookup()
	svc := NewAnalysisService(store, store,
		analytics.NewMedicationAnalyzer(lookup, fastPolicy, 2, zap.NewNop()),
		nil,
		metrics.New(prometheus.NewRegistry()),
		AnalysisConfig{Clock: newFakeClock(start).Now},
		zap.NewNop(),
	)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := svc.Analyze(ctxA, testUser, model.AnalysisMedication)
		errA <- err
	}()

	select {
	case <-lookup.started:
	case <-time.After(5 * time.Second):
		t.Fatal("lookup never started")
	}

	type result struct {
		outcome *model.AnalysisOutcome
		err     error
	}
	resB := make(chan result, 1)
	go func() {
		outcome, err := svc.Analyze(context.Background(), testUser, model.AnalysisMedication)
		resB <- result{outcome, err}
	}()

	cancelA()
	select {
	case err := <-errA:
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(lookup.release)

	select {
	case res := <-resB:
		require.NoError(t, res.err)
		require.NotNil(t, res.outcome)
		assert.Contains(t, []model.OutcomeStatus{model.OutcomeCompleted, model.OutcomeReused}, res.outcome.Status)
		require.NotEmpty(t, res.outcome.AnalysisID)

		stored, err := store.FindByID(context.Background(), res.outcome.AnalysisID)
		require.NoError(t, err)
		assert.Equal(t, model.AnalysisMedication, stored.AnalysisType)
	case <-time.After(5 * time.Second):
		t.Fatal("waiting caller did not return")
	}
}

func TestAnalysisService_Analyze_PersistsPayload(t *testing.T) {
	store := newStore(sampleRecords()...)
	auditor := new(MockAuditRecorder)
	auditor.On("Record", mock.Anything, testUser, audit.ActionAnalysisCreate, audit.ResourceAnalysis, mock.Anything, mock.Anything).Once()
	svc := newAnalysisService(store, newFakeClock(start), auditor)

	outcome, err := svc.Analyze(context.Background(), testUser, model.AnalysisRisk)
	require.NoError(t, err)

	result, err := svc.Get(context.Background(), testUser, outcome.AnalysisID)
	require.NoError(t, err)
	assert.Equal(t, model.AnalysisRisk, result.AnalysisType)
	assert.Equal(t, 7, result.RecordsAnalyzed)
	assert.Equal(t, start, result.CreatedAt)
	assert.Contains(t, result.Summary, "Your health risk score is")
	_, ok := result.Payload.(model.RiskPayload)
	assert.True(t, ok)
	auditor.AssertExpectations(t)
}

func TestAnalysisService_Analyze_InvalidType(t *testing.T) {
	svc := newAnalysisService(newStore(), newFakeClock(start), nil)

	_, err := svc.Analyze(context.Background(), testUser, model.AnalysisType("weather"))
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestAnalysisService_Analyze_RecordLoadFailure(t *testing.T) {
	records := new(MockRecordRepository)
	records.On("ListRecords", mock.Anything, testUser, model.RecordFilter{}).Return(nil, errors.New("connection reset"))
	store := newStore()
	svc := NewAnalysisService(records, store, newMedicationAnalyzer(), nil, nil,
		AnalysisConfig{Clock: newFakeClock(start).Now}, zap.NewNop())

	_, err := svc.Analyze(context.Background(), testUser, model.AnalysisTrends)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load records")

	recent, _ := store.FindRecent(context.Background(), testUser, model.AnalysisTrends, time.Time{})
	assert.Nil(t, recent, "nothing is persisted when a run fails")
}

func TestAnalysisService_Get(t *testing.T) {
	store := newStore(sampleRecords()...)
	svc := newAnalysisService(store, newFakeClock(start), nil)

	outcome, err := svc.Analyze(context.Background(), testUser, model.AnalysisSymptoms)
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), "intruder", outcome.AnalysisID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = svc.Get(context.Background(), testUser, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

// Feature: health-insights, Property 7: Empty Record Set Is Insufficient For Every Analysis
func TestProperty_EmptyRecordsInsufficient(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("zero records never produce an analysis", prop.ForAll(
		func(analysisType model.AnalysisType) bool {
			store := newStore()
			svc := newAnalysisService(store, newFakeClock(start), nil)

			outcome, err := svc.Analyze(context.Background(), testUser, analysisType)
			if err != nil || outcome.Status != model.OutcomeInsufficientData || outcome.Insufficient == nil {
				return false
			}
			recent, _ := store.FindRecent(context.Background(), testUser, analysisType, time.Time{})
			return outcome.AnalysisID == "" && outcome.Insufficient.Actual == 0 && recent == nil
		},
		gen.OneConstOf(model.AnalysisTrends, model.AnalysisRisk, model.AnalysisMedication, model.AnalysisSymptoms),
	))

	properties.TestingRun(t)
}
