package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/emeeran/phrm-diag-sub000/internal/alerts"
	"github.com/emeeran/phrm-diag-sub000/internal/analytics"
	"github.com/emeeran/phrm-diag-sub000/internal/repository"
	"github.com/emeeran/phrm-diag-sub000/internal/retry"
	"github.com/emeeran/phrm-diag-sub000/internal/service"
	"github.com/emeeran/phrm-diag-sub000/pkg/model"
)

const testUser = "user-1"

var now = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

type stubGenerator struct{}

func (stubGenerator) GenerateStructured(_ context.Context, kind, _ string) (json.RawMessage, error) {
	return json.RawMessage(`{"` + kind + `":[]}`), nil
}

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(context.Context) error {
	return p.err
}

type failingAnalyses struct{}

func (failingAnalyses) Analyze(context.Context, string, model.AnalysisType) (*model.AnalysisOutcome, error) {
	return nil, errors.New("connection refused by 10.0.0.5")
}

func (failingAnalyses) Get(context.Context, string, string) (*model.AnalysisResult, error) {
	return nil, errors.New("connection refused by 10.0.0.5")
}

func record(id string, c model.Category, title, desc string, daysAgo int) model.HealthRecord {
	d := now.AddDate(0, 0, -daysAgo)
	return model.HealthRecord{ID: id, UserID: testUser, Category: c, Title: title, Description: desc, Date: d, CreatedAt: d}
}

func newTestRouter(t *testing.T, db Pinger) *gin.Engine {
	t.Helper()
	logger := zap.NewNop()
	clock := func() time.Time { return now }
	policy := retry.Policy{Attempts: 1}

	store := repository.NewMemoryStore()
	store.AddRecords(
		record("hr-1", model.CategoryVitalSigns, "Heart Rate", "72 bpm", 10),
		record("hr-2", model.CategoryVitalSigns, "Heart Rate", "72 bpm", 9),
		record("hr-3", model.CategoryVitalSigns, "Heart Rate", "72 bpm", 8),
		record("hr-4", model.CategoryVitalSigns, "Heart Rate", "150 bpm", 1),
		record("med-1", model.CategoryMedications, "Metformin", "500mg, 30 day supply", 25),
	)

	analyses := service.NewAnalysisService(store, store,
		analytics.NewMedicationAnalyzer(nil, policy, 1, logger), nil, nil,
		service.AnalysisConfig{Clock: clock}, logger)
	alertService := service.NewAlertService(store, store, service.Detectors{
		Anomaly:    alerts.NewAnomalyDetector(0, logger),
		Refill:     alerts.NewRefillDetector(0, 0, 0, logger),
		Milestones: alerts.NewMilestoneDetector(nil, policy, logger),
		Wellness:   alerts.NewWellnessPlanner(stubGenerator{}, policy, logger),
	}, nil, nil, service.AlertConfig{Clock: clock}, logger)
	insights := service.NewInsightService(store, store, stubGenerator{}, policy, nil,
		service.InsightConfig{Clock: clock}, logger)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(analyses, alertService, insights, db, logger).RegisterRoutes(r)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHandler_AnalysisLifecycle(t *testing.T) {
	r := newTestRouter(t, nil)

	w := do(r, http.MethodPost, "/api/v1/users/user-1/analyses", `{"analysis_type":"trends"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	first := decode[model.AnalysisOutcome](t, w)
	assert.Equal(t, model.OutcomeCompleted, first.Status)
	require.NotEmpty(t, first.AnalysisID)

	w = do(r, http.MethodPost, "/api/v1/users/user-1/analyses", `{"analysis_type":"trends"}`)
	require.Equal(t, http.StatusOK, w.Code)
	second := decode[model.AnalysisOutcome](t, w)
	assert.Equal(t, model.OutcomeReused, second.Status)
	assert.Equal(t, first.AnalysisID, second.AnalysisID)

	w = do(r, http.MethodGet, "/api/v1/users/user-1/analyses/"+first.AnalysisID, "")
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "trends", body["analysis_type"])
	assert.Contains(t, body, "payload")
	result := decode[model.AnalysisResult](t, w)
	_, isTrends := result.Payload.(model.TrendsPayload)
	assert.True(t, isTrends)

	w = do(r, http.MethodGet, "/api/v1/users/someone-else/analyses/"+first.AnalysisID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_AnalysisInsufficientData(t *testing.T) {
	r := newTestRouter(t, nil)

	w := do(r, http.MethodPost, "/api/v1/users/new-user/analyses", `{"analysis_type":"risk"}`)
	require.Equal(t, http.StatusOK, w.Code)
	outcome := decode[model.AnalysisOutcome](t, w)
	assert.Equal(t, model.OutcomeInsufficientData, outcome.Status)
	require.NotNil(t, outcome.Insufficient)
	assert.Equal(t, 3, outcome.Insufficient.Required)
	assert.Empty(t, outcome.AnalysisID)
}

func TestHandler_Errors(t *testing.T) {
	r := newTestRouter(t, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"malformed body", http.MethodPost, "/api/v1/users/user-1/analyses", `{"analysis_type":`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"missing type", http.MethodPost, "/api/v1/users/user-1/analyses", `{}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown analysis type", http.MethodPost, "/api/v1/users/user-1/analyses", `{"analysis_type":"weather"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"analysis id not a uuid", http.MethodGet, "/api/v1/users/user-1/analyses/abc", "", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown analysis", http.MethodGet, "/api/v1/users/user-1/analyses/" + uuid.NewString(), "", http.StatusNotFound, "NOT_FOUND"},
		{"unknown detector", http.MethodPost, "/api/v1/users/user-1/detections/weather", "", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"alert id not a uuid", http.MethodPost, "/api/v1/users/user-1/alerts/abc/dismiss", "", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown alert", http.MethodPost, "/api/v1/users/user-1/alerts/" + uuid.NewString() + "/dismiss", "", http.StatusNotFound, "NOT_FOUND"},
		{"unknown insight type", http.MethodPost, "/api/v1/users/user-1/insights/horoscope", "", http.StatusBadRequest, "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, tt.method, tt.path, tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			resp := decode[ErrorResponse](t, w)
			assert.Equal(t, tt.code, resp.Code)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestHandler_InternalErrorHidesCause(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(failingAnalyses{}, nil, nil, nil, zap.NewNop()).RegisterRoutes(r)

	w := do(r, http.MethodPost, "/api/v1/users/user-1/analyses", `{"analysis_type":"trends"}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decode[ErrorResponse](t, w)
	assert.Equal(t, "INTERNAL_ERROR", resp.Code)
	assert.NotContains(t, w.Body.String(), "10.0.0.5")
}

func TestHandler_AlertLifecycle(t *testing.T) {
	r := newTestRouter(t, nil)

	w := do(r, http.MethodPost, "/api/v1/users/user-1/detections/anomaly", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	outcome := decode[model.DetectionOutcome](t, w)
	assert.Equal(t, model.AlertAnomaly, outcome.AlertType)
	require.Len(t, outcome.AlertIDs, 1)

	w = do(r, http.MethodGet, "/api/v1/users/user-1/alerts", "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[AlertListResponse](t, w)
	require.Equal(t, 1, list.Count)
	require.Len(t, list.Alerts, 1)
	assert.Equal(t, "Unusual Heart Rate reading", list.Alerts[0].Title)
	data, isAnomaly := list.Alerts[0].Data.(model.AnomalyData)
	require.True(t, isAnomaly)
	assert.Equal(t, "Heart Rate", data.Subject)

	for i := 0; i < 2; i++ {
		w = do(r, http.MethodPost, "/api/v1/users/user-1/alerts/"+outcome.AlertIDs[0]+"/dismiss", "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w = do(r, http.MethodGet, "/api/v1/users/user-1/alerts", "")
	list = decode[AlertListResponse](t, w)
	assert.Equal(t, 0, list.Count)
	assert.NotNil(t, list.Alerts)
}

func TestHandler_RunAllDetectors(t *testing.T) {
	r := newTestRouter(t, nil)

	w := do(r, http.MethodPost, "/api/v1/users/user-1/detections/all", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[DetectionRunResponse](t, w)
	require.Len(t, resp.Outcomes, 4)
	assert.Equal(t, model.AlertAnomaly, resp.Outcomes[0].AlertType)
	assert.Equal(t, model.AlertWellness, resp.Outcomes[3].AlertType)
}

func TestHandler_Insight(t *testing.T) {
	r := newTestRouter(t, nil)

	w := do(r, http.MethodPost, "/api/v1/users/user-1/insights/preventive", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	first := decode[model.InsightOutcome](t, w)
	assert.Equal(t, model.OutcomeCompleted, first.Status)
	require.NotNil(t, first.Insight)
	assert.JSONEq(t, `{"preventive":[]}`, string(first.Insight.Data))

	w = do(r, http.MethodPost, "/api/v1/users/user-1/insights/preventive", "")
	second := decode[model.InsightOutcome](t, w)
	assert.Equal(t, model.OutcomeReused, second.Status)
	assert.Equal(t, first.Insight.ID, second.Insight.ID)
}

func TestHandler_Health(t *testing.T) {
	w := do(newTestRouter(t, nil), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","storage":"memory"}`, w.Body.String())

	w = do(newTestRouter(t, stubPinger{}), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","database":"connected"}`, w.Body.String())

	w = do(newTestRouter(t, stubPinger{err: errors.New("down")}), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

// Feature: health-insights, Property 12: Error Response Structure
func TestProperty_ErrorResponseStructure(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	r := newTestRouter(t, nil)

	properties.Property("invalid path values always yield a 4xx with code and message", prop.ForAll(
		func(segment string, route int) bool {
			var w *httptest.ResponseRecorder
			switch route {
			case 0:
				w = do(r, http.MethodGet, "/api/v1/users/user-1/analyses/"+segment, "")
			case 1:
				w = do(r, http.MethodPost, "/api/v1/users/user-1/detections/"+segment, "")
			case 2:
				w = do(r, http.MethodPost, "/api/v1/users/user-1/insights/"+segment, "")
			default:
				w = do(r, http.MethodPost, "/api/v1/users/user-1/analyses", `{"analysis_type":"`+segment+`"}`)
			}
			if w.Code < 400 || w.Code >= 500 {
				t.Logf("unexpected status %d for %q", w.Code, segment)
				return false
			}
			var resp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				return false
			}
			return resp.Code != "" && resp.Message != ""
		},
		gen.AlphaString().SuchThat(func(s string) bool { return len(s) > 12 }),
		gen.IntRange(0, 3),
	))

	properties.TestingRun(t)
}
