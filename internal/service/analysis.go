package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/emeeran/phrm-diag-sub000/internal/analytics"
	"github.com/emeeran/phrm-diag-sub000/internal/apperrors"
	"github.com/emeeran/phrm-diag-sub000/internal/audit"
	"github.com/emeeran/phrm-diag-sub000/internal/metrics"
	"github.com/emeeran/phrm-diag-sub000/pkg/model"
)

const (
	// DefaultDedupWindow is how long an analysis result is reused
	DefaultDedupWindow = 24 * time.Hour
	// DefaultRunTimeout bounds a shared analysis run once no caller owns it
	DefaultRunTimeout = 2 * time.Minute
)

// AnalysisConfig holds the tunables of AnalysisService
type AnalysisConfig struct {
	DedupWindow time.Duration
	RunTimeout  time.Duration
	Clock       Clock
}

// AnalysisService runs the analytics engines and persists their results
type AnalysisService struct {
	records    RecordRepositoryInterface
	analyses   AnalysisRepositoryInterface
	trends     *analytics.TrendEngine
	risk       *analytics.RiskEngine
	medication *analytics.MedicationAnalyzer
	symptoms   *analytics.SymptomEngine
	audit      AuditRecorder
	metrics    *metrics.Metrics
	window     time.Duration
	runTimeout time.Duration
	now        Clock
	inflight   singleflight.Group
	logger     *zap.Logger
}

// NewAnalysisService creates a new AnalysisService
func NewAnalysisService(
	records RecordRepositoryInterface,
	analyses AnalysisRepositoryInterface,
	medication *analytics.MedicationAnalyzer,
	auditor AuditRecorder,
	m *metrics.Metrics,
	cfg AnalysisConfig,
	logger *zap.Logger,
) *AnalysisService {
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = DefaultDedupWindow
	}
	return &AnalysisService{
		records:    records,
		analyses:   analyses,
		trends:     analytics.NewTrendEngine(logger),
		risk:       analytics.NewRiskEngine(logger),
		medication: medication,
		symptoms:   analytics.NewSymptomEngine(logger),
		audit:      orNop(auditor),
		metrics:    m,
		window:     cfg.DedupWindow,
		runTimeout: durationOr(cfg.RunTimeout, DefaultRunTimeout),
		now:        orSystem(cfg.Clock),
		logger:     logger,
	}
}

// Analyze returns the ID of a result for the user and type, reusing one
// created within the dedup window. Concurrent requests for the same key
// share one computation and resolve to one ID. The shared computation does
// not inherit any caller's cancellation; a cancelled caller stops waiting
// while the others still get the result.
func (s *AnalysisService) Analyze(ctx context.Context, userID string, t model.AnalysisType) (*model.AnalysisOutcome, error) {
	if !t.Valid() {
		return nil, apperrors.Validation("invalid analysis type", map[string]string{"analysis_type": string(t)})
	}

	s.logger.Info("analysis requested",
		zap.String("user_id", userID),
		zap.String("analysis_type", string(t)),
	)

	existing, err := s.analyses.FindRecent(ctx, userID, t, s.now().Add(-s.window))
	if err != nil {
		return nil, fmt.Errorf("failed to check recent analysis: %w", err)
	}
	if existing != nil {
		s.metrics.RecordAnalysis(string(t), string(model.OutcomeReused), 0)
		return &model.AnalysisOutcome{
			Status:       model.OutcomeReused,
			AnalysisID:   existing.ID,
			AnalysisType: t,
		}, nil
	}

	ch := s.inflight.DoChan(userID+"|"+string(t), func() (interface{}, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.runTimeout)
		defer cancel()
		return s.run(runCtx, userID, t)
	})

	select {
	case <-ctx.Done():
		s.logger.Info("analysis request abandoned",
			zap.String("user_id", userID),
			zap.String("analysis_type", string(t)),
		)
		return nil, fmt.Errorf("analysis request cancelled: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		outcome := *res.Val.(*model.AnalysisOutcome)
		if res.Shared && outcome.Status == model.OutcomeCompleted {
			s.logger.Debug("joined in-flight analysis", zap.String("analysis_id", outcome.AnalysisID))
		}
		return &outcome, nil
	}
}

func (s *AnalysisService) run(ctx context.Context, userID string, t model.AnalysisType) (*model.AnalysisOutcome, error) {
	start := time.Now()

	records, err := s.records.ListRecords(ctx, userID, model.RecordFilter{})
	if err != nil {
		s.logger.Error("failed to load records",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		return nil, fmt.Errorf("failed to load records: %w", err)
	}

	if insufficient := analytics.CheckAnalysis(t, records); insufficient != nil {
		s.logger.Info("insufficient data for analysis",
			zap.String("user_id", userID),
			zap.String("analysis_type", string(t)),
			zap.Int("records", len(records)),
		)
		s.metrics.RecordAnalysis(string(t), string(model.OutcomeInsufficientData), 0)
		return &model.AnalysisOutcome{
			Status:       model.OutcomeInsufficientData,
			AnalysisType: t,
			Insufficient: insufficient,
		}, nil
	}

	payload, err := s.compute(ctx, t, records)
	if err != nil {
		return nil, err
	}

	now := s.now()
	result := &model.AnalysisResult{
		UserID:          userID,
		AnalysisType:    t,
		Summary:         analytics.Summarize(payload),
		Payload:         payload,
		RecordsAnalyzed: len(records),
		CreatedAt:       now,
	}

	id, err := s.analyses.Create(ctx, result, now.Add(-s.window))
	if err != nil {
		s.logger.Error("failed to save analysis",
			zap.Error(err),
			zap.String("user_id", userID),
			zap.String("analysis_type", string(t)),
		)
		return nil, fmt.Errorf("failed to save analysis: %w", err)
	}

	if id != result.ID {
		s.metrics.RecordAnalysis(string(t), string(model.OutcomeReused), time.Since(start))
		return &model.AnalysisOutcome{Status: model.OutcomeReused, AnalysisID: id, AnalysisType: t}, nil
	}

	s.metrics.RecordAnalysis(string(t), string(model.OutcomeCompleted), time.Since(start))
	s.audit.Record(ctx, userID, audit.ActionAnalysisCreate, audit.ResourceAnalysis, id, result.Summary)
	s.logger.Info("analysis completed",
		zap.String("user_id", userID),
		zap.String("analysis_id", id),
		zap.String("analysis_type", string(t)),
		zap.Int("records_analyzed", len(records)),
		zap.Duration("duration", time.Since(start)),
	)

	return &model.AnalysisOutcome{Status: model.OutcomeCompleted, AnalysisID: id, AnalysisType: t}, nil
}

func (s *AnalysisService) compute(ctx context.Context, t model.AnalysisType, records []model.HealthRecord) (model.AnalysisPayload, error) {
	switch t {
	case model.AnalysisTrends:
		return s.trends.Analyze(records), nil
	case model.AnalysisRisk:
		return model.RiskPayload{RiskScore: s.risk.Score(records, analytics.RiskOptions{})}, nil
	case model.AnalysisMedication:
		payload, err := s.medication.Analyze(ctx, records)
		if err != nil {
			return nil, fmt.Errorf("failed to analyze medications: %w", err)
		}
		return payload, nil
	case model.AnalysisSymptoms:
		return s.symptoms.Analyze(records), nil
	default:
		return nil, fmt.Errorf("unsupported analysis type: %s", t)
	}
}

// Get retrieves an analysis result owned by the user
func (s *AnalysisService) Get(ctx context.Context, userID, analysisID string) (*model.AnalysisResult, error) {
	result, err := s.analyses.FindByID(ctx, analysisID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}

	if result.UserID != userID {
		s.logger.Warn("analysis requested by non-owner",
			zap.String("analysis_id", analysisID),
			zap.String("user_id", userID),
		)
		return nil, apperrors.NotFound("analysis", analysisID)
	}
	return result, nil
}
