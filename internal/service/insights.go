package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/emeeran/phrm-diag-sub000/internal/analytics"
	"github.com/emeeran/phrm-diag-sub000/internal/apperrors"
	"github.com/emeeran/phrm-diag-sub000/internal/audit"
	"github.com/emeeran/phrm-diag-sub000/internal/retry"
	"github.com/emeeran/phrm-diag-sub000/pkg/model"
)

// DefaultInsightValidity is how long a generated insight stays valid
const DefaultInsightValidity = 30 * 24 * time.Hour

var emptyInsightData = json.RawMessage(`{}`)

// InsightConfig holds the tunables of InsightService
type InsightConfig struct {
	Validity time.Duration
	Clock    Clock
}

// InsightService generates and caches predictive insights
type InsightService struct {
	records   RecordRepositoryInterface
	insights  InsightRepositoryInterface
	generator Generator
	policy    retry.Policy
	audit     AuditRecorder
	validity  time.Duration
	now       Clock
	logger    *zap.Logger
}

// NewInsightService creates a new InsightService
func NewInsightService(
	records RecordRepositoryInterface,
	insights InsightRepositoryInterface,
	generator Generator,
	policy retry.Policy,
	auditor AuditRecorder,
	cfg InsightConfig,
	logger *zap.Logger,
) *InsightService {
	return &InsightService{
		records:   records,
		insights:  insights,
		generator: generator,
		policy:    policy,
		audit:     orNop(auditor),
		validity:  durationOr(cfg.Validity, DefaultInsightValidity),
		now:       orSystem(cfg.Clock),
		logger:    logger,
	}
}

// Generate returns a still-valid insight of the given type or generates a
// new one from the user's record digest. Output that is not valid JSON is
// stored as an empty object. When generation is unavailable the outcome says
// so and nothing is stored.
func (s *InsightService) Generate(ctx context.Context, userID string, t model.InsightType) (*model.InsightOutcome, error) {
	if !t.Valid() {
		return nil, apperrors.Validation("invalid insight type", map[string]string{"insight_type": string(t)})
	}

	now := s.now()
	existing, err := s.insights.FindValidInsight(ctx, userID, t, now)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing insight: %w", err)
	}
	if existing != nil {
		return &model.InsightOutcome{Status: model.OutcomeReused, Insight: existing}, nil
	}

	records, err := s.records.ListRecords(ctx, userID, model.RecordFilter{})
	if err != nil {
		s.logger.Error("failed to load records",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	if len(records) == 0 {
		return &model.InsightOutcome{
			Status: model.OutcomeInsufficientData,
			Insufficient: &model.InsufficientData{
				Subject:  string(t),
				Required: 1,
				Actual:   0,
				Message:  fmt.Sprintf("At least 1 health record is needed for %s insights, found 0.", t),
			},
		}, nil
	}
	if s.generator == nil {
		s.logger.Warn("insight generation is not configured",
			zap.String("user_id", userID),
			zap.String("insight_type", string(t)),
		)
		return unavailableInsight("Insight generation is not configured."), nil
	}

	digest := analytics.Digest(records, analytics.DefaultDigestLimit)
	var raw json.RawMessage
	err = retry.Do(ctx, s.policy, s.logger, "generate "+string(t)+" insight", func(ctx context.Context) error {
		var err error
		raw, err = s.generator.GenerateStructured(ctx, string(t), digest)
		return err
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("failed to generate insight: %w", ctxErr)
		}
		s.logger.Error("insight generation unavailable",
			zap.Error(err),
			zap.String("user_id", userID),
			zap.String("insight_type", string(t)),
		)
		return unavailableInsight("Insight generation is temporarily unavailable. Please try again later."), nil
	}

	if !json.Valid(raw) {
		s.logger.Warn("generated insight is not valid JSON, storing empty object",
			zap.String("user_id", userID),
			zap.String("insight_type", string(t)),
		)
		raw = emptyInsightData
	}

	insight := &model.PredictiveInsight{
		UserID:      userID,
		InsightType: t,
		Data:        raw,
		CreatedAt:   now,
		ValidUntil:  now.Add(s.validity),
	}
	if err := s.insights.CreateInsight(ctx, insight); err != nil {
		s.logger.Error("failed to save insight",
			zap.Error(err),
			zap.String("user_id", userID),
			zap.String("insight_type", string(t)),
		)
		return nil, fmt.Errorf("failed to save insight: %w", err)
	}

	s.audit.Record(ctx, userID, audit.ActionInsightCreate, audit.ResourceInsight, insight.ID, string(t))
	return &model.InsightOutcome{Status: model.OutcomeCompleted, Insight: insight}, nil
}

func unavailableInsight(message string) *model.InsightOutcome {
	return &model.InsightOutcome{Status: model.OutcomeUnavailable, Message: message}
}
