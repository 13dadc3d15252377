package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/emeeran/phrm-diag-sub000/internal/alerts"
	"github.com/emeeran/phrm-diag-sub000/internal/analytics"
	"github.com/emeeran/phrm-diag-sub000/internal/apperrors"
	"github.com/emeeran/phrm-diag-sub000/internal/audit"
	"github.com/emeeran/phrm-diag-sub000/internal/metrics"
	"github.com/emeeran/phrm-diag-sub000/pkg/model"
)

// Default alert lifetimes
const (
	DefaultAnomalyTTL   = 14 * 24 * time.Hour
	DefaultMilestoneTTL = 30 * 24 * time.Hour
	DefaultWellnessTTL  = 60 * 24 * time.Hour
)

// AlertConfig holds the tunables of AlertService
type AlertConfig struct {
	AnomalyTTL   time.Duration
	MilestoneTTL time.Duration
	WellnessTTL  time.Duration
	Clock        Clock
}

// Detectors bundles the alert detectors
type Detectors struct {
	Anomaly    *alerts.AnomalyDetector
	Refill     *alerts.RefillDetector
	Milestones *alerts.MilestoneDetector
	Wellness   *alerts.WellnessPlanner
}

// AlertService runs alert detectors and manages alert lifecycle
type AlertService struct {
	records   RecordRepositoryInterface
	alerts    AlertRepositoryInterface
	detectors Detectors
	audit     AuditRecorder
	metrics   *metrics.Metrics
	ttl       map[model.AlertType]time.Duration
	now       Clock
	persistMu keyedMutex
	logger    *zap.Logger
}

// NewAlertService creates a new AlertService
func NewAlertService(
	records RecordRepositoryInterface,
	alertRepo AlertRepositoryInterface,
	detectors Detectors,
	auditor AuditRecorder,
	m *metrics.Metrics,
	cfg AlertConfig,
	logger *zap.Logger,
) *AlertService {
	return &AlertService{
		records:   records,
		alerts:    alertRepo,
		detectors: detectors,
		audit:     orNop(auditor),
		metrics:   m,
		ttl: map[model.AlertType]time.Duration{
			model.AlertAnomaly:   durationOr(cfg.AnomalyTTL, DefaultAnomalyTTL),
			model.AlertMilestone: durationOr(cfg.MilestoneTTL, DefaultMilestoneTTL),
			model.AlertWellness:  durationOr(cfg.WellnessTTL, DefaultWellnessTTL),
		},
		now:    orSystem(cfg.Clock),
		logger: logger,
	}
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

// DetectAnomalies runs the anomaly detector for a user
func (s *AlertService) DetectAnomalies(ctx context.Context, userID string) (*model.DetectionOutcome, error) {
	return s.detect(ctx, userID, model.AlertAnomaly, func(ctx context.Context, records []model.HealthRecord, now time.Time) []alerts.Finding {
		return s.detectors.Anomaly.Detect(records, now)
	})
}

// CheckRefills runs the refill detector for a user
func (s *AlertService) CheckRefills(ctx context.Context, userID string) (*model.DetectionOutcome, error) {
	return s.detect(ctx, userID, model.AlertRefill, func(ctx context.Context, records []model.HealthRecord, now time.Time) []alerts.Finding {
		return s.detectors.Refill.Detect(records, now)
	})
}

// GenerateMilestones runs the milestone detector for a user
func (s *AlertService) GenerateMilestones(ctx context.Context, userID string) (*model.DetectionOutcome, error) {
	return s.detect(ctx, userID, model.AlertMilestone, func(ctx context.Context, records []model.HealthRecord, now time.Time) []alerts.Finding {
		return s.detectors.Milestones.Detect(ctx, records, now)
	})
}

// GenerateWellnessGoals asks the wellness planner for goals for a user
func (s *AlertService) GenerateWellnessGoals(ctx context.Context, userID string) (*model.DetectionOutcome, error) {
	return s.detect(ctx, userID, model.AlertWellness, func(ctx context.Context, records []model.HealthRecord, now time.Time) []alerts.Finding {
		return s.detectors.Wellness.Goals(ctx, records)
	})
}

// RunAll runs every configured detector in parallel. Outcomes are returned
// in the order anomaly, refill, milestone, wellness.
func (s *AlertService) RunAll(ctx context.Context, userID string) ([]model.DetectionOutcome, error) {
	runs := []func(context.Context, string) (*model.DetectionOutcome, error){
		s.DetectAnomalies,
		s.CheckRefills,
		s.GenerateMilestones,
		s.GenerateWellnessGoals,
	}

	outcomes := make([]model.DetectionOutcome, len(runs))
	g, gctx := errgroup.WithContext(ctx)
	for i, run := range runs {
		g.Go(func() error {
			outcome, err := run(gctx, userID)
			if err != nil {
				return err
			}
			outcomes[i] = *outcome
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

type detectFunc func(ctx context.Context, records []model.HealthRecord, now time.Time) []alerts.Finding

func (s *AlertService) detect(ctx context.Context, userID string, t model.AlertType, fn detectFunc) (*model.DetectionOutcome, error) {
	records, err := s.records.ListRecords(ctx, userID, model.RecordFilter{})
	if err != nil {
		s.logger.Error("failed to load records",
			zap.Error(err),
			zap.String("user_id", userID),
			zap.String("alert_type", string(t)),
		)
		return nil, fmt.Errorf("failed to load records: %w", err)
	}

	if insufficient := analytics.CheckDetector(t, records); insufficient != nil {
		return &model.DetectionOutcome{
			Status:       model.OutcomeInsufficientData,
			AlertType:    t,
			AlertIDs:     []string{},
			Insufficient: insufficient,
		}, nil
	}

	now := s.now()
	findings := fn(ctx, records, now)

	ids, skipped, err := s.persist(ctx, userID, t, findings, now)
	if err != nil {
		return nil, err
	}

	s.logger.Info("alert detection completed",
		zap.String("user_id", userID),
		zap.String("alert_type", string(t)),
		zap.Int("findings", len(findings)),
		zap.Int("created", len(ids)),
		zap.Int("skipped", skipped),
	)

	return &model.DetectionOutcome{
		Status:    model.OutcomeCompleted,
		AlertType: t,
		AlertIDs:  ids,
		Skipped:   skipped,
	}, nil
}

type alertKey struct {
	alertType model.AlertType
	title     string
}

// persist writes the findings not already covered by an active alert of the
// same type and title, in one store call. Runs for the same user and type are
// serialized so the active-alert check and the write cannot interleave.
func (s *AlertService) persist(ctx context.Context, userID string, t model.AlertType, findings []alerts.Finding, now time.Time) ([]string, int, error) {
	if len(findings) == 0 {
		return []string{}, 0, nil
	}

	unlock := s.persistMu.Lock(userID + "|" + string(t))
	defer unlock()

	active, err := s.alerts.ListActiveAlerts(ctx, userID, now)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list active alerts: %w", err)
	}

	seen := make(map[alertKey]bool, len(active))
	for _, a := range active {
		seen[alertKey{a.AlertType, a.Title}] = true
	}

	batch := make([]model.HealthAlert, 0, len(findings))
	skipped := 0
	for _, f := range findings {
		key := alertKey{t, f.Title}
		if seen[key] {
			skipped++
			continue
		}
		seen[key] = true

		expiresAt := f.ExpiresAt
		if expiresAt.IsZero() {
			expiresAt = now.Add(s.ttl[t])
		}
		batch = append(batch, model.HealthAlert{
			UserID:      userID,
			AlertType:   t,
			Title:       f.Title,
			Description: f.Description,
			Priority:    f.Priority,
			Data:        f.Data,
			ExpiresAt:   expiresAt,
			CreatedAt:   now,
		})
	}
	s.metrics.RecordAlertSkipped(string(t), skipped)

	if len(batch) == 0 {
		return []string{}, skipped, nil
	}

	ids, err := s.alerts.CreateAlerts(ctx, batch...)
	if err != nil {
		s.logger.Error("failed to save alerts",
			zap.Error(err),
			zap.String("user_id", userID),
			zap.String("alert_type", string(t)),
		)
		return nil, 0, fmt.Errorf("failed to save alerts: %w", err)
	}

	for i, id := range ids {
		s.metrics.RecordAlertCreated(string(t), string(batch[i].Priority))
		s.audit.Record(ctx, userID, audit.ActionAlertCreate, audit.ResourceAlert, id, batch[i].Title)
	}
	return ids, skipped, nil
}

// ListActive returns the user's active alerts, most urgent first and newest
// first within a priority
func (s *AlertService) ListActive(ctx context.Context, userID string) ([]model.HealthAlert, error) {
	active, err := s.alerts.ListActiveAlerts(ctx, userID, s.now())
	if err != nil {
		s.logger.Error("failed to list active alerts",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		return nil, fmt.Errorf("failed to list active alerts: %w", err)
	}

	sort.SliceStable(active, func(i, j int) bool {
		ri, rj := active[i].Priority.Rank(), active[j].Priority.Rank()
		if ri != rj {
			return ri > rj
		}
		return active[i].CreatedAt.After(active[j].CreatedAt)
	})
	return active, nil
}

// Dismiss hides an alert. Dismissing twice succeeds and only the first call is
// audited; an unknown or foreign alert is NotFound.
func (s *AlertService) Dismiss(ctx context.Context, alertID, userID string) error {
	found, changed, err := s.alerts.Dismiss(ctx, alertID, userID)
	if err != nil {
		return fmt.Errorf("failed to dismiss alert: %w", err)
	}
	if !found {
		return apperrors.NotFound("alert", alertID)
	}
	if !changed {
		return nil
	}

	s.audit.Record(ctx, userID, audit.ActionAlertDismiss, audit.ResourceAlert, alertID, "")
	return nil
}
