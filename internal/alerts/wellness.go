package alerts

import (
	"context"
	"strings"

	"github.com/emeeran/phrm-diag-sub000/internal/analytics"
	"github.com/emeeran/phrm-diag-sub000/internal/retry"
	"github.com/emeeran/phrm-diag-sub000/pkg/model"
	"go.uber.org/zap"
)

// WellnessPlanner asks the generation port for personalized wellness goals
type WellnessPlanner struct {
	generator Generator
	policy    retry.Policy
	logger    *zap.Logger
}

// NewWellnessPlanner creates a new WellnessPlanner
func NewWellnessPlanner(generator Generator, policy retry.Policy, logger *zap.Logger) *WellnessPlanner {
	return &WellnessPlanner{
		generator: generator,
		policy:    policy,
		logger:    logger,
	}
}

type generatedGoal struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	TargetDays  int      `json:"target_days"`
	Steps       []string `json:"steps"`
}

// Goals returns one finding per generated goal. Generation failures and
// malformed output yield no goals.
func (p *WellnessPlanner) Goals(ctx context.Context, records []model.HealthRecord) []Finding {
	if p.generator == nil {
		return nil
	}

	raw, err := generate(ctx, p.generator, p.policy, p.logger, KindWellness, analytics.Digest(records, analytics.DefaultDigestLimit))
	if err != nil {
		return nil
	}

	var goals []generatedGoal
	if !decodeList(raw, "goals", &goals) {
		p.logger.Warn("discarding malformed wellness output", zap.Int("bytes", len(raw)))
		return nil
	}

	var findings []Finding
	for _, g := range goals {
		title := strings.TrimSpace(g.Title)
		if title == "" {
			continue
		}
		findings = append(findings, Finding{
			Title:       "Wellness goal: " + title,
			Description: g.Description,
			Priority:    model.PriorityLow,
			Data: model.WellnessData{
				Goal:       title,
				Category:   g.Category,
				TargetDays: g.TargetDays,
				Steps:      g.Steps,
			},
		})
	}
	return findings
}
