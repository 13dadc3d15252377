package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/emeeran/phrm-diag-sub000/internal/analytics"
	"github.com/emeeran/phrm-diag-sub000/internal/retry"
	"github.com/emeeran/phrm-diag-sub000/pkg/model"
	"go.uber.org/zap"
)

var (
	// RecordMilestones are the total-records thresholds worth celebrating
	RecordMilestones = []int{10, 25, 50, 100, 250}
	// StreakMilestones are consecutive tracking-day thresholds
	StreakMilestones = []int{7, 30, 100}
)

// MilestoneDetector celebrates tracking progress
type MilestoneDetector struct {
	generator Generator
	policy    retry.Policy
	logger    *zap.Logger
}

// NewMilestoneDetector creates a new MilestoneDetector. generator may be nil,
// in which case only local milestones are produced.
func NewMilestoneDetector(generator Generator, policy retry.Policy, logger *zap.Logger) *MilestoneDetector {
	return &MilestoneDetector{
		generator: generator,
		policy:    policy,
		logger:    logger,
	}
}

type generatedMilestone struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Key         string `json:"key"`
}

// Detect returns the highest record-count milestone reached, the current
// tracking streak milestone and any generated milestones.
func (d *MilestoneDetector) Detect(ctx context.Context, records []model.HealthRecord, now time.Time) []Finding {
	sorted := sortedCopy(records)
	var findings []Finding

	if n, at, ok := highestRecordMilestone(sorted); ok {
		findings = append(findings, Finding{
			Title:       fmt.Sprintf("Milestone: %d health records logged", n),
			Description: fmt.Sprintf("You have logged %d health records. Keep up the great tracking!", n),
			Priority:    model.PriorityLow,
			Data: model.MilestoneData{
				Key:        fmt.Sprintf("records_%d", n),
				Source:     "local",
				Value:      n,
				AchievedAt: at,
			},
		})
	}

	if n, at, ok := streakMilestone(sorted, now); ok {
		findings = append(findings, Finding{
			Title:       fmt.Sprintf("Milestone: %d-day tracking streak", n),
			Description: fmt.Sprintf("You have logged your health for %d days in a row.", n),
			Priority:    model.PriorityLow,
			Data: model.MilestoneData{
				Key:        fmt.Sprintf("streak_%d", n),
				Source:     "local",
				Value:      n,
				AchievedAt: at,
			},
		})
	}

	if d.generator != nil && len(sorted) > 0 {
		findings = append(findings, d.generated(ctx, sorted, now)...)
	}

	return findings
}

func (d *MilestoneDetector) generated(ctx context.Context, records []model.HealthRecord, now time.Time) []Finding {
	raw, err := generate(ctx, d.generator, d.policy, d.logger, KindMilestones, analytics.Digest(records, analytics.DefaultDigestLimit))
	if err != nil {
		return nil
	}

	var items []generatedMilestone
	if !decodeList(raw, "milestones", &items) {
		d.logger.Warn("discarding malformed milestone output", zap.Int("bytes", len(raw)))
		return nil
	}

	var findings []Finding
	for _, m := range items {
		title := strings.TrimSpace(m.Title)
		if title == "" {
			continue
		}
		key := m.Key
		if key == "" {
			key = strings.ToLower(strings.ReplaceAll(title, " ", "_"))
		}
		findings = append(findings, Finding{
			Title:       "Milestone: " + title,
			Description: m.Description,
			Priority:    model.PriorityLow,
			Data: model.MilestoneData{
				Key:        key,
				Source:     "generated",
				AchievedAt: now,
			},
		})
	}
	return findings
}

func highestRecordMilestone(sorted []model.HealthRecord) (int, time.Time, bool) {
	for i := len(RecordMilestones) - 1; i >= 0; i-- {
		n := RecordMilestones[i]
		if len(sorted) >= n {
			return n, sorted[n-1].Date, true
		}
	}
	return 0, time.Time{}, false
}

// streakMilestone counts consecutive calendar days with at least one record,
// ending today or yesterday, and returns the highest threshold reached.
func streakMilestone(sorted []model.HealthRecord, now time.Time) (int, time.Time, bool) {
	if len(sorted) == 0 {
		return 0, time.Time{}, false
	}
	days := make(map[time.Time]bool)
	for _, r := range sorted {
		days[truncateDay(r.Date)] = true
	}

	cursor := truncateDay(now)
	if !days[cursor] {
		cursor = cursor.AddDate(0, 0, -1)
	}
	streak := 0
	for days[cursor] {
		streak++
		cursor = cursor.AddDate(0, 0, -1)
	}

	for i := len(StreakMilestones) - 1; i >= 0; i-- {
		if streak >= StreakMilestones[i] {
			return StreakMilestones[i], truncateDay(sorted[len(sorted)-1].Date), true
		}
	}
	return 0, time.Time{}, false
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// generate calls the generation port through the retry policy. Failures are
// logged and reported as an error so callers can degrade to nothing.
func generate(ctx context.Context, g Generator, p retry.Policy, logger *zap.Logger, kind, input string) (json.RawMessage, error) {
	var raw json.RawMessage
	err := retry.Do(ctx, p, logger, "generate "+kind, func(ctx context.Context) error {
		var err error
		raw, err = g.GenerateStructured(ctx, kind, input)
		return err
	})
	if err != nil {
		logger.Warn("generation failed, continuing without generated content",
			zap.String("kind", kind),
			zap.Error(err),
		)
		return nil, err
	}
	return raw, nil
}

// decodeList accepts either a bare JSON array or an object holding the array under key
func decodeList(raw json.RawMessage, key string, out interface{}) bool {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		return json.Unmarshal([]byte(trimmed), out) == nil
	}
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &wrapper); err != nil {
		return false
	}
	inner, ok := wrapper[key]
	if !ok {
		return false
	}
	return json.Unmarshal(inner, out) == nil
}
