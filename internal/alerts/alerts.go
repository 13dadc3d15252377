// Package alerts holds the detectors that turn a user's records into alert
// findings. Detectors never persist anything; the alert service decides
// expiry and deduplication.
package alerts

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/emeeran/phrm-diag-sub000/pkg/model"
)

// Finding is one alert-worthy observation produced by a detector
type Finding struct {
	Title       string
	Description string
	Priority    model.Priority
	Data        model.AlertData
	// ExpiresAt overrides the per-type TTL when set
	ExpiresAt time.Time
}

// Generator is the structured generation port used for milestones and wellness goals
type Generator interface {
	GenerateStructured(ctx context.Context, kind, input string) (json.RawMessage, error)
}

// Generation prompt kinds
const (
	KindMilestones = "milestones"
	KindWellness   = "wellness"
)

// sortedCopy returns records ordered by date, keeping input order for ties
func sortedCopy(records []model.HealthRecord) []model.HealthRecord {
	out := append([]model.HealthRecord(nil), records...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}
